// Package catalog holds the engine's fixed tables: categories and their
// duration windows, quotas, milestone thresholds, the achievement ladder and
// the walk activity catalog. A Catalog is built once at startup and passed to
// the services that need it.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultYAML []byte

const (
	MetricStreak    = "streak"
	MetricTotalDays = "total_days"
)

// Horizons in the order the explore picker concatenates them.
var Horizons = []string{"today", "this_week", "someday"}

type Category struct {
	Name       string `yaml:"name" json:"name"`
	MinSeconds int    `yaml:"min_seconds" json:"min_seconds"`
	MaxSeconds int    `yaml:"max_seconds" json:"max_seconds"`
}

type Milestone struct {
	ID        string `yaml:"id" json:"id"`
	Metric    string `yaml:"metric" json:"metric"`
	Threshold int    `yaml:"threshold" json:"threshold"`
	Reward    string `yaml:"reward" json:"reward"`
}

type Achievement struct {
	Threshold int    `yaml:"threshold" json:"threshold"`
	Title     string `yaml:"title" json:"title"`
}

type Activity struct {
	ID       string `yaml:"id" json:"id"`
	Category string `yaml:"category" json:"category"`
	Horizon  string `yaml:"horizon" json:"horizon"`
	Text     string `yaml:"text" json:"text"`
}

type Catalog struct {
	DailyKeepCap      int `yaml:"daily_keep_cap"`
	KeepReflectionMin int `yaml:"keep_reflection_min"`
	WalkReflectionMin int `yaml:"walk_reflection_min"`
	WalkQueueCap      int `yaml:"walk_queue_cap"`

	Categories   []Category    `yaml:"categories"`
	Milestones   []Milestone   `yaml:"milestones"`
	Achievements []Achievement `yaml:"achievements"`
	Activities   []Activity    `yaml:"activities"`

	byCategory map[string]Category
	byActivity map[string]Activity
	explore    map[string][]Activity
}

func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog file, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.index()
	return &c, nil
}

func (c *Catalog) Validate() error {
	if len(c.Categories) == 0 {
		return errors.New("catalog: no categories")
	}
	if c.DailyKeepCap < 1 {
		return errors.New("catalog: daily_keep_cap must be >= 1")
	}
	if c.WalkQueueCap < 1 {
		return errors.New("catalog: walk_queue_cap must be >= 1")
	}

	cats := map[string]bool{}
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return errors.New("catalog: category without name")
		}
		if cats[cat.Name] {
			return fmt.Errorf("catalog: duplicate category %q", cat.Name)
		}
		if cat.MinSeconds < 0 || cat.MaxSeconds < cat.MinSeconds {
			return fmt.Errorf("catalog: bad duration window for %q", cat.Name)
		}
		cats[cat.Name] = true
	}

	ms := map[string]bool{}
	for _, m := range c.Milestones {
		if m.ID == "" || ms[m.ID] {
			return fmt.Errorf("catalog: missing or duplicate milestone id %q", m.ID)
		}
		if m.Metric != MetricStreak && m.Metric != MetricTotalDays {
			return fmt.Errorf("catalog: milestone %q has unknown metric %q", m.ID, m.Metric)
		}
		if m.Threshold < 1 {
			return fmt.Errorf("catalog: milestone %q threshold must be >= 1", m.ID)
		}
		ms[m.ID] = true
	}

	for i := 1; i < len(c.Achievements); i++ {
		if c.Achievements[i].Threshold <= c.Achievements[i-1].Threshold {
			return errors.New("catalog: achievement thresholds must increase")
		}
	}

	horizons := map[string]bool{}
	for _, h := range Horizons {
		horizons[h] = true
	}
	acts := map[string]bool{}
	for _, a := range c.Activities {
		if a.ID == "" || acts[a.ID] {
			return fmt.Errorf("catalog: missing or duplicate activity id %q", a.ID)
		}
		if !cats[a.Category] {
			return fmt.Errorf("catalog: activity %q has unknown category %q", a.ID, a.Category)
		}
		if !horizons[a.Horizon] {
			return fmt.Errorf("catalog: activity %q has unknown horizon %q", a.ID, a.Horizon)
		}
		acts[a.ID] = true
	}
	return nil
}

func (c *Catalog) index() {
	c.byCategory = make(map[string]Category, len(c.Categories))
	for _, cat := range c.Categories {
		c.byCategory[cat.Name] = cat
	}

	rank := map[string]int{}
	for i, h := range Horizons {
		rank[h] = i
	}
	c.byActivity = make(map[string]Activity, len(c.Activities))
	c.explore = map[string][]Activity{}
	for _, a := range c.Activities {
		c.byActivity[a.ID] = a
		c.explore[a.Category] = append(c.explore[a.Category], a)
	}
	for cat := range c.explore {
		list := c.explore[cat]
		sort.SliceStable(list, func(i, j int) bool {
			return rank[list[i].Horizon] < rank[list[j].Horizon]
		})
	}
}

func (c *Catalog) CategoryNames() []string {
	out := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		out = append(out, cat.Name)
	}
	return out
}

func (c *Catalog) HasCategory(name string) bool {
	_, ok := c.byCategory[name]
	return ok
}

// InWindow reports whether a duration falls in the category's digestible
// window. Items without a duration are outside every window.
func (c *Catalog) InWindow(category string, seconds *int) bool {
	cat, ok := c.byCategory[category]
	if !ok || seconds == nil {
		return false
	}
	return *seconds >= cat.MinSeconds && *seconds <= cat.MaxSeconds
}

func (c *Catalog) Milestone(id string) (Milestone, bool) {
	for _, m := range c.Milestones {
		if m.ID == id {
			return m, true
		}
	}
	return Milestone{}, false
}

func (c *Catalog) Activity(id string) (Activity, bool) {
	a, ok := c.byActivity[id]
	return a, ok
}

// ExploreCandidates returns every activity of a category, horizons
// concatenated in Horizons order. The slice must not be modified.
func (c *Catalog) ExploreCandidates(category string) []Activity {
	return c.explore[category]
}

func (c *Catalog) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
