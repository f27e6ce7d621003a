package http

import (
	"net/http"

	"ritual/internal/auth"
	"ritual/internal/cards"
	"ritual/internal/config"
	"ritual/internal/explore"
	"ritual/internal/http/handler"
	mw "ritual/internal/http/middleware"
	"ritual/internal/rewards"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Services struct {
	Cards   *cards.Service
	Rewards *rewards.Service
	Explore *explore.Service
}

func NewRouter(cfg config.Config, svc Services, jwtSvc *auth.JWT) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLog)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	cardsH := &handler.CardsHandler{Svc: svc.Cards}
	rewardsH := &handler.RewardsHandler{Svc: svc.Rewards}
	exploreH := &handler.ExploreHandler{Svc: svc.Explore}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))

		r.Get("/cards/today", cardsH.Today)
		r.Post("/cards/{id}/keep", cardsH.Keep)
		r.Get("/progress", cardsH.Progress)

		r.Route("/collection", func(r chi.Router) {
			r.Get("/", cardsH.Collection)
			r.Patch("/{id}", cardsH.UpdateEntry)
			r.Delete("/{id}", cardsH.DeleteEntry)
		})

		r.Route("/rewards", func(r chi.Router) {
			r.Get("/", rewardsH.Check)
			r.Get("/claims", rewardsH.Claims)
			r.Post("/{milestone}/claim", rewardsH.Claim)
		})
		r.Get("/achievements", rewardsH.Achievements)

		r.Route("/explore", func(r chi.Router) {
			r.Get("/", exploreH.Daily)
			r.Get("/queue", exploreH.Queue)
			r.Post("/{activity}/save", exploreH.Save)
			r.Post("/{activity}/complete", exploreH.Complete)
			r.Delete("/{activity}", exploreH.Cancel)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))

			r.Post("/submissions", cardsH.RecordSubmission)
			r.Patch("/claims/{id}", rewardsH.SetFulfilled)
		})
	})

	return r
}
