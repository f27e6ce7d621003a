package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"ritual/internal/auth"
	"ritual/internal/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCatalogCommand(t *testing.T) {
	out, err := run(t, "catalog")
	require.NoError(t, err)

	cat, err := catalog.Parse([]byte(out))
	require.NoError(t, err)
	assert.Len(t, cat.Categories, 8)
	assert.Equal(t, 3, cat.WalkQueueCap)
}

func TestCatalogCommand_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("daily_keep_cap: 0\n"), 0o600))

	_, err := run(t, "catalog", "--file", path)
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite://unused.db")
	t.Setenv("JWT_SECRET", "cli-secret")

	out, err := run(t, "token", "12", "--role", "admin")
	require.NoError(t, err)

	id, err := auth.NewJWT("cli-secret").Verify(string(bytes.TrimSpace([]byte(out))))
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{UserID: 12, Role: auth.RoleAdmin}, id)

	_, err = run(t, "token", "abc")
	assert.Error(t, err)
	_, err = run(t, "token", "3", "--role", "root")
	assert.Error(t, err)
}
