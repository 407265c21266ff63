package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gridsync/internal/fault"
)

const sample = `
common: {
	host: "api.internal"
	port: 9000
	headers: "X-Client": "gridsync"
}
datasets: {
	movies: paths: {
		list:   "/api/movies"
		create: "/api/movies"
		audit:  "/api/movies/audit"
	}
	super_heroes: {
		host: "heroes.internal"
		port: 9100
		timeout_seconds: 5
		headers: "X-Client": "heroes"
		paths: {
			list:   "/api/heroes"
			create: "/api/heroes/batch"
			delete: "/api/heroes/remove"
		}
	}
}
`

func TestParseAndResolve(t *testing.T) {
	cfg, err := Parse("gridsync.cue", []byte(sample))
	require.NoError(t, err)
	assert.Equal(t, []string{"movies", "super_heroes"}, cfg.Names())

	movies, err := cfg.Resolve("movies")
	require.NoError(t, err)
	assert.Equal(t, "http://api.internal:9000/api/movies", movies.Endpoints.List)
	assert.Equal(t, "http://api.internal:9000/api/movies/audit", movies.Endpoints.Audit)
	assert.Empty(t, movies.Endpoints.Update, "left for the client to default")
	assert.Equal(t, 30*time.Second, movies.Timeout)
	assert.Equal(t, map[string]string{"X-Client": "gridsync"}, movies.Headers)

	heroes, err := cfg.Resolve("super_heroes")
	require.NoError(t, err)
	assert.Equal(t, "http://heroes.internal:9100/api/heroes/batch", heroes.Endpoints.Create)
	assert.Equal(t, "http://heroes.internal:9100/api/heroes/remove", heroes.Endpoints.Delete)
	assert.Equal(t, 5*time.Second, heroes.Timeout)
	assert.Equal(t, "heroes", heroes.Headers["X-Client"])
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse("min.cue", []byte(`datasets: movies: paths: {list: "/m", create: "/m"}`))
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.Common.Scheme)
	assert.Equal(t, "localhost", cfg.Common.Host)
	assert.Equal(t, 8080, cfg.Common.Port)

	r, err := cfg.Resolve("movies")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/m", r.Endpoints.List)
}

func TestInvalidConfigurations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax error", `datasets: {`},
		{"no datasets", `common: host: "x"`},
		{"relative path", `datasets: movies: paths: {list: "api/m", create: "/m"}`},
		{"missing create", `datasets: movies: paths: {list: "/m"}`},
		{"port out of range", `common: port: 70000
datasets: movies: paths: {list: "/m", create: "/m"}`},
		{"unknown field", `datasets: movies: {paths: {list: "/m", create: "/m"}, colour: "red"}`},
		{"bad scheme", `common: scheme: "ftp"
datasets: movies: paths: {list: "/m", create: "/m"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.cue", []byte(tt.src))
			require.Error(t, err)
			assert.True(t, fault.IsConfiguration(err), "got %v", err)
		})
	}
}

func TestResolveUnknownDataset(t *testing.T) {
	cfg, err := Parse("gridsync.cue", []byte(sample))
	require.NoError(t, err)

	_, err = cfg.Resolve("cars")
	assert.True(t, fault.IsConfiguration(err))
}

func TestCheck(t *testing.T) {
	cfg, err := Parse("gridsync.cue", []byte(sample))
	require.NoError(t, err)

	assert.NoError(t, cfg.Check([]string{"movies", "super_heroes"}))

	err = cfg.Check([]string{"movies"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "super_heroes")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridsync.cue")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Datasets, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	assert.True(t, fault.IsConfiguration(err))
}
