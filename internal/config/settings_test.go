package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsDefaults(t *testing.T) {
	v, err := NewViper()
	require.NoError(t, err)

	s, err := Resolve(v)
	require.NoError(t, err)
	assert.Equal(t, "gridsync.cue", s.ConfigPath)
	assert.Equal(t, "text", s.Format)
	assert.Empty(t, s.JournalPath)
	assert.False(t, s.Verbose)
}

func TestSettingsEnvironment(t *testing.T) {
	t.Setenv("GRIDSYNC_JOURNAL", "/tmp/journal.db")
	t.Setenv("GRIDSYNC_FORMAT", "json")

	v, err := NewViper()
	require.NoError(t, err)

	s, err := Resolve(v)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/journal.db", s.JournalPath)
	assert.Equal(t, "json", s.Format)
}

func TestSettingsFlagsWin(t *testing.T) {
	t.Setenv("GRIDSYNC_FORMAT", "json")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String(KeyFormat, "text", "")
	require.NoError(t, fs.Parse([]string{"--format=text"}))

	v, err := NewViper()
	require.NoError(t, err)
	require.NoError(t, BindFlags(v, fs))

	s, err := Resolve(v)
	require.NoError(t, err)
	assert.Equal(t, "text", s.Format)
}

func TestSettingsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gridsync.yaml"),
		[]byte("config: deploy/prod.cue\njournal: state/journal.db\n"), 0o644))

	v, err := NewViper(dir)
	require.NoError(t, err)

	s, err := Resolve(v)
	require.NoError(t, err)
	assert.Equal(t, "deploy/prod.cue", s.ConfigPath)
	assert.Equal(t, "state/journal.db", s.JournalPath)
}

func TestSettingsMissingFileIsFine(t *testing.T) {
	_, err := NewViper(t.TempDir())
	assert.NoError(t, err)
}

func TestSettingsRejectBadFormat(t *testing.T) {
	t.Setenv("GRIDSYNC_FORMAT", "xml")
	v, err := NewViper()
	require.NoError(t, err)

	_, err = Resolve(v)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestLoadEnvFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GRIDSYNC_TEST_ENV_VALUE=from-file\n"), 0o644))
	t.Setenv("GRIDSYNC_TEST_ENV_VALUE", "")
	os.Unsetenv("GRIDSYNC_TEST_ENV_VALUE")

	require.NoError(t, LoadEnvFiles(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("GRIDSYNC_TEST_ENV_VALUE"))
}
