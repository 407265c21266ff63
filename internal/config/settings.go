package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Setting keys. Each is also read from GRIDSYNC_<KEY> and bound to the
// CLI flag of the same name.
const (
	KeyConfig  = "config"
	KeyJournal = "journal"
	KeyFormat  = "format"
	KeyVerbose = "verbose"
)

// EnvPrefix prefixes environment variables.
const EnvPrefix = "GRIDSYNC"

const (
	settingsFileName = "gridsync"
	settingsFileType = "yaml"

	defaultConfigPath = "gridsync.cue"
	defaultFormat     = "text"
)

// ErrInvalidFormat is returned for an output format other than text or json.
var ErrInvalidFormat = errors.New("format must be text or json")

// Settings are the resolved CLI settings.
type Settings struct {
	// ConfigPath locates the CUE deployment configuration.
	ConfigPath string

	// JournalPath locates the SQLite apply journal. Empty disables it.
	JournalPath string

	// Format is "text" or "json".
	Format string

	Verbose bool
}

// Validate checks settings values.
func (s Settings) Validate() error {
	if s.Format != "text" && s.Format != "json" {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, s.Format)
	}
	if s.ConfigPath == "" {
		return errors.New("config path must not be empty")
	}
	return nil
}

// LoadEnvFiles loads .env style files into the process environment.
// Variables already set win. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// NewViper creates a viper instance with gridsync defaults, environment
// binding and an optional gridsync.yaml settings file searched in dirs.
// A missing settings file is not an error.
func NewViper(dirs ...string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(KeyConfig, defaultConfigPath)
	v.SetDefault(KeyFormat, defaultFormat)
	v.SetDefault(KeyJournal, "")
	v.SetDefault(KeyVerbose, false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if len(dirs) == 0 {
		return v, nil
	}
	v.SetConfigName(settingsFileName)
	v.SetConfigType(settingsFileType)
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return v, nil
}

// BindFlags binds the known setting keys to flags present in fs. Flags
// explicitly set on the command line take precedence over env and file.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, key := range []string{KeyConfig, KeyJournal, KeyFormat, KeyVerbose} {
		f := fs.Lookup(key)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", key, err)
		}
	}
	return nil
}

// Resolve reads and validates Settings from v.
func Resolve(v *viper.Viper) (Settings, error) {
	s := Settings{
		ConfigPath:  v.GetString(KeyConfig),
		JournalPath: v.GetString(KeyJournal),
		Format:      v.GetString(KeyFormat),
		Verbose:     v.GetBool(KeyVerbose),
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
