package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"layerkit/internal/dirs"
	"layerkit/internal/model"
)

// Keys understood in config files and as LAYERKIT_* environment variables.
const (
	KeyQuiet            = "quiet"
	KeyNoProgress       = "no_progress"
	KeyDummy            = "dummy"
	KeyLogFile          = "log_file"
	KeyLogLevel         = "log_level"
	KeyProgressInterval = "progress_interval"
	KeyScriptsDir       = "scripts_dir"
)

// DefaultProgressInterval is how often the renderer samples the tracker.
const DefaultProgressInterval = 100 * time.Millisecond

// flagKeys maps root persistent flag names to their config keys.
var flagKeys = map[string]string{
	"quiet":       KeyQuiet,
	"no-progress": KeyNoProgress,
	"dummy":       KeyDummy,
	"log-file":    KeyLogFile,
	"log-level":   KeyLogLevel,
}

// Init wires a Viper instance with config paths, env, defaults and flag
// bindings. A missing config file is not an error; an explicit --config that
// cannot be read is.
func Init(root *cobra.Command) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyProgressInterval, DefaultProgressInterval)
	if sd, err := dirs.ScriptsDir(); err == nil {
		v.SetDefault(KeyScriptsDir, sd)
	}

	explicit := ""
	if f := root.PersistentFlags().Lookup("config"); f != nil {
		explicit = f.Value.String()
	}
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		if cfgDir, err := dirs.ConfigDir(); err == nil {
			v.AddConfigPath(cfgDir)
		}
		v.SetConfigName("config") // supports config.{yaml|yml|json|toml}
	}

	// Environment variables: LAYERKIT_*
	v.SetEnvPrefix("LAYERKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := root.PersistentFlags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Globals resolves the process-wide flags from v.
func Globals(v *viper.Viper) model.GlobalFlags {
	interval := v.GetDuration(KeyProgressInterval)
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return model.GlobalFlags{
		Quiet:            v.GetBool(KeyQuiet),
		NoProgress:       v.GetBool(KeyNoProgress),
		Dummy:            v.GetBool(KeyDummy),
		LogFile:          v.GetString(KeyLogFile),
		LogLevel:         v.GetString(KeyLogLevel),
		ProgressInterval: interval,
		ScriptsDir:       v.GetString(KeyScriptsDir),
	}
}
