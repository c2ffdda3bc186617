package dirs

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "layerkit"

// AppName returns the canonical application name for directory paths.
func AppName() string {
	return appName
}

// location describes one per-OS directory: the XDG variable and home-relative
// fallback used on Linux, the home-relative path used on macOS, and the
// resolver used everywhere else.
type location struct {
	xdgEnv    string
	linuxHome []string
	darwin    []string
	other     func() (string, error)
}

func (l location) resolve() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(append([]string{home}, l.darwin...)...), nil
	case "linux":
		if xdg := os.Getenv(l.xdgEnv); xdg != "" {
			return filepath.Join(xdg, AppName()), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(append(append([]string{home}, l.linuxHome...), AppName())...), nil
	default:
		return l.other()
	}
}

func under(base func() (string, error), elem ...string) func() (string, error) {
	return func() (string, error) {
		b, err := base()
		if err != nil {
			return "", err
		}
		return filepath.Join(append([]string{b, AppName()}, elem...)...), nil
	}
}

var (
	configLoc = location{
		xdgEnv:    "XDG_CONFIG_HOME",
		linuxHome: []string{".config"},
		darwin:    []string{"Library", "Application Support", appName},
		other:     under(os.UserConfigDir),
	}
	dataLoc = location{
		xdgEnv:    "XDG_DATA_HOME",
		linuxHome: []string{".local", "share"},
		darwin:    []string{"Library", "Application Support", appName},
		other:     under(os.UserConfigDir),
	}
	stateLoc = location{
		xdgEnv:    "XDG_STATE_HOME",
		linuxHome: []string{".local", "state"},
		darwin:    []string{"Library", "Application Support", appName, "state"},
		other: func() (string, error) {
			if la := os.Getenv("LOCALAPPDATA"); la != "" {
				return filepath.Join(la, AppName(), "state"), nil
			}
			return under(os.UserConfigDir, "state")()
		},
	}
)

// ConfigDir returns the app's configuration directory.
// - Linux: $XDG_CONFIG_HOME/layerkit or ~/.config/layerkit
// - macOS: ~/Library/Application Support/layerkit
// - Windows: %AppData%/layerkit
func ConfigDir() (string, error) {
	return configLoc.resolve()
}

// DataDir returns the app's data directory.
// - Linux: $XDG_DATA_HOME/layerkit or ~/.local/share/layerkit
// - macOS: ~/Library/Application Support/layerkit
// - Windows: %AppData%/layerkit
func DataDir() (string, error) {
	return dataLoc.resolve()
}

// StateDir returns the app's state directory, where log files go by default.
// - Linux: $XDG_STATE_HOME/layerkit or ~/.local/state/layerkit
// - macOS: ~/Library/Application Support/layerkit/state
// - Windows: %LocalAppData%/layerkit/state
func StateDir() (string, error) {
	return stateLoc.resolve()
}

// ScriptsDir is where bare script names given to `run` are looked up.
func ScriptsDir() (string, error) {
	d, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "scripts"), nil
}

// Ensure creates the directory if it doesn't exist.
func Ensure(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	return os.MkdirAll(path, 0o755)
}

// EnsureAll ensures config, data and state dirs exist. Directories whose
// location cannot be resolved are skipped.
func EnsureAll() error {
	for _, fn := range []func() (string, error){ConfigDir, DataDir, StateDir} {
		p, err := fn()
		if err != nil {
			continue
		}
		if err := Ensure(p); err != nil {
			return err
		}
	}
	return nil
}
