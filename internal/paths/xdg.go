// Package paths resolves stencil's per-user directories following XDG conventions.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "stencil"

// Dirs holds the resolved per-user directories.
type Dirs struct {
	// ConfigDir holds config.yaml.
	ConfigDir string
	// CacheDir holds template source clones.
	CacheDir string
}

// ConfigFile is the path of the optional user config file.
func (d Dirs) ConfigFile() string {
	return filepath.Join(d.ConfigDir, "config.yaml")
}

// Env looks up environment variables. Unset variables return "".
type Env interface {
	Get(key string) string
}

// OSEnv reads the process environment.
type OSEnv struct{}

func (OSEnv) Get(key string) string { return os.Getenv(key) }

// kind describes how one directory is resolved.
type kind struct {
	override string   // STENCIL_* variable, used verbatim
	darwin   []string // below $HOME on macOS
	xdg      string   // XDG_* base variable
	fallback []string // below $HOME elsewhere
}

var (
	configKind = kind{
		override: "STENCIL_CONFIG_DIR",
		darwin:   []string{"Library", "Preferences"},
		xdg:      "XDG_CONFIG_HOME",
		fallback: []string{".config"},
	}
	cacheKind = kind{
		override: "STENCIL_CACHE_DIR",
		darwin:   []string{"Library", "Caches"},
		xdg:      "XDG_CACHE_HOME",
		fallback: []string{".cache"},
	}
)

// ResolveDirs computes the config and cache directories for the current OS.
//
// Each directory resolves, first match wins:
//  1. STENCIL_CONFIG_DIR / STENCIL_CACHE_DIR
//  2. macOS: ~/Library/Preferences/stencil, ~/Library/Caches/stencil
//  3. $XDG_CONFIG_HOME/stencil, $XDG_CACHE_HOME/stencil
//  4. ~/.config/stencil, ~/.cache/stencil
//
// Nothing is created on disk. ~ inside variables is not expanded.
func ResolveDirs(env Env, homeDir string) Dirs {
	return ResolveDirsWithOS(env, homeDir, runtime.GOOS == "darwin")
}

// ResolveDirsWithOS is ResolveDirs with the platform made explicit.
func ResolveDirsWithOS(env Env, homeDir string, isDarwin bool) Dirs {
	return Dirs{
		ConfigDir: configKind.resolve(env, homeDir, isDarwin),
		CacheDir:  cacheKind.resolve(env, homeDir, isDarwin),
	}
}

func (k kind) resolve(env Env, homeDir string, isDarwin bool) string {
	if v := env.Get(k.override); v != "" {
		return v
	}
	if isDarwin {
		return filepath.Join(append(append([]string{homeDir}, k.darwin...), appName)...)
	}
	if v := env.Get(k.xdg); v != "" {
		return filepath.Join(v, appName)
	}
	return filepath.Join(append(append([]string{homeDir}, k.fallback...), appName)...)
}
