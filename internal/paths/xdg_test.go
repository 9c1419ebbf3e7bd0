package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mapEnv map[string]string

func (m mapEnv) Get(key string) string {
	return m[key]
}

func TestResolveDirs(t *testing.T) {
	home := filepath.FromSlash("/home/testuser")

	tests := []struct {
		name       string
		env        mapEnv
		isDarwin   bool
		wantConfig string
		wantCache  string
	}{
		{
			name:       "overrides win on darwin",
			env:        mapEnv{"STENCIL_CONFIG_DIR": "/custom/config", "STENCIL_CACHE_DIR": "/custom/cache"},
			isDarwin:   true,
			wantConfig: "/custom/config",
			wantCache:  "/custom/cache",
		},
		{
			name:       "overrides win over XDG",
			env:        mapEnv{"STENCIL_CONFIG_DIR": "/custom/config", "XDG_CONFIG_HOME": "/xdg/config"},
			wantConfig: "/custom/config",
			wantCache:  filepath.FromSlash("/home/testuser/.cache/stencil"),
		},
		{
			name:       "darwin defaults ignore XDG",
			env:        mapEnv{"XDG_CONFIG_HOME": "/xdg/config"},
			isDarwin:   true,
			wantConfig: filepath.FromSlash("/home/testuser/Library/Preferences/stencil"),
			wantCache:  filepath.FromSlash("/home/testuser/Library/Caches/stencil"),
		},
		{
			name:       "XDG on linux",
			env:        mapEnv{"XDG_CONFIG_HOME": "/xdg/config", "XDG_CACHE_HOME": "/xdg/cache"},
			wantConfig: filepath.FromSlash("/xdg/config/stencil"),
			wantCache:  filepath.FromSlash("/xdg/cache/stencil"),
		},
		{
			name:       "linux fallback",
			env:        mapEnv{},
			wantConfig: filepath.FromSlash("/home/testuser/.config/stencil"),
			wantCache:  filepath.FromSlash("/home/testuser/.cache/stencil"),
		},
		{
			name:       "tilde is literal",
			env:        mapEnv{"STENCIL_CONFIG_DIR": "~/stencil"},
			wantConfig: "~/stencil",
			wantCache:  filepath.FromSlash("/home/testuser/.cache/stencil"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveDirsWithOS(tt.env, home, tt.isDarwin)
			assert.Equal(t, tt.wantConfig, got.ConfigDir)
			assert.Equal(t, tt.wantCache, got.CacheDir)
		})
	}
}

func TestDirs_ConfigFile(t *testing.T) {
	d := Dirs{ConfigDir: filepath.FromSlash("/etc/stencil")}
	assert.Equal(t, filepath.FromSlash("/etc/stencil/config.yaml"), d.ConfigFile())
}
