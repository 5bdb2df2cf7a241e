package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Scope names the location class a configuration file was discovered in.
type Scope int

const (
	// ScopePreferences holds user application preferences.
	ScopePreferences Scope = iota
	// ScopeUserGlobal holds user configuration applying across all projects.
	ScopeUserGlobal
	// ScopeProjectLocal is the current working directory.
	ScopeProjectLocal
	// ScopeLocalData holds machine-local data not synced across machines.
	ScopeLocalData
	// ScopePersistentData holds persistent application state.
	ScopePersistentData
	// ScopeRuntime covers environment variables and command-line arguments.
	ScopeRuntime
)

func (s Scope) String() string {
	switch s {
	case ScopePreferences:
		return "Preferences"
	case ScopeUserGlobal:
		return "UserGlobal"
	case ScopeProjectLocal:
		return "ProjectLocal"
	case ScopeLocalData:
		return "LocalData"
	case ScopePersistentData:
		return "PersistentData"
	case ScopeRuntime:
		return "Runtime"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// IsFileBased reports whether the scope maps to a directory on disk.
func (s Scope) IsFileBased() bool {
	return s >= ScopePreferences && s < ScopeRuntime
}

// DefaultScopes lists the file-based scopes in their usual precedence order.
func DefaultScopes() []Scope {
	return []Scope{ScopePreferences, ScopeUserGlobal, ScopeProjectLocal, ScopeLocalData, ScopePersistentData}
}

// searchExtensions lists supported extensions in order of preference.
var searchExtensions = []string{".toml", ".yaml", ".yml", ".json"}

// ScopeDir returns the directory for app in scope, following XDG conventions.
// Runtime has no directory.
func ScopeDir(app string, scope Scope) (string, bool) {
	switch scope {
	case ScopePreferences, ScopeUserGlobal:
		return xdgDir("XDG_CONFIG_HOME", ".config", app)
	case ScopeProjectLocal:
		cwd, err := os.Getwd()
		if err != nil {
			return "", false
		}
		return cwd, true
	case ScopeLocalData:
		return xdgDir("XDG_CACHE_HOME", ".cache", app)
	case ScopePersistentData:
		return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"), app)
	default:
		return "", false
	}
}

// ResolveScopePath returns the settings file for app in scope, if one exists.
func ResolveScopePath(app string, scope Scope) (string, bool) {
	dir, ok := ScopeDir(app, scope)
	if !ok {
		return "", false
	}
	return FindConfigIn(dir)
}

// FindConfigIn searches dir for settings.toml, settings.yaml, settings.yml and settings.json, in that order.
func FindConfigIn(dir string) (string, bool) {
	return findConfigIn(afero.NewOsFs(), dir)
}

func findConfigIn(fs afero.Fs, dir string) (string, bool) {
	for _, ext := range searchExtensions {
		path := filepath.Join(dir, "settings"+ext)
		if info, err := fs.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// xdgDir resolves $<envVar>/app, falling back to $HOME/<homeRel>/app.
func xdgDir(envVar, homeRel, app string) (string, bool) {
	if base := os.Getenv(envVar); base != "" {
		return filepath.Join(base, app), true
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, homeRel, app), true
	}
	return "", false
}
