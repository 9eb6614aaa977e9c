package manifest

import (
	"github.com/lockstep-dev/lockstep/internal/declaration"
)

// Filename is the manifest file looked up in project directories, including
// the install directories of resolved dependencies during graph walking.
const Filename = "lockstep.yaml"

// Manifest represents a lockstep.yaml project manifest. Unknown top-level
// keys are ignored.
type Manifest struct {
	Version         int                             `yaml:"version,omitempty"`
	Dependencies    map[string]declaration.Entry    `yaml:"dependencies,omitempty"`
	DevDependencies map[string]declaration.Entry    `yaml:"devDependencies,omitempty"`
	Settings        Settings                        `yaml:"dependencySettings,omitempty"`
	Environments    map[string]SettingsOverride     `yaml:"environments,omitempty"`
}

// Settings controls install behavior for one project.
type Settings struct {
	InstallDev *bool `yaml:"installDevDependencies,omitempty"`
	MaxDepth   int   `yaml:"maxNestedDepth,omitempty"`
}

// DefaultMaxDepth bounds recursion into nested project manifests.
const DefaultMaxDepth = 5

// InstallDevEnabled reports whether development-scope dependencies install.
// Unset means yes.
func (s Settings) InstallDevEnabled() bool {
	return s.InstallDev == nil || *s.InstallDev
}

// NestedDepth returns the effective recursion bound for nested projects.
func (s Settings) NestedDepth() int {
	if s.MaxDepth > 0 {
		return s.MaxDepth
	}
	return DefaultMaxDepth
}

// SettingsOverride is one named environment's partial override of Settings.
// Pointer fields distinguish "not overridden" from an explicit value; the
// merge is field-by-field, never a wholesale replacement.
type SettingsOverride struct {
	InstallDev *bool `yaml:"installDevDependencies,omitempty"`
	MaxDepth   *int  `yaml:"maxNestedDepth,omitempty"`
}
