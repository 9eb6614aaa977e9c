package lock

import "time"

// Filename is the lock file written next to each project's manifest.
const Filename = "lockstep.lock"

// Lockfile is the persisted record of what is actually installed for one
// project directory. It is the sole source of truth for downstream tooling;
// the manifest expresses intent, the lockfile expresses resolved state.
type Lockfile struct {
	LockfileVersion int                         `yaml:"lockfileVersion"`
	GeneratedAt     string                      `yaml:"generatedAt"`
	Tool            string                      `yaml:"tool"`
	Dependencies    map[string]LockedDependency `yaml:"dependencies,omitempty"`
	DevDependencies map[string]LockedDependency `yaml:"devDependencies,omitempty"`
}

// LockedDependency records one actually-resolved, installed dependency.
type LockedDependency struct {
	Name               string `yaml:"name"`
	ResolvedVersion    string `yaml:"resolvedVersion"`
	SourceDescriptor   string `yaml:"sourceDescriptor"`
	InstallPath        string `yaml:"installPath"`
	ResolvedIdentifier string `yaml:"resolvedIdentifier,omitempty"`
	ResolvedAt         string `yaml:"resolvedAt"`
}

// New returns an empty lockfile stamped with the producing tool version.
func New(tool string) *Lockfile {
	return &Lockfile{
		LockfileVersion: 1,
		GeneratedAt:     time.Now().UTC().Format(time.RFC3339),
		Tool:            tool,
		Dependencies:    make(map[string]LockedDependency),
		DevDependencies: make(map[string]LockedDependency),
	}
}

// Scope returns the partition for the given scope, allocating it if needed.
func (lf *Lockfile) Scope(dev bool) map[string]LockedDependency {
	if dev {
		if lf.DevDependencies == nil {
			lf.DevDependencies = make(map[string]LockedDependency)
		}
		return lf.DevDependencies
	}
	if lf.Dependencies == nil {
		lf.Dependencies = make(map[string]LockedDependency)
	}
	return lf.Dependencies
}

// Empty reports whether the lockfile records no dependencies in either scope.
func (lf *Lockfile) Empty() bool {
	return len(lf.Dependencies) == 0 && len(lf.DevDependencies) == 0
}
