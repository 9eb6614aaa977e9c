package declaration

import (
	"path"
	"path/filepath"
)

// Conventional install roots, relative to the owning project directory.
const (
	LibraryDir   = "lockstep_modules"
	ExtensionDir = "extensions"
	ArtifactDir  = "artifacts"
)

// ApplyDefaults fills InstallPath and Mapping when they were not set
// explicitly. It is idempotent and never overwrites an explicit value.
func (d *Declaration) ApplyDefaults() {
	if d.InstallPath == "" {
		d.InstallPath = d.defaultInstallPath()
	}
	if d.Mapping == "" && d.Kind == KindLibrary {
		// Libraries are exposed to the runtime under their own name;
		// extensions and archives need no mapping.
		d.Mapping = d.Name
	}
}

func (d *Declaration) defaultInstallPath() string {
	switch d.Kind {
	case KindExtension:
		return filepath.Join(ExtensionDir, d.Name)
	case KindArchive:
		if base := d.artifactBase(); base != "" {
			return filepath.Join(ArtifactDir, base)
		}
		return filepath.Join(ArtifactDir, d.Name)
	default:
		return filepath.Join(LibraryDir, d.Name)
	}
}

func (d *Declaration) artifactBase() string {
	switch s := d.Source.(type) {
	case *URLSource:
		return path.Base(s.URL)
	case *PathSource:
		return filepath.Base(s.Path)
	}
	return ""
}
