package installer

import (
	"context"
	"fmt"
	"os"

	"github.com/lockstep-dev/lockstep/internal/declaration"
	"github.com/lockstep-dev/lockstep/internal/lock"
)

// ArchiveInstaller installs file-based dependencies: local paths (copied)
// and direct HTTP downloads.
type ArchiveInstaller struct {
	Client HTTPClient
}

func (a *ArchiveInstaller) Install(ctx context.Context, d *declaration.Declaration, projectRoot string) (*lock.LockedDependency, error) {
	switch src := d.Source.(type) {
	case *declaration.PathSource:
		return a.installPath(d, src, projectRoot)
	case *declaration.URLSource:
		return a.installURL(ctx, d, src, projectRoot)
	default:
		return nil, &InstallError{Dependency: d.Name, Operation: "install", Err: fmt.Errorf("declaration source is not file or http")}
	}
}

func (a *ArchiveInstaller) installPath(d *declaration.Declaration, src *declaration.PathSource, projectRoot string) (*lock.LockedDependency, error) {
	from := resolvePath(projectRoot, src.Path)
	info, err := os.Stat(from)
	if err != nil {
		return nil, &InstallError{Dependency: d.Name, Operation: "copy", Err: err, Hint: "check that 'path' exists relative to the project directory"}
	}

	dest := resolvePath(projectRoot, d.InstallPath)
	if info.IsDir() {
		if err := freshDir(dest); err != nil {
			return nil, &InstallError{Dependency: d.Name, Operation: "copy", Err: err}
		}
		if err := copyTree(from, dest); err != nil {
			return nil, &InstallError{Dependency: d.Name, Operation: "copy", Err: err}
		}
	} else {
		data, readErr := os.ReadFile(from)
		if readErr != nil {
			return nil, &InstallError{Dependency: d.Name, Operation: "copy", Err: readErr}
		}
		if err := writeArtifact(dest, data); err != nil {
			return nil, &InstallError{Dependency: d.Name, Operation: "copy", Err: err}
		}
	}

	return a.locked(d), nil
}

func (a *ArchiveInstaller) installURL(ctx context.Context, d *declaration.Declaration, src *declaration.URLSource, projectRoot string) (*lock.LockedDependency, error) {
	data, err := download(ctx, a.Client, src.URL)
	if err != nil {
		return nil, &InstallError{Dependency: d.Name, Operation: "download", Err: err, Hint: "check the URL and network access"}
	}

	dest := resolvePath(projectRoot, d.InstallPath)
	if err := writeArtifact(dest, data); err != nil {
		return nil, &InstallError{Dependency: d.Name, Operation: "download", Err: err}
	}

	return a.locked(d), nil
}

func (a *ArchiveInstaller) locked(d *declaration.Declaration) *lock.LockedDependency {
	version := d.VersionHint
	if version == "" {
		version = "unversioned"
	}
	return &lock.LockedDependency{
		Name:             d.Name,
		ResolvedVersion:  version,
		SourceDescriptor: d.Source.Descriptor(),
		InstallPath:      d.InstallPath,
		ResolvedAt:       nowStamp(),
	}
}
