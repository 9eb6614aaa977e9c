package installer

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/lockstep-dev/lockstep/internal/declaration"
	"github.com/lockstep-dev/lockstep/internal/lock"
)

// RegistryArtifactInstaller fetches immutable group/artifact/version
// coordinates from a Maven-layout repository. The same coordinates never
// re-fetch unless the engine is forced.
type RegistryArtifactInstaller struct {
	Client HTTPClient
}

func (r *RegistryArtifactInstaller) Install(ctx context.Context, d *declaration.Declaration, projectRoot string) (*lock.LockedDependency, error) {
	src, ok := d.Source.(*declaration.RegistrySource)
	if !ok {
		return nil, &InstallError{Dependency: d.Name, Operation: "install", Err: fmt.Errorf("declaration source is not registry coordinates")}
	}

	artifactURL := src.ArtifactURL()
	data, err := download(ctx, r.Client, artifactURL)
	if err != nil {
		return nil, &InstallError{Dependency: d.Name, Operation: "download", Err: err, Hint: "check the coordinates and repository base URL"}
	}

	installDir := resolvePath(projectRoot, d.InstallPath)
	if err := freshDir(installDir); err != nil {
		return nil, &InstallError{Dependency: d.Name, Operation: "download", Err: err}
	}
	if err := writeArtifact(filepath.Join(installDir, path.Base(artifactURL)), data); err != nil {
		return nil, &InstallError{Dependency: d.Name, Operation: "download", Err: err}
	}

	return &lock.LockedDependency{
		Name:             d.Name,
		ResolvedVersion:  src.Version,
		SourceDescriptor: src.Descriptor(),
		InstallPath:      d.InstallPath,
		ResolvedAt:       nowStamp(),
	}, nil
}
