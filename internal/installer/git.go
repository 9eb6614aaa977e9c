package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lockstep-dev/lockstep/internal/declaration"
	"github.com/lockstep-dev/lockstep/internal/gitcache"
	"github.com/lockstep-dev/lockstep/internal/lock"
)

// GitInstaller installs dependencies from git repositories through the
// shared clone cache.
type GitInstaller struct {
	Cache *gitcache.Manager
}

func (g *GitInstaller) Install(ctx context.Context, d *declaration.Declaration, projectRoot string) (*lock.LockedDependency, error) {
	src, ok := d.Source.(*declaration.GitSource)
	if !ok {
		return nil, &InstallError{Dependency: d.Name, Operation: "install", Err: fmt.Errorf("declaration source is not git")}
	}

	workDir, cleanup, err := g.Cache.Acquire(ctx, d.Name, src.Repo, src.Ref)
	if err != nil {
		return nil, &InstallError{Dependency: d.Name, Operation: "clone", Err: err, Hint: "check repo URL, ref, and authentication"}
	}
	defer cleanup()

	copyRoot := workDir
	if src.SubPath != "" {
		copyRoot = filepath.Join(workDir, src.SubPath)
		info, statErr := os.Stat(copyRoot)
		if statErr != nil || !info.IsDir() {
			return nil, &InstallError{
				Dependency: d.Name,
				Operation:  "install",
				Err:        fmt.Errorf("subPath '%s' not found in repository at ref %s", src.SubPath, src.Ref),
			}
		}
	}

	dest := resolvePath(projectRoot, d.InstallPath)
	if err := freshDir(dest); err != nil {
		return nil, &InstallError{Dependency: d.Name, Operation: "install", Err: err}
	}
	if err := copyTree(copyRoot, dest); err != nil {
		return nil, &InstallError{Dependency: d.Name, Operation: "install", Err: fmt.Errorf("copying working tree: %w", err)}
	}

	// The requested ref, not a resolved SHA: ref equality is the
	// reconciliation key.
	return &lock.LockedDependency{
		Name:             d.Name,
		ResolvedVersion:  src.Ref,
		SourceDescriptor: src.Descriptor(),
		InstallPath:      d.InstallPath,
		ResolvedAt:       nowStamp(),
	}, nil
}
