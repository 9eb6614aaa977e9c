// Package engine reconciles dependency manifests against lock state, drives
// the source installers, and walks nested project graphs.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/lockstep-dev/lockstep/internal/declaration"
	"github.com/lockstep-dev/lockstep/internal/installer"
	"github.com/lockstep-dev/lockstep/internal/lock"
	"github.com/lockstep-dev/lockstep/internal/manifest"
	"github.com/lockstep-dev/lockstep/pkg/lockstep"
)

// Engine orchestrates one install run. It is single-threaded and
// depth-first: each dependency, including any nested recursion it triggers,
// resolves to completion before the next sibling begins.
type Engine struct {
	Installers *installer.Registry
	Logger     *log.Logger
	Tool       string
}

// Options configures an install run.
type Options struct {
	// Production skips the root project's development scope.
	Production bool
	// Force reinstalls every dependency regardless of lock state.
	Force bool
	// Environment selects a named settings override. Strict for the root
	// project, lenient for nested ones.
	Environment string
	// DryRun reports the plan without any filesystem mutation, clone, or
	// lock write.
	DryRun bool
	// IncludeNested makes a dry run also plan nested projects whose
	// manifests are already present on disk.
	IncludeNested bool
}

// runState is threaded through the recursive walk: the visited-manifest set
// is shared across the whole run so cycles and duplicate references resolve
// at most once.
type runState struct {
	opts     Options
	maxDepth int
	visited  map[string]bool
	result   *lockstep.RunResult
}

// Run resolves the project at rootDir and every nested project reachable
// from it. Per-dependency failures are recorded in the result and do not
// abort the run; a returned error means the run itself could not complete
// (bad manifest, unknown root environment, or a lock write failure).
func (e *Engine) Run(ctx context.Context, rootDir string) (*lockstep.RunResult, error) {
	return e.run(ctx, rootDir, Options{})
}

// RunWith is Run with explicit options.
func (e *Engine) RunWith(ctx context.Context, rootDir string, opts Options) (*lockstep.RunResult, error) {
	return e.run(ctx, rootDir, opts)
}

func (e *Engine) run(ctx context.Context, rootDir string, opts Options) (*lockstep.RunResult, error) {
	if e.Logger == nil {
		e.Logger = log.New(io.Discard)
	}

	rootDir, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolving project directory: %w", err)
	}

	m, err := manifest.LoadDir(rootDir)
	if err != nil {
		return nil, err
	}
	settings, err := manifest.ApplyEnvironmentStrict(m, opts.Environment)
	if err != nil {
		return nil, err
	}

	st := &runState{
		opts:     opts,
		maxDepth: settings.NestedDepth(),
		visited:  map[string]bool{normalizeManifestPath(rootDir): true},
		result:   &lockstep.RunResult{DryRun: opts.DryRun},
	}

	if err := e.runProject(ctx, rootDir, m, settings, 0, st); err != nil {
		return nil, err
	}
	return st.result, nil
}

func (e *Engine) runProject(ctx context.Context, dir string, m *manifest.Manifest, settings manifest.Settings, depth int, st *runState) error {
	pr := &lockstep.ProjectResult{Dir: dir, Depth: depth}
	st.result.Projects = append(st.result.Projects, pr)

	existing, err := lock.Load(filepath.Join(dir, lock.Filename))
	if err != nil {
		return err
	}
	newLock := lock.New(e.Tool)

	// Production scope always; the development scope only for the root
	// project, and only when neither the flags nor the effective settings
	// exclude it. Nested dependencies are production regardless of how the
	// parent declared them.
	installDev := depth == 0 && !st.opts.Production && settings.InstallDevEnabled()

	if err := e.runScope(ctx, dir, m.Dependencies, existing.Dependencies, newLock, false, depth, pr, st); err != nil {
		return err
	}
	if installDev {
		if err := e.runScope(ctx, dir, m.DevDependencies, existing.DevDependencies, newLock, true, depth, pr, st); err != nil {
			return err
		}
	}

	if st.opts.DryRun {
		return nil
	}
	if pr.Count(lockstep.OutcomeInstalled)+pr.Count(lockstep.OutcomeUnchanged) == 0 {
		return nil
	}
	lockPath := filepath.Join(dir, lock.Filename)
	if err := lock.Save(lockPath, newLock); err != nil {
		return fmt.Errorf("committing lockfile for %s: %w", dir, err)
	}
	e.Logger.Debug("lockfile written", "path", lockPath)
	return nil
}

func (e *Engine) runScope(ctx context.Context, dir string, entries map[string]declaration.Entry, locked map[string]lock.LockedDependency, newLock *lock.Lockfile, dev bool, depth int, pr *lockstep.ProjectResult, st *runState) error {
	scope := "dependencies"
	if dev {
		scope = "devDependencies"
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			// Interrupted mid-way: the prior lockfile stays untouched.
			return err
		}

		res, err := e.runDependency(ctx, dir, name, entries[name], locked, newLock, dev, depth, st)
		if err != nil {
			return err
		}
		res.Scope = scope
		pr.Results = append(pr.Results, res)
	}
	return nil
}

func (e *Engine) runDependency(ctx context.Context, dir, name string, entry declaration.Entry, locked map[string]lock.LockedDependency, newLock *lock.Lockfile, dev bool, depth int, st *runState) (lockstep.DependencyResult, error) {
	d, err := declaration.Parse(name, entry)
	if err != nil {
		e.Logger.Error("invalid dependency entry", "dependency", name, "error", err)
		return lockstep.DependencyResult{Name: name, Outcome: lockstep.OutcomeInvalid, Err: err}, nil
	}
	d.ApplyDefaults()

	var existing *lock.LockedDependency
	if prev, ok := locked[name]; ok {
		existing = &prev
	}

	// Unsupported entries skip before reconciliation; their prior lock entry
	// is carried forward untouched, like the failed path below.
	key := installer.KeyFor(d)
	if key == "" {
		e.Logger.Warn("unsupported dependency kind, skipping", "dependency", name, "kind", string(d.Kind))
		return e.skip(name, d, existing, newLock, dev, st), nil
	}
	inst, ok := e.Installers.Get(key)
	if !ok {
		e.Logger.Warn("no installer registered, skipping", "dependency", name, "source", key)
		return e.skip(name, d, existing, newLock, dev, st), nil
	}

	if !needsInstall(st.opts.Force, d, existing, dir) {
		e.Logger.Debug("dependency unchanged", "dependency", name, "version", existing.ResolvedVersion)
		if !st.opts.DryRun {
			newLock.Scope(dev)[name] = *existing
		}
		if err := e.walkInstallDir(ctx, dir, d.InstallPath, depth, st); err != nil {
			return lockstep.DependencyResult{}, err
		}
		return lockstep.DependencyResult{Name: name, Outcome: lockstep.OutcomeUnchanged, Version: existing.ResolvedVersion}, nil
	}

	if st.opts.DryRun {
		if err := e.walkInstallDir(ctx, dir, d.InstallPath, depth, st); err != nil {
			return lockstep.DependencyResult{}, err
		}
		return lockstep.DependencyResult{Name: name, Outcome: lockstep.OutcomeInstalled, Version: requestedVersion(d)}, nil
	}

	ld, err := inst.Install(ctx, d, dir)
	if err != nil {
		e.Logger.Error("install failed", "dependency", name, "error", err)
		if existing != nil {
			// Keep the previous known-good record rather than dropping it.
			newLock.Scope(dev)[name] = *existing
		}
		return lockstep.DependencyResult{Name: name, Outcome: lockstep.OutcomeFailed, Err: err}, nil
	}

	e.Logger.Info("installed", "dependency", name, "version", ld.ResolvedVersion)
	newLock.Scope(dev)[name] = *ld
	if err := e.walkInstallDir(ctx, dir, d.InstallPath, depth, st); err != nil {
		return lockstep.DependencyResult{}, err
	}
	return lockstep.DependencyResult{Name: name, Outcome: lockstep.OutcomeInstalled, Version: ld.ResolvedVersion}, nil
}

func (e *Engine) skip(name string, d *declaration.Declaration, existing *lock.LockedDependency, newLock *lock.Lockfile, dev bool, st *runState) lockstep.DependencyResult {
	if existing != nil && !st.opts.DryRun {
		newLock.Scope(dev)[name] = *existing
	}
	return lockstep.DependencyResult{Name: name, Outcome: lockstep.OutcomeSkipped, Version: requestedVersion(d)}
}

// walkInstallDir descends into a dependency's install directory when it
// contains a project manifest of its own. A returned error is fatal to the
// run (nested lock write failure or cancellation); everything else is a
// warning on the run result.
func (e *Engine) walkInstallDir(ctx context.Context, projectDir, installPath string, depth int, st *runState) error {
	if st.opts.DryRun && !st.opts.IncludeNested {
		return nil
	}

	dir := resolveInstallPath(projectDir, installPath)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil
	}
	if _, err := os.Stat(filepath.Join(dir, manifest.Filename)); err != nil {
		return nil
	}

	key := normalizeManifestPath(dir)
	if st.visited[key] {
		e.Logger.Debug("nested manifest already visited, skipping", "path", key)
		return nil
	}

	if depth+1 > st.maxDepth {
		warning := fmt.Sprintf("maximum nesting depth %d reached at %s — not descending", st.maxDepth, dir)
		e.Logger.Warn("nesting depth limit reached", "depth", st.maxDepth, "path", dir)
		st.result.Warnings = append(st.result.Warnings, warning)
		return nil
	}
	st.visited[key] = true

	m, err := manifest.LoadDir(dir)
	if err != nil {
		warning := fmt.Sprintf("nested manifest %s could not be loaded: %v", dir, err)
		e.Logger.Warn("skipping unreadable nested manifest", "path", dir, "error", err)
		st.result.Warnings = append(st.result.Warnings, warning)
		return nil
	}
	settings := manifest.ApplyEnvironmentLenient(m, st.opts.Environment, e.Logger)

	return e.runProject(ctx, dir, m, settings, depth+1, st)
}

func normalizeManifestPath(dir string) string {
	p := filepath.Join(dir, manifest.Filename)
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	return filepath.Clean(p)
}

// requestedVersion derives the user-facing version of a declaration before
// installation, for dry-run and skip reporting.
func requestedVersion(d *declaration.Declaration) string {
	switch src := d.Source.(type) {
	case *declaration.GitSource:
		return src.Ref
	case *declaration.RegistrySource:
		return src.Version
	}
	if d.VersionHint != "" {
		return d.VersionHint
	}
	return "unversioned"
}
