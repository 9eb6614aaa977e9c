// Package gitcache owns the shared git clone cache: one working clone per
// (dependency name, repository URL) pair, reused across install runs via
// fetch + checkout, with single-shot recovery from corrupted entries.
package gitcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
)

// Namespace is the subdirectory of the cache root holding clone entries.
const Namespace = "git-cache"

// Runner executes git commands. Abstracted so cache behavior is testable
// without a network.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// ExecRunner runs the system git binary with prompts disabled.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return out, nil
}

// Manager owns the shared clone cache. All mutation paths (acquire,
// recreate, prune) go through it so key-collision and single-writer
// invariants stay in one place.
type Manager struct {
	root     string
	disabled bool
	run      Runner
	logger   *log.Logger
}

// Options configures a Manager.
type Options struct {
	// Disabled switches every Acquire to a throwaway temp clone that the
	// returned cleanup deletes.
	Disabled bool
	Runner   Runner
	Logger   *log.Logger
}

// New creates a Manager rooted at the given cache directory.
func New(root string, opts Options) *Manager {
	m := &Manager{root: root, disabled: opts.Disabled, run: opts.Runner, logger: opts.Logger}
	if m.run == nil {
		m.run = ExecRunner{}
	}
	if m.logger == nil {
		m.logger = log.New(io.Discard)
	}
	return m
}

// DefaultRoot returns the default shared cache directory.
// Uses LOCKSTEP_CACHE_DIR, then XDG_CACHE_HOME, then ~/.cache/lockstep.
func DefaultRoot() string {
	if dir := os.Getenv("LOCKSTEP_CACHE_DIR"); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "lockstep")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		if runtime.GOOS == "windows" {
			return filepath.Join(os.TempDir(), "lockstep-cache")
		}
		return filepath.Join("/tmp", "lockstep-cache")
	}
	return filepath.Join(home, ".cache", "lockstep")
}

// Key derives the cache key for a (name, url) pair. Both parts feed the hash
// so two dependencies sharing a name but different URLs never collide, and
// vice versa.
func Key(name, url string) string {
	h := sha256.Sum256([]byte(name + "\n" + url))
	return hex.EncodeToString(h[:])
}

// Dir returns the directory holding clone entries.
func (m *Manager) Dir() string {
	return filepath.Join(m.root, Namespace)
}

// EntryDir returns the clone directory for a (name, url) pair.
func (m *Manager) EntryDir(name, url string) string {
	return filepath.Join(m.Dir(), Key(name, url))
}

// corruptEntryError marks a failure attributable to a damaged local clone.
// Only these trigger the delete-and-recreate path; fetch and checkout errors
// on a healthy entry (unreachable remote, missing ref) surface as-is.
type corruptEntryError struct {
	err error
}

func (e *corruptEntryError) Error() string { return e.err.Error() }
func (e *corruptEntryError) Unwrap() error { return e.err }

// Acquire hands the caller a working tree for the repository checked out at
// ref. The caller copies files out and then calls cleanup; it must not keep
// using the directory afterwards. With the cache enabled, cleanup is a no-op
// and the clone persists for the next run; an existing entry is refreshed
// with a fetch of all refs before checkout. A corrupted entry is deleted and
// recreated exactly once; a second failure is the caller's error.
func (m *Manager) Acquire(ctx context.Context, name, url, ref string) (string, func(), error) {
	if m.disabled {
		return m.acquireThrowaway(ctx, name, url, ref)
	}

	entry := m.EntryDir(name, url)
	err := m.syncEntry(ctx, entry, url, ref)
	if err == nil {
		return entry, func() {}, nil
	}

	var corrupt *corruptEntryError
	if !errors.As(err, &corrupt) {
		return "", nil, err
	}

	m.logger.Warn("git cache entry unusable, recreating",
		"dependency", name, "entry", filepath.Base(entry), "error", err)
	if rmErr := os.RemoveAll(entry); rmErr != nil {
		return "", nil, fmt.Errorf("removing corrupted cache entry for '%s': %w", name, rmErr)
	}
	if err := m.cloneAndCheckout(ctx, entry, url, ref); err != nil {
		return "", nil, fmt.Errorf("recreating cache entry for '%s': %w", name, err)
	}
	return entry, func() {}, nil
}

func (m *Manager) acquireThrowaway(ctx context.Context, name, url, ref string) (string, func(), error) {
	tmp, err := os.MkdirTemp("", "lockstep-git-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating temp clone dir for '%s': %w", name, err)
	}
	cleanup := func() { _ = os.RemoveAll(tmp) }
	if err := m.cloneAndCheckout(ctx, tmp, url, ref); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("cloning '%s': %w", name, err)
	}
	return tmp, cleanup, nil
}

// syncEntry brings an existing entry to ref, or clones fresh when the entry
// does not exist yet. Damaged-clone failures are wrapped in corruptEntryError
// so the caller can recover them; fetch and checkout errors are not, since
// they indicate an unreachable remote or a missing ref, not local damage.
func (m *Manager) syncEntry(ctx context.Context, entry, url, ref string) error {
	info, err := os.Stat(entry)
	if os.IsNotExist(err) {
		return m.cloneAndCheckout(ctx, entry, url, ref)
	}
	if err != nil {
		return &corruptEntryError{err}
	}
	if !info.IsDir() {
		return &corruptEntryError{fmt.Errorf("cache entry %s is not a directory", entry)}
	}

	if _, err := os.Stat(filepath.Join(entry, ".git")); err != nil {
		return &corruptEntryError{fmt.Errorf("cache entry missing .git metadata: %w", err)}
	}
	if _, err := m.run.Run(ctx, entry, "rev-parse", "--git-dir"); err != nil {
		return &corruptEntryError{fmt.Errorf("cache entry metadata unreadable: %w", err)}
	}

	if _, err := m.run.Run(ctx, entry, "fetch", "--force", "--tags", "origin"); err != nil {
		return fmt.Errorf("refreshing cache entry: %w", err)
	}
	if _, err := m.run.Run(ctx, entry, "checkout", "--force", ref); err != nil {
		return fmt.Errorf("checking out %s: %w", ref, err)
	}
	// Branch refs track the remote; tags and SHAs have nothing to align.
	if _, err := m.run.Run(ctx, entry, "rev-parse", "--verify", "refs/remotes/origin/"+ref); err == nil {
		if _, err := m.run.Run(ctx, entry, "reset", "--hard", "origin/"+ref); err != nil {
			return fmt.Errorf("aligning %s with origin: %w", ref, err)
		}
	}
	return nil
}

func (m *Manager) cloneAndCheckout(ctx context.Context, dest, url, ref string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if _, err := m.run.Run(ctx, "", "clone", "--no-checkout", url, dest); err != nil {
		return err
	}
	if _, err := m.run.Run(ctx, dest, "checkout", "--force", ref); err != nil {
		return err
	}
	return nil
}

// Prune deletes the whole git-cache tree. It reports whether anything
// existed; running with no prior state is not an error.
func (m *Manager) Prune() (bool, error) {
	dir := m.Dir()
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return true, fmt.Errorf("pruning git cache %s: %w", dir, err)
	}
	return true, nil
}

// Size returns the total size of the git cache in bytes.
func (m *Manager) Size() (int64, error) {
	var total int64
	err := filepath.Walk(m.Dir(), func(path string, info os.FileInfo, err error) error {
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if os.IsNotExist(err) {
		return 0, nil
	}
	return total, err
}
