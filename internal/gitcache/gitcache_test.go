package gitcache

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// scriptRunner fakes the git binary, failing the configured subcommands and
// recording every invocation.
type scriptRunner struct {
	calls []string
	fail  map[string]string
}

func (r *scriptRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, args[0])
	if msg, ok := r.fail[args[0]]; ok {
		return nil, fmt.Errorf("git %s: %s", args[0], msg)
	}
	return nil, nil
}

func (r *scriptRunner) count(sub string) int {
	n := 0
	for _, c := range r.calls {
		if c == sub {
			n++
		}
	}
	return n
}

func gitAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// makeRepo creates a local repository with one commit on main and a v1 tag.
func makeRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test.com")
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %s: %v", args, out, err)
		}
	}

	run("init", "-b", "main")
	if err := os.WriteFile(filepath.Join(dir, "lib.txt"), []byte("library\n"), 0644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "initial")
	run("tag", "v1")
	return dir
}

func TestKeyUniqueness(t *testing.T) {
	a := Key("toolkit", "https://example.com/a.git")
	b := Key("toolkit", "https://example.com/b.git")
	c := Key("other", "https://example.com/a.git")

	if a == b {
		t.Error("same name, different URL must not collide")
	}
	if a == c {
		t.Error("different name, same URL must not collide")
	}
	if a != Key("toolkit", "https://example.com/a.git") {
		t.Error("key is not deterministic")
	}
}

func TestPruneIdempotent(t *testing.T) {
	m := New(t.TempDir(), Options{})

	existed, err := m.Prune()
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if existed {
		t.Error("prune with no prior state should report nothing to prune")
	}

	if err := os.MkdirAll(filepath.Join(m.Dir(), "deadbeef"), 0755); err != nil {
		t.Fatal(err)
	}
	existed, err = m.Prune()
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if !existed {
		t.Error("prune should report the removed cache")
	}
	if _, err := os.Stat(m.Dir()); !os.IsNotExist(err) {
		t.Error("cache directory still present after prune")
	}

	if existed, err = m.Prune(); err != nil || existed {
		t.Errorf("second prune = (%v, %v), want (false, nil)", existed, err)
	}
}

func TestAcquireFreshThenReuse(t *testing.T) {
	gitAvailable(t)
	repo := makeRepo(t)
	m := New(t.TempDir(), Options{})

	dir, cleanup, err := m.Acquire(context.Background(), "toolkit", repo, "main")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	cleanup()

	if _, err := os.Stat(filepath.Join(dir, "lib.txt")); err != nil {
		t.Fatalf("checked-out file missing: %v", err)
	}
	if dir != m.EntryDir("toolkit", repo) {
		t.Errorf("working dir = %q, want cache entry %q", dir, m.EntryDir("toolkit", repo))
	}

	// Second acquire reuses the same entry via fetch + checkout.
	dir2, cleanup2, err := m.Acquire(context.Background(), "toolkit", repo, "v1")
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	cleanup2()
	if dir2 != dir {
		t.Errorf("second acquire used %q, want reused entry %q", dir2, dir)
	}
}

func TestAcquireSeparateEntriesPerURL(t *testing.T) {
	gitAvailable(t)
	repoA := makeRepo(t)
	repoB := makeRepo(t)
	m := New(t.TempDir(), Options{})

	dirA, cleanupA, err := m.Acquire(context.Background(), "toolkit", repoA, "main")
	if err != nil {
		t.Fatalf("Acquire A: %v", err)
	}
	cleanupA()
	dirB, cleanupB, err := m.Acquire(context.Background(), "toolkit", repoB, "main")
	if err != nil {
		t.Fatalf("Acquire B: %v", err)
	}
	cleanupB()

	if dirA == dirB {
		t.Error("same dependency name with different URLs shared a cache entry")
	}
}

func TestAcquireRecoversCorruptedEntry(t *testing.T) {
	gitAvailable(t)
	repo := makeRepo(t)
	m := New(t.TempDir(), Options{})

	dir, cleanup, err := m.Acquire(context.Background(), "toolkit", repo, "main")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	cleanup()

	// Damage the clone metadata.
	if err := os.RemoveAll(filepath.Join(dir, ".git")); err != nil {
		t.Fatal(err)
	}

	dir2, cleanup2, err := m.Acquire(context.Background(), "toolkit", repo, "main")
	if err != nil {
		t.Fatalf("Acquire after corruption: %v", err)
	}
	cleanup2()
	if _, err := os.Stat(filepath.Join(dir2, ".git")); err != nil {
		t.Errorf("entry not recreated: %v", err)
	}
}

func TestAcquireSecondFailureSurfaces(t *testing.T) {
	gitAvailable(t)
	m := New(t.TempDir(), Options{})

	// A broken entry (no .git metadata) whose recreate clone also fails.
	url := filepath.Join(t.TempDir(), "missing-repo")
	entry := m.EntryDir("ghost", url)
	if err := os.MkdirAll(entry, 0755); err != nil {
		t.Fatal(err)
	}

	_, _, err := m.Acquire(context.Background(), "ghost", url, "main")
	if err == nil {
		t.Fatal("expected error for unreachable repository")
	}
	if !strings.Contains(err.Error(), "recreating cache entry") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAcquireRemoteFailureLeavesEntryIntact(t *testing.T) {
	for _, sub := range []string{"fetch", "checkout"} {
		t.Run(sub, func(t *testing.T) {
			run := &scriptRunner{fail: map[string]string{sub: "pathspec 'no-such-ref' did not match"}}
			m := New(t.TempDir(), Options{Runner: run})

			url := "https://example.com/toolkit.git"
			entry := m.EntryDir("toolkit", url)
			if err := os.MkdirAll(filepath.Join(entry, ".git"), 0755); err != nil {
				t.Fatal(err)
			}
			marker := filepath.Join(entry, "lib.txt")
			if err := os.WriteFile(marker, []byte("library\n"), 0644); err != nil {
				t.Fatal(err)
			}

			_, _, err := m.Acquire(context.Background(), "toolkit", url, "no-such-ref")
			if err == nil {
				t.Fatalf("expected %s error to surface", sub)
			}
			if strings.Contains(err.Error(), "recreating cache entry") {
				t.Errorf("%s failure on a healthy entry treated as corruption: %v", sub, err)
			}
			if got := run.count("clone"); got != 0 {
				t.Errorf("clone invocations = %d, want 0", got)
			}
			if _, statErr := os.Stat(marker); statErr != nil {
				t.Error("healthy cache entry was deleted")
			}
		})
	}
}

func TestAcquireUnreadableMetadataRecreates(t *testing.T) {
	run := &scriptRunner{fail: map[string]string{"rev-parse": "not a git repository"}}
	m := New(t.TempDir(), Options{Runner: run})

	url := "https://example.com/toolkit.git"
	entry := m.EntryDir("toolkit", url)
	if err := os.MkdirAll(filepath.Join(entry, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(entry, "stale.txt")
	if err := os.WriteFile(marker, []byte("stale\n"), 0644); err != nil {
		t.Fatal(err)
	}

	dir, cleanup, err := m.Acquire(context.Background(), "toolkit", url, "main")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	cleanup()
	if dir != entry {
		t.Errorf("recreated entry at %q, want %q", dir, entry)
	}
	if got := run.count("clone"); got != 1 {
		t.Errorf("clone invocations = %d, want 1", got)
	}
	if _, statErr := os.Stat(marker); !os.IsNotExist(statErr) {
		t.Error("damaged entry contents survived the recreate")
	}
}

func TestAcquireFreshCloneFailureNotRetried(t *testing.T) {
	run := &scriptRunner{fail: map[string]string{"clone": "could not read from remote repository"}}
	m := New(t.TempDir(), Options{Runner: run})

	_, _, err := m.Acquire(context.Background(), "ghost", "https://example.com/ghost.git", "main")
	if err == nil {
		t.Fatal("expected clone error to surface")
	}
	if strings.Contains(err.Error(), "recreating cache entry") {
		t.Errorf("fresh-clone failure got a recreate retry: %v", err)
	}
	if got := run.count("clone"); got != 1 {
		t.Errorf("clone invocations = %d, want 1", got)
	}
}

func TestDisabledModeUsesThrowawayClone(t *testing.T) {
	gitAvailable(t)
	repo := makeRepo(t)
	root := t.TempDir()
	m := New(root, Options{Disabled: true})

	dir, cleanup, err := m.Acquire(context.Background(), "toolkit", repo, "main")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if strings.HasPrefix(dir, root) {
		t.Error("disabled mode must not write under the cache root")
	}
	if _, err := os.Stat(filepath.Join(dir, "lib.txt")); err != nil {
		t.Fatalf("checked-out file missing: %v", err)
	}

	cleanup()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("throwaway clone not deleted by cleanup")
	}
	if _, err := os.Stat(m.Dir()); !os.IsNotExist(err) {
		t.Error("disabled mode created a cache directory")
	}
}

func TestDefaultRootEnvOverride(t *testing.T) {
	t.Setenv("LOCKSTEP_CACHE_DIR", "/custom/cache")
	if got := DefaultRoot(); got != "/custom/cache" {
		t.Errorf("DefaultRoot = %q", got)
	}
}
