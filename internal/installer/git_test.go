package installer

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/lockstep-dev/lockstep/internal/declaration"
	"github.com/lockstep-dev/lockstep/internal/gitcache"
)

// makeGitRepo creates a local repository with lib/ and docs/ trees.
func makeGitRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
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
	for _, sub := range []string{"lib", "docs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, sub, sub+".txt"), []byte(sub+"\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	run("add", ".")
	run("commit", "-m", "initial")
	return dir
}

func newGitInstaller(t *testing.T) *GitInstaller {
	t.Helper()
	cache := gitcache.New(t.TempDir(), gitcache.Options{Logger: log.New(io.Discard)})
	return &GitInstaller{Cache: cache}
}

func TestGitInstaller(t *testing.T) {
	repo := makeGitRepo(t)
	root := t.TempDir()

	d := &declaration.Declaration{
		Name:        "toolkit",
		Kind:        declaration.KindLibrary,
		InstallPath: "lockstep_modules/toolkit",
		Source:      &declaration.GitSource{Repo: repo, Ref: "main"},
	}
	ld, err := newGitInstaller(t).Install(context.Background(), d, root)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	installed := filepath.Join(root, "lockstep_modules", "toolkit")
	if _, err := os.Stat(filepath.Join(installed, "lib", "lib.txt")); err != nil {
		t.Errorf("installed file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(installed, ".git")); !os.IsNotExist(err) {
		t.Error("version-control metadata copied into install path")
	}
	if ld.ResolvedVersion != "main" {
		t.Errorf("resolvedVersion = %q, want the requested ref", ld.ResolvedVersion)
	}
}

func TestGitInstallerSubPath(t *testing.T) {
	repo := makeGitRepo(t)
	root := t.TempDir()

	d := &declaration.Declaration{
		Name:        "toolkit-lib",
		Kind:        declaration.KindLibrary,
		InstallPath: "lockstep_modules/toolkit-lib",
		Source:      &declaration.GitSource{Repo: repo, Ref: "main", SubPath: "lib"},
	}
	if _, err := newGitInstaller(t).Install(context.Background(), d, root); err != nil {
		t.Fatalf("Install: %v", err)
	}

	installed := filepath.Join(root, "lockstep_modules", "toolkit-lib")
	if _, err := os.Stat(filepath.Join(installed, "lib.txt")); err != nil {
		t.Errorf("subPath content missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(installed, "docs")); !os.IsNotExist(err) {
		t.Error("content outside subPath copied")
	}
}

func TestGitInstallerMissingSubPath(t *testing.T) {
	repo := makeGitRepo(t)

	d := &declaration.Declaration{
		Name:        "toolkit",
		Kind:        declaration.KindLibrary,
		InstallPath: "lockstep_modules/toolkit",
		Source:      &declaration.GitSource{Repo: repo, Ref: "main", SubPath: "nonexistent"},
	}
	_, err := newGitInstaller(t).Install(context.Background(), d, t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing subPath")
	}
	var ie *InstallError
	if !errors.As(err, &ie) {
		t.Fatalf("error type = %T, want *InstallError", err)
	}
}
