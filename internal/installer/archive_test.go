package installer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/lockstep-dev/lockstep/internal/declaration"
)

func TestArchiveInstallerCopiesDirectory(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "vendor-src", "toolkit")
	if err := os.MkdirAll(filepath.Join(src, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "sub", "lib.txt"), []byte("library\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// VCS metadata must not be copied into the install tree.
	if err := os.MkdirAll(filepath.Join(src, ".git"), 0755); err != nil {
		t.Fatal(err)
	}

	d := &declaration.Declaration{
		Name:        "toolkit",
		Kind:        declaration.KindLibrary,
		InstallPath: "lockstep_modules/toolkit",
		Source:      &declaration.PathSource{Path: "vendor-src/toolkit"},
	}

	inst := &ArchiveInstaller{}
	ld, err := inst.Install(context.Background(), d, root)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	installed := filepath.Join(root, "lockstep_modules", "toolkit")
	if _, err := os.Stat(filepath.Join(installed, "sub", "lib.txt")); err != nil {
		t.Errorf("copied file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(installed, ".git")); !os.IsNotExist(err) {
		t.Error(".git copied into install tree")
	}
	if ld.SourceDescriptor != "file:vendor-src/toolkit" {
		t.Errorf("descriptor = %q", ld.SourceDescriptor)
	}
	if ld.ResolvedVersion != "unversioned" {
		t.Errorf("resolvedVersion = %q", ld.ResolvedVersion)
	}
}

func TestArchiveInstallerReplacesPriorInstall(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	if err := os.MkdirAll(src, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "new.txt"), []byte("new\n"), 0644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(root, "lockstep_modules", "toolkit")
	if err := os.MkdirAll(dest, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, "stale.txt"), []byte("stale\n"), 0644); err != nil {
		t.Fatal(err)
	}

	d := &declaration.Declaration{
		Name:        "toolkit",
		Kind:        declaration.KindLibrary,
		InstallPath: "lockstep_modules/toolkit",
		Source:      &declaration.PathSource{Path: "src"},
	}
	if _, err := (&ArchiveInstaller{}).Install(context.Background(), d, root); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "stale.txt")); !os.IsNotExist(err) {
		t.Error("stale file survived reinstall")
	}
	if _, err := os.Stat(filepath.Join(dest, "new.txt")); err != nil {
		t.Errorf("new file missing: %v", err)
	}
}

func TestArchiveInstallerCopiesSingleArtifact(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "bundle.jar"), []byte("jar-bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	d := &declaration.Declaration{
		Name:        "bundle",
		Kind:        declaration.KindArchive,
		InstallPath: "artifacts/bundle.jar",
		VersionHint: "2.1.0",
		Source:      &declaration.PathSource{Path: "bundle.jar"},
	}
	ld, err := (&ArchiveInstaller{}).Install(context.Background(), d, root)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "artifacts", "bundle.jar"))
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	if string(data) != "jar-bytes" {
		t.Errorf("artifact content = %q", data)
	}
	if ld.ResolvedVersion != "2.1.0" {
		t.Errorf("resolvedVersion = %q", ld.ResolvedVersion)
	}
}

func TestArchiveInstallerMissingPath(t *testing.T) {
	d := &declaration.Declaration{
		Name:        "ghost",
		Kind:        declaration.KindLibrary,
		InstallPath: "lockstep_modules/ghost",
		Source:      &declaration.PathSource{Path: "does/not/exist"},
	}

	_, err := (&ArchiveInstaller{}).Install(context.Background(), d, t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing source path")
	}
	var ie *InstallError
	if !errors.As(err, &ie) {
		t.Fatalf("error type = %T, want *InstallError", err)
	}
	if ie.Dependency != "ghost" {
		t.Errorf("dependency = %q", ie.Dependency)
	}
}

func TestArchiveInstallerDownloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("downloaded-bytes"))
	}))
	defer srv.Close()

	root := t.TempDir()
	d := &declaration.Declaration{
		Name:        "bundle",
		Kind:        declaration.KindArchive,
		InstallPath: "artifacts/bundle.jar",
		Source:      &declaration.URLSource{URL: srv.URL + "/bundle.jar"},
	}
	ld, err := (&ArchiveInstaller{Client: DefaultHTTPClient{}}).Install(context.Background(), d, root)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "artifacts", "bundle.jar"))
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	if string(data) != "downloaded-bytes" {
		t.Errorf("artifact content = %q", data)
	}
	if ld.SourceDescriptor != srv.URL+"/bundle.jar" {
		t.Errorf("descriptor = %q", ld.SourceDescriptor)
	}
}

func TestArchiveInstallerDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d := &declaration.Declaration{
		Name:        "bundle",
		Kind:        declaration.KindArchive,
		InstallPath: "artifacts/bundle.jar",
		Source:      &declaration.URLSource{URL: srv.URL + "/bundle.jar"},
	}
	_, err := (&ArchiveInstaller{Client: DefaultHTTPClient{}}).Install(context.Background(), d, t.TempDir())
	if err == nil {
		t.Fatal("expected error for 404 download")
	}
}
