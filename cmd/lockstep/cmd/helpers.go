package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/lockstep-dev/lockstep/internal/gitcache"
	"github.com/lockstep-dev/lockstep/internal/installer"
)

// projectRoot returns the directory containing the manifest.
func projectRoot() (string, error) {
	abs, err := filepath.Abs(manifestPath)
	if err != nil {
		return "", fmt.Errorf("resolving manifest path: %w", err)
	}
	return filepath.Dir(abs), nil
}

// newLogger builds the run logger from the output flags.
func newLogger() *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	if quiet {
		level = log.ErrorLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{Level: level})
}

// newCacheManager opens the shared git cache, or a throwaway-clone manager
// when the cache is disabled.
func newCacheManager(disabled bool, logger *log.Logger) *gitcache.Manager {
	return gitcache.New(gitcache.DefaultRoot(), gitcache.Options{
		Disabled: disabled,
		Logger:   logger,
	})
}

// newInstallerRegistry wires every built-in installer.
func newInstallerRegistry(cache *gitcache.Manager) *installer.Registry {
	client := installer.DefaultHTTPClient{}
	registryURL := os.Getenv("LOCKSTEP_REGISTRY_URL")

	reg := installer.NewRegistry()
	reg.Register("git", &installer.GitInstaller{Cache: cache})
	reg.Register("file", &installer.ArchiveInstaller{Client: client})
	reg.Register("http", &installer.ArchiveInstaller{Client: client})
	reg.Register("registry", &installer.RegistryArtifactInstaller{Client: client})
	reg.Register("extension", &installer.ExtensionInstaller{Client: client, RegistryURL: registryURL})
	return reg
}

// info prints a line unless quiet mode is active.
func info(format string, args ...any) {
	if !quiet {
		fmt.Printf(format+"\n", args...)
	}
}

// detail prints a line only in verbose mode.
func detail(format string, args ...any) {
	if verbose {
		fmt.Printf("  "+format+"\n", args...)
	}
}

// errorf prints an error message to stderr.
func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
