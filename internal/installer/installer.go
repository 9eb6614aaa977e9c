// Package installer provides the polymorphic source installers: each takes a
// parsed declaration and produces a locked dependency record. Installers
// never read or write lock files; reconciliation is the engine's job.
package installer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lockstep-dev/lockstep/internal/declaration"
	"github.com/lockstep-dev/lockstep/internal/lock"
)

// Installer resolves one declaration into an installed, locked dependency.
// projectRoot is the directory owning the declaration; relative install and
// source paths resolve against it, so nested projects install into their own
// tree rather than the root project's.
type Installer interface {
	Install(ctx context.Context, d *declaration.Declaration, projectRoot string) (*lock.LockedDependency, error)
}

// InstallError represents an error from a specific install operation.
type InstallError struct {
	Dependency string
	Operation  string
	Err        error
	Hint       string
}

func (e *InstallError) Error() string {
	msg := fmt.Sprintf("%s: %s failed: %s", e.Dependency, e.Operation, e.Err)
	if e.Hint != "" {
		msg += " — " + e.Hint
	}
	return msg
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// Registry maps source discriminators to Installer implementations.
type Registry struct {
	installers map[string]Installer
}

// NewRegistry creates a new empty installer registry.
func NewRegistry() *Registry {
	return &Registry{installers: make(map[string]Installer)}
}

// Register adds an installer for the given source discriminator.
func (r *Registry) Register(source string, inst Installer) {
	r.installers[source] = inst
}

// Get returns the installer for the given source discriminator, or false
// when none is registered.
func (r *Registry) Get(source string) (Installer, bool) {
	inst, ok := r.installers[source]
	return inst, ok
}

// KeyFor returns the registry discriminator for a declaration, or "" when
// its kind or source has no installer. Extension-kind dependencies route to
// the extension installer regardless of identifier shape.
func KeyFor(d *declaration.Declaration) string {
	if !d.Kind.Supported() {
		return ""
	}
	if d.Kind == declaration.KindExtension {
		if _, ok := d.Source.(*declaration.ExtensionSource); ok {
			return "extension"
		}
		return ""
	}
	switch d.Source.(type) {
	case *declaration.GitSource:
		return "git"
	case *declaration.PathSource:
		return "file"
	case *declaration.URLSource:
		return "http"
	case *declaration.RegistrySource:
		return "registry"
	}
	return ""
}

// HTTPClient abstracts HTTP operations for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultHTTPClient returns an HTTPClient using http.DefaultClient.
type DefaultHTTPClient struct{}

func (DefaultHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return http.DefaultClient.Do(req)
}

// maxDownloadSize caps any single artifact download.
const maxDownloadSize = 512 << 20

func download(ctx context.Context, client HTTPClient, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if int64(len(data)) > maxDownloadSize {
		return nil, fmt.Errorf("fetching %s: artifact exceeds %d bytes", url, int64(maxDownloadSize))
	}
	return data, nil
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
