package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/lockstep-dev/lockstep/internal/declaration"
	"github.com/lockstep-dev/lockstep/internal/lock"
)

// DefaultRegistryURL is the extension registry queried for slug and UUID
// identifiers. Overridable via LOCKSTEP_REGISTRY_URL.
const DefaultRegistryURL = "https://registry.lockstep.dev"

// ExtensionInstaller resolves opaque extension identifiers (registry slug,
// UUID, direct URL, or local path) to concrete artifacts and installs them.
type ExtensionInstaller struct {
	Client      HTTPClient
	RegistryURL string
}

// registryExtension is the registry's lookup response for one extension.
type registryExtension struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	DownloadURL string `json:"downloadUrl"`
}

func (x *ExtensionInstaller) Install(ctx context.Context, d *declaration.Declaration, projectRoot string) (*lock.LockedDependency, error) {
	src, ok := d.Source.(*declaration.ExtensionSource)
	if !ok {
		return nil, &InstallError{Dependency: d.Name, Operation: "install", Err: fmt.Errorf("declaration source is not an extension identifier")}
	}

	switch declaration.ClassifyExtensionID(src.ID) {
	case declaration.ExtensionViaPath:
		return x.installFromPath(d, src, projectRoot)
	case declaration.ExtensionViaURL:
		return x.installFromURL(ctx, d, src, projectRoot, src.ID, src.ID, d.VersionHint)
	default:
		return x.installFromRegistry(ctx, d, src, projectRoot)
	}
}

func (x *ExtensionInstaller) installFromPath(d *declaration.Declaration, src *declaration.ExtensionSource, projectRoot string) (*lock.LockedDependency, error) {
	from := resolvePath(projectRoot, src.ID)
	data, err := os.ReadFile(from)
	if err != nil {
		return nil, &InstallError{Dependency: d.Name, Operation: "copy", Err: err, Hint: "check that the extension path exists"}
	}

	dest := filepath.Join(resolvePath(projectRoot, d.InstallPath), filepath.Base(from))
	if err := freshDir(resolvePath(projectRoot, d.InstallPath)); err != nil {
		return nil, &InstallError{Dependency: d.Name, Operation: "copy", Err: err}
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return nil, &InstallError{Dependency: d.Name, Operation: "copy", Err: err}
	}

	return x.locked(d, src, filepath.ToSlash(filepath.Clean(src.ID)), d.VersionHint), nil
}

func (x *ExtensionInstaller) installFromURL(ctx context.Context, d *declaration.Declaration, src *declaration.ExtensionSource, projectRoot, downloadURL, identifier, version string) (*lock.LockedDependency, error) {
	data, err := download(ctx, x.Client, downloadURL)
	if err != nil {
		return nil, &InstallError{Dependency: d.Name, Operation: "download", Err: err, Hint: "check the extension URL and network access"}
	}

	installDir := resolvePath(projectRoot, d.InstallPath)
	if err := freshDir(installDir); err != nil {
		return nil, &InstallError{Dependency: d.Name, Operation: "download", Err: err}
	}
	artifact := path.Base(downloadURL)
	if artifact == "." || artifact == "/" || artifact == "" {
		artifact = d.Name + ".jar"
	}
	if err := os.WriteFile(filepath.Join(installDir, artifact), data, 0644); err != nil {
		return nil, &InstallError{Dependency: d.Name, Operation: "download", Err: err}
	}

	return x.locked(d, src, identifier, version), nil
}

func (x *ExtensionInstaller) installFromRegistry(ctx context.Context, d *declaration.Declaration, src *declaration.ExtensionSource, projectRoot string) (*lock.LockedDependency, error) {
	ext, err := x.lookup(ctx, src.ID)
	if err != nil {
		return nil, &InstallError{Dependency: d.Name, Operation: "resolve", Err: err, Hint: "check the extension slug or id against the registry"}
	}
	if ext.DownloadURL == "" {
		return nil, &InstallError{Dependency: d.Name, Operation: "resolve", Err: fmt.Errorf("registry entry '%s' has no download URL", src.ID)}
	}
	return x.installFromURL(ctx, d, src, projectRoot, ext.DownloadURL, ext.ID, ext.Version)
}

// lookup queries the registry by slug or UUID. UUID identifiers hit the
// same endpoint; the registry treats them as primary keys.
func (x *ExtensionInstaller) lookup(ctx context.Context, id string) (*registryExtension, error) {
	base := x.RegistryURL
	if base == "" {
		base = DefaultRegistryURL
	}
	if _, err := uuid.Parse(id); err != nil && strings.ContainsAny(id, " /\\") {
		return nil, fmt.Errorf("'%s' is not a valid extension slug or id", id)
	}

	endpoint := strings.TrimSuffix(base, "/") + "/v1/extensions/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building registry request: %w", err)
	}
	resp, err := x.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying extension registry: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("extension '%s' not found in registry", id)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extension registry returned %s for '%s'", resp.Status, id)
	}

	var ext registryExtension
	if err := json.NewDecoder(resp.Body).Decode(&ext); err != nil {
		return nil, fmt.Errorf("decoding registry response for '%s': %w", id, err)
	}
	return &ext, nil
}

func (x *ExtensionInstaller) locked(d *declaration.Declaration, src *declaration.ExtensionSource, identifier, version string) *lock.LockedDependency {
	if version == "" {
		version = "unversioned"
	}
	return &lock.LockedDependency{
		Name:               d.Name,
		ResolvedVersion:    version,
		SourceDescriptor:   src.Descriptor(),
		InstallPath:        d.InstallPath,
		ResolvedIdentifier: identifier,
		ResolvedAt:         nowStamp(),
	}
}
