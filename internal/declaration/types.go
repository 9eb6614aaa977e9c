package declaration

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind classifies what a dependency installs as.
type Kind string

const (
	KindLibrary   Kind = "library"
	KindExtension Kind = "extension"
	KindArchive   Kind = "archive"
)

// Supported reports whether k is one of the kinds an installer exists for.
// Unknown kinds are carried through parsing and reported as skipped by the
// engine rather than rejected, so newer manifests degrade gracefully.
func (k Kind) Supported() bool {
	switch k {
	case KindLibrary, KindExtension, KindArchive:
		return true
	}
	return false
}

// Declaration is the parsed, normalized form of one manifest dependency entry.
type Declaration struct {
	Name        string
	Kind        Kind
	VersionHint string
	InstallPath string
	Mapping     string
	Source      Source
}

// Source is the tagged union of supported dependency origins. Exactly one
// variant is attached to a Declaration; Parse rejects entries that declare
// none or more than one.
type Source interface {
	// Descriptor returns the normalized source string recorded in the
	// lockfile and used for reconciliation equality.
	Descriptor() string
}

// GitSource is a version-controlled repository at a specific ref.
type GitSource struct {
	Repo    string
	Ref     string
	SubPath string
}

func (s *GitSource) Descriptor() string {
	if s.SubPath != "" {
		return s.Repo + "#" + filepath.ToSlash(s.SubPath)
	}
	return s.Repo
}

// PathSource is a file or directory on the local filesystem. Relative paths
// are resolved against the owning project's directory, not the root project.
type PathSource struct {
	Path string
}

func (s *PathSource) Descriptor() string {
	return "file:" + filepath.ToSlash(filepath.Clean(s.Path))
}

// URLSource is a direct HTTP(S) download.
type URLSource struct {
	URL string
}

func (s *URLSource) Descriptor() string { return s.URL }

// RegistrySource addresses an immutable artifact by coordinates in a
// Maven-layout repository.
type RegistrySource struct {
	Group      string
	Artifact   string
	Version    string
	Repository string
}

func (s *RegistrySource) Descriptor() string {
	return fmt.Sprintf("registry:%s:%s:%s", s.Group, s.Artifact, s.Version)
}

// ArtifactURL returns the download URL for the coordinates under the
// repository base URL.
func (s *RegistrySource) ArtifactURL() string {
	base := strings.TrimSuffix(s.Repository, "/")
	groupPath := strings.ReplaceAll(s.Group, ".", "/")
	return fmt.Sprintf("%s/%s/%s/%s/%s-%s.jar", base, groupPath, s.Artifact, s.Version, s.Artifact, s.Version)
}

// ExtensionSource is an opaque identifier for an engine extension: a registry
// slug, a UUID, a direct download URL, or a local path. The concrete form is
// classified at install time; the descriptor embeds both the classification
// and the declared identifier so a source-type flip for an unchanged name
// forces a reinstall.
type ExtensionSource struct {
	ID string
}

func (s *ExtensionSource) Descriptor() string {
	return string(ClassifyExtensionID(s.ID)) + ":" + s.ID
}

// ExtensionIDClass is the recognized shape of an extension identifier.
type ExtensionIDClass string

const (
	ExtensionViaURL      ExtensionIDClass = "extension-url"
	ExtensionViaPath     ExtensionIDClass = "extension-path"
	ExtensionViaRegistry ExtensionIDClass = "extension-registry"
)

// ClassifyExtensionID decides how an opaque extension identifier will be
// resolved. URLs and path-looking identifiers are recognized syntactically;
// everything else (slugs and UUIDs) goes through the extension registry.
func ClassifyExtensionID(id string) ExtensionIDClass {
	if strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://") {
		return ExtensionViaURL
	}
	if strings.HasPrefix(id, "./") || strings.HasPrefix(id, "../") || strings.HasPrefix(id, "/") || strings.HasPrefix(id, "~") {
		return ExtensionViaPath
	}
	return ExtensionViaRegistry
}
