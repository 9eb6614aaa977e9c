package declaration

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// InvalidError reports a manifest entry that could not be normalized into a
// Declaration. It always names the offending dependency.
type InvalidError struct {
	Dependency string
	Reason     string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("dependency '%s': %s", e.Dependency, e.Reason)
}

// Parse normalizes one raw manifest entry into a Declaration. It rejects
// entries with no recognizable source and entries declaring more than one
// source; unknown kinds are accepted and left for the engine to report.
func Parse(name string, e Entry) (*Declaration, error) {
	if name == "" {
		return nil, &InvalidError{Dependency: "(unnamed)", Reason: "dependency name is required"}
	}

	if e.Shorthand != "" {
		expanded, err := expandShorthand(name, e.Shorthand)
		if err != nil {
			return nil, err
		}
		e = *expanded
	}

	d := &Declaration{
		Name:        name,
		Kind:        Kind(e.Kind),
		VersionHint: e.Version,
		InstallPath: e.InstallPath,
		Mapping:     e.Mapping,
	}

	src, err := pickSource(name, e)
	if err != nil {
		return nil, err
	}
	d.Source = src

	if d.Kind == "" {
		d.Kind = inferKind(src)
	}

	if g, ok := src.(*GitSource); ok && g.Ref == "" {
		return nil, &InvalidError{Dependency: name, Reason: "git source requires 'ref' — add 'ref: <tag-or-branch>'"}
	}
	if r, ok := src.(*RegistrySource); ok {
		if r.Version == "" {
			return nil, &InvalidError{Dependency: name, Reason: "registry source requires 'version'"}
		}
		if r.Repository == "" {
			return nil, &InvalidError{Dependency: name, Reason: "registry source requires 'repository' — add 'repository: https://...'"}
		}
	}

	return d, nil
}

// expandShorthand turns the scalar form "group:artifact:version" into the
// equivalent registry-coordinate entry. The optional fourth segment is the
// repository base URL; without it the entry is incomplete and rejected by
// the coordinate validation above.
func expandShorthand(name, shorthand string) (*Entry, error) {
	parts := strings.Split(shorthand, ":")
	switch len(parts) {
	case 3:
		return &Entry{Group: parts[0], Artifact: parts[1], Version: parts[2]}, nil
	case 4:
		return &Entry{Group: parts[0], Artifact: parts[1], Version: parts[2], Repository: parts[3]}, nil
	default:
		return nil, &InvalidError{
			Dependency: name,
			Reason:     fmt.Sprintf("shorthand '%s' is not 'group:artifact:version' — use the object form to declare other sources", shorthand),
		}
	}
}

func pickSource(name string, e Entry) (Source, error) {
	var sources []Source
	if e.Repo != "" {
		sources = append(sources, &GitSource{Repo: e.Repo, Ref: e.Ref, SubPath: e.SubPath})
	}
	if e.Path != "" {
		sources = append(sources, &PathSource{Path: e.Path})
	}
	if e.URL != "" {
		sources = append(sources, &URLSource{URL: e.URL})
	}
	if e.Group != "" || e.Artifact != "" {
		sources = append(sources, &RegistrySource{Group: e.Group, Artifact: e.Artifact, Version: e.Version, Repository: e.Repository})
	}
	if e.ID != "" {
		sources = append(sources, &ExtensionSource{ID: e.ID})
	}

	switch len(sources) {
	case 0:
		return nil, &InvalidError{Dependency: name, Reason: "no source declared — set one of repo, path, url, group/artifact, or id"}
	case 1:
		return sources[0], nil
	default:
		return nil, &InvalidError{Dependency: name, Reason: "ambiguous source — declare exactly one of repo, path, url, group/artifact, or id"}
	}
}

func inferKind(src Source) Kind {
	switch s := src.(type) {
	case *ExtensionSource:
		return KindExtension
	case *URLSource:
		if isArtifactFile(s.URL) {
			return KindArchive
		}
	case *PathSource:
		if isArtifactFile(s.Path) {
			return KindArchive
		}
	}
	return KindLibrary
}

// isArtifactFile reports whether p names a single installable artifact
// rather than a tree of library files.
func isArtifactFile(p string) bool {
	lower := strings.ToLower(path.Base(filepath.ToSlash(p)))
	for _, ext := range []string{".jar", ".war", ".zip", ".tar.gz", ".tgz"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
