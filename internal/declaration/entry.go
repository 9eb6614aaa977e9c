package declaration

import "gopkg.in/yaml.v3"

// Entry is one raw manifest dependency entry before normalization. An entry
// is either a bare scalar (registry-coordinate shorthand) or a mapping;
// unknown mapping keys are ignored for forward compatibility.
type Entry struct {
	// Shorthand holds the scalar form, e.g. "com.example:parser:1.4.0".
	Shorthand string

	Kind    string `yaml:"kind,omitempty"`
	Version string `yaml:"version,omitempty"`

	// Git source fields.
	Repo    string `yaml:"repo,omitempty"`
	Ref     string `yaml:"ref,omitempty"`
	SubPath string `yaml:"subPath,omitempty"`

	// Local path source.
	Path string `yaml:"path,omitempty"`

	// Direct download source.
	URL string `yaml:"url,omitempty"`

	// Registry-coordinate source.
	Group      string `yaml:"group,omitempty"`
	Artifact   string `yaml:"artifact,omitempty"`
	Repository string `yaml:"repository,omitempty"`

	// Extension identifier (slug, UUID, URL, or path).
	ID string `yaml:"id,omitempty"`

	InstallPath string `yaml:"installPath,omitempty"`
	Mapping     string `yaml:"mapping,omitempty"`
}

// UnmarshalYAML accepts both the scalar shorthand and the mapping form.
func (e *Entry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*e = Entry{Shorthand: s}
		return nil
	}

	type plain Entry
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}
