package lock

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a lockstep.lock file. A missing file is not an
// error: every install run starts from read-or-empty.
func Load(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Lockfile{LockfileVersion: 1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading lockfile %s: %w", path, err)
	}

	var lf Lockfile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parsing lockfile %s: %w", path, err)
	}

	if errs := Validate(&lf); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return &lf, nil
}

// Save writes a lockfile atomically using a temp file and rename. The prior
// lockfile is never left half-written.
func Save(path string, lf *Lockfile) error {
	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lockfile: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing temp lockfile %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming temp lockfile to %s: %w", path, err)
	}

	return nil
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("lockfile validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks a Lockfile for semantic correctness.
// Returns a list of validation error messages (empty if valid).
func Validate(lf *Lockfile) []string {
	var errs []string

	if lf.LockfileVersion != 1 {
		errs = append(errs, fmt.Sprintf("unsupported lockfileVersion %d — only version 1 is supported", lf.LockfileVersion))
	}

	validateScope := func(scope string, deps map[string]LockedDependency) {
		for name, ld := range deps {
			prefix := fmt.Sprintf("%s '%s'", scope, name)
			if ld.Name == "" {
				errs = append(errs, fmt.Sprintf("%s: 'name' is required", prefix))
			} else if ld.Name != name {
				errs = append(errs, fmt.Sprintf("%s: entry name '%s' does not match its key", prefix, ld.Name))
			}
			if ld.SourceDescriptor == "" {
				errs = append(errs, fmt.Sprintf("%s: 'sourceDescriptor' is required", prefix))
			}
			if ld.InstallPath == "" {
				errs = append(errs, fmt.Sprintf("%s: 'installPath' is required", prefix))
			}
		}
	}
	validateScope("dependency", lf.Dependencies)
	validateScope("devDependency", lf.DevDependencies)

	return errs
}
