package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

// ApplyEnvironmentStrict merges the named environment's override into the
// manifest's base settings. An unknown environment is a hard error listing
// the available names; this is the entry point for the root project.
func ApplyEnvironmentStrict(m *Manifest, env string) (Settings, error) {
	if env == "" {
		return m.Settings, nil
	}
	ov, ok := m.Environments[env]
	if !ok {
		return Settings{}, fmt.Errorf("unknown environment '%s' — available environments: %s", env, availableEnvironments(m))
	}
	return mergeOverride(m.Settings, ov), nil
}

// ApplyEnvironmentLenient is the nested-project entry point: an unknown
// environment logs a warning and the project proceeds with its base settings
// instead of aborting the run.
func ApplyEnvironmentLenient(m *Manifest, env string, logger *log.Logger) Settings {
	if env == "" {
		return m.Settings
	}
	ov, ok := m.Environments[env]
	if !ok {
		logger.Warn("environment not defined for nested project, using base settings",
			"environment", env, "available", availableEnvironments(m))
		return m.Settings
	}
	return mergeOverride(m.Settings, ov)
}

func mergeOverride(base Settings, ov SettingsOverride) Settings {
	merged := base
	if ov.InstallDev != nil {
		merged.InstallDev = ov.InstallDev
	}
	if ov.MaxDepth != nil {
		merged.MaxDepth = *ov.MaxDepth
	}
	return merged
}

func availableEnvironments(m *Manifest) string {
	if len(m.Environments) == 0 {
		return "(none defined)"
	}
	names := make([]string, 0, len(m.Environments))
	for name := range m.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
