package engine

import (
	"os"
	"path/filepath"

	"github.com/lockstep-dev/lockstep/internal/declaration"
	"github.com/lockstep-dev/lockstep/internal/lock"
)

// needsInstall decides reuse vs. reinstall for one dependency. The existing
// lock entry may be nil (never installed).
func needsInstall(force bool, d *declaration.Declaration, existing *lock.LockedDependency, projectRoot string) bool {
	if force || existing == nil {
		return true
	}
	if !matchesLock(d, *existing) {
		return true
	}
	// The lock entry matches the request, but the install must still be
	// present on disk to be reusable.
	installed := resolveInstallPath(projectRoot, existing.InstallPath)
	if _, err := os.Stat(installed); err != nil {
		return true
	}
	return false
}

// matchesLock applies the source-specific match rules between a requested
// declaration and the locked record for the same name and scope.
func matchesLock(d *declaration.Declaration, ls lock.LockedDependency) bool {
	switch src := d.Source.(type) {
	case *declaration.GitSource:
		// Requested ref against the locked resolved version; a repo or
		// subPath change shows up in the descriptor.
		return ls.ResolvedVersion == src.Ref && ls.SourceDescriptor == src.Descriptor()
	case *declaration.ExtensionSource:
		// The descriptor embeds both the resolution class and the declared
		// identifier, so a source-type flip for an unchanged name reinstalls.
		return ls.SourceDescriptor == src.Descriptor() && ls.ResolvedIdentifier != ""
	default:
		// File, http and registry sources: normalized source descriptor and
		// install path. An install-path change reinstalls rather than
		// relocating in place.
		return ls.SourceDescriptor == d.Source.Descriptor() && ls.InstallPath == d.InstallPath
	}
}

func resolveInstallPath(projectRoot, installPath string) string {
	if filepath.IsAbs(installPath) {
		return installPath
	}
	return filepath.Join(projectRoot, installPath)
}
