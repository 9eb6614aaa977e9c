package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lockstep-dev/lockstep/internal/engine"
	"github.com/lockstep-dev/lockstep/pkg/lockstep"
)

var (
	installProduction bool
	installForce      bool
	installEnv        string
	installDryRun     bool
	installNested     bool
	installNoCache    bool
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Resolve the manifest and install dependencies",
	Long: `Reconciles each declared dependency against the existing lockfile: matching
entries whose install path is still present are reused, everything else is
(re)installed from its source. Install directories containing a manifest of
their own are resolved recursively, each with its own lockfile. The project
lockfile is rewritten only after every dependency has reached a terminal
state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot()
		if err != nil {
			return err
		}

		logger := newLogger()
		cache := newCacheManager(installNoCache, logger)
		eng := &engine.Engine{
			Installers: newInstallerRegistry(cache),
			Logger:     logger,
			Tool:       "lockstep " + version,
		}

		opts := engine.Options{
			Production:    installProduction,
			Force:         installForce,
			Environment:   installEnv,
			DryRun:        installDryRun,
			IncludeNested: installNested,
		}
		result, err := eng.RunWith(cmd.Context(), root, opts)
		if err != nil {
			return err
		}

		printRun(result)

		if result.Failed() {
			return fmt.Errorf("%d dependency(ies) failed", result.Totals().Failed)
		}
		return nil
	},
}

func printRun(result *lockstep.RunResult) {
	if result.DryRun {
		info("Dry run — nothing installed, no lockfile written.")
	}

	for i, p := range result.Projects {
		if i > 0 {
			info("")
			info("Nested project %s:", p.Dir)
		}
		for _, r := range p.Results {
			switch r.Outcome {
			case lockstep.OutcomeUnchanged:
				detail("%-10s %s %s", r.Outcome, r.Name, r.Version)
			case lockstep.OutcomeFailed, lockstep.OutcomeInvalid:
				errorf("%s: %s", r.Name, r.Err)
			default:
				info("  %-10s %s %s", r.Outcome, r.Name, r.Version)
			}
		}
	}

	for _, w := range result.Warnings {
		info("warning: %s", w)
	}

	t := result.Totals()
	info("")
	info("Install complete: %d installed, %d unchanged, %d skipped, %d failed.",
		t.Installed, t.Unchanged, t.Skipped, t.Failed)
	if t.Invalid > 0 {
		info("%d manifest entry(ies) were invalid and ignored.", t.Invalid)
	}
}

func init() {
	installCmd.Flags().BoolVar(&installProduction, "production", false, "skip development-scope dependencies")
	installCmd.Flags().BoolVar(&installForce, "force", false, "reinstall everything, ignoring lock state")
	installCmd.Flags().StringVar(&installEnv, "env", "", "named environment override to apply")
	installCmd.Flags().BoolVar(&installDryRun, "dry-run", false, "report the plan without installing or writing the lockfile")
	installCmd.Flags().BoolVar(&installNested, "nested", false, "with --dry-run, also plan nested projects already on disk")
	installCmd.Flags().BoolVar(&installNoCache, "no-cache", false, "bypass the shared git cache with throwaway clones")
	rootCmd.AddCommand(installCmd)
}
