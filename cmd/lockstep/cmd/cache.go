package cmd

import (
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the shared git clone cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete the entire shared git cache",
	Long: `Removes every cached clone under the git-cache directory. Safe to run with
no prior state. Subsequent installs of git dependencies re-clone from
scratch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newCacheManager(false, newLogger())
		existed, err := m.Prune()
		if err != nil {
			return err
		}
		if !existed {
			info("Nothing to prune.")
			return nil
		}
		info("Pruned git cache at %s.", m.Dir())
		return nil
	},
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache location and size",
	RunE: func(cmd *cobra.Command, args []string) error {
		m := newCacheManager(false, newLogger())
		size, err := m.Size()
		if err != nil {
			return err
		}
		info("Location: %s", m.Dir())
		info("Size:     %d bytes", size)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheInfoCmd)
	rootCmd.AddCommand(cacheCmd)
}
