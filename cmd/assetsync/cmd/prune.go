package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove cached resources the remote no longer lists",
	Args:  cobra.NoArgs,
	RunE:  withRuntime(runPrune),
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, _ []string, rt *runtime) error {
	s, err := rt.synchronizer(0, "")
	if err != nil {
		return err
	}

	removed, err := s.Prune(cmd.Context())
	for _, name := range removed {
		fmt.Fprintf(cmd.OutOrStdout(), "pruned\t%s\n", name)
	}
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Done. %d removed\n", len(removed))
	return nil
}
