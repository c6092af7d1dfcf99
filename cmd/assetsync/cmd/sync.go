package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/aweris/assetsync"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the local cache with the remote manifest",
	Long:  "Download every resource whose hash or size differs from the remote manifest and record the outcome per resource.",
	Args:  cobra.NoArgs,
	RunE:  withRuntime(runSync),
}

func init() {
	syncCmd.Flags().Int("concurrency", 0, "parallel downloads (default from config)")
	syncCmd.Flags().String("verify", "", "content check: none, size or digest")
	syncCmd.Flags().Bool("dry-run", false, "print the plan without downloading")
	syncCmd.Flags().Bool("prune", false, "remove local resources missing from the manifest")

	_ = v.BindPFlag("sync.prune", syncCmd.Flags().Lookup("prune"))

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string, rt *runtime) error {
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	verify, _ := cmd.Flags().GetString("verify")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	s, err := rt.synchronizer(concurrency, verify)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if dryRun {
		plan, err := s.Plan(ctx)
		if err != nil {
			return err
		}
		printPlan(out, plan)
		return nil
	}

	report, err := s.Synchronize(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	printReport(out, report)

	if rt.cfg.Sync.Prune {
		removed, err := s.Prune(ctx)
		for _, name := range removed {
			fmt.Fprintf(out, "pruned\t%s\n", name)
		}
		if err != nil {
			return fmt.Errorf("prune failed: %w", err)
		}
	}

	if !report.Complete() {
		return fmt.Errorf("%d of %d resources failed", len(report.Failed()), len(report.Entries))
	}
	return nil
}

func printPlan(w io.Writer, plan *assetsync.Plan) {
	for _, d := range plan.Stale {
		fmt.Fprintf(w, "fetch\t%s\t%s\t%d\n", d.Name, d.Hash, d.Size)
	}
	for _, d := range plan.Fresh {
		fmt.Fprintf(w, "keep\t%s\t%s\t%d\n", d.Name, d.Hash, d.Size)
	}
	for _, name := range plan.Orphans {
		fmt.Fprintf(w, "orphan\t%s\n", name)
	}
	if plan.UpToDate() {
		fmt.Fprintln(os.Stderr, "Cache is up to date.")
	}
}

func printReport(w io.Writer, report *assetsync.Report) {
	for _, e := range report.Entries {
		if e.Err != nil {
			fmt.Fprintf(w, "%s\t%s\t%v\n", e.Outcome, e.Descriptor.Name, e.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", e.Outcome, e.Descriptor.Name)
	}
	fmt.Fprintf(os.Stderr, "Done. %s\n", report)
}
