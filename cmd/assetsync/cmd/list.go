package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List cached resources",
	Long:  "List every resource in the local cache, optionally filtered by name prefix. Placeholders are resources whose last download failed.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  withRuntime(runList),
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string, rt *runtime) error {
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}

	records, err := rt.store.GetAll(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	count := 0
	for _, rec := range records {
		if !strings.HasPrefix(rec.Name, prefix) {
			continue
		}
		state := "cached"
		if !rec.HasContent {
			state = "placeholder"
		}
		fmt.Fprintf(out, "%s\t%s\t%d\t%s\n", rec.Name, rec.Hash, rec.Size, state)
		count++
	}

	if count == 0 {
		fmt.Fprintln(out, "(no entries)")
	}
	return nil
}
