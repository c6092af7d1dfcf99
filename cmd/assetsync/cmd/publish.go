package cmd

import (
	"fmt"
	"os"

	"github.com/aweris/assetsync/internal/catalog"
	"github.com/aweris/assetsync/internal/remote"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish <dir> [ref]",
	Short: "Publish an asset directory as an OCI image",
	Long:  "Scan dir and push one zstd layer per resource to an OCI registry. The manifest travels in the image config so 'sync' can read it with remote.kind=oci.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().StringSlice("ext", nil, "published file extensions (default from config)")
	publishCmd.Flags().Int("jobs", remote.DefaultConcurrency, "parallel layer uploads")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	dir := args[0]
	ref := cfg.Remote.Ref
	if len(args) > 1 {
		ref = args[1]
	}
	if ref == "" {
		return fmt.Errorf("no image reference: pass one or set remote.ref")
	}

	exts, _ := cmd.Flags().GetStringSlice("ext")
	if len(exts) == 0 {
		exts = cfg.Serve.Extensions
	}
	jobs, _ := cmd.Flags().GetInt("jobs")

	rm, err := remote.NewOCIRemote(ref, remote.NewDefaultAuthenticator())
	if err != nil {
		return err
	}
	rm.SetConcurrency(jobs)

	entries, err := catalog.Scan(cmd.Context(), dir, exts)
	if err != nil {
		return err
	}

	items := make([]remote.PublishItem, 0, len(entries))
	var total int64
	for _, e := range entries {
		data, err := os.ReadFile(e.Path)
		if err != nil {
			return fmt.Errorf("read %s: %w", e.Name, err)
		}
		items = append(items, remote.PublishItem{Descriptor: e.ResourceDescriptor, Content: data})
		total += e.Size
	}

	log := logger.WithFields(logrus.Fields{
		"action":    "publish",
		"ref":       rm.String(),
		"resources": len(items),
		"bytes":     total,
	})
	log.Info("publishing")

	if err := rm.Publish(cmd.Context(), items); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	log.Info("published")
	fmt.Fprintf(os.Stderr, "Done. %d resources pushed to %s\n", len(items), rm)
	return nil
}
