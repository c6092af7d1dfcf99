package cmd

import (
	"github.com/aweris/assetsync/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [dir]",
	Short: "Serve an asset directory over the enumerate/get API",
	Long:  "Run a development asset server. Every file with a served extension under dir is listed by /api/enumerate and downloadable through /api/get.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (default from config)")
	serveCmd.Flags().StringSlice("ext", nil, "served file extensions (default from config)")

	_ = v.BindPFlag("serve.listen", serveCmd.Flags().Lookup("listen"))
	_ = v.BindPFlag("serve.extensions", serveCmd.Flags().Lookup("ext"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	dir := cfg.Serve.Dir
	if len(args) > 0 {
		dir = args[0]
	}

	app, err := server.NewApp(server.Options{
		Dir:        dir,
		Extensions: cfg.Serve.Extensions,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"action":     "listen",
		"addr":       cfg.Serve.Listen,
		"dir":        dir,
		"extensions": cfg.Serve.Extensions,
	}).Info("asset server starting")

	return server.Serve(cmd.Context(), app, cfg.Serve.Listen)
}
