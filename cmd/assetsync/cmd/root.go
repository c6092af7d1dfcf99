package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aweris/assetsync"
	"github.com/aweris/assetsync/internal/config"
	"github.com/aweris/assetsync/internal/logging"
	"github.com/aweris/assetsync/internal/remote"
	"github.com/aweris/assetsync/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var v = config.New()

var rootCmd = &cobra.Command{
	Use:           "assetsync",
	Short:         "Keep a local asset cache in sync with an asset server",
	Long:          "CLI for synchronizing, inspecting and pruning a local asset cache, and for serving or publishing asset directories.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ~/.config/assetsync/config.yaml)")
	flags.String("store-path", "", "local cache location (default: ~/.local/share/assetsync)")
	flags.String("store-driver", "", "cache backend: local, sqlite or memory")
	flags.String("remote-url", "", "asset server API base URL")
	flags.String("remote-ref", "", "OCI image reference holding the assets")
	flags.String("log-level", "", "log level")

	_ = v.BindPFlag("store.path", flags.Lookup("store-path"))
	_ = v.BindPFlag("store.driver", flags.Lookup("store-driver"))
	_ = v.BindPFlag("remote.url", flags.Lookup("remote-url"))
	_ = v.BindPFlag("remote.ref", flags.Lookup("remote-ref"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
}

var configErr error

func initConfig() {
	configErr = config.ReadFile(v, rootCmd.PersistentFlags().Lookup("config").Value.String())
}

// runtime holds the collaborators a command needs.
type runtime struct {
	cfg    *config.Config
	logger *logrus.Logger
	store  store.Store
	remote assetsync.Remote
}

func loadConfig() (*config.Config, *logrus.Logger, error) {
	if configErr != nil {
		return nil, nil, configErr
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func openRuntime() (*runtime, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(store.Config{
		Driver:             cfg.Store.Driver,
		Path:               cfg.Store.Path,
		CacheSize:          cfg.Store.CacheSize,
		CompressionEnabled: cfg.Store.Compression.Enabled,
		CompressionLevel:   cfg.Store.Compression.Level,
	})
	if err != nil {
		return nil, err
	}

	rm, err := remote.Open(remote.Config{
		Kind:    cfg.Remote.Kind,
		URL:     cfg.Remote.URL,
		Ref:     cfg.Remote.Ref,
		Timeout: cfg.Remote.Timeout,
		Retry: remote.RetryOptions{
			Attempts: cfg.Remote.Retry.Attempts,
			Delay:    cfg.Remote.Retry.Delay,
			MaxDelay: cfg.Remote.Retry.MaxDelay,
			Logger:   logger,
		},
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &runtime{cfg: cfg, logger: logger, store: st, remote: rm}, nil
}

func (r *runtime) synchronizer(concurrency int, verify string) (*assetsync.Synchronizer, error) {
	if concurrency <= 0 {
		concurrency = r.cfg.Sync.Concurrency
	}
	if verify == "" {
		verify = r.cfg.Sync.Verify
	}
	mode, err := assetsync.ParseVerification(verify)
	if err != nil {
		return nil, err
	}
	return assetsync.New(r.store, r.remote, r.remote,
		assetsync.WithConcurrency(concurrency),
		assetsync.WithVerification(mode),
		assetsync.WithLogger(r.logger),
	), nil
}

func (r *runtime) Close() error {
	return r.store.Close()
}

func withRuntime(fn func(cmd *cobra.Command, args []string, rt *runtime) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer func() {
			if cerr := rt.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args, rt)
	}
}
