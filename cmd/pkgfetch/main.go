package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jgivc/pkgfetch/internal/app"
	"github.com/jgivc/pkgfetch/internal/config"
	"github.com/jgivc/pkgfetch/internal/entity"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfgFileName string

	cmd := &cobra.Command{
		Use:          "pkgfetch",
		Short:        "pkgfetch - fetch packages into a local cache from mirrors",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&cfgFileName, "config", "c", config.DefaultPath, "Path to config file")

	cmd.AddCommand(newFetchCommand(&cfgFileName), newServeCommand(&cfgFileName))

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	return config.Load(afero.NewOsFs(), path, config.DefaultEnv)
}

func newFetchCommand(cfgFileName *string) *cobra.Command {
	var (
		manifestPath string
		noProgress   bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Place every package of the manifest into the primary cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgFileName)
			if err != nil {
				return err
			}

			if manifestPath != "" {
				cfg.Manifest = manifestPath
			}

			opts := app.Options{}
			if !noProgress {
				opts.Progress = cmd.ErrOrStderr()
			}

			a, err := app.New(cfg, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := a.Fetch(ctx)
			if res != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "batch %s: %s, reused %d, fetched %d\n",
					res.ID, res.Status, res.Count(entity.OutcomeReused), res.Count(entity.OutcomeFetched))
			}

			return err
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Path to manifest file, overrides the config")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	return cmd
}

func newServeCommand(cfgFileName *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve batch statistics over HTTP, SIGUSR1 runs a batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgFileName)
			if err != nil {
				return err
			}

			a, err := app.New(cfg, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Serve(); err != nil {
				return err
			}
			defer a.Stop()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			usr1 := make(chan os.Signal, 1)
			signal.Notify(usr1, syscall.SIGUSR1)
			defer signal.Stop(usr1)

			for {
				select {
				case <-ctx.Done():
					fmt.Fprintln(cmd.OutOrStdout(), "Received termination signal. Shutting down...")

					return nil
				case <-usr1:
					go a.Fetch(context.WithoutCancel(ctx))
				}
			}
		},
	}
}
