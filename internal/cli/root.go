package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dwizi/project-assistant/internal/adminclient"
	"github.com/dwizi/project-assistant/internal/app"
	"github.com/dwizi/project-assistant/internal/config"
	"github.com/dwizi/project-assistant/internal/store"
)

const version = "0.1.0"

func NewRoot(logger *slog.Logger) *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "project-assistant",
		Short:         "Project Assistant answers project chats and runs whitelisted operational actions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file")
	load := func() (config.Config, error) {
		return config.Load(configPath)
	}

	root.AddCommand(newServeCommand(logger, load))
	root.AddCommand(newMigrateCommand(load))
	root.AddCommand(newChatCommand(load))
	root.AddCommand(newConversationsCommand(load))
	root.AddCommand(newAuditCommand(load))
	root.AddCommand(newProjectCommand(load))
	root.AddCommand(newVersionCommand())

	return root
}

type configLoader func() (config.Config, error)

func newServeCommand(logger *slog.Logger, load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant API, health sweep and prompt catalog watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			runtime, err := app.New(cfg, logger, version)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runtime.Run(ctx)
		},
	}
}

func newMigrateCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			sqlStore, err := store.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer sqlStore.Close()
			if err := sqlStore.AutoMigrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database migrated: %s\n", cfg.DBPath)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newClient(load configLoader) (*adminclient.Client, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	return adminclient.New(cfg)
}
