package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/easyml-code/ocr-data-insertion/internal/infrastructure/config"
	"github.com/easyml-code/ocr-data-insertion/internal/infrastructure/migration"
)

const defaultMigrationsPath = "migrations"

type migrateOptions struct {
	global *globalOptions
	path   string
}

func newMigrateCmd(global *globalOptions) *cobra.Command {
	opts := &migrateOptions{global: global}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the procurement schema migrations",
	}
	cmd.PersistentFlags().StringVar(&opts.path, "path", "", "Path to migrations directory (default: ./migrations)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: opts.withMigrator(func(m *migration.Migrator, _ *zap.Logger, _ []string) error {
				return m.Up()
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: opts.withMigrator(func(m *migration.Migrator, _ *zap.Logger, _ []string) error {
				return m.Down()
			}),
		},
		&cobra.Command{
			Use:   "steps <n>",
			Short: "Apply n migrations (positive=up, negative=down)",
			Args:  cobra.ExactArgs(1),
			RunE: opts.withMigrator(func(m *migration.Migrator, _ *zap.Logger, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				return m.Steps(n)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the current migration version",
			Args:  cobra.NoArgs,
			RunE: opts.withMigrator(func(m *migration.Migrator, log *zap.Logger, _ []string) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				if version == 0 {
					log.Info("No migrations applied")
					return nil
				}
				log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Force set the migration version (use with caution)",
			Args:  cobra.ExactArgs(1),
			RunE: opts.withMigrator(func(m *migration.Migrator, log *zap.Logger, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				log.Warn("Forcing migration version", zap.Int("version", version))
				return m.Force(version)
			}),
		},
		opts.createCmd(),
		opts.listCmd(),
	)
	return cmd
}

func (o *migrateOptions) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> [description]",
		Short: "Create a new migration file pair",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := o.global.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			description := ""
			if len(args) > 1 {
				description = args[1]
			}
			mf, err := migration.CreateMigration(o.migrationsPath(), args[0], description, cfg.Ingest.Schema)
			if err != nil {
				return err
			}
			log.Info("Migration created",
				zap.String("version", mf.Version),
				zap.String("up_file", mf.UpPath),
				zap.String("down_file", mf.DownPath),
			)
			return nil
		},
	}
}

func (o *migrateOptions) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			migrations, err := migration.ListMigrations(o.migrationsPath())
			if err != nil {
				return err
			}
			for _, m := range migrations {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}

// withMigrator wraps a subcommand that needs a database connection.
func (o *migrateOptions) withMigrator(run func(*migration.Migrator, *zap.Logger, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, log, err := o.global.load()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		path := o.migrationsPath()
		log.Info("Migration CLI started", zap.String("command", cmd.Name()), zap.String("migrations_path", path))

		m, err := openMigrator(cfg, path, log)
		if err != nil {
			return err
		}
		defer m.Close()
		return run(m, log, args)
	}
}

func openMigrator(cfg *config.Config, path string, log *zap.Logger) (*migration.Migrator, error) {
	m, err := migration.NewFromConfig(&cfg.Database, path, log)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// migrationsPath resolves --path, falling back to ./migrations and then to
// the directory two levels above the executable.
func (o *migrateOptions) migrationsPath() string {
	path := o.path
	if path == "" {
		path = defaultMigrationsPath
		if _, err := os.Stat(path); err != nil {
			if exe, err := os.Executable(); err == nil {
				candidate := filepath.Join(filepath.Dir(exe), "..", "..", defaultMigrationsPath)
				if _, err := os.Stat(candidate); err == nil {
					path = candidate
				}
			}
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
