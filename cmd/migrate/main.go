// Package main 管理购物车快照表的 schema 迁移
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/config"
	"github.com/MorseWayne/shopcart/internal/database"
	"github.com/MorseWayne/shopcart/internal/logger"
)

// migrator 迁移命令依赖的数据库操作
type migrator interface {
	RunMigrations(dir string) error
	MigrateDown(dir string, steps int) error
	MigrateToVersion(dir string, version uint) error
	ForceMigrationVersion(dir string, version uint) error
	MigrationVersion(dir string) (uint, bool, error)
}

// connect 在命令真正执行时才连接数据库，--help 不需要数据库
type connect func() (migrator, string, func(), error)

func newRootCmd(open connect) *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the cart snapshot schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(open, func(db migrator, dir string) error {
					return db.RunMigrations(dir)
				})
			},
		},
		newDownCmd(open),
		&cobra.Command{
			Use:   "goto VERSION",
			Short: "Migrate up or down to the given version",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := parseVersion(args[0])
				if err != nil {
					return err
				}
				return withDB(open, func(db migrator, dir string) error {
					return db.MigrateToVersion(dir, v)
				})
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set the version and clear the dirty flag after a manual fix",
			Long:  "Set the recorded version without running any migration. VERSION 0 resets to the empty state.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := parseVersion(args[0])
				if err != nil {
					return err
				}
				return withDB(open, func(db migrator, dir string) error {
					return db.ForceMigrationVersion(dir, v)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the current version and dirty flag",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(open, func(db migrator, dir string) error {
					v, dirty, err := db.MigrationVersion(dir)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
					return err
				})
			},
		},
	)
	return root
}

func newDownCmd(open connect) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(open, func(db migrator, dir string) error {
				return db.MigrateDown(dir, steps)
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of versions to roll back")
	return cmd
}

func withDB(open connect, fn func(db migrator, dir string) error) error {
	db, dir, closeDB, err := open()
	if err != nil {
		return err
	}
	defer closeDB()
	return fn(db, dir)
}

func parseVersion(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q", s)
	}
	return uint(v), nil
}

// openDatabase 读取配置连接 MySQL
func openDatabase() (migrator, string, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", nil, fmt.Errorf("load config: %w", err)
	}
	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, "migrate", cfg.App.Version)
	if err != nil {
		return nil, "", nil, fmt.Errorf("init logger: %w", err)
	}
	if !cfg.Database.Enabled {
		lg.Warn("DB_ENABLED is false, connecting anyway for migrations")
	}

	db, err := database.New(cfg, lg)
	if err != nil {
		return nil, "", nil, err
	}
	lg.Info("using migrations directory", zap.String("path", cfg.Migrations.Dir))
	return db, cfg.Migrations.Dir, func() {
		if err := db.Close(); err != nil {
			lg.Error("failed to close database", zap.Error(err))
		}
		_ = lg.Sync()
	}, nil
}

func main() {
	if err := newRootCmd(openDatabase).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
