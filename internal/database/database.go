// Package database 提供数据库连接与迁移功能。
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	// MySQL驱动在初始化时注册自己，后续通过 sql.Open("mysql", dsn) 使用
	gomysql "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/MorseWayne/shopcart/internal/config"
)

// DB 封装连接池，dsn 留给迁移使用独立连接
type DB struct {
	*sql.DB
	logger *zap.Logger
	dsn    string
}

// DSN 根据配置生成 MySQL 连接串
func DSN(cfg config.DatabaseConfig) string {
	c := gomysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	c.DBName = cfg.DBName
	c.ParseTime = true
	c.Loc = time.UTC
	c.Params = map[string]string{"charset": "utf8mb4"}
	// 迁移文件中一个文件可能包含多条语句
	c.MultiStatements = true
	return c.FormatDSN()
}

// New 打开购物车快照库的连接池并确认可达
func New(cfg *config.Config, logger *zap.Logger) (*DB, error) {
	dsn := DSN(cfg.Database)

	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// 快照读写都是单行主键操作，连接池不需要太大
	sqlDB.SetMaxOpenConns(16)
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.DBName),
	)

	return &DB{DB: sqlDB, logger: logger, dsn: dsn}, nil
}

// migrator 基于独立连接创建 migrate 实例，避免迁移出错时影响主连接
func (db *DB) migrator(migrationsDir string) (*migrate.Migrate, func(), error) {
	conn, err := sql.Open("mysql", db.dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database for migration: %w", err)
	}

	driver, err := mysql.WithInstance(conn, &mysql.Config{})
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("create mysql driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsDir, "mysql", driver)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("create migrate instance: %w", err)
	}

	return m, func() {
		_, _ = m.Close()
		_ = conn.Close()
	}, nil
}

// migrationStep 对 migrate 实例执行一次变更；返回 migrate.ErrNoChange 视为成功
type migrationStep func(m *migrate.Migrate) error

// apply 检查脏状态后执行 step，并记录前后版本
func (db *DB) apply(migrationsDir, name string, step migrationStep) error {
	m, closer, err := db.migrator(migrationsDir)
	if err != nil {
		return err
	}
	defer closer()

	from, dirty, err := version(m)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("database is in dirty state at version %d, please check and fix manually", from)
	}

	log := db.logger.With(zap.String("action", name), zap.Uint("from_version", from))
	if err := step(m); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("schema already up to date")
			return nil
		}
		return fmt.Errorf("%s: %w", name, err)
	}

	to, _, err := version(m)
	if err != nil {
		return err
	}
	log.Info("migration applied", zap.Uint("to_version", to))
	return nil
}

// version 读取当前版本，尚未迁移时为 0
func version(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get migration version: %w", err)
	}
	return v, dirty, nil
}

// RunMigrations 执行所有待执行的向上迁移，服务启动时调用
func (db *DB) RunMigrations(migrationsDir string) error {
	return db.apply(migrationsDir, "up", func(m *migrate.Migrate) error {
		return m.Up()
	})
}

// MigrateDown 回滚 steps 个版本
func (db *DB) MigrateDown(migrationsDir string, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}
	return db.apply(migrationsDir, "down", func(m *migrate.Migrate) error {
		return m.Steps(-steps)
	})
}

// MigrateToVersion 迁移到指定版本（向上或向下）
func (db *DB) MigrateToVersion(migrationsDir string, target uint) error {
	return db.apply(migrationsDir, fmt.Sprintf("goto %d", target), func(m *migrate.Migrate) error {
		return m.Migrate(target)
	})
}

// ForceMigrationVersion 强制设置版本并清除脏标记，只在人工修复后使用
func (db *DB) ForceMigrationVersion(migrationsDir string, target uint) error {
	m, closer, err := db.migrator(migrationsDir)
	if err != nil {
		return err
	}
	defer closer()

	db.logger.Warn("forcing migration version", zap.Uint("version", target))
	if err := m.Force(int(target)); err != nil {
		return fmt.Errorf("force migration version: %w", err)
	}
	return nil
}

// MigrationVersion 返回当前迁移版本与脏状态
func (db *DB) MigrationVersion(migrationsDir string) (uint, bool, error) {
	m, closer, err := db.migrator(migrationsDir)
	if err != nil {
		return 0, false, err
	}
	defer closer()
	return version(m)
}
