package records

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/liuran001/GameLauncher-Go/launcher"
)

// RecordModel is one stored result.
type RecordModel struct {
	gorm.Model
	Game  string `gorm:"not null;index:idx_records_game"`
	Key   string `gorm:"not null"`
	Label string
	Value int `gorm:"not null;index:idx_records_game"`
}

func (RecordModel) TableName() string {
	return "records"
}

// SQLiteStore keeps the best results per game in a SQLite database.
type SQLiteStore struct {
	db *gorm.DB
}

var _ launcher.ScoreStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database at dsn.
func NewSQLiteStore(dsn string, gormLogger logger.Interface) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn required")
	}
	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	dbDir := filepath.Dir(dsn)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 gormLogger,
	})
	if err != nil {
		return nil, err
	}
	if err := applySQLitePragmas(db); err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&RecordModel{}); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &SQLiteStore{db: db}, nil
}

func applySQLitePragmas(db *gorm.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, stmt := range pragmas {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// RecordResult inserts stat and prunes everything beyond the best
// launcher.MaxRecords of the game.
func (s *SQLiteStore) RecordResult(ctx context.Context, game string, stat launcher.Stat) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := RecordModel{Game: game, Key: stat.Key, Label: stat.Label, Value: stat.Value}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		var keep []uint
		if err := tx.Model(&RecordModel{}).
			Where("game = ?", game).
			Order("value DESC").Order("id ASC").
			Limit(launcher.MaxRecords).
			Pluck("id", &keep).Error; err != nil {
			return fmt.Errorf("select best records: %w", err)
		}
		if err := tx.Unscoped().
			Where("game = ? AND id NOT IN ?", game, keep).
			Delete(&RecordModel{}).Error; err != nil {
			return fmt.Errorf("prune records: %w", err)
		}
		return nil
	})
}

// BestResults returns up to launcher.MaxRecords results, best first.
func (s *SQLiteStore) BestResults(ctx context.Context, game string) ([]launcher.Stat, error) {
	var rows []RecordModel
	if err := s.db.WithContext(ctx).
		Where("game = ?", game).
		Order("value DESC").Order("id ASC").
		Limit(launcher.MaxRecords).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	stats := make([]launcher.Stat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, launcher.Stat{Key: row.Key, Label: row.Label, Value: row.Value})
	}
	return stats, nil
}

func (s *SQLiteStore) Clear(ctx context.Context, game string) error {
	return s.db.WithContext(ctx).Unscoped().Where("game = ?", game).Delete(&RecordModel{}).Error
}

func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Unscoped().Where("1 = 1").Delete(&RecordModel{}).Error
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
