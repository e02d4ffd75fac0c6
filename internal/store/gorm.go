package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/user/cesto-ofertas-go/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Record is one key-value row of the SQL backends
type Record struct {
	Key       string `gorm:"column:record_key;primaryKey;size:191"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName returns the table name for Record
func (Record) TableName() string {
	return "records"
}

// SQLStore implements Store on top of gorm (MySQL or PostgreSQL)
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore connects with the given driver ("mysql" or "postgres") and migrates the records table
func NewSQLStore(driver string, cfg *config.DBConfig) (*SQLStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(cfg.MySQLDSN())
	case "postgres":
		dialector = postgres.Open(cfg.PostgresDSN())
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// Get retrieves the value stored under key
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var rec Record
	result := s.db.WithContext(ctx).Where("record_key = ?", key).First(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get record: %w", result.Error)
	}
	if rec.Value == nil {
		rec.Value = []byte{}
	}
	return rec.Value, nil
}

// Put upserts the value under key
func (s *SQLStore) Put(ctx context.Context, key string, value []byte) error {
	rec := &Record{Key: key, Value: value, UpdatedAt: time.Now()}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(rec)
	if result.Error != nil {
		return fmt.Errorf("failed to put record: %w", result.Error)
	}
	return nil
}

// Delete removes the row for key
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("record_key = ?", key).Delete(&Record{}).Error; err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Keys lists keys starting with prefix, ordered by key
func (s *SQLStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	result := s.db.WithContext(ctx).
		Model(&Record{}).
		Where("record_key LIKE ?", escapeLike(prefix)+"%").
		Order("record_key").
		Pluck("record_key", &keys)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list records: %w", result.Error)
	}
	return keys, nil
}

// escapeLike escapes LIKE wildcards so prefix is matched literally
func escapeLike(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix)
}

// Ping checks database connectivity
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.Close()
}

// DB returns the underlying gorm.DB instance (for testing purposes)
func (s *SQLStore) DB() *gorm.DB {
	return s.db
}
