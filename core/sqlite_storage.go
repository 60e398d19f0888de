package core

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// kvRecord is the single table backing SQLiteStorage: one row per key.
type kvRecord struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value []byte `gorm:"column:value"`
}

func (kvRecord) TableName() string {
	return "kv_store"
}

// SQLiteStorage is a durable Storage backed by an embedded SQLite
// database. Like FileStorage it is single-profile and survives
// restarts, but keeps every key in one file and gets transactional
// writes from the database instead of rename tricks.
type SQLiteStorage struct {
	db     *gorm.DB
	logger Logger
}

// NewSQLiteStorage opens (creating if needed) the database at path and
// migrates the key-value table.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required: %w", ErrMissingConfiguration)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	if err := db.AutoMigrate(&kvRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate kv table: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		logger: &NoOpLogger{},
	}, nil
}

// SetLogger configures the logger for this storage
func (s *SQLiteStorage) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Load reads a stored document; absent keys yield (nil, nil)
func (s *SQLiteStorage) Load(ctx context.Context, key string) ([]byte, error) {
	var rec kvRecord
	err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logger.Error("Storage read failed", map[string]interface{}{
			"operation": "storage_load",
			"key":       key,
			"error":     err.Error(),
		})
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return rec.Value, nil
}

// Save upserts a document under a key
func (s *SQLiteStorage) Save(ctx context.Context, key string, value []byte) error {
	rec := kvRecord{Key: key, Value: value}
	err := s.db.WithContext(ctx).Save(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	s.logger.Debug("Storage save", map[string]interface{}{
		"operation":  "storage_save",
		"key":        key,
		"value_size": len(value),
	})
	return nil
}

// Delete removes a document; deleting an absent key is a no-op
func (s *SQLiteStorage) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Delete(&kvRecord{}, "key = ?", key).Error
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Exists checks if a key holds a document
func (s *SQLiteStorage) Exists(ctx context.Context, key string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&kvRecord{}).Where("key = ?", key).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return count > 0, nil
}
