package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Shehuna2/MafitaPay-sub002/internal/domain"
)

// SnapshotRecord persists the last known snapshot of one view so the next
// launch can paint the order list before the first live fetch lands.
type SnapshotRecord struct {
	ViewKey   string    `gorm:"primaryKey"`
	Seq       uint64    // engine sequence at save time, informational only
	TakenAt   time.Time
	Payload   []byte    // JSON-encoded []domain.Order
	UpdatedAt time.Time
}

// Store is the SQLite-backed snapshot cache.
type Store struct {
	db *gorm.DB
}

// NewStore opens (or creates) the snapshot database at the default per-user
// location.
func NewStore() (*Store, error) {
	path, err := defaultDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB path: %w", err)
	}
	return NewStoreAt(path)
}

// NewStoreAt opens the snapshot database at an explicit path.
func NewStoreAt(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&SnapshotRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// defaultDBPath resolves the database file path based on OS
func defaultDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "MafitaPay", "data", "orders.db"), nil
}

// SaveSnapshot upserts the snapshot for a view key.
func (s *Store) SaveSnapshot(viewKey string, snap *domain.Snapshot) error {
	if snap == nil {
		return nil
	}
	payload, err := json.Marshal(snap.Orders())
	if err != nil {
		return err
	}
	record := SnapshotRecord{
		ViewKey: viewKey,
		Seq:     snap.Seq(),
		TakenAt: snap.TakenAt(),
		Payload: payload,
	}
	return s.db.Save(&record).Error
}

// LoadSnapshot returns the persisted snapshot for a view key, flagged stale,
// or nil when none was saved. The restored snapshot carries sequence zero so
// any live fetch supersedes it.
func (s *Store) LoadSnapshot(viewKey string) (*domain.Snapshot, error) {
	var record SnapshotRecord
	err := s.db.First(&record, "view_key = ?", viewKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}

	var orders []domain.Order
	if err := json.Unmarshal(record.Payload, &orders); err != nil {
		// A corrupt row is treated like a cache miss.
		return nil, nil
	}
	return domain.NewSnapshot(0, record.TakenAt, orders).MarkStale(), nil
}

// DeleteSnapshot removes the persisted snapshot for a view key.
func (s *Store) DeleteSnapshot(viewKey string) error {
	return s.db.Where("view_key = ?", viewKey).Delete(&SnapshotRecord{}).Error
}
