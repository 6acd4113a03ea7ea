// Package backupcat is the catalog of backup artifacts produced by export
// runs: which directory belongs to which environment, how big it is, and
// whether it still exists on disk.
package backupcat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/warezfr/dynatrace-backup-restore-tool/common"
)

// ErrNotFound is returned for lookups of unknown backup IDs.
var ErrNotFound = errors.New("backup not found")

// Backup is one recorded backup artifact.
type Backup struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"uniqueIndex" json:"name"`
	Path          string    `json:"path"`
	EnvironmentID string    `gorm:"index" json:"environment_id"`
	ConfigTypes   []string  `gorm:"serializer:json" json:"config_types,omitempty"`
	SizeBytes     int64     `json:"size_bytes"`
	FileCount     int       `json:"file_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// HumanSize renders SizeBytes for display.
func (b *Backup) HumanSize() string {
	return humanize.Bytes(uint64(b.SizeBytes))
}

// Store persists backup records.
type Store interface {
	Create(ctx context.Context, b *Backup) error
	Get(ctx context.Context, id string) (*Backup, error)
	List(ctx context.Context) ([]Backup, error)
	Delete(ctx context.Context, id string) error
}

// Service wraps a store with disk-aware operations.
type Service struct {
	store Store
	log   *logrus.Entry
}

// NewService creates a backup catalog service.
func NewService(store Store) *Service {
	return &Service{store: store, log: common.Logger.WithField("component", "backupcat")}
}

// Record registers a freshly produced backup directory.
func (s *Service) Record(ctx context.Context, b *Backup) error {
	if err := s.store.Create(ctx, b); err != nil {
		return fmt.Errorf("failed to record backup %s: %w", b.Name, err)
	}
	s.log.WithFields(logrus.Fields{
		"backup":      b.Name,
		"environment": b.EnvironmentID,
		"size":        b.HumanSize(),
		"files":       b.FileCount,
	}).Info("backup recorded")
	return nil
}

// Get returns one backup record.
func (s *Service) Get(ctx context.Context, id string) (*Backup, error) {
	return s.store.Get(ctx, id)
}

// List returns all backup records, newest first.
func (s *Service) List(ctx context.Context) ([]Backup, error) {
	return s.store.List(ctx)
}

// Delete removes the record and its directory from disk.
func (s *Service) Delete(ctx context.Context, id string) error {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if b.Path != "" {
		if err := os.RemoveAll(b.Path); err != nil {
			s.log.WithError(err).WithField("backup", b.Name).Warn("failed to remove backup directory")
		}
	}
	return nil
}

// GormStore persists backup records via gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGorm creates a gorm-backed store on an already opened database and
// migrates its schema.
func NewGorm(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Backup{}); err != nil {
		return nil, fmt.Errorf("failed to migrate backup schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Create(ctx context.Context, b *Backup) error {
	return s.db.WithContext(ctx).Create(b).Error
}

func (s *GormStore) Get(ctx context.Context, id string) (*Backup, error) {
	var b Backup
	err := s.db.WithContext(ctx).First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("backup %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *GormStore) List(ctx context.Context) ([]Backup, error) {
	var backups []Backup
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&backups).Error; err != nil {
		return nil, err
	}
	return backups, nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&Backup{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("backup %s: %w", id, ErrNotFound)
	}
	return nil
}

// MemoryStore keeps backup records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	backups map[string]Backup
}

// NewMemory creates an empty in-memory backup store.
func NewMemory() *MemoryStore {
	return &MemoryStore{backups: make(map[string]Backup)}
}

func (s *MemoryStore) Create(ctx context.Context, b *Backup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.backups[b.ID]; exists {
		return fmt.Errorf("backup %s already exists", b.ID)
	}
	s.backups[b.ID] = *b
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.backups[id]
	if !ok {
		return nil, fmt.Errorf("backup %s: %w", id, ErrNotFound)
	}
	return &b, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	backups := make([]Backup, 0, len(s.backups))
	for _, b := range s.backups {
		backups = append(backups, b)
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].CreatedAt.After(backups[j].CreatedAt) })
	return backups, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.backups[id]; !ok {
		return fmt.Errorf("backup %s: %w", id, ErrNotFound)
	}
	delete(s.backups, id)
	return nil
}
