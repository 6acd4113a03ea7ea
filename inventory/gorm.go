package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore persists the catalog in a relational database, SQLite for
// single-binary deployments or PostgreSQL when a DSN is configured.
type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects to the catalog database and runs migrations.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to catalog database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Environment{}, &Group{}); err != nil {
		return nil, fmt.Errorf("failed to migrate catalog schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

// OpenSQLite opens a file-backed catalog database and runs migrations. The
// driver is pure Go, so the default deployment needs no cgo and no server.
func OpenSQLite(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}
	if err := db.AutoMigrate(&Environment{}, &Group{}); err != nil {
		return nil, fmt.Errorf("failed to migrate catalog schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

// DB exposes the underlying connection so other stores can share it.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) CreateEnvironment(ctx context.Context, env *Environment) error {
	return s.db.WithContext(ctx).Create(env).Error
}

func (s *GormStore) UpdateEnvironment(ctx context.Context, env *Environment) error {
	res := s.db.WithContext(ctx).Model(&Environment{ID: env.ID}).Updates(env)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("environment %s: %w", env.ID, ErrNotFound)
	}
	return nil
}

func (s *GormStore) DeleteEnvironment(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&Environment{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("environment %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *GormStore) GetEnvironment(ctx context.Context, id string) (*Environment, error) {
	var env Environment
	err := s.db.WithContext(ctx).First(&env, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("environment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func (s *GormStore) ListEnvironments(ctx context.Context) ([]Environment, error) {
	var envs []Environment
	if err := s.db.WithContext(ctx).Order("name").Find(&envs).Error; err != nil {
		return nil, err
	}
	return envs, nil
}

func (s *GormStore) CreateGroup(ctx context.Context, g *Group) error {
	return s.db.WithContext(ctx).Create(g).Error
}

func (s *GormStore) UpdateGroup(ctx context.Context, g *Group) error {
	res := s.db.WithContext(ctx).Model(&Group{ID: g.ID}).Updates(g)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("group %s: %w", g.ID, ErrNotFound)
	}
	return nil
}

func (s *GormStore) DeleteGroup(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&Group{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *GormStore) GetGroup(ctx context.Context, id string) (*Group, error) {
	var g Group
	err := s.db.WithContext(ctx).First(&g, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *GormStore) ListGroups(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := s.db.WithContext(ctx).Order("name").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}
