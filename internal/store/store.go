// Package store provides database operations using GORM.
package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/aks-ide/gateway/internal/model"
)

// ErrNotFound is returned when a profile row does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps GORM DB for database operations.
type Store struct {
	db *gorm.DB
}

// New creates a new Store with the given GORM DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying GORM DB for advanced queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// GetProfile returns the profile row for an email.
func (s *Store) GetProfile(ctx context.Context, email string) (*model.Profile, error) {
	var p model.Profile
	if err := s.db.WithContext(ctx).First(&p, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CreateProfile inserts a new profile row.
func (s *Store) CreateProfile(ctx context.Context, p *model.Profile) error {
	return s.db.WithContext(ctx).Create(p).Error
}

// GetContainerID returns the recorded container id for an email, or ""
// when the profile has no container yet.
func (s *Store) GetContainerID(ctx context.Context, email string) (string, error) {
	p, err := s.GetProfile(ctx, email)
	if err != nil {
		return "", err
	}
	if p.DockerContainerID == nil {
		return "", nil
	}
	return *p.DockerContainerID, nil
}

// SetContainerID records a container id for an email.
func (s *Store) SetContainerID(ctx context.Context, email, containerID string) error {
	res := s.db.WithContext(ctx).
		Model(&model.Profile{}).
		Where("email = ?", email).
		Update("docker_container_id", containerID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
