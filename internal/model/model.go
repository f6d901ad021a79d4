// Package model defines the database models used by the gateway.
// These models work with both PostgreSQL and SQLite via GORM.
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile is one row per user. The auth subsystem owns most profile
// columns; the gateway only reads the email and maintains the container id.
type Profile struct {
	ID                string    `gorm:"primaryKey;type:text" json:"id"`
	Email             string    `gorm:"uniqueIndex;not null;type:text" json:"email"`
	DockerContainerID *string   `gorm:"column:docker_container_id;type:text" json:"docker_container_id,omitempty"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// AllModels returns every model for AutoMigrate.
func AllModels() []any {
	return []any{
		&Profile{},
	}
}
