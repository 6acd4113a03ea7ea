// Package inventory manages the catalog of Dynatrace environments and
// environment groups, and resolves request selectors into concrete target
// descriptors for the orchestrator.
package inventory

import "time"

// EnvironmentType categorizes a tenant.
type EnvironmentType string

const (
	TypeProduction  EnvironmentType = "production"
	TypeStaging     EnvironmentType = "staging"
	TypeDevelopment EnvironmentType = "development"
	TypeTesting     EnvironmentType = "testing"
	TypeTraining    EnvironmentType = "training"
	TypeCustom      EnvironmentType = "custom"
)

// Environment is one Dynatrace tenant record.
type Environment struct {
	ID          string          `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"uniqueIndex" json:"name"`
	Description string          `json:"description,omitempty"`
	URL         string          `gorm:"uniqueIndex" json:"url"`
	APIToken    string          `json:"-"`
	EnvType     EnvironmentType `json:"env_type"`
	IsActive    bool            `json:"is_active"`
	InsecureSSL bool            `json:"insecure_ssl"`
	IsHealthy   bool            `json:"is_healthy"`
	Tags        []string        `gorm:"serializer:json" json:"tags,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	LastTested  *time.Time      `json:"last_tested_at,omitempty"`
}

// Group bundles environments for bulk operations.
type Group struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"uniqueIndex" json:"name"`
	Description    string    `json:"description,omitempty"`
	EnvironmentIDs []string  `gorm:"serializer:json" json:"environment_ids"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
