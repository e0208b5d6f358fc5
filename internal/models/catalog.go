package models

import "time"

// CatalogScope names one of the per-user reference lists
type CatalogScope string

const (
	ScopeBank     CatalogScope = "bank"
	ScopeBrand    CatalogScope = "brand"
	ScopeCategory CatalogScope = "category"
)

// IsValid reports whether s is a known scope
func (s CatalogScope) IsValid() bool {
	switch s {
	case ScopeBank, ScopeBrand, ScopeCategory:
		return true
	}
	return false
}

// CatalogEntry is a reusable value a user created from the dialog.
// Names are unique per (scope, owner) ignoring case; the migration
// enforces it with an index on lower(name).
type CatalogEntry struct {
	ID        uint         `json:"id" gorm:"primaryKey"`
	Scope     CatalogScope `json:"scope" gorm:"not null"`
	Owner     string       `json:"owner" gorm:"not null;index"`
	Name      string       `json:"name" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at"`
}
