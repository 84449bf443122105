package model

import (
	"time"

	"gorm.io/gorm"
)

// Subject represents a course/discipline definition (e.g., "Calculus I")
type Subject struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"not null" json:"name"`
	Code        string         `gorm:"uniqueIndex;not null" json:"code"` // e.g., "MATH-101"
	Description string         `gorm:"type:text" json:"description"`

	// Relationships
	Sections []Section `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"sections,omitempty"`
}
