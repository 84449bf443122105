package model

import (
	"time"

	"gorm.io/gorm"
)

// Section represents a class instance teaching exactly one Subject.
// SubjectID is set at creation and never changes afterwards.
type Section struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	SubjectID uint           `gorm:"not null;index" json:"subject_id"`
	Name      string         `gorm:"not null" json:"name"`

	// Relationships
	Subject  Subject   `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"subject,omitempty"`
	Students []Student `gorm:"many2many:section_students;" json:"students,omitempty"`
}
