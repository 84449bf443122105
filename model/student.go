package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Student represents an enrollable student record. StudentNumber is unique
// across all students; the unique index is the hard guarantee at the store
// boundary.
type Student struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	StudentNumber string         `gorm:"uniqueIndex;not null" json:"student_number"`
	FirstName     string         `gorm:"not null" json:"first_name"`
	MiddleName    string         `json:"middle_name"`
	LastName      string         `gorm:"not null" json:"last_name"`
	DateEnrolled  time.Time      `json:"date_enrolled"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`

	// Relationships
	Sections []Section `gorm:"many2many:section_students;" json:"-"`
}

// FullName returns the roster-style "LAST, FIRST" rendering of the name.
func (s *Student) FullName() string {
	return fmt.Sprintf("%s, %s", s.LastName, s.FirstName)
}
