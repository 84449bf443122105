package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ImportSource identifies the payload format of a roster import.
type ImportSource string

const (
	ImportSourcePipe  ImportSource = "pipe"
	ImportSourceComma ImportSource = "comma"
	ImportSourceJSON  ImportSource = "json"
)

// ImportJobStatus represents the terminal status of an import batch.
type ImportJobStatus string

const (
	ImportJobStatusCompleted ImportJobStatus = "completed"
	ImportJobStatusPartial   ImportJobStatus = "partially_completed"
	ImportJobStatusFailed    ImportJobStatus = "failed"
)

// ImportJob records one bulk roster import batch against a section. Failures
// holds the ordered per-row failure list as JSON so the failure report can be
// rebuilt after the cached copy expires.
type ImportJob struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
	SectionID    uint            `gorm:"not null;index" json:"section_id"`
	Source       ImportSource    `gorm:"type:varchar(10);not null" json:"source"`
	DateFormat   string          `gorm:"type:varchar(10);not null" json:"date_format"`
	Status       ImportJobStatus `gorm:"type:varchar(25);not null" json:"status"`
	TotalRows    int             `gorm:"default:0" json:"total_rows"`
	SuccessCount int             `gorm:"default:0" json:"success_count"`
	FailureCount int             `gorm:"default:0" json:"failure_count"`
	ReportToken  string          `gorm:"type:varchar(40);index" json:"report_token,omitempty"`
	ArchiveKey   string          `gorm:"type:varchar(255)" json:"archive_key,omitempty"`
	Failures     datatypes.JSON  `gorm:"type:jsonb" json:"failures,omitempty"`

	// Relationships
	Section Section `gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE" json:"section,omitempty"`
}

// HasFailures reports whether any row in the batch was rejected.
func (j *ImportJob) HasFailures() bool {
	return j.FailureCount > 0
}
