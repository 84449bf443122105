package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/gradekeeper/api/model"
	"github.com/gradekeeper/api/roster"
	"gorm.io/gorm"
)

var (
	// ErrAlreadyEnrolledInSection means the student is already on the target
	// section's roster. Adding again is rejected and reported, never silently
	// duplicated.
	ErrAlreadyEnrolledInSection = errors.New("student is already enrolled in this section")

	// ErrAlreadyEnrolledInSubject means the student sits in a different
	// section teaching the same subject.
	ErrAlreadyEnrolledInSubject = errors.New("student is already enrolled in another section of this subject")
)

// EnrollmentService enforces the one-section-per-subject rule. Checks read
// the persisted state at call time; under concurrent writers they are
// advisory, and only the student-number unique index is a hard guarantee.
type EnrollmentService struct {
	db *gorm.DB
}

// NewEnrollmentService creates an enrollment service. Pass a transaction
// handle to get read-your-writes behavior within a batch.
func NewEnrollmentService(db *gorm.DB) *EnrollmentService {
	return &EnrollmentService{db: db}
}

// CheckEnrollment reports whether a student (by number) may join the section.
// Returns nil when enrolling is allowed, ErrAlreadyEnrolledInSection when the
// student is already on this roster, and ErrAlreadyEnrolledInSubject when a
// sibling section of the same subject already has the student. Subject
// equality is by ID.
func (s *EnrollmentService) CheckEnrollment(ctx context.Context, studentNumber string, section *model.Section) error {
	var n int64
	err := s.db.WithContext(ctx).
		Table("section_students AS ss").
		Joins("JOIN students ON students.id = ss.student_id").
		Where("ss.section_id = ? AND students.student_number = ? AND students.deleted_at IS NULL",
			section.ID, studentNumber).
		Count(&n).Error
	if err != nil {
		return fmt.Errorf("checking target roster: %w", err)
	}
	if n > 0 {
		return ErrAlreadyEnrolledInSection
	}

	err = s.db.WithContext(ctx).
		Table("section_students AS ss").
		Joins("JOIN students ON students.id = ss.student_id").
		Joins("JOIN sections ON sections.id = ss.section_id").
		Where("sections.subject_id = ? AND ss.section_id <> ? AND students.student_number = ?",
			section.SubjectID, section.ID, studentNumber).
		Where("sections.deleted_at IS NULL AND students.deleted_at IS NULL").
		Count(&n).Error
	if err != nil {
		return fmt.Errorf("checking sibling sections: %w", err)
	}
	if n > 0 {
		return ErrAlreadyEnrolledInSubject
	}

	return nil
}

// Enroll adds the student to the section after a conflict check.
func (s *EnrollmentService) Enroll(ctx context.Context, section *model.Section, student *model.Student) error {
	if err := s.CheckEnrollment(ctx, student.StudentNumber, section); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(section).Association("Students").Append(student); err != nil {
		return fmt.Errorf("adding enrollment edge: %w", err)
	}
	return nil
}

// Remove drops the student from the section roster. Removing a student who
// is not enrolled is a no-op; the student record itself is never deleted.
func (s *EnrollmentService) Remove(ctx context.Context, section *model.Section, student *model.Student) error {
	if err := s.db.WithContext(ctx).Model(section).Association("Students").Delete(student); err != nil {
		return fmt.Errorf("removing enrollment edge: %w", err)
	}
	return nil
}

// ReasonForEnrollmentErr maps a check failure onto its row-failure reason.
func ReasonForEnrollmentErr(err error) roster.Reason {
	switch {
	case errors.Is(err, ErrAlreadyEnrolledInSection):
		return roster.ReasonAlreadyEnrolledInSection
	case errors.Is(err, ErrAlreadyEnrolledInSubject):
		return roster.ReasonAlreadyEnrolledInSubject
	default:
		return ""
	}
}
