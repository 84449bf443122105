package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/gradekeeper/api/model"
	"github.com/gradekeeper/api/roster"
	"github.com/gradekeeper/api/services/objectstore"
	"gorm.io/gorm"
)

// ErrSectionNotFound is returned when the import target does not exist.
var ErrSectionNotFound = errors.New("section not found")

// ImportService reconciles a bulk roster upload against a target section:
// parse every row, look up or stage students, run the enrollment conflict
// check, and commit all surviving changes in a single transaction.
type ImportService struct {
	db      *gorm.DB
	reports *ReportService
	archive *objectstore.Client
}

// NewImportService creates the bulk import service. reports and archive are
// optional; without them the failure report is only available inline and no
// payload copies are archived.
func NewImportService(db *gorm.DB, reports *ReportService, archive *objectstore.Client) *ImportService {
	return &ImportService{
		db:      db,
		reports: reports,
		archive: archive,
	}
}

// ImportRequest describes one bulk import batch.
type ImportRequest struct {
	SectionID  uint
	Source     model.ImportSource
	DateFormat roster.DateFormat
	Payload    []byte
}

// ImportResult is the outcome of a finished batch. Failures preserve input
// order. ReportToken is set when any row failed and a report was generated.
type ImportResult struct {
	JobID        uint                  `json:"job_id"`
	Status       model.ImportJobStatus `json:"status"`
	TotalRows    int                   `json:"total_rows"`
	SuccessCount int                   `json:"success_count"`
	Failures     []roster.RowFailure   `json:"failures"`
	ReportToken  string                `json:"report_token,omitempty"`
}

// Import runs one batch to completion. A single bad row never aborts the
// batch; only payload-level problems (unknown section, unreadable payload,
// persistence failure) are returned as errors, and on a persistence failure
// every staged student and enrollment edge is rolled back together.
func (s *ImportService) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	parser, err := roster.NewParser(req.Source, req.DateFormat)
	if err != nil {
		return nil, err
	}

	var section model.Section
	if err := s.db.WithContext(ctx).First(&section, req.SectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSectionNotFound
		}
		return nil, fmt.Errorf("fetching section: %w", err)
	}

	items, err := parser.Parse(bytes.NewReader(req.Payload))
	if err != nil {
		return nil, err
	}

	var (
		failures     []roster.RowFailure
		successCount int
	)

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("starting import transaction: %w", tx.Error)
	}
	enrollments := NewEnrollmentService(tx)

	for _, item := range items {
		if item.Failure != nil {
			failures = append(failures, *item.Failure)
			continue
		}
		row := item.Row

		student, staged, reason, err := s.resolveStudent(ctx, tx, row)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if reason != "" {
			failures = append(failures, roster.RowFailure{Line: row.Line, Reason: reason})
			continue
		}

		if err := enrollments.CheckEnrollment(ctx, row.StudentNumber, &section); err != nil {
			if reason := ReasonForEnrollmentErr(err); reason != "" {
				// A failed row never adds the enrollment edge, and a student
				// staged for it is not persisted either.
				failures = append(failures, roster.RowFailure{Line: row.Line, Reason: reason})
				continue
			}
			tx.Rollback()
			return nil, err
		}

		if staged {
			if err := tx.Create(student).Error; err != nil {
				tx.Rollback()
				return nil, fmt.Errorf("creating student %s: %w", row.StudentNumber, err)
			}
		}
		if err := tx.Model(&section).Association("Students").Append(student); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("enrolling student %s: %w", row.StudentNumber, err)
		}
		successCount++
	}

	job := model.ImportJob{
		SectionID:    section.ID,
		Source:       req.Source,
		DateFormat:   string(req.DateFormat),
		Status:       model.ImportJobStatusCompleted,
		TotalRows:    len(items),
		SuccessCount: successCount,
		FailureCount: len(failures),
	}
	if len(failures) > 0 {
		job.Status = model.ImportJobStatusPartial
		if successCount == 0 {
			job.Status = model.ImportJobStatusFailed
		}
		job.ReportToken = uuid.NewString()
		payload, err := json.Marshal(failures)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("encoding failures: %w", err)
		}
		job.Failures = payload
	}
	if err := tx.Create(&job).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("recording import job: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("committing import batch: %w", err)
	}

	if len(failures) > 0 && s.reports != nil {
		if err := s.reports.Cache(ctx, job.ReportToken, roster.BuildReport(failures)); err != nil {
			// The report can still be rebuilt from the job row.
			log.Printf("[IMPORT] caching failure report for job %d: %v", job.ID, err)
		}
	}
	s.archivePayload(ctx, &job, req.Payload, failures)

	return &ImportResult{
		JobID:        job.ID,
		Status:       job.Status,
		TotalRows:    job.TotalRows,
		SuccessCount: successCount,
		Failures:     failures,
		ReportToken:  job.ReportToken,
	}, nil
}

// resolveStudent finds the student by number or stages a new record from the
// parsed row. A row whose number is unknown but whose full name matches an
// existing student case-insensitively is rejected as a duplicate person.
// Lookups are unscoped: a soft-deleted record still holds its number under
// the unique index, so it must surface as a row failure rather than a
// constraint violation that would abort the whole batch.
func (s *ImportService) resolveStudent(ctx context.Context, tx *gorm.DB, row roster.Row) (*model.Student, bool, roster.Reason, error) {
	var student model.Student
	err := tx.WithContext(ctx).Unscoped().Where("student_number = ?", row.StudentNumber).First(&student).Error
	if err == nil {
		if student.DeletedAt.Valid {
			return nil, false, roster.ReasonDuplicateStudent, nil
		}
		return &student, false, "", nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, "", fmt.Errorf("looking up student %s: %w", row.StudentNumber, err)
	}

	var n int64
	err = tx.WithContext(ctx).Model(&model.Student{}).Unscoped().
		Where("LOWER(first_name) = LOWER(?) AND LOWER(last_name) = LOWER(?)", row.FirstName, row.LastName).
		Count(&n).Error
	if err != nil {
		return nil, false, "", fmt.Errorf("checking duplicate name: %w", err)
	}
	if n > 0 {
		return nil, false, roster.ReasonDuplicateStudent, nil
	}

	return &model.Student{
		StudentNumber: row.StudentNumber,
		FirstName:     row.FirstName,
		LastName:      row.LastName,
		DateEnrolled:  row.DateEnrolled,
		IsActive:      true,
	}, true, "", nil
}

// archivePayload copies the raw upload and the failure report to object
// storage. Best effort: a missing or failing archive never fails the import.
func (s *ImportService) archivePayload(ctx context.Context, job *model.ImportJob, payload []byte, failures []roster.RowFailure) {
	if s.archive == nil {
		return
	}

	key := fmt.Sprintf("imports/%d/payload.%s", job.ID, payloadExt(job.Source))
	if err := s.archive.Upload(ctx, key, payload, payloadContentType(job.Source)); err != nil {
		log.Printf("[IMPORT] archiving payload for job %d: %v", job.ID, err)
		return
	}
	if len(failures) > 0 {
		reportKey := fmt.Sprintf("imports/%d/report.csv", job.ID)
		if err := s.archive.Upload(ctx, reportKey, []byte(roster.BuildReport(failures)), "text/csv"); err != nil {
			log.Printf("[IMPORT] archiving report for job %d: %v", job.ID, err)
		}
	}

	if err := s.db.WithContext(ctx).Model(job).Update("archive_key", key).Error; err != nil {
		log.Printf("[IMPORT] saving archive key for job %d: %v", job.ID, err)
	}
}

func payloadExt(source model.ImportSource) string {
	if source == model.ImportSourceJSON {
		return "json"
	}
	return "txt"
}

func payloadContentType(source model.ImportSource) string {
	if source == model.ImportSourceJSON {
		return "application/json"
	}
	return "text/plain"
}
