package section

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gradekeeper/api/model"
	"github.com/gradekeeper/api/services"
	"github.com/gradekeeper/api/utils/response"
	"github.com/gradekeeper/api/utils/validation"
	"gorm.io/gorm"
)

// SectionHandler handles section and roster-management requests
type SectionHandler struct {
	db          *gorm.DB
	validator   *validation.Validator
	enrollments *services.EnrollmentService
}

// NewSectionHandler creates a new section handler
func NewSectionHandler(db *gorm.DB, enrollments *services.EnrollmentService) *SectionHandler {
	return &SectionHandler{
		db:          db,
		validator:   validation.NewValidator(),
		enrollments: enrollments,
	}
}

// CreateSectionRequest represents the request body for creating a section
type CreateSectionRequest struct {
	Name      string `json:"name" validate:"required,min=1,max=255"`
	SubjectID uint   `json:"subject_id" validate:"required"`
}

// AddStudentsRequest enrolls existing students (by number) into a section.
type AddStudentsRequest struct {
	StudentNumbers []string `json:"student_numbers" validate:"required,min=1,dive,required"`
}

// sectionSummary is the list-view projection.
type sectionSummary struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	SubjectID    uint   `json:"subject_id"`
	SubjectName  string `json:"subject_name"`
	StudentCount int    `json:"student_count"`
}

// ListSections handles GET /api/v1/sections
func (h *SectionHandler) ListSections(c *fiber.Ctx) error {
	var sections []model.Section
	if err := h.db.Preload("Subject").Preload("Students").Find(&sections).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch sections")
	}

	summaries := make([]sectionSummary, 0, len(sections))
	for _, s := range sections {
		summaries = append(summaries, sectionSummary{
			ID:           s.ID,
			Name:         s.Name,
			SubjectID:    s.SubjectID,
			SubjectName:  s.Subject.Name,
			StudentCount: len(s.Students),
		})
	}

	return response.Success(c, summaries)
}

// GetSection handles GET /api/v1/sections/:id — the manage view, with the
// subject and the full roster preloaded.
func (h *SectionHandler) GetSection(c *fiber.Ctx) error {
	id := c.Params("id")

	var section model.Section
	if err := h.db.Preload("Subject").Preload("Students").First(&section, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Section not found")
		}
		return response.InternalServerError(c, "Failed to fetch section")
	}

	return response.Success(c, section)
}

// CreateSection handles POST /api/v1/sections. The subject reference is
// fixed at creation.
func (h *SectionHandler) CreateSection(c *fiber.Ctx) error {
	var req CreateSectionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var subject model.Subject
	if err := h.db.First(&subject, req.SubjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.BadRequest(c, "Invalid subject")
		}
		return response.InternalServerError(c, "Failed to fetch subject")
	}

	section := model.Section{
		Name:      req.Name,
		SubjectID: subject.ID,
	}
	if err := h.db.Create(&section).Error; err != nil {
		return response.InternalServerError(c, "Failed to create section")
	}

	return response.Created(c, section)
}

// DeleteSection handles DELETE /api/v1/sections/:id. Deleting a section
// never deletes its students.
func (h *SectionHandler) DeleteSection(c *fiber.Ctx) error {
	id := c.Params("id")

	var section model.Section
	if err := h.db.First(&section, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Section not found")
		}
		return response.InternalServerError(c, "Failed to fetch section")
	}

	if err := h.db.Model(&section).Association("Students").Clear(); err != nil {
		return response.InternalServerError(c, "Failed to clear section roster")
	}
	if err := h.db.Delete(&section).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete section")
	}

	return response.NoContent(c)
}

// addResult reports the per-student outcome of a roster addition.
type addResult struct {
	StudentNumber string `json:"student_number"`
	Enrolled      bool   `json:"enrolled"`
	Reason        string `json:"reason,omitempty"`
}

// AddStudents handles POST /api/v1/sections/:id/students. Each student is
// checked against the one-section-per-subject rule; conflicting students are
// reported, not enrolled.
func (h *SectionHandler) AddStudents(c *fiber.Ctx) error {
	id := c.Params("id")

	var req AddStudentsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var section model.Section
	if err := h.db.Preload("Subject").First(&section, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Section not found")
		}
		return response.InternalServerError(c, "Failed to fetch section")
	}

	results := make([]addResult, 0, len(req.StudentNumbers))
	for _, number := range req.StudentNumbers {
		var student model.Student
		if err := h.db.Where("student_number = ?", number).First(&student).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				results = append(results, addResult{StudentNumber: number, Reason: "student not found"})
				continue
			}
			return response.InternalServerError(c, "Failed to fetch student")
		}

		if err := h.enrollments.Enroll(c.Context(), &section, &student); err != nil {
			if reason := services.ReasonForEnrollmentErr(err); reason != "" {
				results = append(results, addResult{StudentNumber: number, Reason: reason.Message()})
				continue
			}
			return response.InternalServerError(c, "Failed to enroll student")
		}
		results = append(results, addResult{StudentNumber: number, Enrolled: true})
	}

	return response.Success(c, results)
}

// RemoveStudent handles DELETE /api/v1/sections/:id/students/:student_id.
// Removal is idempotent.
func (h *SectionHandler) RemoveStudent(c *fiber.Ctx) error {
	id := c.Params("id")
	studentID, err := strconv.ParseUint(c.Params("student_id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid student ID")
	}

	var section model.Section
	if err := h.db.First(&section, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Section not found")
		}
		return response.InternalServerError(c, "Failed to fetch section")
	}

	var student model.Student
	if err := h.db.First(&student, uint(studentID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Student not found")
		}
		return response.InternalServerError(c, "Failed to fetch student")
	}

	if err := h.enrollments.Remove(c.Context(), &section, &student); err != nil {
		return response.InternalServerError(c, "Failed to remove student from section")
	}

	return response.NoContent(c)
}
