package subject

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gradekeeper/api/model"
	"github.com/gradekeeper/api/utils/response"
	"github.com/gradekeeper/api/utils/validation"
	"gorm.io/gorm"
)

// SubjectHandler handles subject-related requests
type SubjectHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewSubjectHandler creates a new subject handler
func NewSubjectHandler(db *gorm.DB) *SubjectHandler {
	return &SubjectHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CreateSubjectRequest represents the request body for creating a subject
type CreateSubjectRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Code        string `json:"code" validate:"required,min=2,max=50"`
	Description string `json:"description" validate:"omitempty,max=1000"`
}

// UpdateSubjectRequest represents the request body for updating a subject
type UpdateSubjectRequest struct {
	Name        string  `json:"name" validate:"omitempty,min=2,max=255"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

// ListSubjects handles GET /api/v1/subjects
func (h *SubjectHandler) ListSubjects(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	search := c.Query("search", "")

	query := h.db.Model(&model.Subject{})
	if search != "" {
		query = query.Where("name ILIKE ? OR code ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count subjects")
	}

	pagination := response.CalculatePagination(page, limit, total)
	offset := (pagination.CurrentPage - 1) * pagination.PerPage

	var subjects []model.Subject
	if err := query.Order("code ASC").
		Limit(pagination.PerPage).
		Offset(offset).
		Find(&subjects).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch subjects")
	}

	return response.Paginated(c, subjects, pagination)
}

// GetSubject handles GET /api/v1/subjects/:id
func (h *SubjectHandler) GetSubject(c *fiber.Ctx) error {
	id := c.Params("id")

	var subject model.Subject
	if err := h.db.Preload("Sections").First(&subject, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Subject not found")
		}
		return response.InternalServerError(c, "Failed to fetch subject")
	}

	return response.Success(c, subject)
}

// CreateSubject handles POST /api/v1/subjects
func (h *SubjectHandler) CreateSubject(c *fiber.Ctx) error {
	var req CreateSubjectRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	// Soft-deleted subjects still hold their code under the unique index.
	var n int64
	if err := h.db.Model(&model.Subject{}).Unscoped().Where("code = ?", req.Code).Count(&n).Error; err != nil {
		return response.InternalServerError(c, "Failed to check for duplicates")
	}
	if n > 0 {
		return response.Conflict(c, "Subject with this code already exists")
	}

	subject := model.Subject{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
	}
	if err := h.db.Create(&subject).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return response.Conflict(c, "Subject with this code already exists")
		}
		return response.InternalServerError(c, "Failed to create subject")
	}

	return response.Created(c, subject)
}

// UpdateSubject handles PUT /api/v1/subjects/:id. The code is the stable
// external identifier and is not updatable.
func (h *SubjectHandler) UpdateSubject(c *fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateSubjectRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var subject model.Subject
	if err := h.db.First(&subject, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Subject not found")
		}
		return response.InternalServerError(c, "Failed to fetch subject")
	}

	if req.Name != "" {
		subject.Name = req.Name
	}
	if req.Description != nil {
		subject.Description = *req.Description
	}
	if err := h.db.Save(&subject).Error; err != nil {
		return response.InternalServerError(c, "Failed to update subject")
	}

	return response.Success(c, subject)
}

// DeleteSubject handles DELETE /api/v1/subjects/:id. A subject that still
// has sections cannot be deleted.
func (h *SubjectHandler) DeleteSubject(c *fiber.Ctx) error {
	id := c.Params("id")

	var subject model.Subject
	if err := h.db.First(&subject, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Subject not found")
		}
		return response.InternalServerError(c, "Failed to fetch subject")
	}

	var sections int64
	if err := h.db.Model(&model.Section{}).Where("subject_id = ?", subject.ID).Count(&sections).Error; err != nil {
		return response.InternalServerError(c, "Failed to check subject sections")
	}
	if sections > 0 {
		return response.Conflict(c, "Subject still has sections")
	}

	if err := h.db.Delete(&subject).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete subject")
	}

	return response.NoContent(c)
}
