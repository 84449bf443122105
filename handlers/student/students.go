package student

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gradekeeper/api/model"
	"github.com/gradekeeper/api/roster"
	"github.com/gradekeeper/api/utils/response"
	"github.com/gradekeeper/api/utils/validation"
	"gorm.io/gorm"
)

// StudentHandler handles student-related requests
type StudentHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewStudentHandler creates a new student handler
func NewStudentHandler(db *gorm.DB) *StudentHandler {
	return &StudentHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CreateStudentRequest represents the request body for creating a student
type CreateStudentRequest struct {
	StudentNumber string `json:"student_number" validate:"required,min=1,max=50"`
	FirstName     string `json:"first_name" validate:"required,min=1,max=255"`
	MiddleName    string `json:"middle_name" validate:"omitempty,max=255"`
	LastName      string `json:"last_name" validate:"required,min=1,max=255"`
	DateEnrolled  string `json:"date_enrolled" validate:"required"`
	DateFormat    string `json:"date_format" validate:"required,oneof=MM/DD/YYYY DD/MM/YYYY"`
}

// UpdateStudentRequest represents the request body for updating a student.
// Only name corrections and the active flag are mutable.
type UpdateStudentRequest struct {
	FirstName  string  `json:"first_name" validate:"omitempty,min=1,max=255"`
	MiddleName *string `json:"middle_name" validate:"omitempty,max=255"`
	LastName   string  `json:"last_name" validate:"omitempty,min=1,max=255"`
	IsActive   *bool   `json:"is_active"`
}

// ListStudents handles GET /api/v1/students with search and pagination.
func (h *StudentHandler) ListStudents(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	search := c.Query("search", "")

	query := h.db.Model(&model.Student{})
	if search != "" {
		query = query.Where("student_number ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ?",
			"%"+search+"%", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count students")
	}

	pagination := response.CalculatePagination(page, limit, total)
	offset := (pagination.CurrentPage - 1) * pagination.PerPage

	var students []model.Student
	if err := query.Order("last_name ASC, first_name ASC").
		Limit(pagination.PerPage).
		Offset(offset).
		Find(&students).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch students")
	}

	return response.Paginated(c, students, pagination)
}

// GetStudent handles GET /api/v1/students/:id
func (h *StudentHandler) GetStudent(c *fiber.Ctx) error {
	id := c.Params("id")

	var student model.Student
	if err := h.db.Preload("Sections.Subject").First(&student, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Student not found")
		}
		return response.InternalServerError(c, "Failed to fetch student")
	}

	return response.Success(c, student)
}

// CreateStudent handles POST /api/v1/students. A student matching an
// existing record by number or by case-insensitive full name is a duplicate.
func (h *StudentHandler) CreateStudent(c *fiber.Ctx) error {
	var req CreateStudentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	layout, err := roster.DateFormat(req.DateFormat).GoLayout()
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	dateEnrolled, err := time.Parse(layout, req.DateEnrolled)
	if err != nil {
		return response.BadRequest(c, roster.ReasonInvalidDate.Message())
	}

	// Unscoped: a soft-deleted student still holds their number under the
	// unique index.
	var n int64
	err = h.db.Model(&model.Student{}).Unscoped().
		Where("student_number = ? OR (LOWER(first_name) = LOWER(?) AND LOWER(last_name) = LOWER(?))",
			req.StudentNumber, req.FirstName, req.LastName).
		Count(&n).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to check for duplicates")
	}
	if n > 0 {
		return response.Conflict(c, roster.ReasonDuplicateStudent.Message())
	}

	student := model.Student{
		StudentNumber: req.StudentNumber,
		FirstName:     req.FirstName,
		MiddleName:    req.MiddleName,
		LastName:      req.LastName,
		DateEnrolled:  dateEnrolled,
		IsActive:      true,
	}
	if err := h.db.Create(&student).Error; err != nil {
		// The unique index is the last line of defense under races.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return response.Conflict(c, roster.ReasonDuplicateStudent.Message())
		}
		return response.InternalServerError(c, "Failed to create student")
	}

	return response.Created(c, student)
}

// UpdateStudent handles PUT /api/v1/students/:id
func (h *StudentHandler) UpdateStudent(c *fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateStudentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var student model.Student
	if err := h.db.First(&student, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Student not found")
		}
		return response.InternalServerError(c, "Failed to fetch student")
	}

	if req.FirstName != "" {
		student.FirstName = req.FirstName
	}
	if req.MiddleName != nil {
		student.MiddleName = *req.MiddleName
	}
	if req.LastName != "" {
		student.LastName = req.LastName
	}
	if req.IsActive != nil {
		student.IsActive = *req.IsActive
	}
	if err := h.db.Save(&student).Error; err != nil {
		return response.InternalServerError(c, "Failed to update student")
	}

	return response.Success(c, student)
}

// DeleteStudent handles DELETE /api/v1/students/:id (soft delete).
func (h *StudentHandler) DeleteStudent(c *fiber.Ctx) error {
	id := c.Params("id")

	var student model.Student
	if err := h.db.First(&student, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Student not found")
		}
		return response.InternalServerError(c, "Failed to fetch student")
	}

	if err := h.db.Model(&student).Association("Sections").Clear(); err != nil {
		return response.InternalServerError(c, "Failed to clear student enrollments")
	}
	if err := h.db.Delete(&student).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete student")
	}

	return response.NoContent(c)
}
