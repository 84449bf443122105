package roster

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gradekeeper/api/model"
	"github.com/gradekeeper/api/roster"
	"github.com/gradekeeper/api/services"
	"github.com/gradekeeper/api/utils/response"
	"github.com/gradekeeper/api/utils/validation"
	"gorm.io/gorm"
)

const maxPayloadBytes = 5 << 20

// ImportHandler handles bulk roster imports and failure-report downloads
type ImportHandler struct {
	db        *gorm.DB
	validator *validation.Validator
	imports   *services.ImportService
	reports   *services.ReportService
}

// NewImportHandler creates a new import handler
func NewImportHandler(db *gorm.DB, imports *services.ImportService, reports *services.ReportService) *ImportHandler {
	return &ImportHandler{
		db:        db,
		validator: validation.NewValidator(),
		imports:   imports,
		reports:   reports,
	}
}

// ImportRosterRequest is the JSON request body for an inline import. The
// same fields arrive as form values when the payload is a multipart upload.
type ImportRosterRequest struct {
	Source     string `json:"source" validate:"required,oneof=pipe comma json"`
	DateFormat string `json:"date_format" validate:"required,oneof=MM/DD/YYYY DD/MM/YYYY"`
	Payload    string `json:"payload" validate:"required"`
}

// ImportRoster handles POST /api/v1/sections/:section_id/import. Accepts
// either a JSON body or a multipart form with a "file" part plus "source"
// and "date_format" fields.
func (h *ImportHandler) ImportRoster(c *fiber.Ctx) error {
	sectionID, err := strconv.ParseUint(c.Params("section_id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid section ID")
	}

	var req ImportRosterRequest
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		req, err = h.multipartRequest(c)
		if err != nil {
			return response.BadRequest(c, err.Error())
		}
	} else if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}
	if len(req.Payload) > maxPayloadBytes {
		return response.BadRequest(c, "Payload too large")
	}

	result, err := h.imports.Import(c.Context(), services.ImportRequest{
		SectionID:  uint(sectionID),
		Source:     model.ImportSource(req.Source),
		DateFormat: roster.DateFormat(req.DateFormat),
		Payload:    []byte(req.Payload),
	})
	if err != nil {
		if errors.Is(err, services.ErrSectionNotFound) {
			return response.NotFound(c, "Section not found")
		}
		if errors.Is(err, roster.ErrInvalidPayload) {
			return response.BadRequest(c, "Invalid JSON format")
		}
		return response.InternalServerError(c, "Import failed: "+err.Error())
	}

	message := fmt.Sprintf("%d student(s) successfully imported", result.SuccessCount)
	if len(result.Failures) > 0 {
		message += fmt.Sprintf(", %d row(s) failed", len(result.Failures))
	}
	return response.SuccessWithMessage(c, message, result)
}

func (h *ImportHandler) multipartRequest(c *fiber.Ctx) (ImportRosterRequest, error) {
	var req ImportRosterRequest

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return req, errors.New("missing file upload")
	}
	if fileHeader.Size == 0 {
		return req, errors.New("no file uploaded")
	}
	if fileHeader.Size > maxPayloadBytes {
		return req, errors.New("file too large")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return req, errors.New("unable to read file upload")
	}
	defer f.Close()

	payload, err := io.ReadAll(f)
	if err != nil {
		return req, errors.New("unable to read file upload")
	}

	req.Source = c.FormValue("source")
	req.DateFormat = c.FormValue("date_format")
	req.Payload = string(payload)
	return req, nil
}

// ListImportJobs handles GET /api/v1/imports, optionally filtered by
// section_id.
func (h *ImportHandler) ListImportJobs(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))

	query := h.db.Model(&model.ImportJob{})
	if sectionID := c.Query("section_id"); sectionID != "" {
		query = query.Where("section_id = ?", sectionID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count import jobs")
	}

	pagination := response.CalculatePagination(page, limit, total)
	offset := (pagination.CurrentPage - 1) * pagination.PerPage

	var jobs []model.ImportJob
	if err := query.Order("created_at DESC").
		Limit(pagination.PerPage).
		Offset(offset).
		Find(&jobs).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch import jobs")
	}

	return response.Paginated(c, jobs, pagination)
}

// GetImportJob handles GET /api/v1/imports/:job_id
func (h *ImportHandler) GetImportJob(c *fiber.Ctx) error {
	jobID := c.Params("job_id")

	var job model.ImportJob
	if err := h.db.Preload("Section.Subject").First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Import job not found")
		}
		return response.InternalServerError(c, "Failed to fetch import job")
	}

	return response.Success(c, job)
}

// DownloadReport handles GET /api/v1/imports/reports/:token. Streams the
// failure report back as a downloadable CSV artifact.
func (h *ImportHandler) DownloadReport(c *fiber.Ctx) error {
	token := c.Params("token")

	report, err := h.reports.Fetch(c.Context(), token)
	if err != nil {
		if errors.Is(err, services.ErrReportNotFound) {
			return response.NotFound(c, "Failure report not found")
		}
		return response.InternalServerError(c, "Failed to fetch failure report")
	}

	filename := fmt.Sprintf("FailedUploads-%s.csv", time.Now().Format("20060102-150405"))
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.SendString(report)
}
