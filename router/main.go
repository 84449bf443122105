package router

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gradekeeper/api/config"
	"github.com/gradekeeper/api/database"
	"github.com/gradekeeper/api/handlers"
	roster_handlers "github.com/gradekeeper/api/handlers/roster"
	section_handlers "github.com/gradekeeper/api/handlers/section"
	student_handlers "github.com/gradekeeper/api/handlers/student"
	subject_handlers "github.com/gradekeeper/api/handlers/subject"
	"github.com/gradekeeper/api/services"
	"github.com/gradekeeper/api/services/objectstore"
	"github.com/gradekeeper/api/utils/cache"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, store database.Storage) {
	// Get DB instance (type assert from interface)
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	env, err := config.Get()
	if err != nil {
		log.Fatal("Failed to load configuration")
	}

	// Redis cache for failure-report tokens. Optional: without it reports
	// are rebuilt from the import job table on every download.
	var redisCache *cache.RedisCache
	if env.REDIS_URL != "" {
		redisCache, err = cache.NewRedisCache(env.REDIS_URL)
		if err != nil {
			log.Printf("Warning: Failed to connect to Redis: %v. Report downloads will rebuild from the database.", err)
		}
	}

	// Object storage archive for raw uploads. Optional.
	archive, err := objectstore.NewClientFromEnv()
	if err != nil {
		log.Printf("Upload archiving disabled: %v", err)
		archive = nil
	}

	// Services
	enrollmentService := services.NewEnrollmentService(db)
	reportService := services.NewReportService(db, redisCache, time.Duration(env.REPORT_TTL_MINUTES)*time.Minute)
	importService := services.NewImportService(db, reportService, archive)

	// Handlers
	subjectHandler := subject_handlers.NewSubjectHandler(db)
	sectionHandler := section_handlers.NewSectionHandler(db, enrollmentService)
	studentHandler := student_handlers.NewStudentHandler(db)
	importHandler := roster_handlers.NewImportHandler(db, importService, reportService)

	app.Get("/health", handlers.HealthCheck(store))

	v1 := app.Group("/api/v1")

	// Subjects
	subjects := v1.Group("/subjects")
	subjects.Get("/", subjectHandler.ListSubjects)
	subjects.Post("/", subjectHandler.CreateSubject)
	subjects.Get("/:id", subjectHandler.GetSubject)
	subjects.Put("/:id", subjectHandler.UpdateSubject)
	subjects.Delete("/:id", subjectHandler.DeleteSubject)

	// Sections and roster management
	sections := v1.Group("/sections")
	sections.Get("/", sectionHandler.ListSections)
	sections.Post("/", sectionHandler.CreateSection)
	sections.Get("/:id", sectionHandler.GetSection)
	sections.Delete("/:id", sectionHandler.DeleteSection)
	sections.Post("/:id/students", sectionHandler.AddStudents)
	sections.Delete("/:id/students/:student_id", sectionHandler.RemoveStudent)
	sections.Post("/:section_id/import", importHandler.ImportRoster)

	// Students
	students := v1.Group("/students")
	students.Get("/", studentHandler.ListStudents)
	students.Post("/", studentHandler.CreateStudent)
	students.Get("/:id", studentHandler.GetStudent)
	students.Put("/:id", studentHandler.UpdateStudent)
	students.Delete("/:id", studentHandler.DeleteStudent)

	// Import jobs and failure reports
	imports := v1.Group("/imports")
	imports.Get("/", importHandler.ListImportJobs)
	imports.Get("/reports/:token", importHandler.DownloadReport)
	imports.Get("/:job_id", importHandler.GetImportJob)
}
