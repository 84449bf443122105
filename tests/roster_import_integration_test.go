package tests

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gradekeeper/api/model"
	"github.com/gradekeeper/api/roster"
	"github.com/gradekeeper/api/services"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// setupTestDB connects to the integration database, migrates the schema,
// and wipes the tables the suite touches.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		getEnvOrDefault("DB_HOST", "localhost"),
		getEnvOrDefault("DB_USER_NAME", "postgres"),
		getEnvOrDefault("DB_PASSWORD", "postgres"),
		getEnvOrDefault("DB_NAME", "gradekeeper_test"),
		getEnvOrDefault("DB_PORT", "5432"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	err = db.AutoMigrate(
		&model.Subject{},
		&model.Section{},
		&model.Student{},
		&model.ImportJob{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	err = db.Exec("TRUNCATE section_students, import_jobs, sections, students, subjects RESTART IDENTITY CASCADE").Error
	if err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}

	return db
}

func createSubject(t *testing.T, db *gorm.DB, name, code string) *model.Subject {
	t.Helper()
	subject := &model.Subject{Name: name, Code: code}
	if err := db.Create(subject).Error; err != nil {
		t.Fatalf("Failed to create subject %s: %v", code, err)
	}
	return subject
}

func createSection(t *testing.T, db *gorm.DB, subject *model.Subject, name string) *model.Section {
	t.Helper()
	section := &model.Section{SubjectID: subject.ID, Name: name}
	if err := db.Create(section).Error; err != nil {
		t.Fatalf("Failed to create section %s: %v", name, err)
	}
	return section
}

func edgeCount(t *testing.T, db *gorm.DB, sectionID uint) int64 {
	t.Helper()
	var n int64
	err := db.Table("section_students").Where("section_id = ?", sectionID).Count(&n).Error
	if err != nil {
		t.Fatalf("Failed to count enrollment edges: %v", err)
	}
	return n
}

func studentCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&model.Student{}).Count(&n).Error; err != nil {
		t.Fatalf("Failed to count students: %v", err)
	}
	return n
}

func TestRosterImportLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	reports := services.NewReportService(db, nil, time.Minute)
	imports := services.NewImportService(db, reports, nil)

	math := createSubject(t, db, "College Algebra", "MATH-101")
	sectionA := createSection(t, db, math, "MATH-101-A")
	sectionB := createSection(t, db, math, "MATH-101-B")

	chem := createSubject(t, db, "General Chemistry", "CHEM-110")
	sectionC := createSection(t, db, chem, "CHEM-110-A")

	t.Run("fresh rows create students and enrollment edges", func(t *testing.T) {
		result, err := imports.Import(ctx, services.ImportRequest{
			SectionID:  sectionA.ID,
			Source:     model.ImportSourcePipe,
			DateFormat: roster.DateFormatMDY,
			Payload:    []byte("1001|DELACRUZ, juan|01/15/2023\n1002|SANTOS, maria|02/20/2023\n"),
		})
		if err != nil {
			t.Fatalf("Import: %v", err)
		}
		if result.SuccessCount != 2 {
			t.Errorf("SuccessCount = %d, want 2", result.SuccessCount)
		}
		if len(result.Failures) != 0 {
			t.Errorf("Failures = %+v, want none", result.Failures)
		}
		if result.Status != model.ImportJobStatusCompleted {
			t.Errorf("Status = %s, want completed", result.Status)
		}
		if got := studentCount(t, db); got != 2 {
			t.Errorf("student count = %d, want 2", got)
		}
		if got := edgeCount(t, db, sectionA.ID); got != 2 {
			t.Errorf("edge count = %d, want 2", got)
		}

		var student model.Student
		if err := db.Where("student_number = ?", "1001").First(&student).Error; err != nil {
			t.Fatalf("student 1001 not found: %v", err)
		}
		if student.LastName != "DELACRUZ" || student.FirstName != "juan" {
			t.Errorf("unexpected student fields: %+v", student)
		}
		want := time.Date(2023, time.January, 15, 0, 0, 0, 0, time.UTC)
		if !student.DateEnrolled.Equal(want) {
			t.Errorf("DateEnrolled = %v, want %v", student.DateEnrolled, want)
		}
		if !student.IsActive {
			t.Error("imported student should be active")
		}
	})

	t.Run("re-importing an enrolled row reports a duplicate", func(t *testing.T) {
		result, err := imports.Import(ctx, services.ImportRequest{
			SectionID:  sectionA.ID,
			Source:     model.ImportSourcePipe,
			DateFormat: roster.DateFormatMDY,
			Payload:    []byte("1001|DELACRUZ, juan|01/15/2023\n"),
		})
		if err != nil {
			t.Fatalf("Import: %v", err)
		}
		if result.SuccessCount != 0 {
			t.Errorf("SuccessCount = %d, want 0", result.SuccessCount)
		}
		if len(result.Failures) != 1 || result.Failures[0].Reason != roster.ReasonAlreadyEnrolledInSection {
			t.Fatalf("Failures = %+v, want one AlreadyEnrolledInSection", result.Failures)
		}
		if got := edgeCount(t, db, sectionA.ID); got != 2 {
			t.Errorf("edge count = %d, want 2 (no duplicate edge)", got)
		}
		if result.ReportToken == "" {
			t.Fatal("expected a report token for a batch with failures")
		}

		report, err := reports.Fetch(ctx, result.ReportToken)
		if err != nil {
			t.Fatalf("Fetch report: %v", err)
		}
		if !strings.HasPrefix(report, roster.ReportHeader) {
			t.Errorf("report missing header: %q", report)
		}
		if !strings.Contains(report, "1001|DELACRUZ, juan|01/15/2023") {
			t.Errorf("report missing original line: %q", report)
		}
	})

	t.Run("same subject sibling section conflicts", func(t *testing.T) {
		result, err := imports.Import(ctx, services.ImportRequest{
			SectionID:  sectionB.ID,
			Source:     model.ImportSourcePipe,
			DateFormat: roster.DateFormatMDY,
			Payload:    []byte("1001|DELACRUZ, juan|01/15/2023\n"),
		})
		if err != nil {
			t.Fatalf("Import: %v", err)
		}
		if result.SuccessCount != 0 {
			t.Errorf("SuccessCount = %d, want 0", result.SuccessCount)
		}
		if len(result.Failures) != 1 || result.Failures[0].Reason != roster.ReasonAlreadyEnrolledInSubject {
			t.Fatalf("Failures = %+v, want one AlreadyEnrolledInSubject", result.Failures)
		}
		if got := edgeCount(t, db, sectionB.ID); got != 0 {
			t.Errorf("edge count = %d, want 0", got)
		}
	})

	t.Run("different subject does not conflict", func(t *testing.T) {
		result, err := imports.Import(ctx, services.ImportRequest{
			SectionID:  sectionC.ID,
			Source:     model.ImportSourcePipe,
			DateFormat: roster.DateFormatMDY,
			Payload:    []byte("1001|DELACRUZ, juan|01/15/2023\n"),
		})
		if err != nil {
			t.Fatalf("Import: %v", err)
		}
		if result.SuccessCount != 1 {
			t.Errorf("SuccessCount = %d, want 1: %+v", result.SuccessCount, result.Failures)
		}
		if got := edgeCount(t, db, sectionC.ID); got != 1 {
			t.Errorf("edge count = %d, want 1", got)
		}
		// Still only the two students from the first batch.
		if got := studentCount(t, db); got != 2 {
			t.Errorf("student count = %d, want 2", got)
		}
	})

	t.Run("malformed rows fail in order without records", func(t *testing.T) {
		before := studentCount(t, db)

		result, err := imports.Import(ctx, services.ImportRequest{
			SectionID:  sectionB.ID,
			Source:     model.ImportSourcePipe,
			DateFormat: roster.DateFormatMDY,
			Payload: []byte(strings.Join([]string{
				"garbage line",
				"1003|REYES pedro|01/15/2023",
				"1004|CRUZ, ana|13/40/2023",
				"1005|LIM, carlo|03/10/2023",
			}, "\n")),
		})
		if err != nil {
			t.Fatalf("Import: %v", err)
		}
		if result.SuccessCount != 1 {
			t.Errorf("SuccessCount = %d, want 1", result.SuccessCount)
		}
		wantReasons := []roster.Reason{
			roster.ReasonInvalidFormat,
			roster.ReasonInvalidName,
			roster.ReasonInvalidDate,
		}
		if len(result.Failures) != len(wantReasons) {
			t.Fatalf("Failures = %+v, want %d", result.Failures, len(wantReasons))
		}
		for i, want := range wantReasons {
			if result.Failures[i].Reason != want {
				t.Errorf("failure %d reason = %s, want %s", i, result.Failures[i].Reason, want)
			}
		}
		// Only the one valid row added a student.
		if got := studentCount(t, db); got != before+1 {
			t.Errorf("student count = %d, want %d", got, before+1)
		}
	})

	t.Run("unknown number with known name is a duplicate person", func(t *testing.T) {
		before := studentCount(t, db)

		result, err := imports.Import(ctx, services.ImportRequest{
			SectionID:  sectionB.ID,
			Source:     model.ImportSourcePipe,
			DateFormat: roster.DateFormatMDY,
			Payload:    []byte("9999|delacruz, JUAN|01/15/2023\n"),
		})
		if err != nil {
			t.Fatalf("Import: %v", err)
		}
		if result.SuccessCount != 0 {
			t.Errorf("SuccessCount = %d, want 0", result.SuccessCount)
		}
		if len(result.Failures) != 1 || result.Failures[0].Reason != roster.ReasonDuplicateStudent {
			t.Fatalf("Failures = %+v, want one DuplicateStudent", result.Failures)
		}
		if got := studentCount(t, db); got != before {
			t.Errorf("student count = %d, want %d (no record created)", got, before)
		}
	})

	t.Run("json payload enrolls into a section", func(t *testing.T) {
		payload := `[{"StudentNumber": "2001", "StudentName": "TAN, liza", "DateEnrolled": "20/03/2023"}]`
		result, err := imports.Import(ctx, services.ImportRequest{
			SectionID:  sectionB.ID,
			Source:     model.ImportSourceJSON,
			DateFormat: roster.DateFormatDMY,
			Payload:    []byte(payload),
		})
		if err != nil {
			t.Fatalf("Import: %v", err)
		}
		if result.SuccessCount != 1 {
			t.Errorf("SuccessCount = %d, want 1: %+v", result.SuccessCount, result.Failures)
		}
	})

	t.Run("unknown section is a terminal error", func(t *testing.T) {
		_, err := imports.Import(ctx, services.ImportRequest{
			SectionID:  99999,
			Source:     model.ImportSourcePipe,
			DateFormat: roster.DateFormatMDY,
			Payload:    []byte("1001|DELACRUZ, juan|01/15/2023\n"),
		})
		if err != services.ErrSectionNotFound {
			t.Errorf("err = %v, want ErrSectionNotFound", err)
		}
	})

	t.Run("soft deleted number is a row failure not a batch error", func(t *testing.T) {
		var student model.Student
		if err := db.Where("student_number = ?", "1002").First(&student).Error; err != nil {
			t.Fatalf("student 1002 not found: %v", err)
		}
		if err := db.Model(&student).Association("Sections").Clear(); err != nil {
			t.Fatalf("clearing enrollments: %v", err)
		}
		if err := db.Delete(&student).Error; err != nil {
			t.Fatalf("soft-deleting student: %v", err)
		}

		before := studentCount(t, db)

		// The deleted number still occupies the unique index; the row must
		// fail on its own and leave the rest of the batch intact.
		result, err := imports.Import(ctx, services.ImportRequest{
			SectionID:  sectionC.ID,
			Source:     model.ImportSourcePipe,
			DateFormat: roster.DateFormatMDY,
			Payload:    []byte("1002|SANTOS, maria|02/20/2023\n1006|GARCIA, mia|04/01/2023\n"),
		})
		if err != nil {
			t.Fatalf("Import: %v", err)
		}
		if result.SuccessCount != 1 {
			t.Errorf("SuccessCount = %d, want 1: %+v", result.SuccessCount, result.Failures)
		}
		if len(result.Failures) != 1 || result.Failures[0].Reason != roster.ReasonDuplicateStudent {
			t.Fatalf("Failures = %+v, want one DuplicateStudent", result.Failures)
		}
		if got := studentCount(t, db); got != before+1 {
			t.Errorf("student count = %d, want %d", got, before+1)
		}
	})
}

func TestStudentNumberUniqueAtStore(t *testing.T) {
	db := setupTestDB(t)

	first := model.Student{
		StudentNumber: "3001",
		FirstName:     "ana",
		LastName:      "CRUZ",
		DateEnrolled:  time.Now(),
		IsActive:      true,
	}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("creating first student: %v", err)
	}

	second := model.Student{
		StudentNumber: "3001",
		FirstName:     "different",
		LastName:      "PERSON",
		DateEnrolled:  time.Now(),
		IsActive:      true,
	}
	if err := db.Create(&second).Error; err == nil {
		t.Error("expected unique index violation for duplicate student number")
	}
}

func TestEnrollmentServiceDirect(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	enrollments := services.NewEnrollmentService(db)

	math := createSubject(t, db, "College Algebra", "MATH-101")
	sectionA := createSection(t, db, math, "MATH-101-A")
	sectionB := createSection(t, db, math, "MATH-101-B")

	student := model.Student{
		StudentNumber: "4001",
		FirstName:     "juan",
		LastName:      "DELACRUZ",
		DateEnrolled:  time.Now(),
		IsActive:      true,
	}
	if err := db.Create(&student).Error; err != nil {
		t.Fatalf("creating student: %v", err)
	}

	if err := enrollments.Enroll(ctx, sectionA, &student); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if err := enrollments.Enroll(ctx, sectionA, &student); err != services.ErrAlreadyEnrolledInSection {
		t.Errorf("second Enroll = %v, want ErrAlreadyEnrolledInSection", err)
	}
	if err := enrollments.Enroll(ctx, sectionB, &student); err != services.ErrAlreadyEnrolledInSubject {
		t.Errorf("sibling Enroll = %v, want ErrAlreadyEnrolledInSubject", err)
	}

	// Removal is idempotent and frees the subject for re-enrollment.
	if err := enrollments.Remove(ctx, sectionA, &student); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := enrollments.Remove(ctx, sectionA, &student); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
	if err := enrollments.Enroll(ctx, sectionB, &student); err != nil {
		t.Errorf("Enroll after removal: %v", err)
	}
}
