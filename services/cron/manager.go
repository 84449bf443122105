package cron

import (
	"log"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// CronManager manages all scheduled maintenance jobs
type CronManager struct {
	cron          *cron.Cron
	db            *gorm.DB
	retentionDays int
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB, retentionDays int) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:          c,
		db:            db,
		retentionDays: retentionDays,
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	log.Println("Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Println("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// Daily at 02:00: purge import jobs past retention
	_, err := m.cron.AddFunc("0 0 2 * * *", func() {
		m.logJobStart("purge_expired_import_jobs")
		m.PurgeExpiredImportJobs()
	})
	if err != nil {
		return err
	}

	// Daily at 03:00: hard-delete records soft-deleted long ago
	_, err = m.cron.AddFunc("0 0 3 * * *", func() {
		m.logJobStart("purge_soft_deleted_records")
		m.PurgeSoftDeletedRecords()
	})
	if err != nil {
		return err
	}

	return nil
}

func (m *CronManager) logJobStart(name string) {
	log.Printf("[CRON] %s started", name)
}

func (m *CronManager) logJobComplete(name, detail string) {
	log.Printf("[CRON] %s completed: %s", name, detail)
}

func (m *CronManager) logJobError(name string, err error) {
	log.Printf("[CRON] %s failed: %v", name, err)
}
