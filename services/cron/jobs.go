package cron

import (
	"fmt"
	"time"

	"github.com/gradekeeper/api/model"
)

// PurgeExpiredImportJobs deletes import job records older than the retention
// window. Their cached reports expire on their own; this removes the
// persisted fallback copies.
func (m *CronManager) PurgeExpiredImportJobs() {
	jobName := "purge_expired_import_jobs"
	cutoff := time.Now().AddDate(0, 0, -m.retentionDays)

	res := m.db.Unscoped().
		Where("created_at < ?", cutoff).
		Delete(&model.ImportJob{})
	if res.Error != nil {
		m.logJobError(jobName, fmt.Errorf("deleting import jobs: %w", res.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("removed %d import jobs older than %s", res.RowsAffected, cutoff.Format("2006-01-02")))
}

// PurgeSoftDeletedRecords hard-deletes subjects, sections, and students that
// have sat in the soft-deleted state for more than 30 days.
func (m *CronManager) PurgeSoftDeletedRecords() {
	jobName := "purge_soft_deleted_records"
	cutoff := time.Now().AddDate(0, 0, -30)

	var total int64
	for _, target := range []interface{}{
		&model.Student{},
		&model.Section{},
		&model.Subject{},
	} {
		res := m.db.Unscoped().
			Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
			Delete(target)
		if res.Error != nil {
			m.logJobError(jobName, fmt.Errorf("purging %T: %w", target, res.Error))
			return
		}
		total += res.RowsAffected
	}

	m.logJobComplete(jobName, fmt.Sprintf("hard-deleted %d records", total))
}
