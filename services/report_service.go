package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gradekeeper/api/model"
	"github.com/gradekeeper/api/roster"
	"github.com/gradekeeper/api/utils/cache"
	"gorm.io/gorm"
)

// ErrReportNotFound is returned when a token matches neither the cache nor a
// recorded import job.
var ErrReportNotFound = errors.New("failure report not found")

// ReportService hands out import failure reports by token. Fresh reports
// live in Redis with a short TTL; once expired they are rebuilt from the
// persisted ImportJob row.
type ReportService struct {
	db    *gorm.DB
	cache *cache.RedisCache
	ttl   time.Duration
}

// NewReportService creates the report service. cache may be nil, in which
// case every fetch falls through to the job table.
func NewReportService(db *gorm.DB, c *cache.RedisCache, ttl time.Duration) *ReportService {
	return &ReportService{db: db, cache: c, ttl: ttl}
}

func reportKey(token string) string {
	return "import-report:" + token
}

// Cache parks a rendered report under its token.
func (s *ReportService) Cache(ctx context.Context, token, report string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Set(ctx, reportKey(token), report, s.ttl)
}

// Fetch returns the report for a token, rebuilding it from the import job
// when the cached copy has expired.
func (s *ReportService) Fetch(ctx context.Context, token string) (string, error) {
	if s.cache != nil {
		report, err := s.cache.Get(ctx, reportKey(token))
		if err == nil {
			return report, nil
		}
		if !errors.Is(err, cache.ErrNotFound) {
			return "", fmt.Errorf("reading cached report: %w", err)
		}
	}

	var job model.ImportJob
	err := s.db.WithContext(ctx).Where("report_token = ?", token).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrReportNotFound
		}
		return "", fmt.Errorf("fetching import job: %w", err)
	}

	var failures []roster.RowFailure
	if len(job.Failures) > 0 {
		if err := json.Unmarshal(job.Failures, &failures); err != nil {
			return "", fmt.Errorf("decoding recorded failures: %w", err)
		}
	}
	return roster.BuildReport(failures), nil
}
