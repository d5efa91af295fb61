package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/newsrewards-backend/internal/models"
	"gorm.io/gorm"
)

// SystemLogRetention is how long system_logs rows are kept.
const SystemLogRetention = 30 * 24 * time.Hour

// PruneSystemLogs deletes system_logs rows older than retention relative to now.
// It is run by the scheduler as the system-log-retention job.
func PruneSystemLogs(ctx context.Context, db *gorm.DB, now time.Time, retention time.Duration) (int64, error) {
	cutoff := now.Add(-retention)
	result := db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("prune system logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
