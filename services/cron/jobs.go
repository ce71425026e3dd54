package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/lingodeck/api/model"
)

// SyncPendingProgress flushes queued offline progress writes to the
// backend. Runs every 5 minutes so a backend outage only delays, never
// loses, learner progress.
func (m *CronManager) SyncPendingProgress() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	jobName := "sync_pending_progress"

	report, err := m.progress.SyncAll(ctx)
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to enumerate pending queues: %w", err))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf(
		"Synced %d updates, %d remaining, degraded=%t",
		report.Synced, report.Remaining, report.Degraded))
}

// CleanupStaleSessions destroys playback sessions with no client
// activity for 30 minutes. Runs every 10 minutes.
func (m *CronManager) CleanupStaleSessions() {
	jobName := "cleanup_stale_sessions"

	destroyed := m.playback.CleanupStale(30 * time.Minute)

	m.logJobComplete(jobName, fmt.Sprintf(
		"Destroyed %d stale sessions, %d still active", destroyed, m.playback.ActiveSessions()))
}

// ExpireStalePayments marks payments stuck in pending for more than 24
// hours as failed, so the gate stops reporting payment_pending for
// checkouts the user abandoned. Runs hourly.
func (m *CronManager) ExpireStalePayments() {
	jobName := "expire_stale_payments"

	cutoff := time.Now().Add(-24 * time.Hour)

	result := m.db.Model(&model.CoursePayment{}).
		Where("status = ? AND created_at < ?", model.PaymentPending, cutoff).
		Update("status", model.PaymentFailed)

	if result.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to expire stale payments: %w", result.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Expired %d stale pending payments", result.RowsAffected))
}

// CleanupOldData removes old operational data to keep the database
// clean. Runs daily at 2 AM.
func (m *CronManager) CleanupOldData() {
	jobName := "cleanup_old_data"

	totalCleaned := 0

	// 1. Clean up old cron job logs (keep only last 90 days)
	cutoffLogs := time.Now().Add(-90 * 24 * time.Hour)
	result := m.db.Unscoped().
		Where("created_at < ?", cutoffLogs).
		Delete(&model.CronJobLog{})
	if result.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to clean cron logs: %w", result.Error))
		return
	}
	totalCleaned += int(result.RowsAffected)

	// 2. Clean up failed payments older than a year
	cutoffPayments := time.Now().Add(-365 * 24 * time.Hour)
	result = m.db.
		Where("status = ? AND created_at < ?", model.PaymentFailed, cutoffPayments).
		Delete(&model.CoursePayment{})
	if result.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to clean failed payments: %w", result.Error))
		return
	}
	totalCleaned += int(result.RowsAffected)

	m.logJobComplete(jobName, fmt.Sprintf("Cleaned up %d total records", totalCleaned))
}
