package task

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/metrics"
	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/model"
)

const moderationSweepName = "moderation_sweep"

// SweepConfig controls the moderation sweep. A zero SpamRetention keeps spam submissions forever.
type SweepConfig struct {
	SpamRetention time.Duration
}

// ModerationSweep publishes the moderation backlog per status and prunes expired spam submissions.
type ModerationSweep struct {
	database *gorm.DB
	logger   *zap.Logger
	config   SweepConfig
	clock    func() time.Time
}

func NewModerationSweep(database *gorm.DB, logger *zap.Logger, config SweepConfig) *ModerationSweep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModerationSweep{
		database: database,
		logger:   logger,
		config:   config,
		clock:    time.Now,
	}
}

func (sweep *ModerationSweep) Name() string {
	return moderationSweepName
}

func (sweep *ModerationSweep) Run(ctx context.Context) error {
	if err := sweep.publishBacklog(ctx); err != nil {
		return err
	}
	return sweep.pruneSpam(ctx)
}

func (sweep *ModerationSweep) publishBacklog(ctx context.Context) error {
	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	if err := sweep.database.WithContext(ctx).
		Model(&model.Testimonial{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return err
	}

	backlog := map[model.TestimonialStatus]int64{
		model.StatusPending:  0,
		model.StatusApproved: 0,
		model.StatusRejected: 0,
		model.StatusFlagged:  0,
	}
	for _, count := range counts {
		backlog[model.TestimonialStatus(count.Status)] = count.Count
	}
	for status, count := range backlog {
		metrics.SetModerationBacklog(string(status), count)
	}
	return nil
}

func (sweep *ModerationSweep) pruneSpam(ctx context.Context) error {
	if sweep.config.SpamRetention <= 0 {
		return nil
	}
	cutoff := sweep.clock().UTC().Add(-sweep.config.SpamRetention)
	result := sweep.database.WithContext(ctx).
		Where("is_spam = ? AND created_at < ?", true, cutoff).
		Delete(&model.FormSubmission{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		sweep.logger.Info("spam_submissions_pruned", zap.Int64("count", result.RowsAffected), zap.Time("cutoff", cutoff))
	}
	return nil
}
