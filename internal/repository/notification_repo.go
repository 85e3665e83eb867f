package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// notificationStateRepository implements NotificationStateRepository using GORM.
type notificationStateRepository struct {
	db *gorm.DB
}

// NewNotificationStateRepository creates a new NotificationStateRepository.
func NewNotificationStateRepository(db *gorm.DB) NotificationStateRepository {
	return &notificationStateRepository{db: db}
}

// ShownAt returns the time each shown notification was first shown.
func (r *notificationStateRepository) ShownAt(ctx context.Context) (map[string]time.Time, error) {
	var records []NotificationStateRecord
	if err := r.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing notification states: %w", err)
	}
	shown := make(map[string]time.Time, len(records))
	for _, rec := range records {
		shown[rec.ID] = rec.ShownAt
	}
	return shown, nil
}

// MarkShown records a notification as shown.
func (r *notificationStateRepository) MarkShown(ctx context.Context, id string, at time.Time) error {
	record := NotificationStateRecord{ID: id, ShownAt: at}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return fmt.Errorf("marking notification %s shown: %w", id, err)
	}
	return nil
}

// Ensure notificationStateRepository implements NotificationStateRepository.
var _ NotificationStateRepository = (*notificationStateRepository)(nil)
