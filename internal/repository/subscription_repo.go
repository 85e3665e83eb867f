package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/adblock-engine/internal/models"
	"gorm.io/gorm"
)

const filterBatchSize = 1000

// subscriptionRepository implements SubscriptionRepository using GORM.
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// GetAll retrieves all subscriptions with their filters in list order.
func (r *subscriptionRepository) GetAll(ctx context.Context) ([]*models.Subscription, error) {
	var records []SubscriptionRecord
	if err := r.db.WithContext(ctx).Order("position ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}

	var filters []FilterRecord
	if err := r.db.WithContext(ctx).Order("subscription_id ASC, position ASC").Find(&filters).Error; err != nil {
		return nil, fmt.Errorf("listing filters: %w", err)
	}

	bySub := make(map[models.ULID][]FilterRecord, len(records))
	for _, f := range filters {
		bySub[f.SubscriptionID] = append(bySub[f.SubscriptionID], f)
	}

	subs := make([]*models.Subscription, 0, len(records))
	for i := range records {
		subs = append(subs, records[i].toModel(bySub[records[i].ID]))
	}
	return subs, nil
}

// GetByURL retrieves a subscription by URL.
func (r *subscriptionRepository) GetByURL(ctx context.Context, url string) (*models.Subscription, error) {
	var record SubscriptionRecord
	if err := r.db.WithContext(ctx).Where("url = ?", url).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting subscription by url: %w", err)
	}

	var filters []FilterRecord
	if err := r.db.WithContext(ctx).
		Where("subscription_id = ?", record.ID).
		Order("position ASC").
		Find(&filters).Error; err != nil {
		return nil, fmt.Errorf("getting subscription filters: %w", err)
	}
	return record.toModel(filters), nil
}

// Save creates or replaces a subscription including its filters.
func (r *subscriptionRepository) Save(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := r.upsert(tx, sub)
		if err != nil {
			return err
		}

		if err := tx.Where("subscription_id = ?", record.ID).Delete(&FilterRecord{}).Error; err != nil {
			return fmt.Errorf("clearing filters: %w", err)
		}
		if len(sub.Filters) == 0 {
			return nil
		}

		rows := make([]FilterRecord, len(sub.Filters))
		for i, f := range sub.Filters {
			rows[i] = FilterRecord{SubscriptionID: record.ID, Position: i, Text: f.Text}
		}
		if err := tx.CreateInBatches(rows, filterBatchSize).Error; err != nil {
			return fmt.Errorf("storing filters: %w", err)
		}
		return nil
	})
}

// SaveMetadata updates everything but the filters of a subscription.
func (r *subscriptionRepository) SaveMetadata(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := r.upsert(tx, sub)
		return err
	})
}

// upsert writes the subscription row, keeping ID and position of an
// existing row and appending new ones at the end.
func (r *subscriptionRepository) upsert(tx *gorm.DB, sub *models.Subscription) (*SubscriptionRecord, error) {
	record := toRecord(sub)

	var existing SubscriptionRecord
	err := tx.Where("url = ?", sub.URL).First(&existing).Error
	switch {
	case err == nil:
		record.ID = existing.ID
		record.Position = existing.Position
		record.CreatedAt = existing.CreatedAt
		if err := tx.Save(record).Error; err != nil {
			return nil, fmt.Errorf("updating subscription: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		var maxPosition int
		if err := tx.Model(&SubscriptionRecord{}).
			Select("COALESCE(MAX(position), 0)").
			Scan(&maxPosition).Error; err != nil {
			return nil, fmt.Errorf("finding last position: %w", err)
		}
		record.Position = maxPosition + 1
		if err := tx.Create(record).Error; err != nil {
			return nil, fmt.Errorf("creating subscription: %w", err)
		}
	default:
		return nil, fmt.Errorf("getting subscription by url: %w", err)
	}
	return record, nil
}

// Delete deletes a subscription and its filters by URL.
func (r *subscriptionRepository) Delete(ctx context.Context, url string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record SubscriptionRecord
		if err := tx.Where("url = ?", url).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("getting subscription by url: %w", err)
		}
		if err := tx.Where("subscription_id = ?", record.ID).Delete(&FilterRecord{}).Error; err != nil {
			return fmt.Errorf("deleting filters: %w", err)
		}
		if err := tx.Delete(&record).Error; err != nil {
			return fmt.Errorf("deleting subscription: %w", err)
		}
		return nil
	})
}

// Count returns the number of stored subscriptions.
func (r *subscriptionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&SubscriptionRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting subscriptions: %w", err)
	}
	return count, nil
}

// Ensure subscriptionRepository implements SubscriptionRepository.
var _ SubscriptionRepository = (*subscriptionRepository)(nil)
