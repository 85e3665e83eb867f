package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// preferenceRepository implements PreferenceRepository using GORM.
type preferenceRepository struct {
	db *gorm.DB
}

// NewPreferenceRepository creates a new PreferenceRepository.
func NewPreferenceRepository(db *gorm.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

// GetAll retrieves all stored preference values.
func (r *preferenceRepository) GetAll(ctx context.Context) (map[string]string, error) {
	var records []PreferenceRecord
	if err := r.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing preferences: %w", err)
	}
	values := make(map[string]string, len(records))
	for _, rec := range records {
		values[rec.Key] = rec.Value
	}
	return values, nil
}

// Set stores the JSON encoded value of a preference.
func (r *preferenceRepository) Set(ctx context.Context, key, value string) error {
	record := PreferenceRecord{Key: key, Value: value, UpdatedAt: time.Now()}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return fmt.Errorf("storing preference %s: %w", key, err)
	}
	return nil
}

// Delete removes a stored preference.
func (r *preferenceRepository) Delete(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Delete(&PreferenceRecord{Key: key}).Error; err != nil {
		return fmt.Errorf("deleting preference %s: %w", key, err)
	}
	return nil
}

// Ensure preferenceRepository implements PreferenceRepository.
var _ PreferenceRepository = (*preferenceRepository)(nil)
