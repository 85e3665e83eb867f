package repository

import (
	"strings"
	"time"

	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/parser"
	"gorm.io/gorm"
)

// BaseRecord provides common fields for records with ULID as primary key.
type BaseRecord struct {
	ID        models.ULID `gorm:"primarykey;type:varchar(26)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeCreate generates a ULID if not already set.
func (b *BaseRecord) BeforeCreate(tx *gorm.DB) error {
	if b.ID.IsZero() {
		b.ID = models.NewULID()
	}
	return nil
}

// SubscriptionRecord is the stored form of a subscription.
type SubscriptionRecord struct {
	BaseRecord
	URL            string `gorm:"uniqueIndex;size:512;not null"`
	Position       int    `gorm:"index"`
	Title          string
	Homepage       string
	Author         string
	Prefixes       string // comma separated
	Specialization string
	Defaults       string // comma separated categories
	Disabled       bool
	LastDownload   *time.Time
	LastCheck      *time.Time
	Expires        *time.Time
	Version        string
	DownloadStatus string
	ErrorCount     int
}

// TableName overrides the table name.
func (SubscriptionRecord) TableName() string { return "subscriptions" }

// FilterRecord is one filter line of a subscription.
type FilterRecord struct {
	ID             uint        `gorm:"primarykey"`
	SubscriptionID models.ULID `gorm:"index;type:varchar(26);not null"`
	Position       int
	Text           string `gorm:"type:text"`
}

// TableName overrides the table name.
func (FilterRecord) TableName() string { return "filters" }

// PreferenceRecord stores a preference override as JSON.
type PreferenceRecord struct {
	Key       string `gorm:"primarykey;size:191"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName overrides the table name.
func (PreferenceRecord) TableName() string { return "preferences" }

// NotificationStateRecord marks a notification as shown.
type NotificationStateRecord struct {
	ID      string `gorm:"primarykey;size:191"`
	ShownAt time.Time
}

// TableName overrides the table name.
func (NotificationStateRecord) TableName() string { return "notification_states" }

// AutoMigrate creates or updates the tables used by the repositories.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&SubscriptionRecord{},
		&FilterRecord{},
		&PreferenceRecord{},
		&NotificationStateRecord{},
	)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeVal(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func joinList(values []string) string {
	return strings.Join(values, ",")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func toRecord(sub *models.Subscription) *SubscriptionRecord {
	return &SubscriptionRecord{
		URL:            sub.URL,
		Title:          sub.Title,
		Homepage:       sub.Homepage,
		Author:         sub.Author,
		Prefixes:       joinList(sub.Prefixes),
		Specialization: sub.Specialization,
		Defaults:       joinList(sub.Defaults),
		Disabled:       sub.Disabled,
		LastDownload:   timePtr(sub.LastDownload),
		LastCheck:      timePtr(sub.LastCheck),
		Expires:        timePtr(sub.Expires),
		Version:        sub.Version,
		DownloadStatus: sub.DownloadStatus,
		ErrorCount:     sub.ErrorCount,
	}
}

func (r *SubscriptionRecord) toModel(filters []FilterRecord) *models.Subscription {
	sub := models.NewSubscription(r.URL)
	sub.Title = r.Title
	sub.Homepage = r.Homepage
	sub.Author = r.Author
	sub.Prefixes = splitList(r.Prefixes)
	sub.Specialization = r.Specialization
	sub.Defaults = splitList(r.Defaults)
	sub.Disabled = r.Disabled
	sub.LastDownload = timeVal(r.LastDownload)
	sub.LastCheck = timeVal(r.LastCheck)
	sub.Expires = timeVal(r.Expires)
	sub.Version = r.Version
	sub.DownloadStatus = r.DownloadStatus
	sub.ErrorCount = r.ErrorCount

	for _, fr := range filters {
		// Texts were valid when stored; skip any the parser no longer accepts
		if f, err := parser.FromText(fr.Text); err == nil {
			sub.Filters = append(sub.Filters, f)
		}
	}
	return &sub
}
