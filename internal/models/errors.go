package models

import "errors"

// Errors returned by the engine components
var (
	ErrInvalidFilterText     = errors.New("invalid filter text")
	ErrDuplicateSubscription = errors.New("subscription already listed")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrInvalidListHeader     = errors.New("invalid filter list header")
	ErrChecksumMismatch      = errors.New("filter list checksum mismatch")
	ErrUnsupportedURL        = errors.New("unsupported subscription url")
)

// Preference errors
var (
	ErrUnknownPreference = errors.New("unknown preference")
	ErrPreferenceType    = errors.New("preference value has the wrong type")
)
