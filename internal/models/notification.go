package models

// NotificationType orders notifications by urgency
type NotificationType string

const (
	NotificationInformation NotificationType = "information"
	NotificationQuestion    NotificationType = "question"
	NotificationCritical    NotificationType = "critical"
)

// Priority returns a higher value for more urgent notification types
func (t NotificationType) Priority() int {
	switch t {
	case NotificationCritical:
		return 2
	case NotificationQuestion:
		return 1
	}
	return 0
}

// Notification is a message for the user with localized texts
type Notification struct {
	ID      string            `json:"id" yaml:"id"`
	Type    NotificationType  `json:"type" yaml:"type"`
	Title   map[string]string `json:"title" yaml:"title"`     // locale -> text
	Message map[string]string `json:"message" yaml:"message"` // locale -> text
	Links   []string          `json:"links,omitempty" yaml:"links,omitempty"`

	// URLFilters restricts the notification to pages on these domains
	URLFilters []string `json:"urlFilters,omitempty" yaml:"url_filters,omitempty"`
	// Targets restricts the notification to matching applications; any one suffices
	Targets []NotificationTarget `json:"targets,omitempty" yaml:"targets,omitempty"`
}

// NotificationTarget restricts a notification to application and platform
// versions. Empty fields match anything.
type NotificationTarget struct {
	Application           string `json:"application,omitempty" yaml:"application,omitempty"`
	ApplicationMinVersion string `json:"applicationMinVersion,omitempty" yaml:"application_min_version,omitempty"`
	ApplicationMaxVersion string `json:"applicationMaxVersion,omitempty" yaml:"application_max_version,omitempty"`
	Platform              string `json:"platform,omitempty" yaml:"platform,omitempty"`
	PlatformMinVersion    string `json:"platformMinVersion,omitempty" yaml:"platform_min_version,omitempty"`
	PlatformMaxVersion    string `json:"platformMaxVersion,omitempty" yaml:"platform_max_version,omitempty"`
}

// AppInfo identifies the host application for notification targeting
type AppInfo struct {
	Application        string
	ApplicationVersion string
	Platform           string
	PlatformVersion    string
}
