package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/adblock-engine/internal/models"
	"gopkg.in/yaml.v3"
)

// Source provides the current notifications
type Source interface {
	Notifications(ctx context.Context) ([]models.Notification, error)
}

// FileSource reads notifications from a YAML or JSON file:
//
//	notifications:
//	  - id: update-available
//	    type: information
//	    title: {en-US: "Update available"}
//	    message: {en-US: "A new version is available."}
type FileSource struct {
	Path string
}

type fileDocument struct {
	Notifications []models.Notification `json:"notifications" yaml:"notifications"`
}

// Notifications reads the file. A missing file yields no notifications.
func (s FileSource) Notifications(_ context.Context) ([]models.Notification, error) {
	if s.Path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading notifications: %w", err)
	}

	var doc fileDocument
	if strings.EqualFold(filepath.Ext(s.Path), ".json") {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing notifications %s: %w", s.Path, err)
	}

	valid := doc.Notifications[:0]
	for _, n := range doc.Notifications {
		if n.ID == "" {
			continue
		}
		if n.Type == "" {
			n.Type = models.NotificationInformation
		}
		valid = append(valid, n)
	}
	return valid, nil
}

// StaticSource serves a fixed list
type StaticSource []models.Notification

// Notifications returns the list
func (s StaticSource) Notifications(_ context.Context) ([]models.Notification, error) {
	return s, nil
}
