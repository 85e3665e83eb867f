package main

import (
	"os"
	"path/filepath"
)

const defaultConfig = `# adblock-engine configuration

[http]
timeout = "30s"
retries = 3
max_size = 33554432

[logging]
level = "warn"   # debug, info, warn, error
format = "text"  # text, json

[database]
driver = "sqlite"  # sqlite, postgres, mysql
dsn = "adblock-engine.db"
log_level = "warn"

# Automatic subscription updates
[sync]
schedule = "@every 1h"
default_expiration = "120h"
max_concurrent = 4

[server]
host = "127.0.0.1"
port = 8080

[subscriptions]
exceptions_url = "https://easylist-downloads.adblockplus.org/exceptionrules.txt"
locale = "en-US"
# notifications_file = "./configs/notifications.yaml"

# Filter lists subscribed to on the first run
# Set enabled = false to skip a list

[[lists]]
name = "EasyList"
url = "https://easylist-downloads.adblockplus.org/easylist.txt"
enabled = true

[[lists]]
name = "EasyPrivacy"
url = "https://easylist-downloads.adblockplus.org/easyprivacy.txt"
enabled = false
`

func writeFile(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}
