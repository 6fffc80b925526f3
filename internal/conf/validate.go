package conf

import (
	"fmt"
	"strconv"
)

// ValidateSettings checks the loaded settings for configuration errors that
// would prevent the application from starting correctly.
func ValidateSettings(settings *Settings) error {
	if settings.WebServer.Enabled {
		if settings.WebServer.Port == "" {
			return fmt.Errorf("webserver.port must not be empty")
		}
		if port, err := strconv.Atoi(settings.WebServer.Port); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("webserver.port must be a valid port number, got %q", settings.WebServer.Port)
		}
	}

	if !settings.Database.SQLite.Enabled && !settings.Database.MySQL.Enabled {
		return fmt.Errorf("no database backend enabled, enable database.sqlite or database.mysql")
	}
	if settings.Database.SQLite.Enabled && settings.Database.MySQL.Enabled {
		return fmt.Errorf("only one database backend may be enabled at a time")
	}
	if settings.Database.SQLite.Enabled && settings.Database.SQLite.Path == "" {
		return fmt.Errorf("database.sqlite.path must not be empty")
	}
	if settings.Database.MySQL.Enabled {
		if settings.Database.MySQL.Host == "" || settings.Database.MySQL.Database == "" {
			return fmt.Errorf("database.mysql.host and database.mysql.database must not be empty")
		}
	}

	if settings.Security.BcryptCost < 10 || settings.Security.BcryptCost > 31 {
		return fmt.Errorf("security.bcryptcost must be between 10 and 31, got %d", settings.Security.BcryptCost)
	}
	if settings.Security.SessionDuration < 1 {
		return fmt.Errorf("security.sessionduration must be at least 1 hour")
	}
	if settings.Security.RateLimit.Enabled {
		if settings.Security.RateLimit.RPS <= 0 {
			return fmt.Errorf("security.ratelimit.rps must be positive")
		}
		if settings.Security.RateLimit.Burst < 1 {
			return fmt.Errorf("security.ratelimit.burst must be at least 1")
		}
	}

	if settings.ImageStore.Enabled {
		if settings.ImageStore.Bucket == "" {
			return fmt.Errorf("imagestore.bucket must not be empty when image store is enabled")
		}
		if settings.ImageStore.URLExpiration < 60 {
			return fmt.Errorf("imagestore.urlexpiration must be at least 60 seconds")
		}
	}

	if settings.Notification.Enabled && len(settings.Notification.URLs) == 0 {
		return fmt.Errorf("notification.urls must not be empty when notifications are enabled")
	}

	if settings.Search.HistorySize < 1 {
		return fmt.Errorf("search.historysize must be at least 1")
	}
	if settings.Search.MaxResults < settings.Search.DefaultPerPage {
		return fmt.Errorf("search.maxresults must not be smaller than search.defaultperpage")
	}

	if settings.Import.MaxRows < 1 {
		return fmt.Errorf("import.maxrows must be at least 1")
	}

	return nil
}
