package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestSettings() *Settings {
	s := &Settings{}
	s.WebServer.Enabled = true
	s.WebServer.Port = "8080"
	s.Database.SQLite.Enabled = true
	s.Database.SQLite.Path = "planties.db"
	s.Security.BcryptCost = 12
	s.Security.SessionDuration = 168
	s.Security.RateLimit.Enabled = true
	s.Security.RateLimit.RPS = 2.0
	s.Security.RateLimit.Burst = 5
	s.Search.HistorySize = 20
	s.Search.MaxResults = 500
	s.Search.DefaultPerPage = 20
	s.Import.MaxRows = 10000
	return s
}

func TestValidateSettingsAcceptsDefaults(t *testing.T) {
	require.NoError(t, ValidateSettings(validTestSettings()))
}

func TestValidateSettingsRejectsInvalidPort(t *testing.T) {
	for _, port := range []string{"", "abc", "0", "70000"} {
		s := validTestSettings()
		s.WebServer.Port = port
		assert.Error(t, ValidateSettings(s), "port %q should be rejected", port)
	}
}

func TestValidateSettingsRequiresOneDatabase(t *testing.T) {
	s := validTestSettings()
	s.Database.SQLite.Enabled = false
	assert.Error(t, ValidateSettings(s), "no backend enabled")

	s = validTestSettings()
	s.Database.MySQL.Enabled = true
	s.Database.MySQL.Host = "localhost"
	s.Database.MySQL.Database = "planties"
	assert.Error(t, ValidateSettings(s), "both backends enabled")
}

func TestValidateSettingsBcryptCostBounds(t *testing.T) {
	s := validTestSettings()
	s.Security.BcryptCost = 4
	assert.Error(t, ValidateSettings(s))

	s.Security.BcryptCost = 31
	assert.NoError(t, ValidateSettings(s))
}

func TestValidateSettingsImageStoreRequiresBucket(t *testing.T) {
	s := validTestSettings()
	s.ImageStore.Enabled = true
	s.ImageStore.URLExpiration = 900
	assert.Error(t, ValidateSettings(s))

	s.ImageStore.Bucket = "planties-images"
	assert.NoError(t, ValidateSettings(s))
}

func TestValidateSettingsSearchBounds(t *testing.T) {
	s := validTestSettings()
	s.Search.MaxResults = 10
	s.Search.DefaultPerPage = 20
	assert.Error(t, ValidateSettings(s))
}
