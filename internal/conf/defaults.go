// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "Fancy Planties")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "planties.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)
	viper.SetDefault("main.log.rotationday", time.Sunday)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.host", "0.0.0.0")
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.log.enabled", true)
	viper.SetDefault("webserver.log.path", "logs/web.log")
	viper.SetDefault("webserver.log.rotation", RotationDaily)
	viper.SetDefault("webserver.log.maxsize", 1048576)

	viper.SetDefault("database.sqlite.enabled", true)
	viper.SetDefault("database.sqlite.path", "planties.db")

	viper.SetDefault("database.mysql.enabled", false)
	viper.SetDefault("database.mysql.username", "planties")
	viper.SetDefault("database.mysql.password", "secret")
	viper.SetDefault("database.mysql.database", "planties")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")

	viper.SetDefault("security.sessionsecret", "")
	viper.SetDefault("security.sessionduration", 168)
	viper.SetDefault("security.securecookies", false)
	viper.SetDefault("security.bcryptcost", 12)
	viper.SetDefault("security.allowedorigins", []string{})
	viper.SetDefault("security.ratelimit.enabled", true)
	viper.SetDefault("security.ratelimit.rps", 2.0)
	viper.SetDefault("security.ratelimit.burst", 5)

	viper.SetDefault("imagestore.enabled", false)
	viper.SetDefault("imagestore.bucket", "")
	viper.SetDefault("imagestore.region", "us-east-1")
	viper.SetDefault("imagestore.endpoint", "")
	viper.SetDefault("imagestore.accesskey", "")
	viper.SetDefault("imagestore.secretkey", "")
	viper.SetDefault("imagestore.urlexpiration", 900)
	viper.SetDefault("imagestore.maxuploadsize", 10485760)

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.debug", false)
	viper.SetDefault("notification.urls", []string{})

	viper.SetDefault("search.cachettl", 60)
	viper.SetDefault("search.historysize", 20)
	viper.SetDefault("search.maxresults", 500)
	viper.SetDefault("search.defaultperpage", 20)

	viper.SetDefault("import.maxrows", 10000)
	viper.SetDefault("import.maxfilesize", 5242880)
	viper.SetDefault("import.notify", true)
}
