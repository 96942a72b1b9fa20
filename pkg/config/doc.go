// Package config holds the environment-driven configuration blocks for the
// admin authentication service.
//
// Each block carries cleanenv struct tags, so a binary composes them into its
// own Config struct and calls cleanenv.ReadEnv once:
//
//	type Config struct {
//		AppConfig app.AppConfig
//		JWT       config.JWTConfig
//		TwoFA     config.TwoFAConfig
//	}
//
//	config.LoadEnvFile()
//	cfg := Config{}
//	cleanenv.ReadEnv(&cfg)
//
// Durations accept ISO8601 ("PT5M") as well as Go syntax ("5m").
package config
