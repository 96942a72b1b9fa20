package config

// AdminBootstrapConfig names the administrator created at startup when
// none exists. Leaving ADMIN_USERNAME empty keeps the web setup flow.
type AdminBootstrapConfig struct {
	Username string `env:"ADMIN_USERNAME" env-default:""`
	Email    string `env:"ADMIN_EMAIL" env-default:""`
	Password string `env:"ADMIN_PASSWORD" env-default:""`
}
