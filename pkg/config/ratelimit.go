package config

// LoginRateLimitConfig throttles the login endpoint per client IP.
type LoginRateLimitConfig struct {
	Enabled   bool   `env:"LOGIN_RATE_LIMIT_ENABLED" env-default:"true"`
	PerMinute int    `env:"LOGIN_RATE_PER_MINUTE" env-default:"20"`
	Burst     int    `env:"LOGIN_RATE_BURST" env-default:"5"`
	IdleTTL   string `env:"LOGIN_RATE_IDLE_TTL" env-default:"10m"`
}

// ProxyConfig lists the reverse proxies allowed to report the client
// address through forwarding headers.
type ProxyConfig struct {
	TrustedProxies []string `env:"TRUSTED_PROXIES" env-separator:","`
}
