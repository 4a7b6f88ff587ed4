package config

import (
	"fmt"
	"strings"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL    string `env:"DATABASE_URL,required"`
	JWTSecret      string `env:"JWT_SECRET,required"`
	JWTExpiryHours int    `env:"JWT_EXPIRY_HOURS" envDefault:"24"`
	Port           int    `env:"PORT" envDefault:"8080"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv         string `env:"APP_ENV" envDefault:"production"`

	// PayVessel (inbound credits + virtual accounts)
	PayvesselBaseURL    string `env:"PAYVESSEL_BASE_URL" envDefault:"https://api.payvessel.com"`
	PayvesselAPIKey     string `env:"PAYVESSEL_API_KEY"`
	PayvesselAPISecret  string `env:"PAYVESSEL_API_SECRET,required"`
	PayvesselBusinessID string `env:"PAYVESSEL_BUSINESS_ID"`
	PayvesselTrustedIPs string `env:"PAYVESSEL_TRUSTED_IPS"`

	// Data gateway (outbound purchases)
	GatewayBaseURL  string `env:"DATA_GATEWAY_BASE"`
	GatewayAPIKey   string `env:"DATA_GATEWAY_API_KEY"`
	GatewaySecret   string `env:"DATA_GATEWAY_SECRET"`
	GatewayVendorID string `env:"DATA_GATEWAY_VENDOR_ID"`
	GatewayName     string `env:"DATA_GATEWAY_NAME" envDefault:"DEFAULT"`
	GatewayTimeoutS int    `env:"DATA_GATEWAY_TIMEOUT_S" envDefault:"30"`

	// Reconciler (settles purchases left pending by a crash)
	ReconcileSchedule string `env:"RECONCILE_SCHEDULE" envDefault:"*/5 * * * *"`
	PendingMaxAgeMin  int    `env:"PENDING_MAX_AGE_MIN" envDefault:"15"`
	ReconcileBatch    int    `env:"RECONCILE_BATCH" envDefault:"50"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// TrustedIPs returns the webhook source allowlist. Empty slice disables the check.
func (c *Config) TrustedIPs() []string {
	var ips []string
	for _, s := range strings.Split(c.PayvesselTrustedIPs, ",") {
		if s = strings.TrimSpace(s); s != "" {
			ips = append(ips, s)
		}
	}
	return ips
}
