package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	AppPort string
	AppEnv  string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	JWTSecret string

	// leave aggregator: flag a student when used passes in the rolling
	// window exceed the threshold
	FlagThreshold  int
	FlagWindowDays int

	// OTP / mail
	OTPTTLMinutes int
	SMTPHost      string
	SMTPPort      string
	SMTPFrom      string
	SMTPPassword  string
}

func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func Load() *Config {
	return &Config{
		AppPort: get("APP_PORT", "8080"),
		AppEnv:  get("APP_ENV", "dev"),

		DBHost:     get("DB_HOST", "localhost"),
		DBPort:     get("DB_PORT", "5432"),
		DBUser:     get("DB_USER", "postgres"),
		DBPassword: get("DB_PASSWORD", "postgres"),
		DBName:     get("DB_NAME", "gatepass"),
		DBSSLMode:  get("DB_SSLMODE", "disable"),

		JWTSecret: get("JWT_SECRET", "dev-secret"),

		FlagThreshold:  getInt("LEAVE_FLAG_THRESHOLD", 5),
		FlagWindowDays: getInt("LEAVE_FLAG_WINDOW_DAYS", 180),

		OTPTTLMinutes: getInt("OTP_TTL_MINUTES", 10),
		SMTPHost:      get("SMTP_HOST", ""),
		SMTPPort:      get("SMTP_PORT", "587"),
		SMTPFrom:      get("SMTP_FROM", ""),
		SMTPPassword:  get("SMTP_PASSWORD", ""),
	}
}

// IsDev: dev mode auto-verifies new accounts (explicit flag in the register
// response, not a message substring).
func (c *Config) IsDev() bool { return c.AppEnv == "dev" }

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}
