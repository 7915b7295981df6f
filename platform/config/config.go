// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// RedisConfig provides Redis settings for the task queue and presenter state.
type RedisConfig interface {
	GetRedisURL() string
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// LeadStoreConfig provides settings for the external document store client.
type LeadStoreConfig interface {
	GetLeadStoreBaseURL() string
	GetLeadStoreToken() string
	GetLeadsCollection() string
	GetContactsCollection() string
	GetSubscriptionsCollection() string
	GetIdentityMapCollection() string
}

// WebhookConfig provides settings for the legacy webhook intake endpoints.
type WebhookConfig interface {
	GetWebhookToken() string
}

// BridgeConfig provides settings for the lead intake bridge poller.
type BridgeConfig interface {
	GetBridgePollInterval() time.Duration
}

// PresenterConfig provides settings for the incoming-lead decision window.
type PresenterConfig interface {
	GetDecisionWindow() time.Duration
}

// AlertEmailConfig provides settings for operator alert emails.
type AlertEmailConfig interface {
	GetAlertEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetAlertFromAddress() string
	GetAlertToAddress() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	RedisURL                string
	AsynqQueueName          string
	AsynqConcurrency        int
	LeadStoreBaseURL        string
	LeadStoreToken          string
	LeadsCollection         string
	ContactsCollection      string
	SubscriptionsCollection string
	IdentityMapCollection   string
	WebhookToken            string
	BridgePollInterval      time.Duration
	DecisionWindow          time.Duration
	CORSAllowAll            bool
	CORSOrigins             []string
	AlertEmailEnabled       bool
	SMTPHost                string
	SMTPPort                int
	SMTPUsername            string
	SMTPPassword            string
	AlertFromAddress        string
	AlertToAddress          string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// RedisConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// LeadStoreConfig implementation
func (c *Config) GetLeadStoreBaseURL() string         { return c.LeadStoreBaseURL }
func (c *Config) GetLeadStoreToken() string           { return c.LeadStoreToken }
func (c *Config) GetLeadsCollection() string          { return c.LeadsCollection }
func (c *Config) GetContactsCollection() string       { return c.ContactsCollection }
func (c *Config) GetSubscriptionsCollection() string  { return c.SubscriptionsCollection }
func (c *Config) GetIdentityMapCollection() string    { return c.IdentityMapCollection }

// WebhookConfig implementation
func (c *Config) GetWebhookToken() string { return c.WebhookToken }

// BridgeConfig implementation
func (c *Config) GetBridgePollInterval() time.Duration { return c.BridgePollInterval }

// PresenterConfig implementation
func (c *Config) GetDecisionWindow() time.Duration { return c.DecisionWindow }

// AlertEmailConfig implementation
func (c *Config) GetAlertEmailEnabled() bool  { return c.AlertEmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetAlertFromAddress() string { return c.AlertFromAddress }
func (c *Config) GetAlertToAddress() string   { return c.AlertToAddress }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	alertEmailEnabled := strings.EqualFold(getEnv("ALERT_EMAIL_ENABLED", "false"), "true")

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		RedisURL:                getEnv("REDIS_URL", "redis://localhost:6379/0"),
		AsynqQueueName:          getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:        mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		LeadStoreBaseURL:        getEnv("LEAD_STORE_BASE_URL", ""),
		LeadStoreToken:          getEnv("LEAD_STORE_TOKEN", ""),
		LeadsCollection:         getEnv("LEADS_COLLECTION", "leads"),
		ContactsCollection:      getEnv("CONTACTS_COLLECTION", "contacts"),
		SubscriptionsCollection: getEnv("SUBSCRIPTIONS_COLLECTION", "newsletter_subscriptions"),
		IdentityMapCollection:   getEnv("IDENTITY_MAP_COLLECTION", "identity_map"),
		WebhookToken:            getEnv("WEBHOOK_TOKEN", ""),
		BridgePollInterval:      mustDuration(getEnv("BRIDGE_POLL_INTERVAL", "3s")),
		DecisionWindow:          mustDuration(getEnv("DECISION_WINDOW", "18s")),
		CORSAllowAll:            corsAllowAll,
		CORSOrigins:             corsOrigins,
		AlertEmailEnabled:       alertEmailEnabled && smtpHost != "",
		SMTPHost:                smtpHost,
		SMTPPort:                mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:            getEnv("SMTP_USERNAME", ""),
		SMTPPassword:            getEnv("SMTP_PASSWORD", ""),
		AlertFromAddress:        getEnv("ALERT_FROM_ADDRESS", ""),
		AlertToAddress:          getEnv("ALERT_TO_ADDRESS", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.LeadStoreBaseURL == "" {
		return nil, fmt.Errorf("LEAD_STORE_BASE_URL is required")
	}
	if cfg.LeadStoreToken == "" {
		return nil, fmt.Errorf("LEAD_STORE_TOKEN is required")
	}
	if cfg.WebhookToken == "" {
		return nil, fmt.Errorf("WEBHOOK_TOKEN is required")
	}
	if cfg.BridgePollInterval <= 0 {
		return nil, fmt.Errorf("BRIDGE_POLL_INTERVAL must be a positive duration")
	}
	if cfg.DecisionWindow <= 0 {
		return nil, fmt.Errorf("DECISION_WINDOW must be a positive duration")
	}
	if alertEmailEnabled && (cfg.AlertFromAddress == "" || cfg.AlertToAddress == "") {
		return nil, fmt.Errorf("ALERT_FROM_ADDRESS and ALERT_TO_ADDRESS are required when ALERT_EMAIL_ENABLED is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
