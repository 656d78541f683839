package config

import (
	"fmt"
	"net"
	"net/mail"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"propel/internal/core"
)

// Profile holds the business identity printed on documents and emails.
type Profile struct {
	Name        string   `yaml:"name"`
	Email       string   `yaml:"email"`
	Phone       string   `yaml:"phone"`
	Signature   string   `yaml:"signature"`
	KnownEmails []string `yaml:"known_emails"`

	PaymentDueDays int    `yaml:"payment_due_days"`
	PaymentMethod  string `yaml:"payment_method"`
}

type Config struct {
	// Storage
	DBPath    string
	OutputDir string

	CurrentSemester string
	Business        Profile
	ProfileFile     string

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	// Google Sheets session source
	SpreadsheetKey           string
	SessionRange             string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// AMQP events, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// S3 archive, disabled when S3Bucket is empty
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	PushgatewayURL string
	StatusAddr     string // schedule mode status server, disabled when empty

	Concurrency     int
	BillingSchedule string
	BillingAnchor   string

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		DBPath:          getEnv("PROPEL_DB_PATH", "./data/propel.db"),
		OutputDir:       getEnv("PROPEL_OUTPUT_DIR", "./out"),
		CurrentSemester: getEnv("CURRENT_SEMESTER", ""),
		ProfileFile:     getEnv("PROPEL_PROFILE_FILE", ""),

		Business: Profile{
			Name:        getEnv("PROPEL_BUSINESS_NAME", "Propel"),
			Email:       getEnv("PROPEL_EMAIL", ""),
			Phone:       getEnv("PROPEL_PHONE", ""),
			Signature:   getEnv("PROPEL_SIGNATURE", ""),
			KnownEmails: splitList(getEnv("KNOWN_EMAILS", "")),

			PaymentDueDays: getEnvInt("PROPEL_PAYMENT_DUE_DAYS", 10),
			PaymentMethod:  getEnv("PROPEL_PAYMENT_METHOD", "e-transfer"),
		},

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SpreadsheetKey:           getEnv("SPREADSHEET_KEY", ""),
		SessionRange:             getEnv("SESSION_RANGE", "A2:D"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "propel"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "billing_events"),

		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),

		PushgatewayURL: getEnv("PUSHGATEWAY_URL", ""),
		StatusAddr:     getEnv("PROPEL_STATUS_ADDR", ""),

		Concurrency:     getEnvInt("PROPEL_CONCURRENCY", 1),
		BillingSchedule: getEnv("BILLING_SCHEDULE", "0 7 * * MON"),
		BillingAnchor:   getEnv("BILLING_ANCHOR", ""),

		LogLevel:  getEnv("PROPEL_LOG_LEVEL", "info"),
		LogFormat: getEnv("PROPEL_LOG_FORMAT", "text"),
	}

	return cfg
}

// ApplyProfile overlays the YAML business profile, when configured, on top of
// the environment values. Only fields present in the file are overridden.
func (c *Config) ApplyProfile() error {
	if c.ProfileFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.ProfileFile)
	if err != nil {
		return fmt.Errorf("read profile file: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse profile file %s: %w", c.ProfileFile, err)
	}
	if p.Name != "" {
		c.Business.Name = p.Name
	}
	if p.Email != "" {
		c.Business.Email = p.Email
	}
	if p.Phone != "" {
		c.Business.Phone = p.Phone
	}
	if p.Signature != "" {
		c.Business.Signature = p.Signature
	}
	if len(p.KnownEmails) > 0 {
		c.Business.KnownEmails = p.KnownEmails
	}
	if p.PaymentDueDays != 0 {
		c.Business.PaymentDueDays = p.PaymentDueDays
	}
	if p.PaymentMethod != "" {
		c.Business.PaymentMethod = p.PaymentMethod
	}
	return nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.DBPath == "" {
		errors = append(errors, "database path cannot be empty")
	}
	if c.OutputDir == "" {
		errors = append(errors, "output directory cannot be empty")
	}

	// Business identity
	if strings.TrimSpace(c.Business.Name) == "" {
		errors = append(errors, "business name cannot be empty")
	}
	if c.Business.Email == "" {
		errors = append(errors, "PROPEL_EMAIL is required")
	} else if _, err := mail.ParseAddress(c.Business.Email); err != nil {
		errors = append(errors, fmt.Sprintf("invalid business email '%s': %v", c.Business.Email, err))
	}

	if c.Business.PaymentDueDays < 1 || c.Business.PaymentDueDays > 90 {
		errors = append(errors, fmt.Sprintf("invalid payment due days %d: must be between 1 and 90", c.Business.PaymentDueDays))
	}

	// SMTP
	if c.SMTPHost == "" {
		errors = append(errors, "SMTP_HOST is required")
	}
	if c.SMTPPort < 1 || c.SMTPPort > 65535 {
		errors = append(errors, fmt.Sprintf("invalid SMTP port %d: must be between 1 and 65535", c.SMTPPort))
	}

	// Google Sheets configuration if a spreadsheet is set
	if c.SpreadsheetKey != "" {
		hasFile := c.GoogleServiceAccountFile != ""
		hasJSON := c.GoogleServiceAccountJSON != ""
		if !hasFile && !hasJSON {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided with SPREADSHEET_KEY")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.S3Bucket != "" && c.S3Region == "" {
		errors = append(errors, "S3 region cannot be empty when S3 bucket is provided")
	}
	if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		errors = append(errors, "S3_ACCESS_KEY and S3_SECRET_KEY must be set together")
	}

	if c.PushgatewayURL != "" {
		if u, err := url.Parse(c.PushgatewayURL); err != nil || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid Pushgateway URL '%s'", c.PushgatewayURL))
		}
	}

	if c.StatusAddr != "" {
		if _, _, err := net.SplitHostPort(c.StatusAddr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid status address '%s': %v", c.StatusAddr, err))
		}
	}

	if c.Concurrency < 1 || c.Concurrency > 32 {
		errors = append(errors, fmt.Sprintf("invalid concurrency %d: must be between 1 and 32", c.Concurrency))
	}

	if c.BillingSchedule != "" {
		if _, err := cron.ParseStandard(c.BillingSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid billing schedule '%s': %v", c.BillingSchedule, err))
		}
	}
	if c.BillingAnchor != "" {
		if _, err := core.ParseDate(c.BillingAnchor); err != nil {
			errors = append(errors, fmt.Sprintf("invalid billing anchor '%s': must be YYYY-MM-DD", c.BillingAnchor))
		}
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Anchor returns the parsed billing anchor, or the zero date when unset.
func (c *Config) Anchor() (core.Date, error) {
	if c.BillingAnchor == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(c.BillingAnchor)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// splitList parses a comma separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
