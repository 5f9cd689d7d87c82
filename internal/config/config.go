package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	ReportBucket string // empty disables dispatch report archiving

	JWTPublicKeyPath string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion     string
	SMSRatePerSec float64
	RedisAddr     string // empty falls back to the DynamoDB lock table
	RedisPassword string
	RedisDB       int
	AMQPURL       string // empty runs dispatch in-process

	AllowedOrigins []string // CORS allowed origins

	Matching Matching
	Notify   Notify

	RequestTTL      time.Duration
	DispatchTimeout time.Duration
	DispatchWorkers int // concurrent dispatch runs in the worker
	ExpirySweep     time.Duration
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Donors               string
	BloodRequests        string
	NotificationAttempts string
	DonorResponses       string
	NotificationLocks    string
}

// Matching tunes donor eligibility.
type Matching struct {
	RadiusKm         float64 // 0 disables the radius filter
	DonationCooldown time.Duration
	Compatibility    string // exact | universal | abo
}

// Notify tunes alert fan-out.
type Notify struct {
	Window       time.Duration
	RetryBackoff time.Duration
	Concurrency  int
	MaxContacts  int // 0 = no cap
	SiteURL      string

	// ResponseTimeout is how long contacted donors may stay silent before
	// the next ranked donors are tried.
	ResponseTimeout time.Duration
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),

		DynamoTables: DynamoTables{
			Donors:               getEnv("DYNAMO_TABLE_DONORS", "donors"),
			BloodRequests:        getEnv("DYNAMO_TABLE_BLOOD_REQUESTS", "blood_requests"),
			NotificationAttempts: getEnv("DYNAMO_TABLE_NOTIFICATION_ATTEMPTS", "notification_attempts"),
			DonorResponses:       getEnv("DYNAMO_TABLE_DONOR_RESPONSES", "donor_responses"),
			NotificationLocks:    getEnv("DYNAMO_TABLE_NOTIFICATION_LOCKS", "notification_locks"),
		},

		ReportBucket:     getEnv("S3_REPORT_BUCKET", ""),
		JWTPublicKeyPath: getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "alerts@lifelink.example"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion:     getEnv("SNS_REGION", "us-east-1"),
		SMSRatePerSec: getEnvFloat("SMS_RATE_PER_SEC", 10),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		AMQPURL:       getEnv("AMQP_URL", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),

		Matching: Matching{
			RadiusKm:         getEnvFloat("MATCH_RADIUS_KM", 50),
			DonationCooldown: getEnvDuration("DONATION_COOLDOWN", 90*24*time.Hour),
			Compatibility:    getEnv("MATCH_COMPATIBILITY", "exact"),
		},
		Notify: Notify{
			Window:       getEnvDuration("NOTIFY_WINDOW", 24*time.Hour),
			RetryBackoff: getEnvDuration("NOTIFY_RETRY_BACKOFF", 2*time.Second),
			Concurrency:  getEnvInt("NOTIFY_CONCURRENCY", 1),
			MaxContacts:  getEnvInt("NOTIFY_MAX_CONTACTS", 10),
			SiteURL:      getEnv("SITE_URL", "http://localhost:3000"),

			ResponseTimeout: getEnvDuration("NOTIFY_RESPONSE_TIMEOUT", 30*time.Minute),
		},

		RequestTTL:      getEnvDuration("REQUEST_TTL", 72*time.Hour),
		DispatchTimeout: getEnvDuration("DISPATCH_TIMEOUT", 2*time.Minute),
		DispatchWorkers: getEnvInt("DISPATCH_WORKERS", 4),
		ExpirySweep:     getEnvDuration("EXPIRY_SWEEP_INTERVAL", 5*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "72h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
