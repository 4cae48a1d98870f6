package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Settings are process knobs read from the environment (prefix CHANOP_), separate from the
// reloadable bot document. They are read once at startup.
type Settings struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// Tick is the idle interval of the controller loop; one queued lookup is drained per idle tick.
	Tick time.Duration `envconfig:"TICK" default:"1s"`

	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080"`
	AdminToken    string `envconfig:"ADMIN_TOKEN"`
	AdminUsername string `envconfig:"ADMIN_USERNAME"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
	// AdminRate is the sustained admin request rate per client IP, per second.
	AdminRate  float64 `envconfig:"ADMIN_RATE" default:"0.2"`
	AdminBurst int     `envconfig:"ADMIN_BURST" default:"5"`

	// AuditDSN enables the SQL audit log: postgres://... or sqlite:path.
	AuditDSN string `envconfig:"AUDIT_DSN"`
	// AuditKafkaBrokers enables the Kafka audit stream.
	AuditKafkaBrokers []string `envconfig:"AUDIT_KAFKA_BROKERS"`
	AuditKafkaTopic   string   `envconfig:"AUDIT_KAFKA_TOPIC" default:"chanop.audit"`
	AuditBuffer       int      `envconfig:"AUDIT_BUFFER" default:"256"`

	// TwitchOAuthToken is the chat token used when network = "twitch".
	TwitchOAuthToken string `envconfig:"TWITCH_OAUTH_TOKEN"`

	// OTLPEndpoint enables tracing. The unprefixed OTEL_EXPORTER_OTLP_ENDPOINT is honoured too.
	OTLPEndpoint     string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TraceSampleRatio float64 `envconfig:"TRACE_SAMPLE_RATIO" default:"1"`
}

// LoadSettings reads .env (if present, never overriding real env) and then CHANOP_* variables.
func LoadSettings(dotenvFiles ...string) (*Settings, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		// Local dev convenience only; a missing file is fine.
		_ = godotenv.Load(f)
	}
	var s Settings
	if err := envconfig.Process("chanop", &s); err != nil {
		return nil, fmt.Errorf("env settings: %w", err)
	}
	if s.Tick <= 0 {
		return nil, fmt.Errorf("%w: CHANOP_TICK must be positive", ErrInvalidValue)
	}
	if s.AuditBuffer <= 0 {
		s.AuditBuffer = 256
	}
	return &s, nil
}
