package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Keyfile store, kept in its own database
	KeyfilePostgresHost     string
	KeyfilePostgresPort     string
	KeyfilePostgresUser     string
	KeyfilePostgresPassword string
	KeyfilePostgresDB       string
	KeyfilePostgresSSLMode  string

	// Redis label pools
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	LabelPoolTTL  time.Duration

	// Kafka
	KafkaBrokers []string
	KafkaGroupID string
	InputTopic   string
	OutputTopic  string

	// Pseudonymization defaults
	Prefix        string
	PoolSize      int
	PadWidth      int
	LabelColumn   string
	HashAlgorithm string
	TruncateTo    int
	// KeyFile is a path; the key itself is read per run and never held here.
	KeyFile  string
	PlanFile string

	// DLP payload check
	DLPRulesFile string
	DLPStrict    bool

	// Service tokens; API routes are open when AuthTokenSecret is empty,
	// except re-identification, which is then disabled.
	AuthTokenSecret string
	AuthIssuer      string
	AuthAudience    string
	AuthTokenTTL    time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8083"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),

		KeyfilePostgresHost:     getEnv("KEYFILE_POSTGRES_HOST", "localhost"),
		KeyfilePostgresPort:     getEnv("KEYFILE_POSTGRES_PORT", "5432"),
		KeyfilePostgresUser:     getEnv("KEYFILE_POSTGRES_USER", "keyfile"),
		KeyfilePostgresPassword: getEnv("KEYFILE_POSTGRES_PASSWORD", ""),
		KeyfilePostgresDB:       getEnv("KEYFILE_POSTGRES_DB", "keyfile"),
		KeyfilePostgresSSLMode:  getEnv("KEYFILE_POSTGRES_SSLMODE", "require"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		LabelPoolTTL:  getDuration("LABEL_POOL_TTL", 7*24*time.Hour),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "pseudonym-service"),
		InputTopic:   getEnv("PSEUDONYM_INPUT_TOPIC", "identified-datasets"),
		OutputTopic:  getEnv("PSEUDONYM_OUTPUT_TOPIC", "pseudonymized-datasets"),

		Prefix:        getEnv("PSEUDONYM_PREFIX", "PP"),
		PoolSize:      getIntEnv("PSEUDONYM_POOL_SIZE", 999),
		PadWidth:      getIntEnv("PSEUDONYM_PAD_WIDTH", 0),
		LabelColumn:   getEnv("PSEUDONYM_LABEL_COLUMN", "pseudonym"),
		HashAlgorithm: getEnv("PSEUDONYM_HASH_ALGORITHM", "hmac-sha256"),
		TruncateTo:    getIntEnv("PSEUDONYM_TRUNCATE_TO", 0),
		KeyFile:       getEnv("PSEUDONYM_KEY_FILE", ""),
		PlanFile:      getEnv("PSEUDONYM_PLAN_FILE", ""),

		DLPRulesFile: getEnv("DLP_RULES_FILE", ""),
		DLPStrict:    getBoolEnv("DLP_STRICT", false),

		AuthTokenSecret: getEnv("AUTH_TOKEN_SECRET", ""),
		AuthIssuer:      getEnv("AUTH_ISSUER", "pseudonym-service"),
		AuthAudience:    getEnv("AUTH_AUDIENCE", "pseudonym-api"),
		AuthTokenTTL:    getDuration("AUTH_TOKEN_TTL", time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
