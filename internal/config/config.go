package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process configuration, read once at startup.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr      string
	PublicBaseURL string
	SeedOnStart   bool

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Auth      AuthConfig
	RateLimit RateLimitConfig

	BehaviorConfigPath string
}

// AuthConfig holds the two credential pairs accepted by the HTTP surface.
// Secrets may be stored as bcrypt hashes.
type AuthConfig struct {
	Enabled        bool
	APIKey         string
	APISecret      string
	AdminKey       string
	AdminSecret    string
	PublicPrefixes []string
}

type RateLimitConfig struct {
	Enabled        bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ProvisionRate  float64
	ProvisionBurst int
	OrderLockTTL   int
}

var envDefaults = map[string]any{
	"APP_SERVICE":                       "esimmock",
	"APP_VERSION":                       "0.1.0",
	"ENVIRONMENT":                       "development",
	"HTTP_ADDR":                         ":8080",
	"PUBLIC_BASE_URL":                   "http://localhost:8080",
	"SEED_ON_START":                     true,
	"OTLP_ENDPOINT":                     "localhost:4317",
	"DATABASE_TYPE":                     "sqlite",
	"DATABASE_HOST":                     "localhost",
	"DATABASE_PORT":                     "5432",
	"DATABASE_NAME":                     "esimmock",
	"DATABASE_USER":                     "postgres",
	"DATABASE_PASSWORD":                 "postgres",
	"DATABASE_SSLMODE":                  "disable",
	"DATABASE_MAX_IDLE_CONN":            5,
	"DATABASE_MAX_OPEN_CONN":            20,
	"DATABASE_CONN_MAX_LIFETIME":        300,
	"DATABASE_CONN_MAX_IDLE_TIME":       60,
	"BEHAVIOR_CONFIG_PATH":              "",
	"AUTH_API_KEY":                      "mock-api-key",
	"AUTH_API_SECRET":                   "mock-api-secret",
	"AUTH_ADMIN_KEY":                    "mock-admin-key",
	"AUTH_ADMIN_SECRET":                 "mock-admin-secret",
	"AUTH_PUBLIC_PATHS":                 "/health,/metrics,/v1/admin/health,/qr/",
	"RATE_LIMIT_ENABLED":                false,
	"RATE_LIMIT_REDIS_ADDR":             "localhost:6379",
	"RATE_LIMIT_REDIS_PASSWORD":         "",
	"RATE_LIMIT_REDIS_DB":               0,
	"RATE_LIMIT_PROVISION_RATE":         5.0,
	"RATE_LIMIT_PROVISION_BURST":        20,
	"RATE_LIMIT_ORDER_LOCK_TTL_SECONDS": 10,
}

// Load reads the process environment, after merging an optional .env file.
// Authentication defaults to on only in production.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range envDefaults {
		v.SetDefault(key, value)
	}

	str := func(key string) string { return strings.TrimSpace(v.GetString(key)) }
	environment := str("ENVIRONMENT")
	v.SetDefault("AUTH_ENABLED", strings.EqualFold(environment, "production"))

	return Config{
		AppName:            str("APP_SERVICE"),
		AppVersion:         str("APP_VERSION"),
		Environment:        environment,
		HTTPAddr:           str("HTTP_ADDR"),
		PublicBaseURL:      strings.TrimRight(str("PUBLIC_BASE_URL"), "/"),
		SeedOnStart:        v.GetBool("SEED_ON_START"),
		OTLPEndpoint:       str("OTLP_ENDPOINT"),
		DBType:             str("DATABASE_TYPE"),
		DBHost:             str("DATABASE_HOST"),
		DBPort:             str("DATABASE_PORT"),
		DBName:             str("DATABASE_NAME"),
		DBUser:             str("DATABASE_USER"),
		DBPassword:         v.GetString("DATABASE_PASSWORD"),
		DBSSLMode:          str("DATABASE_SSLMODE"),
		DBMaxIdleConn:      v.GetInt("DATABASE_MAX_IDLE_CONN"),
		DBMaxOpenConn:      v.GetInt("DATABASE_MAX_OPEN_CONN"),
		DBConnMaxLifetime:  v.GetInt("DATABASE_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTime:  v.GetInt("DATABASE_CONN_MAX_IDLE_TIME"),
		BehaviorConfigPath: str("BEHAVIOR_CONFIG_PATH"),
		Auth: AuthConfig{
			Enabled:        v.GetBool("AUTH_ENABLED"),
			APIKey:         str("AUTH_API_KEY"),
			APISecret:      str("AUTH_API_SECRET"),
			AdminKey:       str("AUTH_ADMIN_KEY"),
			AdminSecret:    str("AUTH_ADMIN_SECRET"),
			PublicPrefixes: splitList(v.GetString("AUTH_PUBLIC_PATHS")),
		},
		RateLimit: RateLimitConfig{
			Enabled:        v.GetBool("RATE_LIMIT_ENABLED"),
			RedisAddr:      str("RATE_LIMIT_REDIS_ADDR"),
			RedisPassword:  v.GetString("RATE_LIMIT_REDIS_PASSWORD"),
			RedisDB:        v.GetInt("RATE_LIMIT_REDIS_DB"),
			ProvisionRate:  v.GetFloat64("RATE_LIMIT_PROVISION_RATE"),
			ProvisionBurst: v.GetInt("RATE_LIMIT_PROVISION_BURST"),
			OrderLockTTL:   v.GetInt("RATE_LIMIT_ORDER_LOCK_TTL_SECONDS"),
		},
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
