// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/metrics"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Drive    DriveConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver        string
	URL           string
	Host          string
	Port          string
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MaxConcurrent int
}

// DSN returns URL when set, otherwise a key/value connection string both
// the pgx and lib/pq drivers accept.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type AppConfig struct {
	UploadDir string
	DataDir   string
	LogLevel  string
	LogJSON   bool
}

type CacheConfig struct {
	Enabled           bool
	RedisURL          string
	RedisHost         string
	RedisPort         string
	RedisPassword     string
	RedisDB           int
	MetricsTTLSeconds int
}

// StorageConfig points at the S3-compatible bucket holding order exports.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// DriveConfig points at the Google Drive folder shops drop their exports in.
type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
}

// MetricsConfig carries the tunable constants of the metrics engine. Rates and
// thresholds are fractions of gross revenue.
type MetricsConfig struct {
	COGSRate               float64 `validate:"gte=0,lt=1"`
	TaxDivisor             float64 `validate:"gt=0"`
	MonitorThreshold       float64 `validate:"gte=0,lte=1"`
	WarningThreshold       float64 `validate:"gtefield=MonitorThreshold,lte=1"`
	LossThreshold          float64 `validate:"gte=0"`
	DominanceShare         float64 `validate:"gte=0,lte=1"`
	CountPartialReturns    bool
	CancelledStatuses      []string `validate:"min=1,dive,required"`
	ReturnAcceptedStatuses []string `validate:"min=1,dive,required"`
	KnownOrderStatuses     []string
	KnownReturnStatuses    []string
	OverviewParallelism    int `validate:"gte=1"`
}

var (
	once     sync.Once
	instance *Config
	validate = validator.New()
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		instance = read()

		// Ensure upload and data directories exist
		ensureDir(instance.App.UploadDir)
		ensureDir(instance.App.DataDir)
	})

	return instance
}

func setDefaults() {
	def := metrics.DefaultConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_MODE", "debug")
	viper.SetDefault("SERVER_READ_TIMEOUT", 15)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	viper.SetDefault("DB_DRIVER", "pgx")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "shopee_dashboard")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_CONCURRENT", 10)
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
	viper.SetDefault("APP_DATA_DIR", "./data/output")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_JSON", false)
	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_METRICS_TTL_SECONDS", 300)
	viper.SetDefault("STORAGE_ENDPOINT", "")
	viper.SetDefault("STORAGE_REGION", "us-east-1")
	viper.SetDefault("STORAGE_USE_SSL", true)
	viper.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
	viper.SetDefault("DRIVE_FOLDER_ID", "")
	viper.SetDefault("METRICS_COGS_RATE", def.COGSRate.InexactFloat64())
	viper.SetDefault("METRICS_TAX_DIVISOR", def.TaxDivisor.InexactFloat64())
	viper.SetDefault("METRICS_MONITOR_THRESHOLD", def.ControlRatio.Monitor.InexactFloat64())
	viper.SetDefault("METRICS_WARNING_THRESHOLD", def.ControlRatio.Warning.InexactFloat64())
	viper.SetDefault("METRICS_LOSS_THRESHOLD", def.LossThreshold.InexactFloat64())
	viper.SetDefault("METRICS_DOMINANCE_SHARE", def.DominanceShare.InexactFloat64())
	viper.SetDefault("METRICS_COUNT_PARTIAL_RETURNS", def.CountPartialReturns)
	viper.SetDefault("METRICS_CANCELLED_STATUSES", def.CancelledStatuses)
	viper.SetDefault("METRICS_RETURN_ACCEPTED_STATUSES", def.ReturnAcceptedStatuses)
	viper.SetDefault("METRICS_KNOWN_ORDER_STATUSES", def.KnownOrderStatuses)
	viper.SetDefault("METRICS_KNOWN_RETURN_STATUSES", def.KnownReturnStatuses)
	viper.SetDefault("METRICS_OVERVIEW_PARALLELISM", 4)
}

func read() *Config {
	setDefaults()

	// Read from environment variables
	viper.AutomaticEnv()

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Mode:           viper.GetString("SERVER_MODE"),
			ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Driver:        viper.GetString("DB_DRIVER"),
			URL:           viper.GetString("DATABASE_URL"),
			Host:          viper.GetString("DB_HOST"),
			Port:          viper.GetString("DB_PORT"),
			User:          viper.GetString("DB_USER"),
			Password:      viper.GetString("DB_PASSWORD"),
			DBName:        viper.GetString("DB_NAME"),
			SSLMode:       viper.GetString("DB_SSLMODE"),
			MaxConcurrent: viper.GetInt("DB_MAX_CONCURRENT"),
		},
		App: AppConfig{
			UploadDir: viper.GetString("APP_UPLOAD_DIR"),
			DataDir:   viper.GetString("APP_DATA_DIR"),
			LogLevel:  viper.GetString("LOG_LEVEL"),
			LogJSON:   viper.GetBool("LOG_JSON"),
		},
		Cache: CacheConfig{
			Enabled:           viper.GetBool("CACHE_ENABLED"),
			RedisURL:          viper.GetString("REDIS_URL"),
			RedisHost:         viper.GetString("REDIS_HOST"),
			RedisPort:         viper.GetString("REDIS_PORT"),
			RedisPassword:     viper.GetString("REDIS_PASSWORD"),
			RedisDB:           viper.GetInt("REDIS_DB"),
			MetricsTTLSeconds: viper.GetInt("CACHE_METRICS_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Endpoint:  viper.GetString("STORAGE_ENDPOINT"),
			AccessKey: viper.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: viper.GetString("STORAGE_SECRET_KEY"),
			Bucket:    viper.GetString("STORAGE_BUCKET"),
			Region:    viper.GetString("STORAGE_REGION"),
			UseSSL:    viper.GetBool("STORAGE_USE_SSL"),
		},
		Drive: DriveConfig{
			CredentialsJSON: viper.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			FolderID:        viper.GetString("DRIVE_FOLDER_ID"),
		},
		Metrics: MetricsConfig{
			COGSRate:               viper.GetFloat64("METRICS_COGS_RATE"),
			TaxDivisor:             viper.GetFloat64("METRICS_TAX_DIVISOR"),
			MonitorThreshold:       viper.GetFloat64("METRICS_MONITOR_THRESHOLD"),
			WarningThreshold:       viper.GetFloat64("METRICS_WARNING_THRESHOLD"),
			LossThreshold:          viper.GetFloat64("METRICS_LOSS_THRESHOLD"),
			DominanceShare:         viper.GetFloat64("METRICS_DOMINANCE_SHARE"),
			CountPartialReturns:    viper.GetBool("METRICS_COUNT_PARTIAL_RETURNS"),
			CancelledStatuses:      getList("METRICS_CANCELLED_STATUSES"),
			ReturnAcceptedStatuses: getList("METRICS_RETURN_ACCEPTED_STATUSES"),
			KnownOrderStatuses:     getList("METRICS_KNOWN_ORDER_STATUSES"),
			KnownReturnStatuses:    getList("METRICS_KNOWN_RETURN_STATUSES"),
			OverviewParallelism:    viper.GetInt("METRICS_OVERVIEW_PARALLELISM"),
		},
	}
}

// Engine validates the metrics section and converts it into the engine
// configuration.
func (m MetricsConfig) Engine() (metrics.Config, error) {
	if err := validate.Struct(m); err != nil {
		return metrics.Config{}, fmt.Errorf("invalid metrics config: %w", err)
	}

	cfg := metrics.DefaultConfig()
	cfg.COGSRate = decimal.NewFromFloat(m.COGSRate)
	cfg.TaxDivisor = decimal.NewFromFloat(m.TaxDivisor)
	cfg.ControlRatio = metrics.Thresholds{
		Monitor: decimal.NewFromFloat(m.MonitorThreshold),
		Warning: decimal.NewFromFloat(m.WarningThreshold),
	}
	cfg.LossThreshold = decimal.NewFromFloat(m.LossThreshold)
	cfg.DominanceShare = decimal.NewFromFloat(m.DominanceShare)
	cfg.CountPartialReturns = m.CountPartialReturns
	cfg.CancelledStatuses = m.CancelledStatuses
	cfg.ReturnAcceptedStatuses = m.ReturnAcceptedStatuses
	if len(m.KnownOrderStatuses) > 0 {
		cfg.KnownOrderStatuses = m.KnownOrderStatuses
	}
	if len(m.KnownReturnStatuses) > 0 {
		cfg.KnownReturnStatuses = m.KnownReturnStatuses
	}

	return cfg, cfg.Validate()
}

// getList reads a list setting. Env values arrive as one string and are
// split on commas only, status labels such as "Đã hủy" contain spaces.
func getList(key string) []string {
	var raw []string
	switch v := viper.Get(key).(type) {
	case string:
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	default:
		raw = viper.GetStringSlice(key)
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
