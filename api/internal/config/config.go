package config

import (
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port string

	ModelsDir     string
	Workers       int
	MaxImageBytes int64

	LogLevel string
	LogJSON  bool

	// зеркало тома в S3, если пусто, выключено
	S3Bucket string
	S3Prefix string

	// аудит распознаваний, если пусто, выключено
	DatabaseURL string
}

const (
	DefaultModelsDir     = "/models"
	DefaultMaxImageBytes = 20 << 20
)

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing required env %s", k)
	}
	return v
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	if v, err := strconv.Atoi(getEnv(k, "")); err == nil && v > 0 {
		return v
	}
	return def
}

func getBool(k string) bool {
	v, _ := strconv.ParseBool(getEnv(k, "false"))
	return v
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8000"),

		ModelsDir:     getEnv("MODELS_DIR", DefaultModelsDir),
		Workers:       getInt("OCR_WORKERS", 1),
		MaxImageBytes: int64(getInt("MAX_IMAGE_BYTES", DefaultMaxImageBytes)),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogJSON:  getBool("LOG_JSON"),

		S3Bucket: getEnv("MODELS_S3_BUCKET", ""),
		S3Prefix: getEnv("MODELS_S3_PREFIX", "models"),

		DatabaseURL: ResolveDSN(),
	}
}

// BotConfig is what cmd/bot needs.
type BotConfig struct {
	TelegramBotToken string
	APIURL           string
	LogLevel         string
	LogJSON          bool
}

func LoadBot() *BotConfig {
	return &BotConfig{
		TelegramBotToken: mustEnv("TELEGRAM_BOT_TOKEN"),
		APIURL:           mustEnv("OCR_API_URL"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogJSON:          getBool("LOG_JSON"),
	}
}

// ResolveDSN prefers DATABASE_URL and otherwise builds a DSN from POSTGRES_*
// and PG* variables. Without POSTGRES_PASSWORD nothing is configured.
func ResolveDSN() string {
	if v := getEnv("DATABASE_URL", ""); v != "" {
		return v
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	if pass == "" {
		return ""
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("POSTGRES_USER", "ocr"), pass),
		Host:     net.JoinHostPort(getEnv("PGHOST", "db"), getEnv("PGPORT", "5432")),
		Path:     "/" + getEnv("POSTGRES_DB", "ocr"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// SafeDSNSummary strips credentials for logging.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	return "host=" + u.Host + " db=" + strings.TrimPrefix(u.Path, "/") + " user=" + u.User.Username()
}
