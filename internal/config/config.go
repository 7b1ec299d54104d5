package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMissingNaverCredentials is returned when the search API credentials are absent.
	ErrMissingNaverCredentials = errors.New("NAVER_CLIENT_ID and NAVER_CLIENT_SECRET are required")
	// ErrMissingMailCredentials is returned when notification is enabled without mail settings.
	ErrMissingMailCredentials = errors.New("NAVER_EMAIL, NAVER_PASSWORD and TO_EMAIL are required when NOTIFY_ENABLED is set")
)

// MaxDisplay is the largest page the search API serves.
const MaxDisplay = 100

// Common contains Elasticsearch parameters shared by the mirror services.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Naver holds search API access settings.
type Naver struct {
	ClientID     string
	ClientSecret string
	Endpoint     string
	Display      int
	Timeout      time.Duration
}

// Mail configures the run notification.
type Mail struct {
	Enabled  bool
	Username string
	Password string
	To       string
	Host     string
	Port     int
}

// Collector holds configuration for a collection run.
type Collector struct {
	Naver        Naver
	Mail         Mail
	Keywords     []string
	OutputPath   string
	MergePolicy  string
	CronSpec     string
	KafkaBrokers []string
	KafkaTopic   string
}

// Worker holds configuration for the Kafka -> Elasticsearch worker.
type Worker struct {
	Common
	KafkaBrokers   []string
	KafkaTopic     string
	KafkaConsumer  string
	TermLimit      int
	TermMinLength  int
	DedupeCapacity int
	DedupeTTL      time.Duration
	BatchSize      int
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr    string
	DefaultPage int
	MaxPage     int
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

// LoadCollector builds a Collector config from environment variables.
func LoadCollector() (*Collector, error) {
	c := &Collector{
		Naver: Naver{
			ClientID:     getEnv("NAVER_CLIENT_ID", ""),
			ClientSecret: getEnv("NAVER_CLIENT_SECRET", ""),
			Endpoint:     getEnv("NAVER_API_URL", "https://openapi.naver.com/v1/search/news.json"),
			Display:      getInt("NAVER_DISPLAY", 5),
			Timeout:      getDuration("NAVER_HTTP_TIMEOUT", "10s"),
		},
		Mail: Mail{
			Enabled:  getBool("NOTIFY_ENABLED", false),
			Username: getEnv("NAVER_EMAIL", ""),
			Password: getEnv("NAVER_PASSWORD", ""),
			To:       getEnv("TO_EMAIL", ""),
			Host:     getEnv("SMTP_HOST", "smtp.naver.com"),
			Port:     getInt("SMTP_PORT", 587),
		},
		Keywords:     splitAndTrim(getEnv("NEWS_KEYWORDS", "반도체,스마트폰")),
		OutputPath:   getEnv("NEWS_OUTPUT_PATH", "news_results.csv"),
		MergePolicy:  getEnv("MERGE_POLICY", "id"),
		CronSpec:     strings.TrimSpace(getEnv("COLLECTOR_CRON", "")),
		KafkaBrokers: splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "news_rows"),
	}

	if c.Naver.ClientID == "" || c.Naver.ClientSecret == "" {
		return nil, ErrMissingNaverCredentials
	}
	if c.Mail.Enabled && (c.Mail.Username == "" || c.Mail.Password == "" || c.Mail.To == "") {
		return nil, ErrMissingMailCredentials
	}
	if len(c.Keywords) == 0 {
		return nil, fmt.Errorf("NEWS_KEYWORDS must contain at least one keyword")
	}
	if c.Naver.Display <= 0 || c.Naver.Display > MaxDisplay {
		return nil, fmt.Errorf("NAVER_DISPLAY must be between 1 and %d", MaxDisplay)
	}
	if c.Naver.Timeout <= 0 {
		return nil, fmt.Errorf("NAVER_HTTP_TIMEOUT must be positive")
	}
	if c.Mail.Port <= 0 {
		return nil, fmt.Errorf("SMTP_PORT must be positive")
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Common:         loadCommon(),
		KafkaBrokers:   splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "news_rows"),
		KafkaConsumer:  getEnv("KAFKA_CONSUMER_GROUP", "news-worker"),
		TermLimit:      getInt("WORKER_TERM_LIMIT", 8),
		TermMinLength:  getInt("WORKER_TERM_MIN_LEN", 2),
		DedupeCapacity: getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:      getDuration("WORKER_DEDUPE_TTL", "24h"),
		BatchSize:      getInt("WORKER_BATCH_SIZE", 10),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	if c.TermLimit <= 0 {
		return nil, fmt.Errorf("WORKER_TERM_LIMIT must be positive")
	}
	if c.TermMinLength < 0 {
		return nil, fmt.Errorf("WORKER_TERM_MIN_LEN cannot be negative")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common:      loadCommon(),
		BindAddr:    getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultPage: getInt("API_PAGE_SIZE", 20),
		MaxPage:     getInt("API_MAX_PAGE_SIZE", 100),
	}

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:    loadCommon(),
		Interval:  getDuration("RETENTION_INTERVAL", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "720h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_INTERVAL must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "news_rows"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err == nil {
		return d
	}
	fd, ferr := time.ParseDuration(fallback)
	if ferr != nil {
		panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
	}
	return fd
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
