package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const (
	StoreBackendMemory   = "memory"
	StoreBackendPostgres = "postgres"
)

type Config struct {
	Env                string
	ServiceName        string
	Version            string
	HTTPPort           int
	LogLevel           string
	ConfigPath         string
	RequestTimeoutMS   int
	RequestTimeout     time.Duration
	ShutdownTimeoutSec int
	StoreBackend       string
	SeedSampleData     bool
	DatabaseURL        string
	DBMaxConns         int
	DBMinConns         int
	DBConnMaxIdleSec   int
	DBConnMaxLifeSec   int
	DBMigrate          bool
	KafkaBrokers       []string
	KafkaClientID      string
	KafkaGroupID       string
	KafkaTicketTopic   string
	KafkaWriteMS       int
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	AsynqRedisAddr     string
	AsynqRedisPass     string
	AsynqRedisDB       int
	AsynqQueue         string
	AsynqConcurrency   int
	OutboxScanSec      int
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	InfluxURL          string
	InfluxToken        string
	InfluxOrg          string
	InfluxBucket       string
	InfluxTimeoutMS    int
	OtelEndpoint       string
	OtelInsecure       bool
	OtelSampleRatio    float64
	ReceptionistID     string
	ReceptionistName   string
	ActivityLogLimit   int
	SuggestionLimit    int
	StatsIntervalSec   int
	StatsCacheTTLSec   int
	Timezone           string
	Location           *time.Location
	CORSAllowedOrigins []string
	SubmitRateRPS      float64
	SubmitRateBurst    int
}

func Load(serviceNameDefault string, httpPortDefault int) (Config, []Problem) {
	envRaw := strings.TrimSpace(os.Getenv("ENV"))
	cfg := Config{
		Env:                envRaw,
		ServiceName:        serviceNameDefault,
		HTTPPort:           httpPortDefault,
		LogLevel:           "info",
		ConfigPath:         strings.TrimSpace(os.Getenv("CONFIG_PATH")),
		RequestTimeoutMS:   30000,
		ShutdownTimeoutSec: 10,
		StoreBackend:       StoreBackendMemory,
		DBMaxConns:         10,
		DBMinConns:         1,
		DBConnMaxIdleSec:   300,
		DBConnMaxLifeSec:   1800,
		DBMigrate:          true,
		KafkaTicketTopic:   "ticket.events",
		KafkaWriteMS:       5000,
		AsynqQueue:         "default",
		AsynqConcurrency:   10,
		OutboxScanSec:      5,
		OutboxBatchSize:    50,
		OutboxMaxAttempts:  20,
		InfluxTimeoutMS:    5000,
		OtelInsecure:       true,
		OtelSampleRatio:    1.0,
		ReceptionistID:     "receptionist-1",
		ReceptionistName:   "Receptionist",
		ActivityLogLimit:   1000,
		SuggestionLimit:    5,
		StatsIntervalSec:   60,
		StatsCacheTTLSec:   120,
		Timezone:           "UTC",
		SubmitRateRPS:      2,
		SubmitRateBurst:    10,
	}

	problems := make([]Problem, 0, 4)
	envProvided := envRaw != ""

	if repoRoot, ok := findRepoRoot(); ok && cfg.Env != "" && cfg.ConfigPath == "" {
		cfg.ConfigPath = findEnvFile(filepath.Join(repoRoot, "configs"), cfg.Env)
	}

	fileData, fileProblems, ok := loadConfigFile(cfg.ConfigPath, strings.TrimSpace(os.Getenv("CONFIG_PATH")) != "")
	problems = append(problems, fileProblems...)
	if ok {
		if fileEnv, ok := readStringKey(fileData, "ENV"); ok && strings.TrimSpace(fileEnv) != "" {
			envProvided = true
		}
		applyConfigMap(&cfg, fileData, &problems)
	}

	applyConfigMap(&cfg, envValues(), &problems)

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if !envProvided {
		problems = append(problems, Problem{Field: "ENV", Message: "ENV is required"})
	}
	validate(&cfg, httpPortDefault, &problems)

	return cfg, problems
}

func validate(cfg *Config, httpPortDefault int, problems *[]Problem) {
	add := func(field, msg string) {
		*problems = append(*problems, Problem{Field: field, Message: msg})
	}

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		add("HTTP_PORT", "HTTP_PORT must be 1-65535")
		cfg.HTTPPort = httpPortDefault
	}
	if cfg.RequestTimeoutMS <= 0 {
		add("REQUEST_TIMEOUT_MS", "REQUEST_TIMEOUT_MS must be > 0")
		cfg.RequestTimeoutMS = 30000
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutMS) * time.Millisecond
	if cfg.ShutdownTimeoutSec <= 0 {
		add("SHUTDOWN_TIMEOUT_SECONDS", "SHUTDOWN_TIMEOUT_SECONDS must be > 0")
		cfg.ShutdownTimeoutSec = 10
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	switch cfg.StoreBackend {
	case StoreBackendMemory:
	case StoreBackendPostgres:
		if cfg.DatabaseURL == "" {
			add("DATABASE_URL", "DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		add("STORE_BACKEND", "STORE_BACKEND must be memory or postgres")
		cfg.StoreBackend = StoreBackendMemory
	}

	if cfg.DBMaxConns <= 0 {
		add("DB_MAX_CONNS", "DB_MAX_CONNS must be > 0")
		cfg.DBMaxConns = 10
	}
	if cfg.DBMinConns < 0 {
		add("DB_MIN_CONNS", "DB_MIN_CONNS must be >= 0")
		cfg.DBMinConns = 1
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		add("DB_MIN_CONNS", "DB_MIN_CONNS must be <= DB_MAX_CONNS")
		cfg.DBMinConns = cfg.DBMaxConns
	}
	if cfg.DBConnMaxIdleSec <= 0 {
		add("DB_CONN_MAX_IDLE_SECONDS", "DB_CONN_MAX_IDLE_SECONDS must be > 0")
		cfg.DBConnMaxIdleSec = 300
	}
	if cfg.DBConnMaxLifeSec <= 0 {
		add("DB_CONN_MAX_LIFETIME_SECONDS", "DB_CONN_MAX_LIFETIME_SECONDS must be > 0")
		cfg.DBConnMaxLifeSec = 1800
	}
	if cfg.KafkaWriteMS <= 0 {
		add("KAFKA_WRITE_TIMEOUT_MS", "KAFKA_WRITE_TIMEOUT_MS must be > 0")
		cfg.KafkaWriteMS = 5000
	}
	if cfg.RedisDB < 0 {
		add("REDIS_DB", "REDIS_DB must be >= 0")
		cfg.RedisDB = 0
	}
	if cfg.AsynqRedisDB < 0 {
		add("ASYNQ_REDIS_DB", "ASYNQ_REDIS_DB must be >= 0")
		cfg.AsynqRedisDB = 0
	}
	if cfg.AsynqConcurrency <= 0 {
		add("ASYNQ_CONCURRENCY", "ASYNQ_CONCURRENCY must be > 0")
		cfg.AsynqConcurrency = 10
	}
	if cfg.OutboxScanSec <= 0 {
		add("OUTBOX_SCAN_INTERVAL_SECONDS", "OUTBOX_SCAN_INTERVAL_SECONDS must be > 0")
		cfg.OutboxScanSec = 5
	}
	if cfg.OutboxBatchSize <= 0 {
		add("OUTBOX_BATCH_SIZE", "OUTBOX_BATCH_SIZE must be > 0")
		cfg.OutboxBatchSize = 50
	}
	if cfg.OutboxMaxAttempts <= 0 {
		add("OUTBOX_MAX_ATTEMPTS", "OUTBOX_MAX_ATTEMPTS must be > 0")
		cfg.OutboxMaxAttempts = 20
	}
	if cfg.InfluxTimeoutMS <= 0 {
		add("INFLUX_TIMEOUT_MS", "INFLUX_TIMEOUT_MS must be > 0")
		cfg.InfluxTimeoutMS = 5000
	}
	if cfg.OtelSampleRatio < 0 || cfg.OtelSampleRatio > 1 {
		add("OTEL_SAMPLE_RATIO", "OTEL_SAMPLE_RATIO must be 0-1")
		cfg.OtelSampleRatio = 1.0
	}
	if strings.TrimSpace(cfg.ReceptionistID) == "" {
		add("RECEPTIONIST_ID", "RECEPTIONIST_ID must not be empty")
		cfg.ReceptionistID = "receptionist-1"
	}
	if cfg.ActivityLogLimit <= 0 {
		add("ACTIVITY_LOG_LIMIT", "ACTIVITY_LOG_LIMIT must be > 0")
		cfg.ActivityLogLimit = 1000
	}
	if cfg.SuggestionLimit <= 0 {
		add("SUGGESTION_LIMIT", "SUGGESTION_LIMIT must be > 0")
		cfg.SuggestionLimit = 5
	}
	if cfg.StatsIntervalSec <= 0 {
		add("STATS_INTERVAL_SECONDS", "STATS_INTERVAL_SECONDS must be > 0")
		cfg.StatsIntervalSec = 60
	}
	if cfg.StatsCacheTTLSec <= 0 {
		add("STATS_CACHE_TTL_SECONDS", "STATS_CACHE_TTL_SECONDS must be > 0")
		cfg.StatsCacheTTLSec = 120
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		add("TIMEZONE", fmt.Sprintf("unknown timezone %q", cfg.Timezone))
		loc = time.UTC
	}
	cfg.Location = loc
	if cfg.SubmitRateRPS < 0 {
		add("SUBMIT_RATE_RPS", "SUBMIT_RATE_RPS must be >= 0")
		cfg.SubmitRateRPS = 2
	}
	if cfg.SubmitRateBurst <= 0 {
		add("SUBMIT_RATE_BURST", "SUBMIT_RATE_BURST must be > 0")
		cfg.SubmitRateBurst = 10
	}
}

func findRepoRoot() (string, bool) {
	start, err := os.Getwd()
	if err != nil {
		return "", false
	}
	dir := start
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			if fi, err := os.Stat(filepath.Join(dir, "configs")); err == nil && fi.IsDir() {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

func findEnvFile(dir string, env string) string {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		candidate := filepath.Join(dir, env+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func loadConfigFile(path string, explicit bool) (map[string]any, []Problem, bool) {
	if strings.TrimSpace(path) == "" {
		return nil, nil, false
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if explicit && errors.Is(err, os.ErrNotExist) {
			return nil, []Problem{{Field: "CONFIG_PATH", Message: "config file not found"}}, false
		}
		if explicit {
			return nil, []Problem{{Field: "CONFIG_PATH", Message: fmt.Sprintf("failed to read config file: %v", err)}}, false
		}
		return nil, nil, false
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return nil, []Problem{{Field: "CONFIG_PATH", Message: fmt.Sprintf("invalid yaml: %v", err)}}, false
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, []Problem{{Field: "CONFIG_PATH", Message: fmt.Sprintf("invalid json: %v", err)}}, false
		}
	}
	return raw, nil, true
}

// envValues collects every known key that is set in the process environment.
func envValues() map[string]any {
	out := map[string]any{}
	for _, b := range bindings {
		if v, ok := os.LookupEnv(b.key); ok && strings.TrimSpace(v) != "" {
			out[b.key] = v
		}
	}
	if _, ok := out["HTTP_PORT"]; !ok {
		if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
			out["HTTP_PORT"] = v
		}
	}
	return out
}

type binding struct {
	key   string
	set   func(cfg *Config, v any) bool
	wants string
}

func str(dst func(*Config) *string) func(*Config, any) bool {
	return func(cfg *Config, v any) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		*dst(cfg) = strings.TrimSpace(s)
		return true
	}
}

func num(dst func(*Config) *int) func(*Config, any) bool {
	return func(cfg *Config, v any) bool {
		i, ok := asInt(v)
		if ok {
			*dst(cfg) = i
		}
		return ok
	}
}

func flt(dst func(*Config) *float64) func(*Config, any) bool {
	return func(cfg *Config, v any) bool {
		f, ok := asFloat(v)
		if ok {
			*dst(cfg) = f
		}
		return ok
	}
}

func boolean(dst func(*Config) *bool) func(*Config, any) bool {
	return func(cfg *Config, v any) bool {
		switch t := v.(type) {
		case bool:
			*dst(cfg) = t
			return true
		case string:
			b, ok := asBool(t)
			if ok {
				*dst(cfg) = b
			}
			return ok
		}
		return false
	}
}

func list(dst func(*Config) *[]string) func(*Config, any) bool {
	return func(cfg *Config, v any) bool {
		switch t := v.(type) {
		case string:
			*dst(cfg) = parseCSV(t)
		case []any:
			*dst(cfg) = parseAnyCSV(t)
		default:
			return false
		}
		return true
	}
}

var bindings = []binding{
	{"ENV", str(func(c *Config) *string { return &c.Env }), "a string"},
	{"SERVICE_NAME", str(func(c *Config) *string { return &c.ServiceName }), "a string"},
	{"SERVICE_VERSION", str(func(c *Config) *string { return &c.Version }), "a string"},
	{"HTTP_PORT", num(func(c *Config) *int { return &c.HTTPPort }), "an integer"},
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.LogLevel }), "a string"},
	{"REQUEST_TIMEOUT_MS", num(func(c *Config) *int { return &c.RequestTimeoutMS }), "an integer"},
	{"SHUTDOWN_TIMEOUT_SECONDS", num(func(c *Config) *int { return &c.ShutdownTimeoutSec }), "an integer"},
	{"STORE_BACKEND", str(func(c *Config) *string { return &c.StoreBackend }), "a string"},
	{"SEED_SAMPLE_DATA", boolean(func(c *Config) *bool { return &c.SeedSampleData }), "a boolean"},
	{"DATABASE_URL", str(func(c *Config) *string { return &c.DatabaseURL }), "a string"},
	{"DB_MAX_CONNS", num(func(c *Config) *int { return &c.DBMaxConns }), "an integer"},
	{"DB_MIN_CONNS", num(func(c *Config) *int { return &c.DBMinConns }), "an integer"},
	{"DB_CONN_MAX_IDLE_SECONDS", num(func(c *Config) *int { return &c.DBConnMaxIdleSec }), "an integer"},
	{"DB_CONN_MAX_LIFETIME_SECONDS", num(func(c *Config) *int { return &c.DBConnMaxLifeSec }), "an integer"},
	{"DB_MIGRATE", boolean(func(c *Config) *bool { return &c.DBMigrate }), "a boolean"},
	{"KAFKA_BROKERS", list(func(c *Config) *[]string { return &c.KafkaBrokers }), "a comma separated list"},
	{"KAFKA_CLIENT_ID", str(func(c *Config) *string { return &c.KafkaClientID }), "a string"},
	{"KAFKA_GROUP_ID", str(func(c *Config) *string { return &c.KafkaGroupID }), "a string"},
	{"KAFKA_TICKET_TOPIC", str(func(c *Config) *string { return &c.KafkaTicketTopic }), "a string"},
	{"KAFKA_WRITE_TIMEOUT_MS", num(func(c *Config) *int { return &c.KafkaWriteMS }), "an integer"},
	{"REDIS_ADDR", str(func(c *Config) *string { return &c.RedisAddr }), "a string"},
	{"REDIS_PASSWORD", str(func(c *Config) *string { return &c.RedisPassword }), "a string"},
	{"REDIS_DB", num(func(c *Config) *int { return &c.RedisDB }), "an integer"},
	{"ASYNQ_REDIS_ADDR", str(func(c *Config) *string { return &c.AsynqRedisAddr }), "a string"},
	{"ASYNQ_REDIS_PASSWORD", str(func(c *Config) *string { return &c.AsynqRedisPass }), "a string"},
	{"ASYNQ_REDIS_DB", num(func(c *Config) *int { return &c.AsynqRedisDB }), "an integer"},
	{"ASYNQ_QUEUE", str(func(c *Config) *string { return &c.AsynqQueue }), "a string"},
	{"ASYNQ_CONCURRENCY", num(func(c *Config) *int { return &c.AsynqConcurrency }), "an integer"},
	{"OUTBOX_SCAN_INTERVAL_SECONDS", num(func(c *Config) *int { return &c.OutboxScanSec }), "an integer"},
	{"OUTBOX_BATCH_SIZE", num(func(c *Config) *int { return &c.OutboxBatchSize }), "an integer"},
	{"OUTBOX_MAX_ATTEMPTS", num(func(c *Config) *int { return &c.OutboxMaxAttempts }), "an integer"},
	{"INFLUX_URL", str(func(c *Config) *string { return &c.InfluxURL }), "a string"},
	{"INFLUX_TOKEN", str(func(c *Config) *string { return &c.InfluxToken }), "a string"},
	{"INFLUX_ORG", str(func(c *Config) *string { return &c.InfluxOrg }), "a string"},
	{"INFLUX_BUCKET", str(func(c *Config) *string { return &c.InfluxBucket }), "a string"},
	{"INFLUX_TIMEOUT_MS", num(func(c *Config) *int { return &c.InfluxTimeoutMS }), "an integer"},
	{"OTEL_EXPORTER_OTLP_ENDPOINT", str(func(c *Config) *string { return &c.OtelEndpoint }), "a string"},
	{"OTEL_EXPORTER_OTLP_INSECURE", boolean(func(c *Config) *bool { return &c.OtelInsecure }), "a boolean"},
	{"OTEL_SAMPLE_RATIO", flt(func(c *Config) *float64 { return &c.OtelSampleRatio }), "a number"},
	{"RECEPTIONIST_ID", str(func(c *Config) *string { return &c.ReceptionistID }), "a string"},
	{"RECEPTIONIST_NAME", str(func(c *Config) *string { return &c.ReceptionistName }), "a string"},
	{"ACTIVITY_LOG_LIMIT", num(func(c *Config) *int { return &c.ActivityLogLimit }), "an integer"},
	{"SUGGESTION_LIMIT", num(func(c *Config) *int { return &c.SuggestionLimit }), "an integer"},
	{"STATS_INTERVAL_SECONDS", num(func(c *Config) *int { return &c.StatsIntervalSec }), "an integer"},
	{"STATS_CACHE_TTL_SECONDS", num(func(c *Config) *int { return &c.StatsCacheTTLSec }), "an integer"},
	{"TIMEZONE", str(func(c *Config) *string { return &c.Timezone }), "a string"},
	{"CORS_ALLOWED_ORIGINS", list(func(c *Config) *[]string { return &c.CORSAllowedOrigins }), "a comma separated list"},
	{"SUBMIT_RATE_RPS", flt(func(c *Config) *float64 { return &c.SubmitRateRPS }), "a number"},
	{"SUBMIT_RATE_BURST", num(func(c *Config) *int { return &c.SubmitRateBurst }), "an integer"},
}

func applyConfigMap(cfg *Config, raw map[string]any, problems *[]Problem) {
	for k, v := range raw {
		key := strings.ToUpper(strings.TrimSpace(k))
		for _, b := range bindings {
			if b.key != key {
				continue
			}
			if !b.set(cfg, v) {
				*problems = append(*problems, Problem{Field: key, Message: fmt.Sprintf("%s must be %s", key, b.wants)})
			}
			break
		}
	}
}

func readStringKey(raw map[string]any, key string) (string, bool) {
	for k, v := range raw {
		if strings.EqualFold(strings.TrimSpace(k), key) {
			s, ok := v.(string)
			return s, ok
		}
	}
	return "", false
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		i, err := t.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		return i, err == nil
	default:
		return 0, false
	}
}

func asBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "y":
		return true, true
	case "false", "0", "no", "n":
		return false, true
	default:
		return false, false
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func parseCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseAnyCSV(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
