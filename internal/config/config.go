package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/tablesync/internal/core"
)

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv.
const EnvPrefix = "TABLESYNC_"

// Config is the complete configuration of a tablesync process.
type Config struct {
	Connections map[string]core.AdapterConfig `yaml:"connections" json:"connections"`
	Store       StoreConfig                   `yaml:"store" json:"store"`
	Sync        SyncConfig                    `yaml:"sync" json:"sync"`
	Jobs        JobsConfig                    `yaml:"jobs" json:"jobs"`
	Logging     LoggingConfig                 `yaml:"logging" json:"logging"`
}

// StoreConfig selects the KVStore that holds schema and index metadata.
type StoreConfig struct {
	Type         string         `yaml:"type" json:"type"`
	Path         string         `yaml:"path,omitempty" json:"path,omitempty"`
	KeyPrefix    string         `yaml:"key_prefix,omitempty" json:"key_prefix,omitempty"`
	Redis        RedisConfig    `yaml:"redis,omitempty" json:"redis,omitempty"`
	DynamoDB     DynamoDBConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
	MaxRetries   int            `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	DialTimeout  time.Duration  `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration  `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration  `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Endpoints    []string `yaml:"endpoints" json:"endpoints"`
	Password     string   `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int      `yaml:"db" json:"db"`
	PoolSize     int      `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int      `yaml:"min_idle_conns" json:"min_idle_conns"`
}

// DynamoDBConfig contains settings for the DynamoDB-backed store.
type DynamoDBConfig struct {
	Region          string `yaml:"region" json:"region"`
	TableName       string `yaml:"table_name" json:"table_name"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// SyncConfig names the default source and target of a synchronization.
type SyncConfig struct {
	Source         string   `yaml:"source" json:"source"`
	Target         string   `yaml:"target" json:"target"`
	SourceTable    string   `yaml:"source_table" json:"source_table"`
	TargetTable    string   `yaml:"target_table" json:"target_table"`
	IdentifierKeys []string `yaml:"identifier_keys" json:"identifier_keys"`
	Database       string   `yaml:"database" json:"database"`
}

// JobsConfig controls the sync job queue and worker.
type JobsConfig struct {
	QueueType       string        `yaml:"queue_type" json:"queue_type"`
	QueueBufferSize int           `yaml:"queue_buffer_size" json:"queue_buffer_size"`
	QueuePrefix     string        `yaml:"queue_prefix" json:"queue_prefix"`
	Rate            int           `yaml:"rate" json:"rate"` // jobs per second
	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	PollInterval    time.Duration `yaml:"poll_interval" json:"poll_interval"`
	MaxRetries      int           `yaml:"max_retries" json:"max_retries"`
	RetryBackoff    time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
	RetryBackoffMax time.Duration `yaml:"retry_backoff_max" json:"retry_backoff_max"`
	Kafka           KafkaConfig   `yaml:"kafka" json:"kafka"`
}

// KafkaConfig contains Kafka settings for the job queue.
type KafkaConfig struct {
	Brokers         []string      `yaml:"brokers" json:"brokers"`
	Topic           string        `yaml:"topic" json:"topic"`
	GroupID         string        `yaml:"group_id" json:"group_id"`
	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout    time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	RequiredAcks    int           `yaml:"required_acks" json:"required_acks"`
	MaxMessageBytes int           `yaml:"max_message_bytes" json:"max_message_bytes"`
	MinBytes        int           `yaml:"min_bytes" json:"min_bytes"`
	MaxBytes        int           `yaml:"max_bytes" json:"max_bytes"`
	MaxWait         time.Duration `yaml:"max_wait" json:"max_wait"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	File       string `yaml:"file,omitempty" json:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `yaml:"compress" json:"compress"`
	Quiet      bool   `yaml:"quiet" json:"quiet"`
}

// Connection returns the named connection with its Name filled in.
func (c *Config) Connection(name string) (core.AdapterConfig, bool) {
	conn, ok := c.Connections[name]
	if !ok {
		return core.AdapterConfig{}, false
	}
	if conn.Name == "" {
		conn.Name = name
	}
	return conn, true
}

// ConnectionNames returns the configured connection names in sorted order.
func (c *Config) ConnectionNames() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Manager loads and validates configuration from files, raw data and the environment.
type Manager struct {
	config *Config
}

// NewManager creates a manager holding the default configuration.
func NewManager() *Manager {
	return &Manager{config: Default()}
}

// Default returns a configuration with sensible defaults: an in-memory store,
// an in-memory job queue and the "Id" identifier convention.
func Default() *Config {
	return &Config{
		Connections: make(map[string]core.AdapterConfig),
		Store: StoreConfig{
			Type:      "memory",
			Path:      "tablesync-store",
			KeyPrefix: "tablesync:",
			Redis: RedisConfig{
				Endpoints:    []string{"localhost:6379"},
				PoolSize:     10,
				MinIdleConns: 2,
			},
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Sync: SyncConfig{
			SourceTable:    "SourceTable",
			TargetTable:    "TargetTable",
			IdentifierKeys: append([]string(nil), core.DefaultIdentifierKeys...),
			Database:       "default",
		},
		Jobs: JobsConfig{
			QueueType:       "memory",
			QueueBufferSize: 10000,
			QueuePrefix:     "tablesync:jobs",
			Rate:            10,
			BatchSize:       10,
			PollInterval:    time.Second,
			MaxRetries:      3,
			RetryBackoff:    time.Second,
			RetryBackoffMax: 30 * time.Second,
			Kafka: KafkaConfig{
				Brokers:         []string{"localhost:9092"},
				Topic:           "tablesync-jobs",
				GroupID:         "tablesync-workers",
				BatchSize:       100,
				BatchTimeout:    10 * time.Millisecond,
				WriteTimeout:    10 * time.Second,
				ReadTimeout:     10 * time.Second,
				RequiredAcks:    -1,
				MaxMessageBytes: 1000000,
				MinBytes:        1,
				MaxBytes:        10 * 1024 * 1024,
				MaxWait:         100 * time.Millisecond,
			},
		},
		Logging: LoggingConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file chosen by extension.
func (m *Manager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		return m.LoadFromYAML(data)
	case ".json":
		return m.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// LoadFromYAML loads configuration from YAML data on top of the defaults.
func (m *Manager) LoadFromYAML(data []byte) error {
	config := Default()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	return m.apply(config)
}

// LoadFromJSON loads configuration from JSON data on top of the defaults.
func (m *Manager) LoadFromJSON(data []byte) error {
	config := Default()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}
	return m.apply(config)
}

// LoadFromEnv overlays environment variables on the current configuration.
// Variables follow TABLESYNC_<SECTION>_<KEY>, for example:
//   - TABLESYNC_STORE_TYPE=redis
//   - TABLESYNC_STORE_REDIS_ENDPOINTS=localhost:6379,localhost:6380
//   - TABLESYNC_SYNC_SOURCE_TABLE=Customers
//   - TABLESYNC_JOBS_QUEUE_TYPE=kafka
//
// Connections use TABLESYNC_CONNECTION_<NAME>_<KEY>, e.g. TABLESYNC_CONNECTION_TARGET_DSN.
func (m *Manager) LoadFromEnv() error {
	config := m.snapshot()

	envString("STORE_TYPE", &config.Store.Type)
	envString("STORE_PATH", &config.Store.Path)
	envString("STORE_KEY_PREFIX", &config.Store.KeyPrefix)
	envList("STORE_REDIS_ENDPOINTS", &config.Store.Redis.Endpoints)
	envString("STORE_REDIS_PASSWORD", &config.Store.Redis.Password)
	envInt("STORE_REDIS_DB", &config.Store.Redis.DB)
	envInt("STORE_REDIS_POOL_SIZE", &config.Store.Redis.PoolSize)
	envString("STORE_DYNAMODB_REGION", &config.Store.DynamoDB.Region)
	envString("STORE_DYNAMODB_TABLE_NAME", &config.Store.DynamoDB.TableName)
	envString("STORE_DYNAMODB_ENDPOINT", &config.Store.DynamoDB.Endpoint)
	envString("STORE_DYNAMODB_ACCESS_KEY_ID", &config.Store.DynamoDB.AccessKeyID)
	envString("STORE_DYNAMODB_SECRET_ACCESS_KEY", &config.Store.DynamoDB.SecretAccessKey)
	envInt("STORE_MAX_RETRIES", &config.Store.MaxRetries)
	envDuration("STORE_DIAL_TIMEOUT", &config.Store.DialTimeout)

	envString("SYNC_SOURCE", &config.Sync.Source)
	envString("SYNC_TARGET", &config.Sync.Target)
	envString("SYNC_SOURCE_TABLE", &config.Sync.SourceTable)
	envString("SYNC_TARGET_TABLE", &config.Sync.TargetTable)
	envList("SYNC_IDENTIFIER_KEYS", &config.Sync.IdentifierKeys)
	envString("SYNC_DATABASE", &config.Sync.Database)

	envString("JOBS_QUEUE_TYPE", &config.Jobs.QueueType)
	envInt("JOBS_QUEUE_BUFFER_SIZE", &config.Jobs.QueueBufferSize)
	envInt("JOBS_RATE", &config.Jobs.Rate)
	envInt("JOBS_BATCH_SIZE", &config.Jobs.BatchSize)
	envDuration("JOBS_POLL_INTERVAL", &config.Jobs.PollInterval)
	envInt("JOBS_MAX_RETRIES", &config.Jobs.MaxRetries)
	envDuration("JOBS_RETRY_BACKOFF", &config.Jobs.RetryBackoff)
	envList("JOBS_KAFKA_BROKERS", &config.Jobs.Kafka.Brokers)
	envString("JOBS_KAFKA_TOPIC", &config.Jobs.Kafka.Topic)
	envString("JOBS_KAFKA_GROUP_ID", &config.Jobs.Kafka.GroupID)

	envString("LOGGING_FILE", &config.Logging.File)
	envInt("LOGGING_MAX_SIZE_MB", &config.Logging.MaxSizeMB)
	envBool("LOGGING_COMPRESS", &config.Logging.Compress)
	envBool("LOGGING_QUIET", &config.Logging.Quiet)

	loadConnectionsFromEnv(config)

	return m.apply(config)
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	return m.config
}

// snapshot deep-copies the parts of the current configuration that env loading mutates.
func (m *Manager) snapshot() *Config {
	c := *m.config
	c.Connections = make(map[string]core.AdapterConfig, len(m.config.Connections))
	for k, v := range m.config.Connections {
		c.Connections[k] = v
	}
	c.Store.Redis.Endpoints = append([]string(nil), m.config.Store.Redis.Endpoints...)
	c.Sync.IdentifierKeys = append([]string(nil), m.config.Sync.IdentifierKeys...)
	c.Jobs.Kafka.Brokers = append([]string(nil), m.config.Jobs.Kafka.Brokers...)
	return &c
}

func (m *Manager) apply(config *Config) error {
	if config.Connections == nil {
		config.Connections = make(map[string]core.AdapterConfig)
	}
	for name, conn := range config.Connections {
		if conn.Name == "" {
			conn.Name = name
			config.Connections[name] = conn
		}
	}
	if err := Validate(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	m.config = config
	return nil
}

// Validate checks a configuration. Store and connection sections are checked
// by the validator registered for their type.
func Validate(config *Config) error {
	if config.Store.Type == "" {
		return fmt.Errorf("store.type is required")
	}
	storeValidator, exists := GetStoreValidator(config.Store.Type)
	if !exists {
		return fmt.Errorf("unsupported store type: %s", config.Store.Type)
	}
	if err := storeValidator.Validate(config.Store); err != nil {
		return fmt.Errorf("store validation failed: %w", err)
	}

	for _, name := range config.ConnectionNames() {
		conn := config.Connections[name]
		if conn.Type == "" {
			return fmt.Errorf("connections.%s.type is required", name)
		}
		validator, exists := GetConnectionValidator(conn.Type)
		if !exists {
			return fmt.Errorf("connections.%s: unsupported adapter type: %s", name, conn.Type)
		}
		if err := validator.Validate(conn); err != nil {
			return fmt.Errorf("connections.%s validation failed: %w", name, err)
		}
	}

	if config.Sync.Source != "" {
		if _, ok := config.Connections[config.Sync.Source]; !ok {
			return fmt.Errorf("sync.source refers to unknown connection %q", config.Sync.Source)
		}
	}
	if config.Sync.Target != "" {
		if _, ok := config.Connections[config.Sync.Target]; !ok {
			return fmt.Errorf("sync.target refers to unknown connection %q", config.Sync.Target)
		}
	}
	if config.Sync.SourceTable == "" || config.Sync.TargetTable == "" {
		return fmt.Errorf("sync.source_table and sync.target_table are required")
	}
	if config.Sync.Database == "" {
		return fmt.Errorf("sync.database is required")
	}

	switch config.Jobs.QueueType {
	case "memory", "redis", "kafka":
	default:
		return fmt.Errorf("jobs.queue_type must be 'memory', 'redis', or 'kafka'")
	}
	if config.Jobs.QueueType == "kafka" {
		if len(config.Jobs.Kafka.Brokers) == 0 {
			return fmt.Errorf("jobs.kafka.brokers is required when queue_type is 'kafka'")
		}
		if config.Jobs.Kafka.Topic == "" {
			return fmt.Errorf("jobs.kafka.topic is required when queue_type is 'kafka'")
		}
	}
	if config.Jobs.QueueType == "redis" && len(config.Store.Redis.Endpoints) == 0 {
		return fmt.Errorf("store.redis.endpoints is required when queue_type is 'redis'")
	}
	if config.Jobs.Rate <= 0 {
		return fmt.Errorf("jobs.rate must be greater than 0")
	}
	if config.Jobs.BatchSize <= 0 {
		return fmt.Errorf("jobs.batch_size must be greater than 0")
	}
	if config.Jobs.MaxRetries < 0 {
		return fmt.Errorf("jobs.max_retries must be non-negative")
	}

	if config.Logging.File != "" && config.Logging.MaxSizeMB <= 0 {
		return fmt.Errorf("logging.max_size_mb must be greater than 0")
	}

	return nil
}

// loadConnectionsFromEnv reads TABLESYNC_CONNECTION_<NAME>_<KEY> variables.
// Connection names are lower-cased.
func loadConnectionsFromEnv(config *Config) {
	const connPrefix = EnvPrefix + "CONNECTION_"
	keys := []string{"TYPE", "DIALECT", "DSN", "HOST", "PORT", "DATABASE", "USERNAME", "PASSWORD",
		"REGION", "ENDPOINT", "ACCESS_KEY_ID", "SECRET_ACCESS_KEY", "TABLE_PREFIX", "IDENTIFIER_KEYS", "WRITE_RATE"}

	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, connPrefix) {
			continue
		}
		rest := strings.TrimPrefix(name, connPrefix)
		for _, key := range keys {
			if !strings.HasSuffix(rest, "_"+key) {
				continue
			}
			connName := strings.ToLower(strings.TrimSuffix(rest, "_"+key))
			if connName == "" {
				break
			}
			conn := config.Connections[connName]
			conn.Name = connName
			setConnectionField(&conn, key, value)
			config.Connections[connName] = conn
			break
		}
	}
}

func setConnectionField(conn *core.AdapterConfig, key, value string) {
	switch key {
	case "TYPE":
		conn.Type = value
	case "DIALECT":
		conn.Dialect = value
	case "DSN":
		conn.DSN = value
	case "HOST":
		conn.Host = value
	case "PORT":
		fmt.Sscanf(value, "%d", &conn.Port)
	case "DATABASE":
		conn.Database = value
	case "USERNAME":
		conn.Username = value
	case "PASSWORD":
		conn.Password = value
	case "REGION":
		conn.Region = value
	case "ENDPOINT":
		conn.Endpoint = value
	case "ACCESS_KEY_ID":
		conn.AccessKeyID = value
	case "SECRET_ACCESS_KEY":
		conn.SecretAccessKey = value
	case "TABLE_PREFIX":
		conn.TablePrefix = value
	case "IDENTIFIER_KEYS":
		conn.IdentifierKeys = splitList(value)
	case "WRITE_RATE":
		fmt.Sscanf(value, "%d", &conn.WriteRate)
	}
}

func envString(key string, dst *string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		var n int
		if _, err := fmt.Sscanf(val, "%d", &n); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val == "true" || val == "1"
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envList(key string, dst *[]string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = splitList(val)
	}
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
