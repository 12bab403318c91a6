// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Flags     FlagsConfig     `mapstructure:"flags"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Migration MigrationConfig `mapstructure:"migration"`
	Editor    EditorConfig    `mapstructure:"editor"`
	Player    PlayerConfig    `mapstructure:"player"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	PublicBaseURL   string `mapstructure:"public_base_url"`  // used for share links
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	SweepInterval   int    `mapstructure:"sweep_interval"`   // milliseconds
}

// Store backends.
const (
	BackendMemory        = "memory"
	BackendMongoDB       = "mongodb"
	BackendPostgres      = "postgres"
	BackendElasticsearch = "elasticsearch"
	BackendRedis         = "redis"
)

// StoreConfig selects the document store holding funnels.
type StoreConfig struct {
	Backend    string `mapstructure:"backend"`
	Collection string `mapstructure:"collection"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
}

// FlagsConfig selects the durable key/value store holding the migration flag
// and the legacy pre-migration quiz data.
type FlagsConfig struct {
	Backend   string `mapstructure:"backend"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type DatabaseConfig struct {
	MongoDB       MongoDBConfig       `mapstructure:"mongodb"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses   []string `mapstructure:"addresses"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	IndexPrefix string   `mapstructure:"index_prefix"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Domain Configuration ---

// MigrationConfig names the keys of the one-time legacy migration.
type MigrationConfig struct {
	FlagKey         string `mapstructure:"flag_key"`
	LegacyQuestions string `mapstructure:"legacy_questions_key"`
	LegacyLinks     string `mapstructure:"legacy_links_key"`
	MigratedName    string `mapstructure:"migrated_name"`
}

type EditorConfig struct {
	AutosaveDelay      int `mapstructure:"autosave_delay"`       // milliseconds
	SessionIdleTimeout int `mapstructure:"session_idle_timeout"` // milliseconds
}

type PlayerConfig struct {
	AnswerDelay        int    `mapstructure:"answer_delay"` // milliseconds
	PlaceholderURL     string `mapstructure:"placeholder_url"`
	SessionIdleTimeout int    `mapstructure:"session_idle_timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
