// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderLocal    = "local"
	ProviderOneDrive = "onedrive"
	ProviderGraph    = "graph"
	ProviderMinIO    = "minio"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// base config, then config.{env} merged over it
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	// STORAGE_ONEDRIVE_CLIENT_ID overrides storage.onedrive.client_id
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills values still empty after unmarshal from the flat
// environment names used by existing deployments.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty := func(dst *string, envKey string) {
		if *dst != "" {
			return
		}
		if val := os.Getenv(envKey); val != "" {
			*dst = val
		}
	}

	setIfEmpty(&cfg.Storage.Provider, "STORAGE_PROVIDER")
	setIfEmpty(&cfg.Storage.Local.Path, "LOCAL_STORAGE_PATH")

	setIfEmpty(&cfg.Storage.OneDrive.TenantID, "AZURE_TENANT_ID")
	setIfEmpty(&cfg.Storage.OneDrive.ClientID, "AZURE_CLIENT_ID")
	setIfEmpty(&cfg.Storage.OneDrive.CertPath, "CERT_PATH")
	setIfEmpty(&cfg.Storage.OneDrive.CertPassword, "CERT_PASSWORD")
	setIfEmpty(&cfg.Storage.OneDrive.APIVersion, "GRAPH_API_VERSION")
	setIfEmpty(&cfg.Storage.OneDrive.RootFolder, "ONEDRIVE_ROOT_FOLDER")

	setIfEmpty(&cfg.Documents.DocxTemplatesPath, "DOCX_TEMPLATES_PATH")
	setIfEmpty(&cfg.Documents.PptxTemplatesPath, "PPTX_TEMPLATES_PATH")
	setIfEmpty(&cfg.Documents.PdfTemplatesPath, "PDF_TEMPLATES_PATH")

	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.HTTPPort == 0 {
		cfg.App.HTTPPort = 8080
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Document defaults
	if cfg.Documents.DocxTemplatesPath == "" {
		cfg.Documents.DocxTemplatesPath = "./data/templates/docx"
	}
	if cfg.Documents.PptxTemplatesPath == "" {
		cfg.Documents.PptxTemplatesPath = "./data/templates/pptx"
	}
	if cfg.Documents.PdfTemplatesPath == "" {
		cfg.Documents.PdfTemplatesPath = "./data/templates/pdf"
	}
	if cfg.Documents.OutputDir == "" {
		cfg.Documents.OutputDir = "./data/output"
	}

	// Storage defaults
	if cfg.Storage.Provider == "" {
		cfg.Storage.Provider = ProviderLocal
	}
	cfg.Storage.Provider = strings.ToLower(cfg.Storage.Provider)
	if cfg.Storage.Local.Path == "" {
		cfg.Storage.Local.Path = "./data/storage"
	}
	if cfg.Storage.OneDrive.APIVersion == "" {
		cfg.Storage.OneDrive.APIVersion = "v1.0"
	}
	if cfg.Storage.OneDrive.RootFolder == "" {
		cfg.Storage.OneDrive.RootFolder = "GeneratedDocuments"
	}
	if cfg.Storage.OneDrive.AuthorityURL == "" {
		cfg.Storage.OneDrive.AuthorityURL = "https://login.microsoftonline.com"
	}
	if cfg.Storage.OneDrive.RequestTimeout == 0 {
		cfg.Storage.OneDrive.RequestTimeout = 60000
	}
	if cfg.Storage.MinIO.PresignExpiry == 0 {
		cfg.Storage.MinIO.PresignExpiry = 3600
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 300000
	}
	if cfg.Audit.Postgres.Table == "" {
		cfg.Audit.Postgres.Table = "document_generations"
	}
	if cfg.Audit.Elasticsearch.Index == "" {
		cfg.Audit.Elasticsearch.Index = "document-generations"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	switch cfg.Storage.Provider {
	case ProviderLocal:
		// path always has a default
	case ProviderOneDrive, ProviderGraph:
		od := cfg.Storage.OneDrive
		if od.TenantID == "" || od.ClientID == "" {
			return fmt.Errorf("storage.onedrive.tenant_id and client_id are required")
		}
		if od.CertPath == "" {
			return fmt.Errorf("storage.onedrive.cert_path is required")
		}
	case ProviderMinIO:
		m := cfg.Storage.MinIO
		if m.Endpoint == "" || m.Bucket == "" {
			return fmt.Errorf("storage.minio.endpoint and bucket are required")
		}
	default:
		return fmt.Errorf("unsupported storage.provider %q", cfg.Storage.Provider)
	}

	if cfg.Audit.Postgres.Enabled {
		if cfg.Database.Postgres.Host == "" || cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.host and database are required when audit.postgres is enabled")
		}
	}
	if cfg.Audit.Elasticsearch.Enabled && cfg.Database.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required when audit.elasticsearch is enabled")
	}
	if cfg.Cache.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when cache is enabled")
	}
	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}
	if cfg.Notifications.SES.Enabled && cfg.Notifications.SES.FromEmail == "" {
		return fmt.Errorf("notifications.ses.from_email is required when ses is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}
