package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names accepted by the storage and face routers. Anything else is
// rejected at load time, not at first use.
const (
	StorageProviderMinIO = "minio"
	StorageProviderS3    = "s3"

	FaceProviderRekognition = "rekognition"
	FaceProviderAzure       = "azure"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Storage  StorageConfig  `yaml:"storage"`
	Face     FaceConfig     `yaml:"face"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Search   SearchConfig   `yaml:"search"`
	Bundle   BundleConfig   `yaml:"bundle"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig selects and configures the active object-store provider.
type StorageConfig struct {
	Provider   string        `yaml:"provider"` // "minio" or "s3"
	Bucket     string        `yaml:"bucket"`
	PresignTTL time.Duration `yaml:"presign_ttl"`
	MinIO      MinIOConfig   `yaml:"minio"`
	S3         S3Config      `yaml:"s3"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type S3Config struct {
	Region string `yaml:"region"`
}

// FaceConfig selects and configures the active face-recognition provider.
type FaceConfig struct {
	Provider         string            `yaml:"provider"` // "rekognition" or "azure"
	CollectionPrefix string            `yaml:"collection_prefix"`
	Rekognition      RekognitionConfig `yaml:"rekognition"`
	Azure            AzureFaceConfig   `yaml:"azure"`
}

type RekognitionConfig struct {
	Region string `yaml:"region"`
}

type AzureFaceConfig struct {
	Endpoint string `yaml:"endpoint"`
	Key      string `yaml:"key"`
}

type IngestConfig struct {
	MaxPhotoSizeMB   int `yaml:"max_photo_size_mb"`
	MaxMediaSizeMB   int `yaml:"max_media_size_mb"`
	BatchConcurrency int `yaml:"batch_concurrency"`
}

type SearchConfig struct {
	SimilarityThreshold float32 `yaml:"similarity_threshold"`
	MaxResults          int     `yaml:"max_results"`
	MaxConcurrent       int     `yaml:"max_concurrent"`
}

type BundleConfig struct {
	DownloadWorkers int           `yaml:"download_workers"`
	ArchiveTTL      time.Duration `yaml:"archive_ttl"`
	ConsumerWorkers int           `yaml:"consumer_workers"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects unknown provider names so a misconfigured process fails
// at startup instead of on the first request.
func (c *Config) Validate() error {
	switch c.Storage.Provider {
	case StorageProviderMinIO, StorageProviderS3:
	default:
		return fmt.Errorf("unknown storage provider %q (use %q or %q)",
			c.Storage.Provider, StorageProviderMinIO, StorageProviderS3)
	}
	switch c.Face.Provider {
	case FaceProviderRekognition, FaceProviderAzure:
	default:
		return fmt.Errorf("unknown face provider %q (use %q or %q)",
			c.Face.Provider, FaceProviderRekognition, FaceProviderAzure)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Storage.Provider == "" {
		cfg.Storage.Provider = StorageProviderMinIO
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "photofind-raw"
	}
	if cfg.Storage.PresignTTL == 0 {
		cfg.Storage.PresignTTL = time.Hour
	}
	if cfg.Face.Provider == "" {
		cfg.Face.Provider = FaceProviderRekognition
	}
	if cfg.Face.CollectionPrefix == "" {
		cfg.Face.CollectionPrefix = "evt-"
	}
	if cfg.Ingest.MaxPhotoSizeMB == 0 {
		cfg.Ingest.MaxPhotoSizeMB = 15
	}
	if cfg.Ingest.MaxMediaSizeMB == 0 {
		cfg.Ingest.MaxMediaSizeMB = 50
	}
	if cfg.Ingest.BatchConcurrency == 0 {
		cfg.Ingest.BatchConcurrency = 4
	}
	if cfg.Search.SimilarityThreshold == 0 {
		cfg.Search.SimilarityThreshold = 75
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 50
	}
	if cfg.Search.MaxConcurrent == 0 {
		cfg.Search.MaxConcurrent = 8
	}
	if cfg.Bundle.DownloadWorkers == 0 {
		cfg.Bundle.DownloadWorkers = 5
	}
	if cfg.Bundle.ArchiveTTL == 0 {
		cfg.Bundle.ArchiveTTL = time.Hour
	}
	if cfg.Bundle.ConsumerWorkers == 0 {
		cfg.Bundle.ConsumerWorkers = 2
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PF_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PF_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("PF_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PF_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PF_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("PF_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PF_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PF_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("PF_STORAGE_PROVIDER"); v != "" {
		cfg.Storage.Provider = v
	}
	if v := os.Getenv("PF_STORAGE_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("PF_MINIO_ENDPOINT"); v != "" {
		cfg.Storage.MinIO.Endpoint = v
	}
	if v := os.Getenv("PF_MINIO_ACCESS_KEY"); v != "" {
		cfg.Storage.MinIO.AccessKey = v
	}
	if v := os.Getenv("PF_MINIO_SECRET_KEY"); v != "" {
		cfg.Storage.MinIO.SecretKey = v
	}
	if v := os.Getenv("PF_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("PF_FACE_PROVIDER"); v != "" {
		cfg.Face.Provider = v
	}
	if v := os.Getenv("PF_REKOGNITION_REGION"); v != "" {
		cfg.Face.Rekognition.Region = v
	}
	if v := os.Getenv("PF_AZURE_FACE_ENDPOINT"); v != "" {
		cfg.Face.Azure.Endpoint = v
	}
	if v := os.Getenv("PF_AZURE_FACE_KEY"); v != "" {
		cfg.Face.Azure.Key = v
	}
	if v := os.Getenv("PF_PRESIGN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Storage.PresignTTL = d
		}
	}
	if v := os.Getenv("PF_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.Search.SimilarityThreshold = float32(f)
		}
	}
	if v := os.Getenv("PF_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.MaxResults = n
		}
	}
}
