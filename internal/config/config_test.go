package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalYAML = `
database:
  host: localhost
  name: photofind
  user: app
  password: secret
nats:
  url: nats://localhost:4222
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d; want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Provider != StorageProviderMinIO {
		t.Errorf("storage provider = %q; want minio", cfg.Storage.Provider)
	}
	if cfg.Storage.Bucket != "photofind-raw" {
		t.Errorf("bucket = %q", cfg.Storage.Bucket)
	}
	if cfg.Storage.PresignTTL != time.Hour {
		t.Errorf("presign ttl = %v; want 1h", cfg.Storage.PresignTTL)
	}
	if cfg.Face.Provider != FaceProviderRekognition {
		t.Errorf("face provider = %q; want rekognition", cfg.Face.Provider)
	}
	if cfg.Face.CollectionPrefix != "evt-" {
		t.Errorf("collection prefix = %q; want evt-", cfg.Face.CollectionPrefix)
	}
	if cfg.Ingest.MaxPhotoSizeMB != 15 || cfg.Ingest.MaxMediaSizeMB != 50 {
		t.Errorf("size limits = %d/%d; want 15/50", cfg.Ingest.MaxPhotoSizeMB, cfg.Ingest.MaxMediaSizeMB)
	}
	if cfg.Ingest.BatchConcurrency != 4 {
		t.Errorf("batch concurrency = %d; want 4", cfg.Ingest.BatchConcurrency)
	}
	if cfg.Search.SimilarityThreshold != 75 || cfg.Search.MaxResults != 50 {
		t.Errorf("search defaults = %v/%d; want 75/50", cfg.Search.SimilarityThreshold, cfg.Search.MaxResults)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoad_YAMLValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9000
  api_key: yaml-key
storage:
  provider: s3
  bucket: shots
  presign_ttl: 30m
  s3:
    region: eu-west-1
face:
  provider: azure
  azure:
    endpoint: https://faces.example
    key: azure-key
search:
  similarity_threshold: 80
  max_results: 10
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Server.APIKey != "yaml-key" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Storage.Provider != StorageProviderS3 || cfg.Storage.Bucket != "shots" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Storage.PresignTTL != 30*time.Minute {
		t.Errorf("presign ttl = %v; want 30m", cfg.Storage.PresignTTL)
	}
	if cfg.Face.Provider != FaceProviderAzure || cfg.Face.Azure.Endpoint != "https://faces.example" {
		t.Errorf("face = %+v", cfg.Face)
	}
	if cfg.Search.SimilarityThreshold != 80 || cfg.Search.MaxResults != 10 {
		t.Errorf("search = %+v", cfg.Search)
	}
}

func TestLoad_EnvOverridesWinOverYAML(t *testing.T) {
	t.Setenv("PF_SERVER_PORT", "7777")
	t.Setenv("PF_API_KEY", "env-key")
	t.Setenv("PF_STORAGE_PROVIDER", "s3")
	t.Setenv("PF_STORAGE_BUCKET", "env-bucket")
	t.Setenv("PF_FACE_PROVIDER", "azure")
	t.Setenv("PF_AZURE_FACE_ENDPOINT", "https://env.example")
	t.Setenv("PF_AZURE_FACE_KEY", "env-azure-key")
	t.Setenv("PF_SIMILARITY_THRESHOLD", "90")

	cfg, err := Load(writeConfig(t, minimalYAML+`
server:
  port: 9000
  api_key: yaml-key
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7777 || cfg.Server.APIKey != "env-key" {
		t.Errorf("env override lost: %+v", cfg.Server)
	}
	if cfg.Storage.Provider != StorageProviderS3 || cfg.Storage.Bucket != "env-bucket" {
		t.Errorf("storage env override lost: %+v", cfg.Storage)
	}
	if cfg.Face.Provider != FaceProviderAzure || cfg.Face.Azure.Key != "env-azure-key" {
		t.Errorf("face env override lost: %+v", cfg.Face)
	}
	if cfg.Search.SimilarityThreshold != 90 {
		t.Errorf("threshold = %v; want 90", cfg.Search.SimilarityThreshold)
	}
}

func TestLoad_RejectsUnknownProviders(t *testing.T) {
	if _, err := Load(writeConfig(t, `
storage:
  provider: gcs
`)); err == nil {
		t.Error("unknown storage provider must fail at load time")
	}

	if _, err := Load(writeConfig(t, `
face:
  provider: faceplusplus
`)); err == nil {
		t.Error("unknown face provider must fail at load time")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing config file must fail")
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "photofind", User: "app", Password: "pw"}
	want := "postgres://app:pw@db:5432/photofind?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN = %q; want %q", got, want)
	}
}
