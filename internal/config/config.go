package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	JWT            JWTConfig
	Redis          RedisConfig
	Git            GitConfig
	FlagStore      FlagStoreConfig
	ChangeRequests ChangeRequestConfig
	Worker         WorkerConfig
}

type ServerConfig struct {
	Host      string
	Port      int
	PublicURL string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	Secret string
}

type RedisConfig struct {
	Addr     string
	Password string
	Username string
	DB       int
}

// GitConfig selects and configures the source-control provider used to
// publish applied change requests.
type GitConfig struct {
	// Provider is "gitlab" or "azuredevops". Empty disables publishing
	// (local apply mode writes straight to the flag store).
	Provider string
	BaseURL  string
	// ProjectID is the numeric id or path slug (GitLab).
	ProjectID string
	// Organization/Project/Repository address an Azure DevOps repo.
	Organization string
	Project      string
	Repository   string
	// Token is an opaque bearer credential. Never logged.
	Token         string
	DefaultBranch string
	Timeout       time.Duration
}

type FlagStoreConfig struct {
	Provider string // local, s3
	BasePath string
	S3       S3Config
}

type S3Config struct {
	BucketName string `env:"S3_BUCKET_NAME"`
	Endpoint   string `env:"S3_ENDPOINT"`
	Region     string `env:"S3_REGION"`
	AccessKey  string `env:"S3_ACCESS_KEY"`
	SecretKey  string `env:"S3_SECRET_KEY"`
}

type ChangeRequestConfig struct {
	// ApplyRequiresAdmin tightens the apply guard from "write" to "admin"
	// on the target resource type.
	ApplyRequiresAdmin bool
}

type WorkerConfig struct {
	Concurrency int
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:      getEnv("SERVER_HOST", "localhost"),
			Port:      getEnvAsInt("SERVER_PORT", 8080),
			PublicURL: getEnv("PUBLIC_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Name:     getEnv("POSTGRES_DB", "flagforge"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key"),
		},
		Redis: RedisConfig{
			Addr:     fmt.Sprintf("%s:%d", getEnv("REDIS_HOST", "localhost"), getEnvAsInt("REDIS_PORT", 6379)),
			Password: getEnv("REDIS_PASSWORD", ""),
			Username: getEnv("REDIS_USERNAME", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Git: GitConfig{
			Provider:      getEnv("GIT_PROVIDER", ""),
			BaseURL:       getEnv("GIT_BASE_URL", ""),
			ProjectID:     getEnv("GIT_PROJECT_ID", ""),
			Organization:  getEnv("GIT_ORGANIZATION", ""),
			Project:       getEnv("GIT_PROJECT", ""),
			Repository:    getEnv("GIT_REPOSITORY", ""),
			Token:         getEnv("GIT_TOKEN", ""),
			DefaultBranch: getEnv("GIT_DEFAULT_BRANCH", "main"),
			Timeout:       time.Duration(getEnvAsInt("GIT_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		FlagStore: FlagStoreConfig{
			Provider: getEnv("FLAG_STORE_PROVIDER", "local"),
			BasePath: getEnv("FLAG_STORE_BASE_PATH", "./flags"),
			S3: S3Config{
				BucketName: getEnv("S3_BUCKET_NAME", ""),
				Endpoint:   getEnv("S3_ENDPOINT", ""),
				Region:     getEnv("S3_REGION", ""),
				AccessKey:  getEnv("S3_ACCESS_KEY", ""),
				SecretKey:  getEnv("S3_SECRET_KEY", ""),
			},
		},
		ChangeRequests: ChangeRequestConfig{
			ApplyRequiresAdmin: getEnvAsBool("CHANGE_REQUESTS_APPLY_REQUIRES_ADMIN", false),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 5),
		},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
