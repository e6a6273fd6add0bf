package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flagforge/docs/swagger"
	"flagforge/internal/api"
	"flagforge/internal/apikeys"
	"flagforge/internal/changerequests"
	"flagforge/internal/config"
	"flagforge/internal/db"
	"flagforge/internal/flagstore"
	"flagforge/internal/gitops"
	"flagforge/internal/models"
	"flagforge/internal/tasks"
	"flagforge/internal/utils/logger"

	"github.com/joho/godotenv"
)

// 🚀 Main function
// @Summary Main function
// @Description Main function
// @title FlagForge API
// @version 1.0
// @description Git-backed change control for feature flag configuration
// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-KEY

func main() {

	logger := logger.New("flagforge")

	// check if .env file exists
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		logger.Info("No .env file found, skipping environment variable loading")
	} else {
		logger.Info("Loading environment variables from .env file")
		if err := godotenv.Load(); err != nil {
			log.Fatalf("Failed to load environment variables: %v", err)
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if err := db.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		err := db.Close()
		if err != nil {
			log.Fatalf("Failed to close database connection: %v", err)
		}
	}()

	dbInstance := db.GetDB()

	// Seed built-in roles and the owner account
	if err := models.SeedBuiltinRoles(dbInstance); err != nil {
		log.Fatalf("Failed to seed built-in roles: %v", err)
	}
	if err := models.CreateOwnerFromEnv(dbInstance); err != nil {
		logger.Warn("Failed to create owner account: %v", err)
	}

	// API key service; last-used touches go through the task queue
	keyRepo := apikeys.NewRepository(dbInstance)
	keyService := apikeys.NewService(keyRepo)

	taskClient := tasks.NewTaskClient(cfg.Redis.Addr, cfg.Redis.Username, cfg.Redis.Password, cfg.Redis.DB)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Warn("Failed to close task client: %v", err)
		}
	}()
	keyService.SetTouchFunc(taskClient.EnqueueAPIKeyTouch)

	// Initialize task handlers
	taskHandler := tasks.NewTaskHandler(keyRepo)

	// Initialize task server
	taskServer := tasks.NewServer(
		cfg.Redis.Addr,
		cfg.Redis.Username,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Worker.Concurrency,
		taskHandler,
		logger,
	)

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	// Start task server
	go func() {
		if err := taskServer.Start(serverCtx); err != nil {
			logger.Error("Task server error", err)
		}
	}()

	// Initialize task scheduler
	taskScheduler := tasks.NewScheduler(
		cfg.Redis.Addr,
		cfg.Redis.Username,
		cfg.Redis.Password,
		cfg.Redis.DB,
		logger,
	)

	// Start task scheduler
	go func() {
		if err := taskScheduler.Start(); err != nil {
			logger.Error("Task scheduler error", err)
		}
	}()

	// Flag store backend
	var flags flagstore.Store
	switch cfg.FlagStore.Provider {
	case "s3":
		s3Store, err := flagstore.NewS3Store(cfg.FlagStore.S3)
		if err != nil {
			log.Fatalf("Failed to initialize S3 flag store: %v", err)
		}
		flags = s3Store
	default:
		flags = flagstore.NewLocalStore(cfg.FlagStore.BasePath)
	}

	// Git publisher; no provider configured means local apply mode
	var publisher *gitops.Publisher
	switch cfg.Git.Provider {
	case "gitlab":
		provider := gitops.NewGitLabProvider(cfg.Git.BaseURL, cfg.Git.ProjectID, cfg.Git.Token)
		publisher = gitops.NewPublisher(provider, cfg.Git.Timeout)
	case "azuredevops":
		provider := gitops.NewAzureDevOpsProvider(cfg.Git.BaseURL, cfg.Git.Organization, cfg.Git.Project, cfg.Git.Repository, cfg.Git.Token)
		publisher = gitops.NewPublisher(provider, cfg.Git.Timeout)
	case "":
		logger.Warn("No git provider configured; applies write the flag store directly")
	default:
		log.Fatalf("Unknown git provider: %s", cfg.Git.Provider)
	}

	crService := changerequests.NewService(
		changerequests.NewRepository(dbInstance),
		flags,
		publisher,
		changerequests.Policy{
			ApplyRequiresAdmin: cfg.ChangeRequests.ApplyRequiresAdmin,
			TargetBranch:       cfg.Git.DefaultBranch,
		},
	)

	// Initialize API server
	apiServer := api.NewServer(cfg, dbInstance, api.Deps{
		ChangeRequests: crService,
		APIKeys:        keyService,
	})
	go func() {
		logger.Success("API server started")

		// Swagger documentation
		swagger.SwaggerInfo.Title = "FlagForge API Documentation"
		swagger.SwaggerInfo.Description = "Git-backed change control for feature flag configuration"
		swagger.SwaggerInfo.Version = "1.0"
		swagger.SwaggerInfo.Host = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		swagger.SwaggerInfo.Schemes = []string{"http", "https"}

		if err := apiServer.Start(); err != nil {
			logger.Error("API server error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the servers
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Create a deadline for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop task scheduler
	taskScheduler.Stop()

	// Stop task server
	serverCancel()
	taskServer.Shutdown()

	// Shutdown API server
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown API server", err)
	}

	logger.Info("Servers shutdown gracefully")
}
