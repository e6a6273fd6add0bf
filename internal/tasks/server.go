package tasks

import (
	"context"
	"fmt"

	"flagforge/internal/utils/logger"

	"github.com/hibiken/asynq"
)

// Server handles task processing
type Server struct {
	server  *asynq.Server
	handler *TaskHandler
	logger  *logger.Logger

	concurrency int
	queues      map[string]int
}

// NewServer creates a new task processing server
func NewServer(redisAddr, username, password string, db, concurrency int, handler *TaskHandler, logger *logger.Logger) *Server {
	if concurrency <= 0 {
		concurrency = 10
	}
	queues := map[string]int{
		QueueCritical: 6, // High priority
		QueueDefault:  3, // Medium priority
		QueueLow:      1, // Low priority
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Username: username,
			Password: password,
			DB:       db,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues:      queues,
			// Higher priority queues are processed first
			StrictPriority: true,
		},
	)

	return &Server{
		server:      server,
		handler:     handler,
		logger:      logger,
		concurrency: concurrency,
		queues:      queues,
	}
}

// Start starts the task processing server
func (s *Server) Start(ctx context.Context) error {
	mux := asynq.NewServeMux()

	mux.HandleFunc(TaskTypeAPIKeyTouch, s.handler.HandleAPIKeyTouch)
	mux.HandleFunc(TaskTypeAPIKeyPrune, s.handler.HandleAPIKeyPrune)

	s.logger.Info("starting task processing server concurrency %d queues %v", s.concurrency, s.queues)

	if err := s.server.Start(mux); err != nil {
		return fmt.Errorf("failed to start task server: %w", err)
	}

	return nil
}

// Stop stops the task processing server
func (s *Server) Stop() {
	s.server.Stop()
	s.logger.Info("task processing server stopped")
}

// Shutdown gracefully shuts down the task processing server
func (s *Server) Shutdown() {
	s.logger.Info("shutting down task processing server")
	s.server.Shutdown()
}
