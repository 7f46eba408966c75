package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/settlement-reconciliation/internal/domain/shared"
)

// WorkerPoolApplierService implements the ApplierService interface
type WorkerPoolApplierService struct {
	baseService ApplierService
	pool        *ants.Pool
	logger      *slog.Logger
	// Use a mutex to protect access to the results map
	mu      sync.Mutex
	results map[string]chan error
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolApplierService(
	baseService ApplierService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolApplierService, error) {
	// Create a new worker pool with the specified size
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolApplierService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
		results:     make(map[string]chan error),
	}, nil
}

// ApplyPayout submits a payout request to the worker pool for processing.
func (s *WorkerPoolApplierService) ApplyPayout(ctx context.Context, request *shared.PayoutRequest) error {
	logger := s.logger
	if request.CorrelationID != "" {
		logger = s.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Submitting payout batch to worker pool",
		"batch_id", request.BatchID.String(),
		"organizer_id", request.OrganizerID,
	)

	// Create a channel to receive the result of the payout application
	resultChan := make(chan error, 1)

	// Store the result channel in the result map
	batchID := request.BatchID.String()
	s.mu.Lock()
	s.results[batchID] = resultChan
	s.mu.Unlock()

	// Create a copy of the request to avoid data races
	requestCopy := *request

	// Submit the task to the worker pool
	err := s.pool.Submit(func() {
		// Apply the payout using the base service
		err := s.baseService.ApplyPayout(ctx, &requestCopy)

		// Send the result to the channel
		resultChan <- err

		// Remove the result channel from the map
		s.mu.Lock()
		delete(s.results, batchID)
		close(resultChan)
		s.mu.Unlock()
	})

	if err != nil {
		// If we couldn't submit the task to the pool, remove the result channel
		s.mu.Lock()
		delete(s.results, batchID)
		close(resultChan)
		s.mu.Unlock()

		logger.Error("Failed to submit payout batch to worker pool",
			"batch_id", request.BatchID.String(),
			"error", err,
		)
		return err
	}

	// Wait for the result from the worker
	return <-resultChan
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolApplierService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolApplierService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolApplierService) Capacity() int {
	return s.pool.Cap()
}
