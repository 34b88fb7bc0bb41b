package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/workflow"
)

// ErrRunNotFound is returned when a run id is unknown or expired.
var ErrRunNotFound = errors.New("run not found")

// DefaultRunTTL is how long a run record is kept when no TTL is configured.
const DefaultRunTTL = 24 * time.Hour

// RunStore keeps run results in redis: one JSON value per run plus a
// per-workflow sorted-set index scored by start time, both expiring
// together.
type RunStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// RunStoreConfig configures a RunStore.
type RunStoreConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// NewRunStore connects to redis and verifies the connection.
func NewRunStore(cfg RunStoreConfig, logger *zap.Logger) (*RunStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRunStore(client, cfg, logger), nil
}

// NewRunStoreWithClient wraps an existing client, mainly for tests.
func NewRunStoreWithClient(client *redis.Client, cfg RunStoreConfig, logger *zap.Logger) *RunStore {
	return newRunStore(client, cfg, logger)
}

func newRunStore(client *redis.Client, cfg RunStoreConfig, logger *zap.Logger) *RunStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "nodeflow:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultRunTTL
	}
	return &RunStore{
		client:    client,
		keyPrefix: prefix + "run:",
		ttl:       ttl,
		logger:    logger.With(zap.String("component", "run_store")),
	}
}

// Close closes the underlying client.
func (s *RunStore) Close() error { return s.client.Close() }

// Ping checks store health.
func (s *RunStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RunStore) runKey(runID string) string {
	return s.keyPrefix + "data:" + runID
}

func (s *RunStore) workflowIndexKey(workflowID string) string {
	return s.keyPrefix + "workflow:" + workflowID
}

// SaveRun records a run result with the configured TTL and indexes it
// under its workflow.
func (s *RunStore) SaveRun(ctx context.Context, run *workflow.RunResult) error {
	if run == nil || run.RunID == "" {
		return fmt.Errorf("run result has no run id")
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", run.RunID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.runKey(run.RunID), data, s.ttl)
	indexKey := s.workflowIndexKey(run.WorkflowID)
	pipe.ZAdd(ctx, indexKey, redis.Z{
		Score:  float64(run.StartedAt.UnixMilli()),
		Member: run.RunID,
	})
	pipe.Expire(ctx, indexKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save run %s: %w", run.RunID, err)
	}

	s.logger.Debug("run saved",
		zap.String("run_id", run.RunID),
		zap.String("workflow_id", run.WorkflowID),
		zap.String("status", string(run.Status)))
	return nil
}

// GetRun fetches a run by id.
func (s *RunStore) GetRun(ctx context.Context, runID string) (*workflow.RunResult, error) {
	data, err := s.client.Get(ctx, s.runKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	var run workflow.RunResult
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &run, nil
}

// RecentRuns returns up to limit runs of a workflow, newest first. Runs
// whose records have already expired are skipped.
func (s *RunStore) RecentRuns(ctx context.Context, workflowID string, limit int) ([]*workflow.RunResult, error) {
	if limit <= 0 {
		limit = 10
	}
	ids, err := s.client.ZRevRange(ctx, s.workflowIndexKey(workflowID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list runs for workflow %s: %w", workflowID, err)
	}

	runs := make([]*workflow.RunResult, 0, len(ids))
	for _, id := range ids {
		run, err := s.GetRun(ctx, id)
		if errors.Is(err, ErrRunNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}
