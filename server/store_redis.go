package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	config "github.com/agentwire/a2a/server/config"
	types "github.com/agentwire/a2a/types"
	redis "github.com/redis/go-redis/v9"
	zap "go.uber.org/zap"
)

const (
	taskKeyPrefix = "a2a:task:"
	taskIndexKey  = "a2a:tasks"
)

// RedisStoreFactory implements StoreFactory for Redis storage
type RedisStoreFactory struct{}

// SupportedProvider returns the provider name
func (f *RedisStoreFactory) SupportedProvider() string {
	return "redis"
}

// ValidateConfig validates the configuration for Redis storage
func (f *RedisStoreFactory) ValidateConfig(cfg config.StoreConfig) error {
	if cfg.URL == "" {
		return fmt.Errorf("URL is required for Redis store provider")
	}
	return nil
}

// CreateStore creates a Redis task store instance
func (f *RedisStoreFactory) CreateStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (TaskStore, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	if dbStr, exists := cfg.Options["db"]; exists {
		if db, err := strconv.Atoi(dbStr); err == nil {
			opt.DB = db
		}
	}

	if timeoutStr, exists := cfg.Options["timeout"]; exists {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			opt.DialTimeout = timeout
			opt.ReadTimeout = timeout
			opt.WriteTimeout = timeout
		}
	}

	if username, exists := cfg.Credentials["username"]; exists {
		opt.Username = username
	}
	if password, exists := cfg.Credentials["password"]; exists {
		opt.Password = password
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to Redis",
		zap.String("addr", opt.Addr),
		zap.Int("db", opt.DB))

	return &RedisTaskStore{
		client:   client,
		logger:   logger,
		capacity: cfg.Capacity,
	}, nil
}

// RedisTaskStore implements TaskStore using Redis. Capacity accounting is
// kept in a set of task ids alongside the task records.
type RedisTaskStore struct {
	client   *redis.Client
	logger   *zap.Logger
	capacity int
}

var _ TaskStore = (*RedisTaskStore)(nil)

// Get retrieves a task by id
func (s *RedisTaskStore) Get(id string) (*types.Task, bool) {
	ctx := context.Background()

	data, err := s.client.Get(ctx, taskKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		s.logger.Error("failed to get task from redis", zap.String("task_id", id), zap.Error(err))
		return nil, false
	}

	var task types.Task
	if err := json.Unmarshal(data, &task); err != nil {
		s.logger.Error("failed to unmarshal task", zap.String("task_id", id), zap.Error(err))
		return nil, false
	}

	return &task, true
}

// Set inserts or replaces a task, evicting the first terminal task found
// when at capacity. The check-evict-insert sequence runs under a WATCH
// transaction on the index key so concurrent inserts cannot exceed the bound.
func (s *RedisTaskStore) Set(id string, task *types.Task) error {
	ctx := context.Background()

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.SIsMember(ctx, taskIndexKey, id).Result()
		if err != nil {
			return err
		}

		if exists {
			current, ok := s.Get(id)
			if ok && current.State.IsFinal() {
				return ErrTaskFinalized
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, taskKeyPrefix+id, data, 0)
				return nil
			})
			return err
		}

		size, err := tx.SCard(ctx, taskIndexKey).Result()
		if err != nil {
			return err
		}

		var evictID string
		if int(size) >= s.capacity {
			ids, err := tx.SMembers(ctx, taskIndexKey).Result()
			if err != nil {
				return err
			}
			for _, candidateID := range ids {
				candidate, ok := s.Get(candidateID)
				if ok && candidate.State.IsFinal() {
					evictID = candidateID
					break
				}
			}
			if evictID == "" {
				return ErrStoreFull
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if evictID != "" {
				pipe.Del(ctx, taskKeyPrefix+evictID)
				pipe.SRem(ctx, taskIndexKey, evictID)
			}
			pipe.Set(ctx, taskKeyPrefix+id, data, 0)
			pipe.SAdd(ctx, taskIndexKey, id)
			return nil
		})
		return err
	}, taskIndexKey)
}

// Delete removes a task, reporting whether it was present
func (s *RedisTaskStore) Delete(id string) bool {
	ctx := context.Background()

	removed, err := s.client.SRem(ctx, taskIndexKey, id).Result()
	if err != nil {
		s.logger.Error("failed to remove task from index", zap.String("task_id", id), zap.Error(err))
		return false
	}
	if err := s.client.Del(ctx, taskKeyPrefix+id).Err(); err != nil {
		s.logger.Error("failed to delete task", zap.String("task_id", id), zap.Error(err))
	}

	return removed > 0
}

// Size returns the number of stored tasks
func (s *RedisTaskStore) Size() int {
	size, err := s.client.SCard(context.Background(), taskIndexKey).Result()
	if err != nil {
		s.logger.Error("failed to get store size", zap.Error(err))
		return 0
	}
	return int(size)
}

// ActiveCount returns the number of tasks in a non-terminal state
func (s *RedisTaskStore) ActiveCount() int {
	count := 0
	for _, task := range s.allTasks() {
		if !task.State.IsFinal() {
			count++
		}
	}
	return count
}

// Stats returns storage statistics
func (s *RedisTaskStore) Stats() StoreStats {
	byState := make(map[string]int)
	tasks := s.allTasks()
	for _, task := range tasks {
		byState[string(task.State)]++
	}

	return StoreStats{
		TotalTasks:   len(tasks),
		TasksByState: byState,
		Capacity:     s.capacity,
	}
}

func (s *RedisTaskStore) allTasks() []*types.Task {
	ctx := context.Background()

	ids, err := s.client.SMembers(ctx, taskIndexKey).Result()
	if err != nil {
		s.logger.Error("failed to list task ids", zap.Error(err))
		return nil
	}

	tasks := make([]*types.Task, 0, len(ids))
	for _, id := range ids {
		if task, ok := s.Get(id); ok {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

func init() {
	RegisterStoreProvider("redis", &RedisStoreFactory{})
}
