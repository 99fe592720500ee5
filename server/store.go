package server

import (
	"context"
	"errors"
	"sync"

	config "github.com/agentwire/a2a/server/config"
	types "github.com/agentwire/a2a/types"
	zap "go.uber.org/zap"
)

// ErrStoreFull is returned by Set when the store is at capacity and holds no
// terminal task that could be evicted.
var ErrStoreFull = errors.New("task store at capacity")

// ErrTaskFinalized is returned by Set when the stored task is already in a
// terminal state. Terminal tasks are immutable.
var ErrTaskFinalized = errors.New("task is in a terminal state")

// TaskStore is the bounded, concurrency-safe task map. Implementations must
// perform the capacity check, eviction and insert of Set as one atomic unit.
type TaskStore interface {
	// Get retrieves a task by id
	Get(id string) (*types.Task, bool)

	// Set inserts or replaces a task. At capacity, the first terminal task
	// found in iteration order is evicted to make room for a new key; if no
	// task is terminal, ErrStoreFull is returned and nothing is inserted.
	Set(id string, task *types.Task) error

	// Delete removes a task, reporting whether it was present
	Delete(id string) bool

	// Size returns the number of stored tasks
	Size() int

	// ActiveCount returns the number of tasks in a non-terminal state
	ActiveCount() int

	// Stats returns storage statistics
	Stats() StoreStats
}

// StoreStats provides statistics about the task store
type StoreStats struct {
	TotalTasks   int            `json:"total_tasks"`
	TasksByState map[string]int `json:"tasks_by_state"`
	Capacity     int            `json:"capacity"`
}

// InMemoryTaskStore implements TaskStore using a capacity-bounded map
type InMemoryTaskStore struct {
	logger   *zap.Logger
	capacity int
	mu       sync.RWMutex
	tasks    map[string]*types.Task
}

var _ TaskStore = (*InMemoryTaskStore)(nil)

// NewInMemoryTaskStore creates a new in-memory task store
func NewInMemoryTaskStore(logger *zap.Logger, capacity int) *InMemoryTaskStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if capacity < 1 {
		capacity = 1
	}

	return &InMemoryTaskStore{
		logger:   logger,
		capacity: capacity,
		tasks:    make(map[string]*types.Task),
	}
}

// Get retrieves a task by id. The returned task is a copy; callers never
// share memory with the store.
func (s *InMemoryTaskStore) Get(id string) (*types.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return cloneTask(task), true
}

// Set inserts or replaces a task under a single lock so the capacity check,
// eviction and insert cannot race.
func (s *InMemoryTaskStore) Set(id string, task *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tasks[id]; ok {
		if existing.State.IsFinal() {
			return ErrTaskFinalized
		}
		s.tasks[id] = cloneTask(task)
		return nil
	}

	if len(s.tasks) >= s.capacity {
		evicted := false
		for candidateID, candidate := range s.tasks {
			if candidate.State.IsFinal() {
				delete(s.tasks, candidateID)
				s.logger.Debug("evicted terminal task",
					zap.String("evicted_task_id", candidateID),
					zap.String("state", string(candidate.State)))
				evicted = true
				break
			}
		}
		if !evicted {
			s.logger.Warn("task store full, rejecting insert",
				zap.String("task_id", id),
				zap.Int("capacity", s.capacity))
			return ErrStoreFull
		}
	}

	s.tasks[id] = cloneTask(task)
	return nil
}

// Delete removes a task, reporting whether it was present
func (s *InMemoryTaskStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.tasks[id]
	delete(s.tasks, id)
	return ok
}

// Size returns the number of stored tasks
func (s *InMemoryTaskStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// ActiveCount returns the number of tasks in a non-terminal state
func (s *InMemoryTaskStore) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, task := range s.tasks {
		if !task.State.IsFinal() {
			count++
		}
	}
	return count
}

// Stats returns storage statistics
func (s *InMemoryTaskStore) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byState := make(map[string]int)
	for _, task := range s.tasks {
		byState[string(task.State)]++
	}

	return StoreStats{
		TotalTasks:   len(s.tasks),
		TasksByState: byState,
		Capacity:     s.capacity,
	}
}

// cloneTask deep-copies a task so neither side can mutate the other's slices
func cloneTask(task *types.Task) *types.Task {
	clone := *task

	if task.History != nil {
		clone.History = make([]types.Message, len(task.History))
		copy(clone.History, task.History)
	}
	if task.Artifacts != nil {
		clone.Artifacts = make([]types.Artifact, len(task.Artifacts))
		copy(clone.Artifacts, task.Artifacts)
	}
	if task.Metadata != nil {
		clone.Metadata = make(map[string]any, len(task.Metadata))
		for k, v := range task.Metadata {
			clone.Metadata[k] = v
		}
	}

	return &clone
}

// InMemoryStoreFactory implements StoreFactory for the in-memory provider
type InMemoryStoreFactory struct{}

// SupportedProvider returns the provider name
func (f *InMemoryStoreFactory) SupportedProvider() string {
	return "memory"
}

// ValidateConfig validates the configuration for in-memory storage
func (f *InMemoryStoreFactory) ValidateConfig(cfg config.StoreConfig) error {
	return nil
}

// CreateStore creates an in-memory task store
func (f *InMemoryStoreFactory) CreateStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (TaskStore, error) {
	return NewInMemoryTaskStore(logger, cfg.Capacity), nil
}

func init() {
	RegisterStoreProvider("memory", &InMemoryStoreFactory{})
}
