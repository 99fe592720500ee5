package server

import (
	"context"
	"fmt"
	"time"

	skills "github.com/agentwire/a2a/server/skills"
	types "github.com/agentwire/a2a/types"
	uuid "github.com/google/uuid"
	zap "go.uber.org/zap"
)

// TaskNotFoundError represents an error when a task is not found
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return "task not found: " + e.TaskID
}

// NewTaskNotFoundError creates a new TaskNotFoundError
func NewTaskNotFoundError(taskID string) error {
	return &TaskNotFoundError{TaskID: taskID}
}

// TaskNotCancelableError represents an error when a task cannot be canceled
// because it already reached a terminal state
type TaskNotCancelableError struct {
	TaskID string
	State  types.TaskState
}

func (e *TaskNotCancelableError) Error() string {
	return fmt.Sprintf("Cannot cancel task in state: %s", e.State)
}

// NewTaskNotCancelableError creates a new TaskNotCancelableError
func NewTaskNotCancelableError(taskID string, state types.TaskState) error {
	return &TaskNotCancelableError{TaskID: taskID, State: state}
}

// TaskManager owns the task lifecycle: it creates tasks, drives their
// asynchronous execution and is the only writer of state transitions.
type TaskManager interface {
	// Submit creates a task in submitted state, stores it and schedules
	// asynchronous execution; it returns immediately
	Submit(message *types.Message, resolution *Resolution, metadata map[string]any) (*types.Task, error)

	// Get retrieves a task by id
	Get(taskID string) (*types.Task, error)

	// Cancel cancels a non-terminal task and returns it in canceled state
	Cancel(taskID string) (*types.Task, error)

	// Poll periodically reads a task until it leaves the submitted and
	// working states or the timeout elapses
	Poll(taskID string, interval, timeout time.Duration) (*types.Task, error)
}

// DefaultTaskManager implements the TaskManager interface
type DefaultTaskManager struct {
	logger       *zap.Logger
	store        TaskStore
	catalog      *skills.Registry
	gate         PaymentGate
	skillTimeout time.Duration
	telemetry    TaskTelemetry
}

// TaskTelemetry receives task lifecycle metrics. Implementations must be
// safe for concurrent use; a nil telemetry is allowed.
type TaskTelemetry interface {
	RecordTaskSubmitted(ctx context.Context, skillID string)
	RecordTaskCompleted(ctx context.Context, skillID string, success bool)
}

var _ TaskManager = (*DefaultTaskManager)(nil)

// NewDefaultTaskManager creates a new default task manager
func NewDefaultTaskManager(logger *zap.Logger, store TaskStore, catalog *skills.Registry, gate PaymentGate, skillTimeout time.Duration) *DefaultTaskManager {
	return &DefaultTaskManager{
		logger:       logger,
		store:        store,
		catalog:      catalog,
		gate:         gate,
		skillTimeout: skillTimeout,
	}
}

// SetTelemetry sets the task telemetry sink
func (tm *DefaultTaskManager) SetTelemetry(telemetry TaskTelemetry) {
	tm.telemetry = telemetry
}

// Submit creates the task synchronously, appends the caller's message and a
// short acknowledgment to history, stores it and launches the executor.
func (tm *DefaultTaskManager) Submit(message *types.Message, resolution *Resolution, metadata map[string]any) (*types.Task, error) {
	taskID := uuid.New().String()
	contextID := message.ContextID
	if contextID == nil {
		id := uuid.New().String()
		contextID = &id
	}

	ack := types.Message{
		Kind:      "message",
		MessageID: uuid.New().String(),
		Role:      types.RoleAgent,
		Parts:     []types.Part{types.CreateTextPart(fmt.Sprintf("Task accepted for skill: %s", resolution.SkillID))},
		ContextID: contextID,
		TaskID:    &taskID,
	}

	taskMetadata := map[string]any{"skillId": resolution.SkillID}
	for k, v := range metadata {
		taskMetadata[k] = v
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	task := &types.Task{
		ID:        taskID,
		ContextID: contextID,
		State:     types.TaskStateSubmitted,
		Message:   &ack,
		History:   []types.Message{*message, ack},
		Metadata:  taskMetadata,
		Timestamp: &timestamp,
	}

	if err := tm.store.Set(taskID, task); err != nil {
		return nil, err
	}

	tm.logger.Info("task submitted",
		zap.String("task_id", taskID),
		zap.String("context_id", *contextID),
		zap.String("skill_id", resolution.SkillID))

	if tm.telemetry != nil {
		tm.telemetry.RecordTaskSubmitted(context.Background(), resolution.SkillID)
	}

	proof := paymentProofFromMessage(message)
	go tm.execute(taskID, resolution, proof)

	return task, nil
}

// Get retrieves a task by id
func (tm *DefaultTaskManager) Get(taskID string) (*types.Task, error) {
	task, ok := tm.store.Get(taskID)
	if !ok {
		return nil, NewTaskNotFoundError(taskID)
	}
	return task, nil
}

// Cancel flips a non-terminal task to canceled. No rollback of side effects
// already applied by the skill is attempted.
func (tm *DefaultTaskManager) Cancel(taskID string) (*types.Task, error) {
	task, ok := tm.store.Get(taskID)
	if !ok {
		return nil, NewTaskNotFoundError(taskID)
	}

	if task.State.IsFinal() {
		return nil, NewTaskNotCancelableError(taskID, task.State)
	}

	task.State = types.TaskStateCanceled
	touch(task)

	if err := tm.store.Set(taskID, task); err != nil {
		return nil, err
	}

	tm.logger.Info("task canceled", zap.String("task_id", taskID))
	return task, nil
}

// Poll periodically reads a task until execution settles
func (tm *DefaultTaskManager) Poll(taskID string, interval, timeout time.Duration) (*types.Task, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	timeoutTimer := time.NewTimer(timeout)
	defer timeoutTimer.Stop()

	for {
		select {
		case <-ticker.C:
			task, err := tm.Get(taskID)
			if err != nil {
				return nil, err
			}
			switch task.State {
			case types.TaskStateSubmitted, types.TaskStateWorking:
			default:
				return task, nil
			}
		case <-timeoutTimer.C:
			return nil, fmt.Errorf("polling timed out for task %s", taskID)
		}
	}
}

// execute drives a task through working to its settled state. It owns the
// goroutine: every failure is written back to the task record, nothing
// escapes.
func (tm *DefaultTaskManager) execute(taskID string, resolution *Resolution, proof string) {
	if !tm.transition(taskID, types.TaskStateWorking) {
		return
	}

	skill, ok := tm.catalog.Get(resolution.SkillID)
	if !ok {
		tm.settleFailed(taskID, resolution.SkillID, fmt.Sprintf("unknown skill: %s", resolution.SkillID))
		return
	}

	if err := tm.gate.Check(skill, proof); err != nil {
		if payErr, isPayment := err.(*PaymentRequiredError); isPayment {
			tm.settlePaymentRequired(taskID, payErr)
			return
		}
		tm.settleFailed(taskID, resolution.SkillID, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), tm.skillTimeout)
	defer cancel()

	output, err := skill.Execute(ctx, resolution.Params)
	if err != nil {
		tm.settleFailed(taskID, resolution.SkillID, fmt.Sprintf("skill %s failed: %v", resolution.SkillID, err))
		return
	}

	tm.settleCompleted(taskID, resolution.SkillID, output)
}

// transition moves a task to a non-terminal state, aborting if it was
// canceled in the meantime
func (tm *DefaultTaskManager) transition(taskID string, state types.TaskState) bool {
	task, ok := tm.store.Get(taskID)
	if !ok {
		tm.logger.Error("task disappeared during execution", zap.String("task_id", taskID))
		return false
	}
	if task.State.IsFinal() {
		tm.logger.Info("skipping transition, task already settled",
			zap.String("task_id", taskID),
			zap.String("state", string(task.State)))
		return false
	}

	task.State = state
	touch(task)

	if err := tm.store.Set(taskID, task); err != nil {
		tm.logger.Error("failed to store task transition",
			zap.String("task_id", taskID),
			zap.Error(err))
		return false
	}
	return true
}

// settleCompleted writes the result message, the "result" artifact and the
// completed state. The task is re-read immediately before the write; a
// concurrent cancel wins and the result is discarded.
func (tm *DefaultTaskManager) settleCompleted(taskID, skillID string, output map[string]any) {
	task, ok := tm.store.Get(taskID)
	if !ok || task.State.IsFinal() {
		tm.abortSettle(taskID, task, ok)
		return
	}

	result := types.Message{
		Kind:      "message",
		MessageID: uuid.New().String(),
		Role:      types.RoleAgent,
		Parts:     []types.Part{types.CreateDataPart(output)},
		ContextID: task.ContextID,
		TaskID:    &taskID,
		Metadata:  map[string]any{"skillId": skillID},
	}

	task.History = append(task.History, result)
	task.Message = &result
	task.Artifacts = []types.Artifact{{
		Name:  "result",
		Parts: []types.Part{types.CreateDataPart(output)},
	}}
	task.State = types.TaskStateCompleted
	touch(task)

	if err := tm.store.Set(taskID, task); err != nil {
		tm.logger.Error("failed to store completed task",
			zap.String("task_id", taskID),
			zap.Error(err))
		return
	}

	tm.logger.Info("task completed",
		zap.String("task_id", taskID),
		zap.String("skill_id", skillID))

	if tm.telemetry != nil {
		tm.telemetry.RecordTaskCompleted(context.Background(), skillID, true)
	}
}

// settleFailed writes the diagnostic message and the failed state
func (tm *DefaultTaskManager) settleFailed(taskID, skillID, diagnostic string) {
	task, ok := tm.store.Get(taskID)
	if !ok || task.State.IsFinal() {
		tm.abortSettle(taskID, task, ok)
		return
	}

	failure := types.Message{
		Kind:      "message",
		MessageID: uuid.New().String(),
		Role:      types.RoleAgent,
		Parts:     []types.Part{types.CreateTextPart(diagnostic)},
		ContextID: task.ContextID,
		TaskID:    &taskID,
	}

	task.History = append(task.History, failure)
	task.Message = &failure
	task.State = types.TaskStateFailed
	touch(task)

	if err := tm.store.Set(taskID, task); err != nil {
		tm.logger.Error("failed to store failed task",
			zap.String("task_id", taskID),
			zap.Error(err))
		return
	}

	tm.logger.Warn("task failed",
		zap.String("task_id", taskID),
		zap.String("diagnostic", diagnostic))

	if tm.telemetry != nil {
		tm.telemetry.RecordTaskCompleted(context.Background(), skillID, false)
	}
}

// settlePaymentRequired pauses the task in input-required with a payment
// prompt carrying the requirements. No artifact is produced.
func (tm *DefaultTaskManager) settlePaymentRequired(taskID string, payErr *PaymentRequiredError) {
	task, ok := tm.store.Get(taskID)
	if !ok || task.State.IsFinal() {
		tm.abortSettle(taskID, task, ok)
		return
	}

	prompt := types.Message{
		Kind:      "message",
		MessageID: uuid.New().String(),
		Role:      types.RoleAgent,
		Parts: []types.Part{
			types.CreateTextPart(payErr.Error()),
			types.CreateDataPart(map[string]any{"paymentRequirements": payErr.Requirements}),
		},
		ContextID: task.ContextID,
		TaskID:    &taskID,
	}

	task.History = append(task.History, prompt)
	task.Message = &prompt
	task.State = types.TaskStateInputRequired
	touch(task)

	if err := tm.store.Set(taskID, task); err != nil {
		tm.logger.Error("failed to store payment-paused task",
			zap.String("task_id", taskID),
			zap.Error(err))
		return
	}

	tm.logger.Info("task paused for payment",
		zap.String("task_id", taskID),
		zap.String("skill_id", payErr.SkillID))
}

func (tm *DefaultTaskManager) abortSettle(taskID string, task *types.Task, found bool) {
	if !found {
		tm.logger.Error("task disappeared before settling", zap.String("task_id", taskID))
		return
	}
	tm.logger.Info("discarding execution result, task already settled",
		zap.String("task_id", taskID),
		zap.String("state", string(task.State)))
}

// paymentProofFromMessage extracts the opaque payment proof token
func paymentProofFromMessage(message *types.Message) string {
	if message.Metadata == nil {
		return ""
	}
	proof, _ := message.Metadata["paymentProof"].(string)
	return proof
}

func touch(task *types.Task) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	task.Timestamp = &timestamp
}
