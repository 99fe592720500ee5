package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	skills "github.com/agentwire/a2a/server/skills"
	types "github.com/agentwire/a2a/types"
	gin "github.com/gin-gonic/gin"
	uuid "github.com/google/uuid"
	zap "go.uber.org/zap"
)

// JRPCErrorCode represents JSON-RPC error codes
type JRPCErrorCode int

const (
	ErrParseError      JRPCErrorCode = -32700
	ErrInvalidRequest  JRPCErrorCode = -32600
	ErrMethodNotFound  JRPCErrorCode = -32601
	ErrInvalidParams   JRPCErrorCode = -32602
	ErrInternalError   JRPCErrorCode = -32603
	ErrPaymentRequired int           = 402
)

// A2AProtocolHandler routes validated JSON-RPC requests to their method
// implementations
type A2AProtocolHandler interface {
	// HandleMessageSend executes a skill synchronously within the request
	HandleMessageSend(c *gin.Context, req types.JSONRPCRequest)

	// HandleTaskSend creates a task and schedules asynchronous execution
	HandleTaskSend(c *gin.Context, req types.JSONRPCRequest)

	// HandleTaskGet retrieves a task by id
	HandleTaskGet(c *gin.Context, req types.JSONRPCRequest)

	// HandleTaskCancel cancels a non-terminal task
	HandleTaskCancel(c *gin.Context, req types.JSONRPCRequest)

	// HandleAgentDescribe returns the discovery document
	HandleAgentDescribe(c *gin.Context, req types.JSONRPCRequest)

	// HandleSkillsList returns the flattened skill catalog
	HandleSkillsList(c *gin.Context, req types.JSONRPCRequest)
}

// DefaultA2AProtocolHandler implements the A2A protocol methods. All
// collaborators are injected; the handler resolves nothing through globals.
type DefaultA2AProtocolHandler struct {
	logger         *zap.Logger
	catalog        *skills.Registry
	router         IntentRouter
	gate           PaymentGate
	taskManager    TaskManager
	responseSender ResponseSender
	agentCard      *types.AgentCard
	skillTimeout   time.Duration
}

var _ A2AProtocolHandler = (*DefaultA2AProtocolHandler)(nil)

// NewDefaultA2AProtocolHandler creates a new protocol handler with explicit
// dependencies
func NewDefaultA2AProtocolHandler(
	logger *zap.Logger,
	catalog *skills.Registry,
	router IntentRouter,
	gate PaymentGate,
	taskManager TaskManager,
	responseSender ResponseSender,
	agentCard *types.AgentCard,
	skillTimeout time.Duration,
) *DefaultA2AProtocolHandler {
	return &DefaultA2AProtocolHandler{
		logger:         logger,
		catalog:        catalog,
		router:         router,
		gate:           gate,
		taskManager:    taskManager,
		responseSender: responseSender,
		agentCard:      agentCard,
		skillTimeout:   skillTimeout,
	}
}

// HandleMessageSend executes the resolved skill synchronously; the caller
// blocks until the skill returns or the configured timeout expires. No task
// is persisted on this path.
func (h *DefaultA2AProtocolHandler) HandleMessageSend(c *gin.Context, req types.JSONRPCRequest) {
	params, ok := h.decodeMessageParams(c, req)
	if !ok {
		return
	}

	resolution, skill, ok := h.resolveSkill(c, req, params.Message)
	if !ok {
		return
	}

	proof := paymentProofFromMessage(params.Message)
	if proof == "" {
		proof = c.GetHeader("X-Payment")
	}
	if err := h.gate.Check(skill, proof); err != nil {
		payErr, isPayment := err.(*PaymentRequiredError)
		if isPayment {
			h.responseSender.SendPaymentRequired(c, req.ID, payErr.Requirements)
			return
		}
		h.responseSender.SendError(c, req.ID, int(ErrInternalError), err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.skillTimeout)
	defer cancel()

	output, err := skill.Execute(ctx, resolution.Params)
	if err != nil {
		h.logger.Error("synchronous skill execution failed",
			zap.String("skill_id", skill.ID),
			zap.Error(err))
		h.responseSender.SendError(c, req.ID, int(ErrInternalError), fmt.Sprintf("skill %s failed: %v", skill.ID, err))
		return
	}

	contextID := params.Message.ContextID
	if contextID == nil {
		id := uuid.New().String()
		contextID = &id
	}

	result := types.Message{
		Kind:      "message",
		MessageID: uuid.New().String(),
		Role:      types.RoleAgent,
		Parts:     []types.Part{types.CreateDataPart(output)},
		ContextID: contextID,
		Metadata: map[string]any{
			"skillId":   skill.ID,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}

	h.responseSender.SendSuccess(c, req.ID, result)
}

// HandleTaskSend enqueues asynchronous execution and returns the submitted
// task immediately
func (h *DefaultA2AProtocolHandler) HandleTaskSend(c *gin.Context, req types.JSONRPCRequest) {
	params, ok := h.decodeMessageParams(c, req)
	if !ok {
		return
	}

	resolution, _, ok := h.resolveSkill(c, req, params.Message)
	if !ok {
		return
	}

	task, err := h.taskManager.Submit(params.Message, resolution, params.Metadata)
	if err != nil {
		h.responseSender.SendError(c, req.ID, int(ErrInvalidParams), fmt.Sprintf("Invalid params: %v", err))
		return
	}

	h.responseSender.SendSuccess(c, req.ID, gin.H{
		"id":        task.ID,
		"contextId": task.ContextID,
		"state":     task.State,
		"message":   task.Message,
	})
}

// HandleTaskGet retrieves a task by id
func (h *DefaultA2AProtocolHandler) HandleTaskGet(c *gin.Context, req types.JSONRPCRequest) {
	params, ok := h.decodeTaskIDParams(c, req)
	if !ok {
		return
	}

	task, err := h.taskManager.Get(params.ID)
	if err != nil {
		h.responseSender.SendError(c, req.ID, int(ErrInvalidParams), fmt.Sprintf("Invalid params: %v", err))
		return
	}

	h.responseSender.SendSuccess(c, req.ID, task)
}

// HandleTaskCancel cancels a non-terminal task
func (h *DefaultA2AProtocolHandler) HandleTaskCancel(c *gin.Context, req types.JSONRPCRequest) {
	params, ok := h.decodeTaskIDParams(c, req)
	if !ok {
		return
	}

	task, err := h.taskManager.Cancel(params.ID)
	if err != nil {
		switch err.(type) {
		case *TaskNotCancelableError:
			h.responseSender.SendError(c, req.ID, int(ErrInvalidParams), err.Error())
		default:
			h.responseSender.SendError(c, req.ID, int(ErrInvalidParams), fmt.Sprintf("Invalid params: %v", err))
		}
		return
	}

	h.responseSender.SendSuccess(c, req.ID, task)
}

// HandleAgentDescribe returns the discovery document
func (h *DefaultA2AProtocolHandler) HandleAgentDescribe(c *gin.Context, req types.JSONRPCRequest) {
	h.responseSender.SendSuccess(c, req.ID, h.agentCard)
}

// HandleSkillsList returns the flattened skill catalog
func (h *DefaultA2AProtocolHandler) HandleSkillsList(c *gin.Context, req types.JSONRPCRequest) {
	summaries := make([]types.AgentSkill, 0, h.catalog.Size())
	for _, skill := range h.catalog.List() {
		summaries = append(summaries, types.AgentSkill{
			ID:          skill.ID,
			Name:        skill.Name,
			Description: skill.Description,
			Tags:        skill.Tags,
			InputSchema: skill.InputSchema,
		})
	}

	h.responseSender.SendSuccess(c, req.ID, types.SkillsListResult{Skills: summaries})
}

// decodeMessageParams decodes and validates message/send and tasks/send params
func (h *DefaultA2AProtocolHandler) decodeMessageParams(c *gin.Context, req types.JSONRPCRequest) (*types.SendMessageParams, bool) {
	if len(req.Params) == 0 {
		h.responseSender.SendError(c, req.ID, int(ErrInvalidParams), "Invalid params: params are required")
		return nil, false
	}

	var params types.SendMessageParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		h.responseSender.SendError(c, req.ID, int(ErrInvalidParams), fmt.Sprintf("Invalid params: %v", err))
		return nil, false
	}

	if params.Message == nil {
		h.responseSender.SendError(c, req.ID, int(ErrInvalidParams), "Invalid params: message is required")
		return nil, false
	}
	if len(params.Message.Parts) == 0 {
		h.responseSender.SendError(c, req.ID, int(ErrInvalidParams), "Invalid params: message parts cannot be empty")
		return nil, false
	}
	if params.Message.MessageID == "" {
		params.Message.MessageID = uuid.New().String()
	}

	return &params, true
}

// decodeTaskIDParams decodes and validates tasks/get and tasks/cancel params
func (h *DefaultA2AProtocolHandler) decodeTaskIDParams(c *gin.Context, req types.JSONRPCRequest) (*types.TaskIDParams, bool) {
	if len(req.Params) == 0 {
		h.responseSender.SendError(c, req.ID, int(ErrInvalidParams), "Invalid params: params are required")
		return nil, false
	}

	var params types.TaskIDParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		h.responseSender.SendError(c, req.ID, int(ErrInvalidParams), fmt.Sprintf("Invalid params: %v", err))
		return nil, false
	}

	if params.ID == "" {
		h.responseSender.SendError(c, req.ID, int(ErrInvalidParams), "Invalid params: task id is required")
		return nil, false
	}

	return &params, true
}

// resolveSkill routes the message and verifies the target skill exists.
// Unknown skills are rejected with the available catalog in error.data so
// the caller can retry.
func (h *DefaultA2AProtocolHandler) resolveSkill(c *gin.Context, req types.JSONRPCRequest, message *types.Message) (*Resolution, *skills.Skill, bool) {
	resolution, err := h.router.Resolve(message)
	if err != nil {
		h.responseSender.SendError(c, req.ID, int(ErrInvalidParams), fmt.Sprintf("Invalid params: %v", err))
		return nil, nil, false
	}

	skill, ok := h.catalog.Get(resolution.SkillID)
	if !ok {
		h.responseSender.SendErrorWithData(c, req.ID, int(ErrInvalidParams),
			fmt.Sprintf("Invalid params: unknown skill: %s", resolution.SkillID),
			gin.H{"availableSkills": h.catalog.IDs()})
		return nil, nil, false
	}

	return resolution, skill, true
}
