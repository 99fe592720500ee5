package types

// Role identifies the sender of a message.
type Role string

// Role enum values
const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// TaskState represents the lifecycle state of a task.
type TaskState string

// TaskState enum values
const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateInputRequired TaskState = "input-required"
)

// IsFinal reports whether the state is terminal. A task in a terminal state
// never transitions again and its message and artifacts are immutable.
func (s TaskState) IsFinal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	default:
		return false
	}
}

// PartKind represents the supported message part types.
type PartKind string

// PartKind enum values for the three official message part types
const (
	PartKindText PartKind = "text"
	PartKindData PartKind = "data"
	PartKindFile PartKind = "file"
)

// String returns the string representation of the PartKind
func (k PartKind) String() string {
	return string(k)
}

// IsValid checks if the PartKind is one of the supported values
func (k PartKind) IsValid() bool {
	switch k {
	case PartKindText, PartKindData, PartKindFile:
		return true
	default:
		return false
	}
}

// FileContent represents the different ways file content can be provided.
// Small files carry the content inline as base64 bytes; large files should
// be referenced by URI instead.
type FileContent struct {
	Name     string  `json:"name,omitempty"`
	MimeType string  `json:"mimeType,omitempty"`
	Bytes    *string `json:"bytes,omitempty"`
	URI      *string `json:"uri,omitempty"`
}

// Part is a tagged union over text, structured data and file content.
// Exactly one payload variant is active per part, selected by Kind.
type Part struct {
	Kind     PartKind       `json:"kind"`
	Text     *string        `json:"text,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	File     *FileContent   `json:"file,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Message is one unit of communication between client and agent. It is
// associated with a context and optionally a task.
type Message struct {
	Kind             string         `json:"kind,omitempty"`
	MessageID        string         `json:"messageId"`
	Role             Role           `json:"role"`
	Parts            []Part         `json:"parts"`
	ContextID        *string        `json:"contextId,omitempty"`
	TaskID           *string        `json:"taskId,omitempty"`
	ReferenceTaskIds []string       `json:"referenceTaskIds,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Artifact represents a task output.
type Artifact struct {
	Name  string `json:"name"`
	Parts []Part `json:"parts"`
}

// Task is the core unit of asynchronous work. Results are stored in
// artifacts; the full conversation is kept in history in append order.
type Task struct {
	ID        string         `json:"id"`
	ContextID *string        `json:"contextId,omitempty"`
	State     TaskState      `json:"state"`
	Message   *Message       `json:"message,omitempty"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	History   []Message      `json:"history,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp *string        `json:"timestamp,omitempty"`
}

// AgentSkill describes a distinct capability the agent can perform.
type AgentSkill struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Tags            []string       `json:"tags"`
	InputSchema     map[string]any `json:"inputSchema,omitempty"`
	Examples        []string       `json:"examples,omitempty"`
	RequiresPayment bool           `json:"requiresPayment,omitempty"`
}

// PaymentRequirements describes what a caller must pay to invoke a
// payment-gated skill. Modeled after the x402 payment requirements object.
type PaymentRequirements struct {
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	PayTo       string `json:"payTo"`
	Description string `json:"description,omitempty"`
}

// AgentAuthentication lists the authentication schemes the agent accepts,
// plus the payment scheme descriptor when payment gating is enabled.
type AgentAuthentication struct {
	Schemes []string             `json:"schemes"`
	Payment *PaymentRequirements `json:"payment,omitempty"`
}

// AgentProvider contains agent provider information.
type AgentProvider struct {
	Organization string `json:"organization,omitempty"`
	URL          string `json:"url,omitempty"`
}

// AgentCard is the self-describing discovery document for an agent: its
// identity, declared skills, supported protocol methods and authentication.
type AgentCard struct {
	ProtocolVersion  string              `json:"protocolVersion"`
	Name             string              `json:"name"`
	Description      string              `json:"description"`
	Version          string              `json:"version"`
	URL              string              `json:"url,omitempty"`
	Provider         *AgentProvider      `json:"provider,omitempty"`
	Skills           []AgentSkill        `json:"skills"`
	SupportedMethods []string            `json:"supportedMethods"`
	Authentication   AgentAuthentication `json:"authentication"`
}

// SendMessageParams are the params for message/send and tasks/send.
type SendMessageParams struct {
	Message  *Message       `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskIDParams are the params for tasks/get and tasks/cancel.
type TaskIDParams struct {
	ID string `json:"id"`
}

// SkillsListResult is the result of skills/list.
type SkillsListResult struct {
	Skills []AgentSkill `json:"skills"`
}
