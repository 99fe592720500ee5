package skills

import (
	"context"
	"fmt"

	types "github.com/agentwire/a2a/types"
	zap "go.uber.org/zap"
)

// Executor runs a skill with structured parameters and returns its
// structured output. Executors must honor ctx cancellation: the execution
// timeout is enforced through the context, so a skill that ignores ctx runs
// unbounded.
type Executor func(ctx context.Context, params map[string]any) (map[string]any, error)

// Skill binds a declared capability to its executor. Keywords drive the
// intent router's text matching; their order within a skill is significant,
// as is the registration order of skills.
type Skill struct {
	ID              string
	Name            string
	Description     string
	Tags            []string
	InputSchema     map[string]any
	Examples        []string
	Keywords        []string
	RequiresPayment bool
	Execute         Executor
}

// Registry is the capability catalog. It is populated once at startup and
// read-only afterwards, so lookups need no locking.
type Registry struct {
	logger *zap.Logger
	order  []string
	skills map[string]*Skill
}

// NewRegistry creates an empty skills registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger: logger,
		skills: make(map[string]*Skill),
	}
}

// Register adds a skill to the catalog. Skill ids must be unique and the
// executor must be set.
func (r *Registry) Register(skill Skill) error {
	if skill.ID == "" {
		return fmt.Errorf("skill id cannot be empty")
	}
	if skill.Execute == nil {
		return fmt.Errorf("skill %s has no executor", skill.ID)
	}
	if _, exists := r.skills[skill.ID]; exists {
		return fmt.Errorf("skill %s already registered", skill.ID)
	}

	r.skills[skill.ID] = &skill
	r.order = append(r.order, skill.ID)

	r.logger.Info("registered skill",
		zap.String("skill_id", skill.ID),
		zap.Bool("requires_payment", skill.RequiresPayment))

	return nil
}

// Get returns the skill with the given id
func (r *Registry) Get(id string) (*Skill, bool) {
	skill, ok := r.skills[id]
	return skill, ok
}

// List returns all skills in registration order
func (r *Registry) List() []*Skill {
	result := make([]*Skill, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.skills[id])
	}
	return result
}

// IDs returns all registered skill ids in registration order
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Size returns the number of registered skills
func (r *Registry) Size() int {
	return len(r.skills)
}

// AgentSkills returns the wire representation of the catalog for the agent
// card and skills/list.
func (r *Registry) AgentSkills() []types.AgentSkill {
	result := make([]types.AgentSkill, 0, len(r.order))
	for _, id := range r.order {
		skill := r.skills[id]
		result = append(result, types.AgentSkill{
			ID:              skill.ID,
			Name:            skill.Name,
			Description:     skill.Description,
			Tags:            skill.Tags,
			InputSchema:     skill.InputSchema,
			Examples:        skill.Examples,
			RequiresPayment: skill.RequiresPayment,
		})
	}
	return result
}
