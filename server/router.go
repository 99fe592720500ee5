package server

import (
	"strings"

	skills "github.com/agentwire/a2a/server/skills"
	types "github.com/agentwire/a2a/types"
	zap "go.uber.org/zap"
)

// Resolution is the outcome of routing a message: the skill to invoke and
// the parameters to invoke it with.
type Resolution struct {
	SkillID string
	Params  map[string]any
}

// ExtractionError reports that no skill could be resolved from a message.
// It is a caller error, recoverable by fixing the message parts.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return e.Reason
}

// IntentRouter resolves an inbound message to a skill invocation
type IntentRouter interface {
	// Resolve returns the skill id and params for a message, or an
	// *ExtractionError when the parts carry neither a skill nor text.
	Resolve(message *types.Message) (*Resolution, error)
}

// DefaultIntentRouter implements IntentRouter against the skills catalog.
// The keyword tables live on the catalog entries; the router carries no
// per-skill knowledge of its own.
type DefaultIntentRouter struct {
	logger       *zap.Logger
	catalog      *skills.Registry
	defaultSkill string
}

var _ IntentRouter = (*DefaultIntentRouter)(nil)

// NewDefaultIntentRouter creates a new intent router backed by the catalog
func NewDefaultIntentRouter(logger *zap.Logger, catalog *skills.Registry, defaultSkill string) *DefaultIntentRouter {
	return &DefaultIntentRouter{
		logger:       logger,
		catalog:      catalog,
		defaultSkill: defaultSkill,
	}
}

// Resolve applies the routing priority: an explicit skillId in any data part
// wins, then a bare data payload routed to the default skill, then keyword
// intent detection over the text parts, then the default skill.
func (r *DefaultIntentRouter) Resolve(message *types.Message) (*Resolution, error) {
	for _, part := range message.Parts {
		if part.Kind != types.PartKindData || part.Data == nil {
			continue
		}
		skillID, ok := part.Data["skillId"].(string)
		if !ok || skillID == "" {
			continue
		}

		params, _ := part.Data["params"].(map[string]any)
		if params == nil {
			params = map[string]any{}
		}

		r.logger.Debug("resolved skill from data part",
			zap.String("skill_id", skillID))
		return &Resolution{SkillID: skillID, Params: params}, nil
	}

	if data, ok := message.FirstDataPart(); ok {
		r.logger.Debug("data part without skillId, using default skill",
			zap.String("skill_id", r.defaultSkill))
		return &Resolution{SkillID: r.defaultSkill, Params: data}, nil
	}

	if text := message.TextContent(); text != "" {
		skillID := r.matchKeywords(text)
		return &Resolution{
			SkillID: skillID,
			Params:  map[string]any{"message": text},
		}, nil
	}

	return nil, &ExtractionError{Reason: "No skill or message provided in parts"}
}

// matchKeywords runs keyword intent detection over the lowercased text. The
// first skill in catalog order with a substring match wins; no match falls
// back to the default skill.
func (r *DefaultIntentRouter) matchKeywords(text string) string {
	lowered := strings.ToLower(text)

	for _, skill := range r.catalog.List() {
		for _, keyword := range skill.Keywords {
			if strings.Contains(lowered, keyword) {
				r.logger.Debug("keyword intent match",
					zap.String("skill_id", skill.ID),
					zap.String("keyword", keyword))
				return skill.ID
			}
		}
	}

	return r.defaultSkill
}
