package skills

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	config "github.com/agentwire/a2a/server/config"
	zap "go.uber.org/zap"
)

// NewDefaultRegistry builds the catalog with the built-in skills. The
// default skill (agent-info unless reconfigured) must always be present so
// the intent router has a fallback target.
func NewDefaultRegistry(logger *zap.Logger, cfg *config.Config) (*Registry, error) {
	registry := NewRegistry(logger)
	startTime := time.Now()

	err := registry.Register(Skill{
		ID:          "echo",
		Name:        "Echo",
		Description: "Echoes the provided message back to the caller",
		Tags:        []string{"utility", "testing"},
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string"},
			},
			"required": []string{"message"},
		},
		Examples: []string{"Echo hello"},
		Keywords: []string{"echo", "repeat"},
		Execute:  executeEcho,
	})
	if err != nil {
		return nil, err
	}

	err = registry.Register(Skill{
		ID:          "status",
		Name:        "Status",
		Description: "Reports the operational status of the agent",
		Tags:        []string{"utility", "monitoring"},
		Examples:    []string{"What is your status?"},
		Keywords:    []string{"status", "health", "ping"},
		Execute: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			return map[string]any{
				"status": "operational",
				"uptime": time.Since(startTime).Round(time.Second).String(),
			}, nil
		},
	})
	if err != nil {
		return nil, err
	}

	err = registry.Register(Skill{
		ID:          "premium-analysis",
		Name:        "Premium Analysis",
		Description: "In-depth analysis of the provided text",
		Tags:        []string{"analysis", "paid"},
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
		Examples:        []string{"Analyze this report"},
		Keywords:        []string{"analyze", "analysis"},
		RequiresPayment: true,
		Execute:         executeAnalysis,
	})
	if err != nil {
		return nil, err
	}

	err = registry.Register(Skill{
		ID:          "agent-info",
		Name:        "Agent Info",
		Description: "Describes this agent and its available skills",
		Tags:        []string{"utility", "discovery"},
		Examples:    []string{"What can you do?"},
		Keywords:    []string{"info", "help", "about"},
		Execute: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			return map[string]any{
				"service":     cfg.AgentName,
				"description": cfg.AgentDescription,
				"version":     cfg.AgentVersion,
				"skills":      registry.IDs(),
			}, nil
		},
	})
	if err != nil {
		return nil, err
	}

	if _, ok := registry.Get(cfg.DefaultSkill); !ok {
		return nil, fmt.Errorf("default skill %s is not registered", cfg.DefaultSkill)
	}

	return registry, nil
}

// executeEcho echoes the message parameter. A leading routing keyword is
// stripped so "Echo hello" comes back as "hello".
func executeEcho(ctx context.Context, params map[string]any) (map[string]any, error) {
	message, ok := params["message"].(string)
	if !ok || message == "" {
		return nil, fmt.Errorf("missing required parameter: message")
	}

	echoed := message
	fields := strings.Fields(message)
	if len(fields) > 1 {
		switch strings.ToLower(fields[0]) {
		case "echo", "repeat":
			echoed = strings.Join(fields[1:], " ")
		}
	}

	return map[string]any{"echo": echoed}, nil
}

func executeAnalysis(ctx context.Context, params map[string]any) (map[string]any, error) {
	text, ok := params["text"].(string)
	if !ok {
		if message, msgOK := params["message"].(string); msgOK {
			text = message
		} else {
			return nil, fmt.Errorf("missing required parameter: text")
		}
	}

	return map[string]any{
		"words":      len(strings.Fields(text)),
		"characters": utf8.RuneCountInString(text),
		"sentences":  strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?"),
	}, nil
}
