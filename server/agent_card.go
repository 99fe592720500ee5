package server

import (
	config "github.com/agentwire/a2a/server/config"
	skills "github.com/agentwire/a2a/server/skills"
	types "github.com/agentwire/a2a/types"
)

// SupportedMethods lists the JSON-RPC methods this server implements
var SupportedMethods = []string{
	"message/send",
	"tasks/send",
	"tasks/get",
	"tasks/cancel",
	"agent/describe",
	"skills/list",
}

// BuildAgentCard assembles the discovery document from the capability
// catalog and static configuration. It reads no runtime state, so the card
// can be built once at startup and served immutable.
func BuildAgentCard(cfg *config.Config, catalog *skills.Registry, gate PaymentGate) *types.AgentCard {
	authentication := types.AgentAuthentication{
		Schemes: []string{"bearer"},
	}
	if gate != nil && gate.Enabled() {
		requirements := gate.Requirements()
		authentication.Schemes = append(authentication.Schemes, requirements.Scheme)
		authentication.Payment = &requirements
	}

	return &types.AgentCard{
		ProtocolVersion:  cfg.ProtocolVersion,
		Name:             cfg.AgentName,
		Description:      cfg.AgentDescription,
		Version:          cfg.AgentVersion,
		URL:              cfg.AgentURL,
		Skills:           catalog.AgentSkills(),
		SupportedMethods: SupportedMethods,
		Authentication:   authentication,
	}
}
