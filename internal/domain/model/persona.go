package model

import "time"

// Persona is the career archetype inferred for a user.
type Persona struct {
	UserID      string         `json:"user_id"`
	PersonaType string         `json:"persona_type"`
	Attributes  map[string]int `json:"attributes"`
	Avatar      string         `json:"avatar,omitempty"` // data URL
	UpdatedAt   time.Time      `json:"updated_at"`
}

// DefaultPersonaType is used when no persona has been generated yet.
const DefaultPersonaType = "Adventurer"

// AttributeMin and AttributeMax bound persona attribute scores.
const (
	AttributeMin = 1
	AttributeMax = 10
)

// DefaultPersona is the persona used when generation fails.
func DefaultPersona() Persona {
	return Persona{
		PersonaType: DefaultPersonaType,
		Attributes:  map[string]int{"logic": 5, "creativity": 5, "communication": 5},
	}
}
