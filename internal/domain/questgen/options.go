package questgen

import "github.com/okian/profilequest/pkg/logger"

// Option configures a Generator.
type Option func(*Generator)

// WithQuestModel sets the model used for quest batches.
func WithQuestModel(m string) Option {
	return func(g *Generator) {
		if m != "" {
			g.questModel = m
		}
	}
}

// WithPersonaModel sets the model used for persona inference.
func WithPersonaModel(m string) Option {
	return func(g *Generator) {
		if m != "" {
			g.personaModel = m
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(g *Generator) {
		if t >= 0 {
			g.temperature = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Generator) { g.logger = l }
}
