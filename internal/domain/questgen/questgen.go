// Package questgen turns model output into validated quests and personas,
// with deterministic fallbacks when no model is available or its output is
// unusable.
package questgen

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/okian/profilequest/internal/adapters/ai"
	"github.com/okian/profilequest/internal/domain/model"
	"github.com/okian/profilequest/pkg/logger"
	"github.com/okian/profilequest/pkg/metrics"
)

// Source says where generated content came from.
type Source string

// Sources.
const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

const (
	defaultQuestModel   = "llama-3.3-70b-versatile"
	defaultPersonaModel = "openai/gpt-oss-20b"
	defaultTemperature  = 0.7
	maxPersonaTypeLen   = 60
)

// Request asks for a batch of quests.
type Request struct {
	PersonaType string
	Level       int
	Existing    []model.QuestDraft
}

// Generator produces quests and personas.
type Generator struct {
	chat         ai.ChatClient
	questModel   string
	personaModel string
	temperature  float64
	logger       logger.Logger
}

// NewGenerator creates a Generator over chat. A nil or disabled chat client
// always yields fallbacks.
func NewGenerator(chat ai.ChatClient, opts ...Option) *Generator {
	g := &Generator{
		chat:         chat,
		questModel:   defaultQuestModel,
		personaModel: defaultPersonaModel,
		temperature:  defaultTemperature,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logger.Get().Named("questgen")
	}
	return g
}

func (g *Generator) enabled() bool { return g.chat != nil && g.chat.Enabled() }

// GenerateQuests returns up to QuestsPerBatch new quests whose titles do not
// repeat req.Existing. Provider failures are ErrGeneration.
func (g *Generator) GenerateQuests(ctx context.Context, req Request) ([]model.QuestDraft, Source, error) {
	persona := strings.TrimSpace(req.PersonaType)
	if persona == "" {
		persona = model.DefaultPersonaType
	}
	level := max(req.Level, 1)
	existing := titles(req.Existing)

	var drafts []model.QuestDraft
	if g.enabled() {
		text, err := g.chat.Complete(ctx, ai.ChatRequest{
			Model:       g.questModel,
			Prompt:      questPrompt(persona, level, req.Existing),
			Temperature: g.temperature,
		})
		if err != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrGeneration, err)
		}
		drafts = Dedupe(parseQuestArray(text), existing)
		if len(drafts) == 0 {
			g.logger.Warn(ctx, "model returned no usable quests", logger.Int("response_len", len(text)))
		}
	}

	src := SourceModel
	if len(drafts) == 0 {
		src = SourceFallback
		drafts = Dedupe(FallbackQuests(persona, level), existing)
	}
	metrics.RecordQuestsGenerated(string(src), len(drafts))
	return drafts, src, nil
}

// PersonaResult is a generated persona with its starter quests.
type PersonaResult struct {
	PersonaType string
	Attributes  map[string]int
	Quests      []model.QuestDraft
}

type rawPersona struct {
	Persona *struct {
		PersonaType string         `json:"persona_type"`
		Attributes  map[string]any `json:"attributes"`
	} `json:"persona"`
	Quests []rawQuest `json:"quests"`
}

// GeneratePersona infers a persona and starter quests from in. Invalid
// attributes are dropped; missing parts fall back to the default persona and
// deterministic level-1 quests.
func (g *Generator) GeneratePersona(ctx context.Context, in PersonaInput) (PersonaResult, Source, error) {
	in = in.Normalize()
	fallback := model.DefaultPersona()
	res := PersonaResult{PersonaType: fallback.PersonaType, Attributes: fallback.Attributes}
	src := SourceFallback

	if g.enabled() {
		text, err := g.chat.Complete(ctx, ai.ChatRequest{
			Model:           g.personaModel,
			Prompt:          personaPrompt(in),
			Temperature:     g.temperature,
			ReasoningEffort: "medium",
		})
		if err != nil {
			return PersonaResult{}, "", fmt.Errorf("%w: %w", ErrGeneration, err)
		}
		var raw rawPersona
		if extractJSON(text, '{', &raw) {
			if raw.Persona != nil {
				if pt := cleanPersonaType(raw.Persona.PersonaType); pt != "" {
					res.PersonaType = pt
					src = SourceModel
				}
				if attrs := CleanAttributes(raw.Persona.Attributes); len(attrs) > 0 {
					res.Attributes = attrs
				}
			}
			res.Quests = Dedupe(toDrafts(raw.Quests), nil)
		} else {
			g.logger.Warn(ctx, "model returned no persona object", logger.Int("response_len", len(text)))
		}
	}

	if len(res.Quests) == 0 {
		res.Quests = FallbackQuests(res.PersonaType, 1)
	}
	metrics.RecordQuestsGenerated(string(src), len(res.Quests))
	return res, src, nil
}

// CleanAttributes keeps integer scores within the attribute bounds. Keys are
// trimmed and lowercased.
func CleanAttributes(in map[string]any) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		f, ok := v.(float64)
		if k == "" || !ok || f != float64(int(f)) {
			continue
		}
		if n := int(f); n >= model.AttributeMin && n <= model.AttributeMax {
			out[k] = n
		}
	}
	return out
}

// ValidateAttributes checks client-supplied attributes.
func ValidateAttributes(attrs map[string]int) (map[string]int, error) {
	out := maps.Clone(attrs)
	if out == nil {
		out = map[string]int{}
	}
	for k, v := range out {
		if strings.TrimSpace(k) == "" {
			return nil, errors.New("attribute names must not be empty")
		}
		if v < model.AttributeMin || v > model.AttributeMax {
			return nil, fmt.Errorf("attribute %q must be between %d and %d", k, model.AttributeMin, model.AttributeMax)
		}
	}
	return out, nil
}

func cleanPersonaType(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxPersonaTypeLen {
		s = string(r[:maxPersonaTypeLen])
	}
	return s
}

func titles(qs []model.QuestDraft) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Title)
	}
	return out
}
