package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/okian/profilequest/internal/adapters/ai"
	"github.com/okian/profilequest/internal/adapters/repository"
	"github.com/okian/profilequest/internal/domain/model"
	"github.com/okian/profilequest/internal/domain/questgen"
)

// PersonaRequest asks for a generated persona. Reference is an optional
// data URL of the user's photo used for the avatar likeness.
type PersonaRequest struct {
	Input     questgen.PersonaInput
	Reference string
}

// GeneratedPersona is an unsaved persona with starter quests and avatar.
type GeneratedPersona struct {
	Persona      model.Persona      `json:"persona"`
	Quests       []model.QuestDraft `json:"quests"`
	Source       questgen.Source    `json:"source"`
	AvatarSource string             `json:"avatar_source"`
}

// GeneratePersona infers a persona for userID and draws its avatar. Nothing
// is saved.
func (s *Service) GeneratePersona(ctx context.Context, userID string, req PersonaRequest) (GeneratedPersona, error) {
	ref, refMIME, err := parseReference(req.Reference)
	if err != nil {
		return GeneratedPersona{}, err
	}
	in := req.Input.Normalize()
	res, src, err := s.gen.GeneratePersona(ctx, in)
	if err != nil {
		return GeneratedPersona{}, err
	}
	p := model.Persona{UserID: userID, PersonaType: res.PersonaType, Attributes: res.Attributes}

	style := questgen.AvatarStyles[rand.IntN(len(questgen.AvatarStyles))]
	img := s.avatars.Generate(ctx, ai.AvatarRequest{
		Prompt:        questgen.PersonaAvatarPrompt(p, in, style),
		Seed:          in.Seed(userID),
		Reference:     ref,
		ReferenceMIME: refMIME,
	})
	p.Avatar = img.DataURL()
	return GeneratedPersona{Persona: p, Quests: res.Quests, Source: src, AvatarSource: img.Source}, nil
}

// PersonaUpdate is a persona as the client wants it stored.
type PersonaUpdate struct {
	PersonaType string         `json:"persona_type"`
	Attributes  map[string]int `json:"attributes"`
	Avatar      string         `json:"avatar"`
}

// SavePersona stores the persona of userID, replacing any previous one.
func (s *Service) SavePersona(ctx context.Context, userID string, up PersonaUpdate) (model.Persona, error) {
	attrs, err := questgen.ValidateAttributes(up.Attributes)
	if err != nil {
		return model.Persona{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if up.Avatar != "" {
		if _, _, err := ai.ParseDataURL(up.Avatar); err != nil {
			return model.Persona{}, fmt.Errorf("%w: avatar: %w", ErrInvalidInput, err)
		}
	}
	pt := strings.Join(strings.Fields(up.PersonaType), " ")
	if pt == "" {
		pt = model.DefaultPersonaType
	}
	if _, err := s.store.UserByID(ctx, userID); err != nil {
		return model.Persona{}, fmt.Errorf("load user: %w", err)
	}
	p, err := s.store.UpsertPersona(ctx, model.Persona{
		UserID:      userID,
		PersonaType: pt,
		Attributes:  attrs,
		Avatar:      up.Avatar,
		UpdatedAt:   s.clock.Now().UTC(),
	})
	if err != nil {
		return model.Persona{}, fmt.Errorf("save persona: %w", err)
	}
	return p, nil
}

// Persona returns the stored persona of userID, or repository.ErrNotFound.
func (s *Service) Persona(ctx context.Context, userID string) (model.Persona, error) {
	p, err := s.store.Persona(ctx, userID)
	if err != nil {
		return model.Persona{}, fmt.Errorf("load persona: %w", err)
	}
	return p, nil
}

// personaType returns the stored persona type or the default one.
func (s *Service) personaType(ctx context.Context, userID string) (string, error) {
	p, err := s.store.Persona(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.DefaultPersonaType, nil
	case err != nil:
		return "", fmt.Errorf("load persona: %w", err)
	}
	return p.PersonaType, nil
}

// Avatar kinds.
const (
	AvatarPersona = "persona"
	AvatarBadge   = "badge"
)

// AvatarInput asks for a standalone avatar.
type AvatarInput struct {
	Kind      string
	Style     string
	Input     questgen.PersonaInput
	Reference string
}

// GeneratedAvatar is an avatar as a data URL. DataURL is empty when no
// source could produce one.
type GeneratedAvatar struct {
	DataURL string `json:"data_url"`
	Source  string `json:"source"`
	Style   string `json:"style"`
}

// GenerateAvatar draws a persona portrait or an emoji badge for userID.
func (s *Service) GenerateAvatar(ctx context.Context, userID string, req AvatarInput) (GeneratedAvatar, error) {
	ref, refMIME, err := parseReference(req.Reference)
	if err != nil {
		return GeneratedAvatar{}, err
	}
	in := req.Input.Normalize()

	var prompt, style string
	switch req.Kind {
	case "", AvatarBadge:
		style = questgen.BadgeStyle
		prompt = questgen.BadgeAvatarPrompt(in)
	case AvatarPersona:
		style = req.Style
		if style == "" {
			style = questgen.AvatarStyles[rand.IntN(len(questgen.AvatarStyles))]
		}
		p, err := s.store.Persona(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			p = model.DefaultPersona()
		} else if err != nil {
			return GeneratedAvatar{}, fmt.Errorf("load persona: %w", err)
		}
		prompt = questgen.PersonaAvatarPrompt(p, in, style)
	default:
		return GeneratedAvatar{}, fmt.Errorf("%w: avatar kind %q (want %s or %s)", ErrInvalidInput, req.Kind, AvatarPersona, AvatarBadge)
	}

	img := s.avatars.Generate(ctx, ai.AvatarRequest{Prompt: prompt, Seed: in.Seed(userID), Reference: ref, ReferenceMIME: refMIME})
	return GeneratedAvatar{DataURL: img.DataURL(), Source: img.Source, Style: style}, nil
}

func parseReference(dataURL string) ([]byte, string, error) {
	if dataURL == "" {
		return nil, "", nil
	}
	data, mime, err := ai.ParseDataURL(dataURL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: reference image: %w", ErrInvalidInput, err)
	}
	return data, mime, nil
}
