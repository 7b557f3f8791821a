package questgen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/okian/profilequest/internal/domain/model"
)

// QuestsPerBatch is how many quests one generation asks for.
const QuestsPerBatch = 5

// existingPromptLimit caps the existing-quest listing embedded in a prompt.
const existingPromptLimit = 8000

func questPrompt(personaType string, level int, existing []model.QuestDraft) string {
	listing := make([]map[string]string, 0, len(existing))
	for _, q := range existing {
		item := map[string]string{"title": q.Title}
		if q.Description != "" {
			item["description"] = q.Description
		}
		if q.Category != "" {
			item["category"] = q.Category
		}
		listing = append(listing, item)
	}
	raw, _ := json.Marshal(listing)
	existingJSON := string(raw)
	if len(existingJSON) > existingPromptLimit {
		existingJSON = strings.ToValidUTF8(existingJSON[:existingPromptLimit], "")
	}

	return fmt.Sprintf(`Generate %d career quests for a %s at level %d.
Categories: %s

Return JSON array:
[
  {"title":"...","description":"...","category":"...","xp_reward":100}
]

Rules:
- Read these existing quests and DO NOT generate duplicates or near-duplicates (no paraphrases, no same intent):
%s
- Prefer fresh, more advanced tasks appropriate for level %d and the persona %s.
- Keep titles unique, concise, and actionable.`,
		QuestsPerBatch, personaType, level, strings.Join(model.Categories(), ", "),
		existingJSON, level, personaType)
}

// PersonaInput is what a user tells us about themselves.
type PersonaInput struct {
	CurrentRole string `json:"currentRole"`
	Proficiency int    `json:"proficiency"`
	Interests   string `json:"interests"`
	Strengths   string `json:"strengths"`
	Goals       string `json:"goals"`
}

// Proficiency bounds on the 1..5 self-assessment scale.
const (
	MinProficiency     = 1
	MaxProficiency     = 5
	DefaultProficiency = 3
)

// Normalize clamps proficiency and trims the free-text fields.
func (in PersonaInput) Normalize() PersonaInput {
	switch {
	case in.Proficiency == 0:
		in.Proficiency = DefaultProficiency
	case in.Proficiency < MinProficiency:
		in.Proficiency = MinProficiency
	case in.Proficiency > MaxProficiency:
		in.Proficiency = MaxProficiency
	}
	in.CurrentRole = strings.TrimSpace(in.CurrentRole)
	in.Interests = strings.TrimSpace(in.Interests)
	in.Strengths = strings.TrimSpace(in.Strengths)
	in.Goals = strings.TrimSpace(in.Goals)
	return in
}

// Seed picks the text an avatar fallback is derived from.
func (in PersonaInput) Seed(userID string) string {
	for _, s := range []string{userID, in.CurrentRole, in.Strengths, in.Goals} {
		if s != "" {
			return s
		}
	}
	return "seed"
}

func personaPrompt(in PersonaInput) string {
	return fmt.Sprintf(`Using the following user inputs, infer a career persona and generate %d beginner-friendly quests
and how the user should upskill to achieve the goals.

Inputs:
- Current Role: %s
- Proficiency: %d/5
- Interests: %s
- Strengths: %s
- Goals: %s

Return ONLY valid JSON with this exact shape (no extra text):
{
  "persona": {
    "persona_type": "Software Developer",
    "attributes": { "logic": 7, "creativity": 6, "communication": 5 }
  },
  "quests": [
    { "title": "...", "description": "...", "category": "Skill Development", "xp_reward": 100 }
  ]
}

Guidelines:
- attributes are integers %d-%d
- Include %d quests across categories: %s
- Keep titles concise and actionable`,
		QuestsPerBatch, in.CurrentRole, in.Proficiency, in.Interests, in.Strengths, in.Goals,
		model.AttributeMin, model.AttributeMax, QuestsPerBatch, strings.Join(model.Categories(), ", "))
}

// AvatarStyles are the looks a persona avatar may be drawn in.
var AvatarStyles = []string{"cartoon", "anime", "pixel", "vintage", "modern"}

// PersonaAvatarPrompt describes a persona portrait in style.
func PersonaAvatarPrompt(p model.Persona, in PersonaInput, style string) string {
	persona, _ := json.Marshal(map[string]any{"persona_type": p.PersonaType, "attributes": p.Attributes})
	return fmt.Sprintf("Create a 1024x1024 square avatar in %s style based on this persona: %s. "+
		"Consider role=%s, proficiency=%d/5, interests=%s, strengths=%s, goals=%s.",
		style, persona, in.CurrentRole, in.Proficiency, in.Interests, in.Strengths, in.Goals)
}

// BadgeStyle is the style of badge avatars.
const BadgeStyle = "unicode emoji"

// BadgeAvatarPrompt describes an emoji-like identity badge.
func BadgeAvatarPrompt(in PersonaInput) string {
	return fmt.Sprintf(`Create a 1024x1024 square picture in %s style. Imagine that this is a badge and the picture is the identity of the user, let your imagination run wild.
Use these details: role=%s, proficiency=%d/5, interests=%s, strengths=%s, goals=%s.
Return only the image based on the face likeness if a reference image is provided.
Make sure it looks like a unicode emoji
Generate exactly 256x256 square.`,
		BadgeStyle, in.CurrentRole, in.Proficiency, in.Interests, in.Strengths, in.Goals)
}
