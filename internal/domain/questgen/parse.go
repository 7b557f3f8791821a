package questgen

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"

	"github.com/okian/profilequest/internal/domain/leveling"
	"github.com/okian/profilequest/internal/domain/model"
)

// Quest field bounds.
const (
	MaxTitleLength       = 120
	MaxDescriptionLength = 2000
	MaxQuestReward       = 10000
)

// rawQuest is a quest as a model or client sends it. xp_reward may be a
// number, a numeric string or missing.
type rawQuest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	XPReward    any    `json:"xp_reward"`
}

type draftRecord struct {
	Title       string `validate:"required,max=120"`
	Description string `validate:"max=2000"`
	Category    string `validate:"required,category"`
	XPReward    int64  `validate:"gte=0,lte=10000"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, ok := matchCategory(fl.Field().String())
		return ok
	})
	return v
}

var validate = newValidator()

// NormalizeDraft trims d, maps its category onto a known one (defaulting to
// Skill Development) and validates the result.
func NormalizeDraft(d model.QuestDraft) (model.QuestDraft, error) {
	d.Title = strings.Join(strings.Fields(d.Title), " ")
	d.Description = strings.TrimSpace(d.Description)
	if c, ok := matchCategory(d.Category); ok {
		d.Category = c
	} else {
		d.Category = model.CategorySkill
	}
	rec := draftRecord{Title: d.Title, Description: d.Description, Category: d.Category, XPReward: d.XPReward}
	if err := validate.Struct(rec); err != nil {
		return model.QuestDraft{}, fmt.Errorf("%w: %s", ErrInvalidDraft, describe(err))
	}
	return d, nil
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, e.Param()))
		case "gte", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be between 0 and %d", field, MaxQuestReward))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func matchCategory(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, c := range model.Categories() {
		if strings.EqualFold(s, c) {
			return c, true
		}
	}
	return "", false
}

// parseReward accepts JSON numbers and numeric strings; a missing value is
// the default reward.
func parseReward(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return model.DefaultXPReward, nil
	case float64:
		return leveling.ParseAmount(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", leveling.ErrInvalidAmount, x)
		}
		return leveling.ParseAmount(f)
	default:
		return 0, fmt.Errorf("%w: %v", leveling.ErrInvalidAmount, v)
	}
}

// toDrafts converts raw records, dropping the ones that fail validation.
func toDrafts(raws []rawQuest) []model.QuestDraft {
	out := make([]model.QuestDraft, 0, len(raws))
	for _, r := range raws {
		xp, err := parseReward(r.XPReward)
		if err != nil {
			continue
		}
		d, err := NormalizeDraft(model.QuestDraft{Title: r.Title, Description: r.Description, Category: r.Category, XPReward: xp})
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}

// extractJSON decodes the first JSON value starting with open ('[' or '{')
// found in text. Models often wrap JSON in prose or code fences.
func extractJSON(text string, open byte, v any) bool {
	for i := 0; i < len(text); i++ {
		if text[i] != open {
			continue
		}
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(v); err == nil {
			return true
		}
	}
	return false
}

// parseQuestArray returns the valid quests of the first JSON array in text.
func parseQuestArray(text string) []model.QuestDraft {
	var raws []rawQuest
	if !extractJSON(text, '[', &raws) {
		return nil
	}
	return toDrafts(raws)
}

// titleKey folds case and collapses whitespace so near-identical titles
// compare equal.
func titleKey(title string) string {
	return strings.Join(strings.Fields(cases.Fold().String(title)), " ")
}

// Dedupe drops drafts whose title matches an existing title or an earlier
// draft under Unicode case folding.
func Dedupe(drafts []model.QuestDraft, existing []string) []model.QuestDraft {
	seen := make(map[string]struct{}, len(existing)+len(drafts))
	for _, t := range existing {
		if k := titleKey(t); k != "" {
			seen[k] = struct{}{}
		}
	}
	out := make([]model.QuestDraft, 0, len(drafts))
	for _, d := range drafts {
		k := titleKey(d.Title)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, d)
	}
	return out
}

// FallbackReward is the reward of deterministic quests at level:
// max(50, round(100 * 1.15^(level-1))), capped at MaxQuestReward.
func FallbackReward(level int) int64 {
	if level < 1 {
		level = 1
	}
	r := math.Round(100 * math.Pow(1.15, float64(level-1)))
	switch {
	case r < 50:
		return 50
	case r > MaxQuestReward:
		return MaxQuestReward
	}
	return int64(r)
}

var fallbackCategories = []string{
	model.CategorySkill, model.CategoryPortfolio, model.CategoryNetworking, model.CategoryLeadership, model.CategorySkill,
}

// FallbackQuests builds the deterministic quest set used when no model
// output is usable.
func FallbackQuests(personaType string, level int) []model.QuestDraft {
	if level < 1 {
		level = 1
	}
	out := make([]model.QuestDraft, 0, QuestsPerBatch)
	for i := 0; i < QuestsPerBatch; i++ {
		out = append(out, model.QuestDraft{
			Title:       fmt.Sprintf("%s L%d Quest %d", personaType, level, i+1),
			Description: fmt.Sprintf("A level %d task to advance as a %s.", level, personaType),
			Category:    fallbackCategories[i%len(fallbackCategories)],
			XPReward:    FallbackReward(level),
		})
	}
	return out
}
