package questsim

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/profilequest/internal/domain/model"
	"github.com/okian/profilequest/internal/domain/questgen"
)

const simPassword = "questsim-password"

// userPlan is the work planned for one simulated user.
type userPlan struct {
	Email  string
	Name   string
	Quests []model.QuestDraft

	token string
}

// expectedXP is the sum of every planned reward.
func (p *userPlan) expectedXP() int64 {
	var sum int64
	for _, q := range p.Quests {
		sum += q.XPReward
	}
	return sum
}

// buildPlans generates users with uniquely titled quests whose rewards are
// drawn from [1, maxReward].
func buildPlans(cfg *Config) []*userPlan {
	maxReward := min(max(cfg.MaxReward, 1), questgen.MaxQuestReward)
	categories := model.Categories()
	runID := uuid.NewString()[:8]

	plans := make([]*userPlan, cfg.Users)
	for i := range plans {
		p := &userPlan{
			Email:  fmt.Sprintf("sim-%s-%d@questsim.test", runID, i),
			Name:   fmt.Sprintf("Sim User %d", i),
			Quests: make([]model.QuestDraft, cfg.QuestsPerUser),
		}
		for j := range p.Quests {
			p.Quests[j] = model.QuestDraft{
				Title:       fmt.Sprintf("Simulated quest %d", j+1),
				Description: "Generated by questsim.",
				Category:    categories[j%len(categories)],
				XPReward:    1 + rand.Int64N(maxReward),
			}
		}
		plans[i] = p
	}
	return plans
}
