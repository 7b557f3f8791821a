// Package questsim drives a running ProfileQuest API with concurrent users
// and checks that every profile's level and XP history agree with the
// rewards it was granted.
package questsim

import "time"

// Config holds simulation parameters.
type Config struct {
	BaseURL       string
	Users         int
	QuestsPerUser int
	// Workers bounds the number of in-flight requests.
	Workers int
	// MaxReward is the largest XP reward a generated quest carries.
	MaxReward int64
	Timeout   time.Duration
	// Timezone is sent with every history request.
	Timezone string
	Verbose  bool
}

// Report summarizes a run.
type Report struct {
	Users            int
	QuestsSaved      int
	Completions      int
	DuplicatesDenied int
	LevelUps         int
	TotalXP          int64
	Duration         time.Duration
}
