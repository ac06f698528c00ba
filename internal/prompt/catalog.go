// Package prompt resolves scenario, level and mode into tutor prompts.
package prompt

import "strings"

// Scenario is a role-play setting the tutor can act out.
type Scenario struct {
	ID        string
	Title     string
	TutorRole string
	Setting   string
}

// Level tunes vocabulary and pacing for the learner.
type Level struct {
	ID       string
	Guidance string
}

// DefaultScenarioID is used when a request names an unknown scenario.
const DefaultScenarioID = "small-talk"

// DefaultLevelID is used when a request names an unknown level.
const DefaultLevelID = "intermediate"

var builtinScenarios = []Scenario{
	{
		ID:        "small-talk",
		Title:     "Small talk",
		TutorRole: "a friendly conversation partner",
		Setting:   "a relaxed chat between two people who just met",
	},
	{
		ID:        "job-interview",
		Title:     "Job interview",
		TutorRole: "a professional hiring manager",
		Setting:   "a job interview for a role the learner wants",
	},
	{
		ID:        "restaurant",
		Title:     "Ordering at a restaurant",
		TutorRole: "a waiter at a busy restaurant",
		Setting:   "the learner is ordering food and drinks",
	},
	{
		ID:        "hotel",
		Title:     "Hotel check-in",
		TutorRole: "a hotel receptionist",
		Setting:   "the learner is checking in and asking about the hotel",
	},
	{
		ID:        "travel",
		Title:     "At the airport",
		TutorRole: "an airline check-in agent",
		Setting:   "the learner is checking in for a flight",
	},
}

var builtinLevels = []Level{
	{ID: "beginner", Guidance: "Use very short sentences and common everyday words. Speak slowly and clearly."},
	{ID: "intermediate", Guidance: "Use natural everyday English with some varied vocabulary. Keep sentences moderate in length."},
	{ID: "advanced", Guidance: "Use rich, idiomatic English and ask for detailed, nuanced answers."},
}

// Catalog holds the scenarios and levels known to the resolver.
type Catalog struct {
	scenarios map[string]Scenario
	levels    map[string]Level
}

// NewCatalog returns the built-in catalog plus any extra scenarios.
func NewCatalog(extra ...Scenario) *Catalog {
	c := &Catalog{
		scenarios: make(map[string]Scenario, len(builtinScenarios)+len(extra)),
		levels:    make(map[string]Level, len(builtinLevels)),
	}
	for _, s := range builtinScenarios {
		c.scenarios[s.ID] = s
	}
	for _, s := range extra {
		c.scenarios[s.ID] = s
	}
	for _, l := range builtinLevels {
		c.levels[l.ID] = l
	}
	return c
}

// Scenario looks up a scenario, falling back to DefaultScenarioID.
func (c *Catalog) Scenario(id string) (Scenario, bool) {
	if s, ok := c.scenarios[strings.ToLower(strings.TrimSpace(id))]; ok {
		return s, true
	}
	return c.scenarios[DefaultScenarioID], false
}

// Level looks up a level, falling back to DefaultLevelID.
func (c *Catalog) Level(id string) (Level, bool) {
	if l, ok := c.levels[strings.ToLower(strings.TrimSpace(id))]; ok {
		return l, true
	}
	return c.levels[DefaultLevelID], false
}
