// ABOUTME: Static catalog of agent personas the gateway can route chat to.
// ABOUTME: Provides lookup by id; the catalog is fixed at build time.

package agents

import "errors"

// ErrAgentNotFound indicates the requested agent id is not in the catalog.
var ErrAgentNotFound = errors.New("agent not found")

// MainAgentID is the id of the default/primary conversation context.
// The main agent carries no system prompt; the gateway owns its behavior.
const MainAgentID = "main"

// Config describes a single agent persona. SystemPrompt, when non-empty,
// is prepended as a system message on every request to that agent.
type Config struct {
	ID           string
	Name         string
	Description  string
	Emoji        string
	SystemPrompt string
}

// catalog is the fixed roster of agents. Order matters for display.
var catalog = []Config{
	{
		ID:          MainAgentID,
		Name:        "Main Agent",
		Emoji:       "🧠",
		Description: "Your primary AI orchestrator. Knows everything, can spawn sub-agents.",
	},
	{
		ID:           "product",
		Name:         "Head of Product",
		Emoji:        "📱",
		Description:  "Product development, UI/UX, feature planning.",
		SystemPrompt: "You are a Head of Product. Focus on user experience, product strategy, and feature prioritization.",
	},
	{
		ID:           "analyst",
		Name:         "Deal Analyst",
		Emoji:        "📊",
		Description:  "CRE deal analysis, market research, financial modeling.",
		SystemPrompt: "You are a CRE deal analyst. Focus on analyzing commercial real estate opportunities, cap rates, and market dynamics.",
	},
	{
		ID:           "engineer",
		Name:         "Staff Engineer",
		Emoji:        "⚡",
		Description:  "Architecture, code reviews, technical deep-dives.",
		SystemPrompt: "You are a Staff Engineer. Focus on system design, code quality, and technical excellence.",
	},
	{
		ID:           "writer",
		Name:         "Content Writer",
		Emoji:        "✍️",
		Description:  "Blog posts, documentation, marketing copy.",
		SystemPrompt: "You are a content writer. Focus on clear, engaging writing for technical and marketing content.",
	},
}

// All returns a copy of the full agent catalog in display order.
func All() []Config {
	out := make([]Config, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the agent config for the given id.
// The second return is false when the id is not in the catalog; callers
// should treat that as terminal, not retryable.
func Lookup(id string) (Config, bool) {
	for _, a := range catalog {
		if a.ID == id {
			return a, true
		}
	}
	return Config{}, false
}

// Get returns the agent config for the given id, or ErrAgentNotFound.
func Get(id string) (Config, error) {
	a, ok := Lookup(id)
	if !ok {
		return Config{}, ErrAgentNotFound
	}
	return a, nil
}
