package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_Main(t *testing.T) {
	a, ok := Lookup(MainAgentID)
	require.True(t, ok)
	assert.Equal(t, "main", a.ID)
	assert.Equal(t, "Main Agent", a.Name)
	assert.Empty(t, a.SystemPrompt, "main agent must not carry a system prompt")
}

func TestLookup_SubAgentHasSystemPrompt(t *testing.T) {
	a, ok := Lookup("engineer")
	require.True(t, ok)
	assert.NotEmpty(t, a.SystemPrompt)
}

func TestLookup_Unknown(t *testing.T) {
	_, ok := Lookup("nonexistent")
	assert.False(t, ok)

	_, err := Get("nonexistent")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestAll_ReturnsCopy(t *testing.T) {
	first := All()
	require.NotEmpty(t, first)

	first[0].Name = "mutated"

	second := All()
	assert.Equal(t, "Main Agent", second[0].Name)
}

func TestAll_MainIsFirst(t *testing.T) {
	all := All()
	require.NotEmpty(t, all)
	assert.Equal(t, MainAgentID, all[0].ID)
}
