package advisor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	a := New()

	tests := []struct {
		mission  string
		category string
		scope    Scope
	}{
		{"Build a 3D game with physics", "3d_game", ScopeComplex},
		{"A detailed GTA-style game", "3d_game", ScopeComplex},
		{"Render 3D houses", CategoryGeneral, ScopeModerate}, // no game or physics
		{"2D platformer game with sprites", "2d_game", ScopeModerate},
		{"sprite editor", CategoryGeneral, ScopeModerate},
		{"REST API for a todo list", "web_app", ScopeModerate},
		{"Company website", "web_app", ScopeModerate},
		{"CLI to rename photos", "cli_tool", ScopeSimple},
		{"terminal clock", "cli_tool", ScopeSimple},
		{"Sort a list of numbers", CategoryGeneral, ScopeModerate},
		{"rapid prototyping", CategoryGeneral, ScopeModerate}, // "api" only matches at a word start
	}

	for _, tt := range tests {
		t.Run(tt.mission, func(t *testing.T) {
			got := a.Analyze(tt.mission)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.scope, got.Scope)
		})
	}
}

func TestAnalyzeFirstCategoryWins(t *testing.T) {
	// Matches both 3d_game and web_app; 3d_game is listed first.
	got := New().Analyze("3d game with a web api")
	assert.Equal(t, "3d_game", got.Category)
}

func TestRecommend(t *testing.T) {
	out := New().Recommend("Build a 3D game about a neighborhood")

	assert.Contains(t, out, "TECH STACK RECOMMENDATION (Project Scope: COMPLEX):")
	assert.Contains(t, out, "1. **Panda3D** (Score: 95/100)")
	assert.Contains(t, out, "   Pros: Native Python, Built-in physics, MIT license")
	assert.Contains(t, out, "3. **Ursina Engine** (Score: 85/100)")
	assert.Contains(t, out, "AVOID:\n   - Pygame: 2D only")
	assert.True(t, strings.HasSuffix(out, "Recommendation: Use Panda3D for best results.\n"))
}

func TestRecommendWithoutProsOrAvoid(t *testing.T) {
	out := New().Recommend("command line tool")

	assert.Contains(t, out, "1. **Click** (Score: 95/100)\n   Reason: Modern CLI framework with decorators\n")
	assert.NotContains(t, out, "Pros:")
	assert.NotContains(t, out, "AVOID")
}

func TestRecommendGeneralIsEmpty(t *testing.T) {
	assert.Empty(t, New().Recommend("write a haiku"))
}

func TestRecommendLimitsStacks(t *testing.T) {
	a, err := Parse([]byte(`
categories:
  - name: many
    scope: simple
    keywords: [many]
    recommended:
      - {name: A, reason: a, score: 1}
      - {name: B, reason: b, score: 2}
      - {name: C, reason: c, score: 3}
      - {name: D, reason: d, score: 4}
`))
	require.NoError(t, err)

	out := a.Recommend("many things")
	assert.Contains(t, out, "3. **C**")
	assert.NotContains(t, out, "**D**")
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("categories: ["))
	assert.Error(t, err)

	_, err = Parse([]byte("categories:\n  - scope: simple\n    keywords: [x]\n"))
	assert.ErrorContains(t, err, "no name")

	_, err = Parse([]byte("categories:\n  - name: x\n"))
	assert.ErrorContains(t, err, "no keywords")
}
