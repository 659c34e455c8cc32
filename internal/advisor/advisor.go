// Package advisor recommends a technology stack for a mission so the
// architect does not plan a large project on a toy framework.
package advisor

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Scope is the rough size of a project.
type Scope string

const (
	ScopeSimple     Scope = "simple"
	ScopeModerate   Scope = "moderate"
	ScopeComplex    Scope = "complex"
	ScopeEnterprise Scope = "enterprise"
)

// CategoryGeneral is returned when no category matches.
const CategoryGeneral = "general"

// maxRecommendations bounds the stacks listed in a prompt.
const maxRecommendations = 3

// Stack is one recommended (or discouraged) technology.
type Stack struct {
	Name   string   `yaml:"name"`
	Reason string   `yaml:"reason"`
	Pros   []string `yaml:"pros,omitempty"`
	Cons   []string `yaml:"cons,omitempty"`
	Score  int      `yaml:"score,omitempty"`
}

// Category matches a mission when any keyword appears and, if requires is
// set, any required word appears too.
type Category struct {
	Name        string   `yaml:"name"`
	Scope       Scope    `yaml:"scope"`
	Keywords    []string `yaml:"keywords"`
	Requires    []string `yaml:"requires,omitempty"`
	Recommended []Stack  `yaml:"recommended"`
	Avoid       []Stack  `yaml:"avoid,omitempty"`
}

func (c Category) matches(mission string) bool {
	return anyKeyword(mission, c.Keywords) && (len(c.Requires) == 0 || anyKeyword(mission, c.Requires))
}

// anyKeyword reports whether a word of text starts with one of keywords.
// Short catalog keywords such as "cli" or "rest" must not match inside
// longer words.
func anyKeyword(text string, keywords []string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		for _, kw := range keywords {
			if strings.HasPrefix(w, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}

// Analysis is the result of classifying a mission.
type Analysis struct {
	Category    string
	Scope       Scope
	Recommended []Stack
	Avoid       []Stack
}

// Advisor classifies missions against a catalog of categories.
type Advisor struct {
	categories []Category
}

// New returns an advisor using the built-in catalog.
func New() *Advisor {
	a, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("advisor: built-in catalog: %v", err))
	}
	return a
}

// Parse builds an advisor from a YAML catalog.
func Parse(data []byte) (*Advisor, error) {
	var doc struct {
		Categories []Category `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	for i, c := range doc.Categories {
		if c.Name == "" {
			return nil, fmt.Errorf("category %d has no name", i)
		}
		if len(c.Keywords) == 0 {
			return nil, fmt.Errorf("category %q has no keywords", c.Name)
		}
	}
	return &Advisor{categories: doc.Categories}, nil
}

// Analyze returns the first matching category, or a general moderate
// analysis with no recommendations.
func (a *Advisor) Analyze(mission string) Analysis {
	for _, c := range a.categories {
		if c.matches(mission) {
			return Analysis{Category: c.Name, Scope: c.Scope, Recommended: c.Recommended, Avoid: c.Avoid}
		}
	}
	return Analysis{Category: CategoryGeneral, Scope: ScopeModerate}
}

// Recommend returns a prompt block for the mission, or "" when there is
// nothing to recommend.
func (a *Advisor) Recommend(mission string) string {
	an := a.Analyze(mission)
	if len(an.Recommended) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nTECH STACK RECOMMENDATION (Project Scope: %s):\n", strings.ToUpper(string(an.Scope)))
	for i, s := range an.Recommended {
		if i == maxRecommendations {
			break
		}
		fmt.Fprintf(&b, "\n%d. **%s** (Score: %d/100)\n", i+1, s.Name, s.Score)
		fmt.Fprintf(&b, "   Reason: %s\n", s.Reason)
		if len(s.Pros) > 0 {
			fmt.Fprintf(&b, "   Pros: %s\n", strings.Join(s.Pros, ", "))
		}
	}
	if len(an.Avoid) > 0 {
		b.WriteString("\nAVOID:\n")
		for _, s := range an.Avoid {
			fmt.Fprintf(&b, "   - %s: %s\n", s.Name, s.Reason)
		}
	}
	fmt.Fprintf(&b, "\nRecommendation: Use %s for best results.\n", an.Recommended[0].Name)
	return b.String()
}
