package scheduler

import (
	"strings"
	"unicode"
)

// Capability is the class of work an agent accepts.
type Capability string

const (
	CapabilityArchitect Capability = "ARCHITECT"
	CapabilityEngineer  Capability = "ENGINEER"
	CapabilityQA        Capability = "QA"
)

// Capabilities lists every known capability in default roster order.
var Capabilities = []Capability{CapabilityArchitect, CapabilityEngineer, CapabilityQA}

// ParseCapability resolves a capability name case-insensitively.
func ParseCapability(s string) (Capability, bool) {
	c := Capability(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CapabilityArchitect, CapabilityEngineer, CapabilityQA:
		return c, true
	}
	return "", false
}

// Intent is the keyword class of a task's text.
type Intent int

const (
	IntentNone   Intent = iota // No recognised keyword
	IntentDesign               // design, architecture
	IntentBuild                // implement, fix, create
	IntentVerify               // test, verify, qa
)

func (i Intent) String() string {
	switch i {
	case IntentDesign:
		return "design"
	case IntentBuild:
		return "build"
	case IntentVerify:
		return "verify"
	default:
		return "none"
	}
}

// Keyword sets per intent. Order within Classify is design, build, verify.
var (
	designKeywords = []string{"design", "architecture"}
	buildKeywords  = []string{"implement", "fix", "create"}
	verifyKeywords = []string{"test", "verify", "qa"}
)

// Intent returns the intent a capability consumes.
func (c Capability) Intent() Intent {
	switch c {
	case CapabilityArchitect:
		return IntentDesign
	case CapabilityEngineer:
		return IntentBuild
	case CapabilityQA:
		return IntentVerify
	default:
		return IntentNone
	}
}

// Accepts reports whether the capability can take the given task.
func (c Capability) Accepts(task string) bool {
	in := Classify(task)
	return in != IntentNone && in == c.Intent()
}

// Classify derives a task's intent from its text.
//
// A leading directive ("Verify: ...", "Fix: ...") decides the intent when it
// names a known keyword. Otherwise the text is searched for the design, build
// and verify keyword sets in that order. Keywords match anywhere in the text,
// case-insensitively ("Redesign", "unittests").
func Classify(task string) Intent {
	if directive, _, ok := splitDirective(task); ok {
		if in := classifyText(directive); in != IntentNone {
			return in
		}
	}
	return classifyText(task)
}

// HasKeyword reports whether text contains keyword, case-insensitively.
func HasKeyword(text, keyword string) bool {
	return containsAny(strings.ToLower(text), []string{keyword})
}

// Subject strips a leading directive from a task ("Implement: X" -> "X").
func Subject(task string) string {
	if _, rest, ok := splitDirective(task); ok {
		return rest
	}
	return strings.TrimSpace(task)
}

func classifyText(text string) Intent {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, designKeywords):
		return IntentDesign
	case containsAny(lower, buildKeywords):
		return IntentBuild
	case containsAny(lower, verifyKeywords):
		return IntentVerify
	}
	return IntentNone
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// splitDirective splits "Word: rest". The directive must be a single word.
func splitDirective(task string) (string, string, bool) {
	head, rest, found := strings.Cut(strings.TrimSpace(task), ":")
	if !found {
		return "", "", false
	}
	head = strings.TrimSpace(head)
	if head == "" || strings.ContainsFunc(head, unicode.IsSpace) {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}
