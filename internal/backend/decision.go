package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// FinishTool is the pseudo-tool a provider names to end a task.
const FinishTool = "FINAL_ANSWER"

// JSONInstruction is appended to prompts that expect a decision.
const JSONInstruction = "\n\nRETURN JSON ONLY."

// Decision is one reasoning step: what the agent thinks and which tool to
// call next. Result is only meaningful with FinishTool.
type Decision struct {
	Thought string            `json:"thought"`
	Tool    string            `json:"tool"`
	Args    map[string]string `json:"args"`
	Result  string            `json:"result"`
}

// Finished reports whether the decision ends the task.
func (d Decision) Finished() bool {
	return strings.EqualFold(strings.TrimSpace(d.Tool), FinishTool)
}

// FinalResult returns the finish result, defaulting to "Task Completed".
func (d Decision) FinalResult() string {
	if d.Result != "" {
		return d.Result
	}
	if r := d.Args["result"]; r != "" {
		return r
	}
	return "Task Completed"
}

type rawDecision struct {
	Thought string          `json:"thought"`
	Tool    string          `json:"tool"`
	Args    map[string]any  `json:"args"`
	Result  json.RawMessage `json:"result"`
}

// DecodeDecision parses a provider reply into a Decision. Markdown fences and
// surrounding prose are stripped and malformed JSON is repaired before
// giving up. Non-string argument values are converted to their JSON text.
func DecodeDecision(text string) (Decision, error) {
	body := extractJSON(text)
	if body == "" {
		return Decision{}, fmt.Errorf("no JSON object in response: %q", truncate(text, 80))
	}

	var raw rawDecision
	if err := unmarshalJSON([]byte(body), &raw); err != nil {
		return Decision{}, fmt.Errorf("failed to decode decision: %w", err)
	}

	d := Decision{
		Thought: raw.Thought,
		Tool:    strings.TrimSpace(raw.Tool),
		Result:  stringify(raw.Result),
	}
	if len(raw.Args) > 0 {
		d.Args = make(map[string]string, len(raw.Args))
		for k, v := range raw.Args {
			d.Args[k] = argString(v)
		}
	}
	return d, nil
}

// Decide asks p for a decision. On any failure it returns the zero Decision
// together with the error; callers log it and move on.
func Decide(ctx context.Context, p Provider, system, user string, temperature float64) (Decision, error) {
	text, err := p.Complete(ctx, system, user+JSONInstruction, temperature)
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", NameOf(p), err)
	}
	if strings.TrimSpace(text) == "" {
		return Decision{}, fmt.Errorf("%s: %w", NameOf(p), ErrEmptyResponse)
	}
	d, err := DecodeDecision(text)
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", NameOf(p), err)
	}
	return d, nil
}

// unmarshalJSON retries with a repaired document on syntax errors.
func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return err
	}
	fixed, rerr := jsonrepair.JSONRepair(string(data))
	if rerr != nil {
		return fmt.Errorf("%w (repair failed: %v)", err, rerr)
	}
	return json.Unmarshal([]byte(fixed), v)
}

// extractJSON returns the JSON object inside text, preferring a fenced block.
func extractJSON(text string) string {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		rest = strings.TrimPrefix(rest, "JSON")
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		s = strings.TrimSpace(rest)
	}
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		// unterminated object, let the repairer close it
		return s[start:]
	}
	return s[start : end+1]
}

func argString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func stringify(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
