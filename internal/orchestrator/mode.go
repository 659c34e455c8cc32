package orchestrator

import (
	"fmt"
	"slices"
	"strings"
)

// Mode selects when the driving loop may stop and which tools need an
// operator's approval.
type Mode string

const (
	// ModeSingle works until the queue drains.
	ModeSingle Mode = "SINGLE"
	// ModeAutonomous works until stopped or MaxIterations ticks have run.
	ModeAutonomous Mode = "AUTONOMOUS"
	// ModeSupervised works until stopped and gates selected tools.
	ModeSupervised Mode = "SUPERVISED"
)

// ApproveAll in an approval list gates every tool.
const ApproveAll = "all"

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case ModeSingle, ModeAutonomous, ModeSupervised:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// DefaultApprovals returns the tools a mode gates when none are configured.
func DefaultApprovals(m Mode) []string {
	switch m {
	case ModeSingle:
		return []string{ApproveAll}
	case ModeSupervised:
		return []string{"file_write", "git"}
	}
	return nil
}

// ModePolicy is a mode plus its limits.
type ModePolicy struct {
	Mode          Mode
	MaxIterations int // 0 is unlimited; honoured in AUTONOMOUS mode
	Approvals     []string
}

// NewModePolicy builds a policy. A nil approvals list takes the mode's
// defaults; an empty non-nil list gates nothing.
func NewModePolicy(m Mode, maxIterations int, approvals []string) ModePolicy {
	if approvals == nil {
		approvals = DefaultApprovals(m)
	}
	return ModePolicy{Mode: m, MaxIterations: maxIterations, Approvals: approvals}
}

// RequiresApproval reports whether tool must be approved before it runs.
func (p ModePolicy) RequiresApproval(tool string) bool {
	return slices.Contains(p.Approvals, ApproveAll) || slices.Contains(p.Approvals, tool)
}

// shouldContinue applies the mode's stop rule.
func (p ModePolicy) shouldContinue(running bool, queueLen, iterations int) bool {
	if !running {
		return false
	}
	switch p.Mode {
	case ModeSingle:
		return queueLen > 0
	case ModeAutonomous:
		return p.MaxIterations <= 0 || iterations < p.MaxIterations
	default:
		return true
	}
}
