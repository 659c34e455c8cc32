package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dweebuild/dweebuild/internal/scheduler"
)

// Validate reports every inconsistency in cfg joined into one error.
func (c *Config) Validate() error {
	var errs []error

	switch c.Orchestrator.Mode {
	case ModeSingle, ModeAutonomous, ModeSupervised:
	default:
		errs = append(errs, fmt.Errorf("orchestrator.mode %q: want SINGLE, AUTONOMOUS or SUPERVISED", c.Orchestrator.Mode))
	}
	if c.Orchestrator.MaxIterations < 0 {
		errs = append(errs, errors.New("orchestrator.max_iterations must not be negative"))
	}
	if c.Orchestrator.AgentTimeoutSeconds < 0 {
		errs = append(errs, errors.New("orchestrator.agent_timeout_seconds must not be negative"))
	}

	if len(c.Roster) == 0 {
		errs = append(errs, errors.New("roster is empty"))
	}
	seen := make(map[string]bool, len(c.Roster))
	for _, name := range c.Roster {
		if seen[name] {
			errs = append(errs, fmt.Errorf("roster lists %q twice", name))
			continue
		}
		seen[name] = true
		if _, ok := c.Agents[name]; !ok {
			errs = append(errs, fmt.Errorf("roster references unknown agent %q", name))
		}
	}

	for name, a := range c.Agents {
		if _, ok := scheduler.ParseCapability(a.Capability); !ok {
			errs = append(errs, fmt.Errorf("agent %q: unknown capability %q", name, a.Capability))
		}
		if a.Strategy == "test-gate" {
			continue
		}
		if _, ok := c.Providers[a.Provider]; !ok {
			errs = append(errs, fmt.Errorf("agent %q: unknown provider %q", name, a.Provider))
		}
	}

	for name, p := range c.Providers {
		if p.Type == "" {
			errs = append(errs, fmt.Errorf("provider %q: type is required", name))
		}
	}

	for _, t := range c.CustomTools {
		if t.Name == "" || strings.TrimSpace(t.Command) == "" {
			errs = append(errs, fmt.Errorf("custom tool %q: name and command are required", t.Name))
		}
	}

	if _, err := scheduler.CompileBlueprint(c.BlueprintSteps()); err != nil {
		errs = append(errs, fmt.Errorf("orchestrator.blueprint: %w", err))
	}

	return errors.Join(errs...)
}

// BlueprintSteps converts the configured blueprint, falling back to the
// built-in plan when none is configured.
func (c *Config) BlueprintSteps() []scheduler.BlueprintStep {
	if len(c.Orchestrator.Blueprint) == 0 {
		return scheduler.DefaultBlueprint()
	}
	steps := make([]scheduler.BlueprintStep, len(c.Orchestrator.Blueprint))
	for i, s := range c.Orchestrator.Blueprint {
		steps[i] = scheduler.BlueprintStep{ID: s.ID, Template: s.Template, After: s.After}
	}
	return steps
}

// AgentTimeout returns the per-task wall-clock limit.
func (c *Config) AgentTimeout() time.Duration {
	return time.Duration(c.Orchestrator.AgentTimeoutSeconds) * time.Second
}
