// Package validator checks a state machine's transition table for mistakes
// the engine itself tolerates, such as destinations missing from the
// declared states or states nothing can reach.
package validator

import (
	"fmt"
	"strings"

	"github.com/amp-labs/amp-fsm/statemachine"
)

// Graph is the part of an engine the rules inspect.
type Graph struct {
	States       []string
	Edges        []statemachine.Edge
	InitialState string
}

// GraphOf snapshots an engine. initialState may be empty, in which case
// reachability is not checked.
func GraphOf[T statemachine.StateAware](engine *statemachine.Engine[T], initialState string) Graph {
	return Graph{
		States:       engine.States(),
		Edges:        engine.Edges(),
		InitialState: initialState,
	}
}

// ValidationResult contains the results of validating a state machine.
type ValidationResult struct {
	Valid    bool
	Errors   []Issue
	Warnings []Issue
}

// Issue is a single finding.
type Issue struct {
	Code       string // Code like "UNREACHABLE_STATE", "UNDECLARED_STATE"
	Message    string
	State      string
	Transition string
}

// Validate checks an engine with the default rules.
func Validate[T statemachine.StateAware](engine *statemachine.Engine[T], initialState string) ValidationResult {
	return ValidateWithRules(GraphOf(engine, initialState), DefaultRules())
}

// ValidateWithRules validates using custom rules.
func ValidateWithRules(graph Graph, rules []Rule) ValidationResult {
	result := ValidationResult{Valid: true}

	for _, rule := range rules {
		issues := rule.Check(graph)

		if rule.Severity() == SeverityError {
			result.Errors = append(result.Errors, issues...)
		} else {
			result.Warnings = append(result.Warnings, issues...)
		}
	}

	if len(result.Errors) > 0 {
		result.Valid = false
	}

	return result
}

// ValidateWithRulesStrict validates with strict mode (treats warnings as errors).
func ValidateWithRulesStrict(graph Graph, rules []Rule) ValidationResult {
	result := ValidateWithRules(graph, rules)

	result.Errors = append(result.Errors, result.Warnings...)
	result.Warnings = nil
	result.Valid = len(result.Errors) == 0

	return result
}

// HasErrors returns true if the result has any errors.
func (r ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if the result has any warnings.
func (r ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// String returns a human-readable summary of validation results.
func (r ValidationResult) String() string {
	var sb strings.Builder

	if r.Valid {
		sb.WriteString("state machine is valid\n")
	} else {
		sb.WriteString(fmt.Sprintf("state machine has %d error(s)\n", len(r.Errors)))
		writeIssues(&sb, r.Errors)
	}

	if len(r.Warnings) > 0 {
		sb.WriteString(fmt.Sprintf("%d warning(s):\n", len(r.Warnings)))
		writeIssues(&sb, r.Warnings)
	}

	return sb.String()
}

func writeIssues(sb *strings.Builder, issues []Issue) {
	for _, issue := range issues {
		sb.WriteString(fmt.Sprintf("  [%s] %s\n", issue.Code, issue.Message))
	}
}
