//nolint:lll // Long validation messages
package validator

import (
	"fmt"
	"slices"
	"strings"
)

// Severity defines the severity level of a validation issue.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Rule defines a validation rule that can check a graph for specific issues.
type Rule interface {
	Name() string
	Severity() Severity
	Check(graph Graph) []Issue
}

// DefaultRules returns the standard set of validation rules.
func DefaultRules() []Rule {
	return []Rule{
		&unreachableStateRule{},
		&undeclaredStateRule{},
		&emptySourceRule{},
		&duplicateEdgeRule{},
		&namingConventionRule{},
	}
}

// unreachableStateRule checks for declared states that cannot be reached from the initial state.
type unreachableStateRule struct{}

func (r *unreachableStateRule) Name() string {
	return "UnreachableState"
}

func (r *unreachableStateRule) Severity() Severity {
	return SeverityError
}

func (r *unreachableStateRule) Check(graph Graph) []Issue {
	if graph.InitialState == "" {
		return nil
	}

	reachable := map[string]bool{graph.InitialState: true}

	queue := []string{graph.InitialState}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, edge := range graph.Edges {
			if !edge.NoSource && edge.From == current && !reachable[edge.To] {
				reachable[edge.To] = true
				queue = append(queue, edge.To)
			}
		}
	}

	var issues []Issue

	for _, state := range graph.States {
		if !reachable[state] {
			issues = append(issues, Issue{
				Code:    "UNREACHABLE_STATE",
				Message: fmt.Sprintf("State '%s' cannot be reached from initial state '%s'", state, graph.InitialState),
				State:   state,
			})
		}
	}

	return issues
}

// undeclaredStateRule flags source or destination states missing from the declared states.
type undeclaredStateRule struct{}

func (r *undeclaredStateRule) Name() string {
	return "UndeclaredState"
}

func (r *undeclaredStateRule) Severity() Severity {
	return SeverityWarning
}

func (r *undeclaredStateRule) Check(graph Graph) []Issue {
	if len(graph.States) == 0 {
		return nil
	}

	var issues []Issue

	for _, edge := range graph.Edges {
		if !edge.NoSource && !slices.Contains(graph.States, edge.From) {
			issues = append(issues, Issue{
				Code:       "UNDECLARED_STATE",
				Message:    fmt.Sprintf("Transition '%s' starts from undeclared state '%s'", edge.Transition, edge.From),
				State:      edge.From,
				Transition: edge.Transition,
			})
		}
	}

	seen := make(map[string]bool)

	for _, edge := range graph.Edges {
		if seen[edge.Transition] || slices.Contains(graph.States, edge.To) {
			continue
		}

		seen[edge.Transition] = true

		issues = append(issues, Issue{
			Code:       "UNDECLARED_STATE",
			Message:    fmt.Sprintf("Transition '%s' leads to undeclared state '%s'", edge.Transition, edge.To),
			State:      edge.To,
			Transition: edge.Transition,
		})
	}

	return issues
}

// emptySourceRule flags transitions that no state can take.
type emptySourceRule struct{}

func (r *emptySourceRule) Name() string {
	return "EmptySource"
}

func (r *emptySourceRule) Severity() Severity {
	return SeverityWarning
}

func (r *emptySourceRule) Check(graph Graph) []Issue {
	var issues []Issue

	for _, edge := range graph.Edges {
		if edge.NoSource {
			issues = append(issues, Issue{
				Code:       "EMPTY_SOURCE",
				Message:    fmt.Sprintf("Transition '%s' has no source states and can never be taken", edge.Transition),
				Transition: edge.Transition,
			})
		}
	}

	return issues
}

// duplicateEdgeRule flags distinct transitions that make the same move.
type duplicateEdgeRule struct{}

func (r *duplicateEdgeRule) Name() string {
	return "DuplicateEdge"
}

func (r *duplicateEdgeRule) Severity() Severity {
	return SeverityWarning
}

func (r *duplicateEdgeRule) Check(graph Graph) []Issue {
	var issues []Issue

	first := make(map[[2]string]string)

	for _, edge := range graph.Edges {
		if edge.NoSource {
			continue
		}

		key := [2]string{edge.From, edge.To}

		if other, ok := first[key]; ok {
			issues = append(issues, Issue{
				Code:       "DUPLICATE_EDGE",
				Message:    fmt.Sprintf("Transitions '%s' and '%s' both move '%s' to '%s'", other, edge.Transition, edge.From, edge.To),
				State:      edge.From,
				Transition: edge.Transition,
			})

			continue
		}

		first[key] = edge.Transition
	}

	return issues
}

// namingConventionRule warns about naming convention violations.
type namingConventionRule struct{}

func (r *namingConventionRule) Name() string {
	return "NamingConvention"
}

func (r *namingConventionRule) Severity() Severity {
	return SeverityWarning
}

func (r *namingConventionRule) Check(graph Graph) []Issue {
	var issues []Issue

	for _, state := range graph.States {
		if !isSnakeCase(state) {
			issues = append(issues, Issue{
				Code:    "NAMING_CONVENTION",
				Message: fmt.Sprintf("State '%s' should use snake_case naming (suggested: '%s')", state, toSnakeCase(state)),
				State:   state,
			})
		}
	}

	seen := make(map[string]bool)

	for _, edge := range graph.Edges {
		if seen[edge.Transition] || isSnakeCase(edge.Transition) {
			continue
		}

		seen[edge.Transition] = true

		issues = append(issues, Issue{
			Code:       "NAMING_CONVENTION",
			Message:    fmt.Sprintf("Transition '%s' should use snake_case naming (suggested: '%s')", edge.Transition, toSnakeCase(edge.Transition)),
			Transition: edge.Transition,
		})
	}

	return issues
}

func isSnakeCase(s string) bool {
	return !strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ- ")
}

func toSnakeCase(s string) string {
	var sb strings.Builder

	for i, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			if i > 0 {
				sb.WriteRune('_')
			}

			sb.WriteRune(r + 'a' - 'A')
		case r == '-' || r == ' ':
			sb.WriteRune('_')
		default:
			sb.WriteRune(r)
		}
	}

	return sb.String()
}
