package agent

import (
	"strings"
	"time"
)

// iterationResult is the outcome of a single agent step.
type iterationResult int

const (
	// continueLoop runs another step.
	continueLoop iterationResult = iota
	// finished means the model produced a final answer.
	finished
	// stoppedAtLimit means the iteration or time budget ran out.
	stoppedAtLimit
)

func (r iterationResult) String() string {
	switch r {
	case continueLoop:
		return "continue"
	case finished:
		return "finished"
	case stoppedAtLimit:
		return "stopped_at_limit"
	default:
		return "unknown"
	}
}

// state tracks the budget of one run.
type state struct {
	iteration     int
	maxIterations int

	started          time.Time
	maxExecutionTime time.Duration

	// actions counts identical tool invocations by normalized signature
	actions map[string]int
}

func newState(maxIterations int, maxExecutionTime time.Duration) *state {
	return &state{
		maxIterations:    maxIterations,
		maxExecutionTime: maxExecutionTime,
		started:          time.Now(),
		actions:          make(map[string]int),
	}
}

func (s *state) increment() int {
	s.iteration++
	return s.iteration
}

// shouldContinue reports whether another step fits the budget.
func (s *state) shouldContinue() bool {
	if s.maxIterations > 0 && s.iteration >= s.maxIterations {
		return false
	}
	if s.maxExecutionTime > 0 && time.Since(s.started) >= s.maxExecutionTime {
		return false
	}
	return true
}

// recordAction returns how often this exact action has been requested,
// including this time.
func (s *state) recordAction(action *Action) int {
	key := strings.ToLower(strings.TrimSpace(action.Tool)) + "\x00" + strings.Join(strings.Fields(action.Input), " ")
	s.actions[key]++
	return s.actions[key]
}
