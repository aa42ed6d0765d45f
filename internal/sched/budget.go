package sched

import (
	"errors"
	"fmt"
)

// DefaultMaxTurns is the default turn budget for a single Drain call.
const DefaultMaxTurns = 1000

// turnBudget counts turns taken by one Drain call against a limit.
type turnBudget struct {
	maxTurns int
	current  int
}

func newTurnBudget(maxTurns int) *turnBudget {
	return &turnBudget{maxTurns: maxTurns}
}

// Check increments the turn counter and validates against the limit.
func (b *turnBudget) Check() error {
	b.current++
	if b.current > b.maxTurns {
		return &TurnsExceededError{
			Turns: b.current,
			Limit: b.maxTurns,
		}
	}
	return nil
}

// TurnsExceededError is returned by Drain when the loop is still busy after
// the configured number of turns. Tasks still pending stay queued.
type TurnsExceededError struct {
	Turns   int // Turns attempted, including the one that tripped the limit
	Limit   int
	Pending int // Tasks still queued when Drain gave up
}

// Error implements the error interface.
func (e *TurnsExceededError) Error() string {
	return fmt.Sprintf("loop exceeded max turns: %d turns > %d limit (%d tasks pending)",
		e.Turns, e.Limit, e.Pending)
}

// IsTurnsExceededError returns true if the error is a TurnsExceededError.
// Uses errors.As to handle wrapped errors.
func IsTurnsExceededError(err error) bool {
	var te *TurnsExceededError
	return errors.As(err, &te)
}
