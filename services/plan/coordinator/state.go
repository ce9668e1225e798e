// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coordinator

import "fmt"

// State is a drafting run's lifecycle phase.
type State string

const (
	StateIdle               State = "idle"
	StateRunningSpecialists State = "running-specialists"
	StateMerging            State = "merging"
	StateGating             State = "gating"
	StateDone               State = "done"
	StateFailed             State = "failed"
)

// validTransitions lists the allowed successor states for each state.
// Terminal states have no successors.
var validTransitions = map[State][]State{
	StateIdle:               {StateRunningSpecialists, StateFailed},
	StateRunningSpecialists: {StateMerging, StateFailed},
	StateMerging:            {StateGating, StateFailed},
	StateGating:             {StateDone, StateFailed},
	StateDone:               {},
	StateFailed:             {},
}

// CanTransition reports whether moving from one state to another is allowed.
func CanTransition(from, to State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a state has no successors.
func Terminal(s State) bool {
	return len(validTransitions[s]) == 0
}

// transition advances the coordinator's state, guarding against
// out-of-order phase execution. A rejected transition is a programming
// error, not an operational condition.
func (c *Coordinator) transition(to State) error {
	if !CanTransition(c.state, to) {
		return fmt.Errorf("invalid coordinator transition %s -> %s", c.state, to)
	}
	c.state = to
	return nil
}
