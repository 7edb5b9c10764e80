// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"github.com/ManuGH/vidgrab/internal/fsm"
)

// State is the orchestrator lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateProvisioning State = "provisioning"
	StateRunning      State = "running"
	StateFinalizing   State = "finalizing"
)

// AllStates lists every state, for metrics.
var AllStates = []string{
	string(StateIdle),
	string(StateProvisioning),
	string(StateRunning),
	string(StateFinalizing),
}

// Event drives lifecycle transitions.
type Event string

const (
	EventSubmit  Event = "submit"
	EventStart   Event = "start"
	EventAbort   Event = "abort"
	EventExit    Event = "exit"
	EventRelease Event = "release"
)

func newMachine() *fsm.Machine[State, Event] {
	m, err := fsm.New(StateIdle, []fsm.Transition[State, Event]{
		{From: StateIdle, Event: EventSubmit, To: StateProvisioning},
		{From: StateProvisioning, Event: EventStart, To: StateRunning},
		{From: StateProvisioning, Event: EventAbort, To: StateIdle},
		{From: StateRunning, Event: EventExit, To: StateFinalizing},
		{From: StateFinalizing, Event: EventRelease, To: StateIdle},
	})
	if err != nil {
		panic(err) // static table
	}
	return m
}
