package service

import (
	"errors"
	"fmt"
)

// Control action errors.
var (
	ErrUnknownAction     = errors.New("unknown control action")
	ErrGotoIndexRequired = errors.New("goto action requires an index")
)

// Action is a closed set of session control commands. Each variant carries
// only the fields it needs, so an invalid action cannot reach the state
// machine: unknown wire strings are rejected by ParseAction.
type Action interface {
	isAction()
}

type StartAction struct{}
type NextAction struct{}
type PrevAction struct{}
type GotoAction struct{ Index int }
type PauseAction struct{}
type ResumeAction struct{}
type FinishAction struct{}

func (StartAction) isAction()  {}
func (NextAction) isAction()   {}
func (PrevAction) isAction()   {}
func (GotoAction) isAction()   {}
func (PauseAction) isAction()  {}
func (ResumeAction) isAction() {}
func (FinishAction) isAction() {}

// ParseAction converts a wire action string (plus optional index) into a
// typed Action. Only goto consumes the index.
func ParseAction(action string, index *int) (Action, error) {
	switch action {
	case "start":
		return StartAction{}, nil
	case "next":
		return NextAction{}, nil
	case "prev":
		return PrevAction{}, nil
	case "goto":
		if index == nil {
			return nil, ErrGotoIndexRequired
		}
		return GotoAction{Index: *index}, nil
	case "pause":
		return PauseAction{}, nil
	case "resume":
		return ResumeAction{}, nil
	case "finish":
		return FinishAction{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}
