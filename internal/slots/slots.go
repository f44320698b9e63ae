// Package slots tracks which required profile paths still need a question.
package slots

import (
	"fmt"
	"strings"

	"github.com/kalambet/collegeai/internal/document"
)

// Mode selects the completion policy.
type Mode string

const (
	// ModeDeep requires every ordered path to be answered or asked before
	// finishing.
	ModeDeep Mode = "deep"
	// ModeCore only reports unanswered paths and always allows finishing.
	ModeCore Mode = "core"
)

// ParseMode maps a config value to a Mode, defaulting to ModeDeep.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeDeep):
		return ModeDeep, nil
	case string(ModeCore), "priority":
		return ModeCore, nil
	}
	return "", fmt.Errorf("unknown completion mode %q", s)
}

// State is the tracker output for one profile snapshot.
type State struct {
	Unfilled    []string
	Filled      []string
	AllowFinish bool
}

// Compute classifies ordered against profile. Output order follows ordered.
func Compute(profile document.Document, ordered []string, asked map[string]bool, mode Mode) State {
	st := State{Unfilled: []string{}, Filled: []string{}}
	for _, p := range ordered {
		if document.IsAnswered(document.Get(profile, p)) {
			st.Filled = append(st.Filled, p)
			continue
		}
		if mode == ModeDeep && asked[p] {
			continue
		}
		st.Unfilled = append(st.Unfilled, p)
	}
	st.AllowFinish = mode != ModeDeep || len(st.Unfilled) == 0
	return st
}

// Next returns the first unfilled path.
func (s State) Next() (string, bool) {
	if len(s.Unfilled) == 0 {
		return "", false
	}
	return s.Unfilled[0], true
}

// FinishPolicy renders the instruction sent to the oracle.
func (s State) FinishPolicy() string {
	if s.AllowFinish {
		return "FINISH is allowed."
	}
	return "Do NOT FINISH yet; ask the next unfilled_deep_paths item."
}
