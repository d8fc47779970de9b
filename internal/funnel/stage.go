// Package funnel assigns navigations to marketing funnel stages and keeps the
// per-session visit history.
package funnel

import "fmt"

// Stage is a position in the marketing funnel.
type Stage string

const (
	Awareness     Stage = "awareness"
	Interest      Stage = "interest"
	Consideration Stage = "consideration"
	Intent        Stage = "intent"
	Evaluation    Stage = "evaluation"
	Purchase      Stage = "purchase"
)

// DefaultStage is assigned to paths no route matches.
const DefaultStage = Awareness

var stages = []Stage{Awareness, Interest, Consideration, Intent, Evaluation, Purchase}

// Stages returns every stage in funnel order.
func Stages() []Stage {
	out := make([]Stage, len(stages))
	copy(out, stages)
	return out
}

// Index is the stage's position in funnel order, or -1 for an unknown stage.
func (s Stage) Index() int {
	for i, st := range stages {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// EventName is the presence event emitted for every navigation into s.
func (s Stage) EventName() string {
	return "funnel_" + string(s)
}

func ParseStage(v string) (Stage, error) {
	s := Stage(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown funnel stage %q", v)
	}
	return s, nil
}

// Entry is one visit in a session's funnel history.
type Entry struct {
	Stage     Stage  `json:"stage"`
	Path      string `json:"path"`
	Timestamp int64  `json:"timestamp"`
}
