package model

// TransitionKind separates state-machine moves from operator corrections.
type TransitionKind string

const (
	TransitionGuarded  TransitionKind = "guarded"
	TransitionOverride TransitionKind = "override"
)

type Transition struct {
	Kind TransitionKind
	From VisitStatus
	To   VisitStatus
}

func (t Transition) IsOverride() bool {
	return t.Kind == TransitionOverride
}

var guardedTransitions = map[VisitStatus][]VisitStatus{
	StatusScheduled:           {StatusScheduled, StatusCanceled},
	StatusWaitingConfirmation: {StatusScheduled, StatusCanceled},
}

// CanTransition reports whether from -> to is reachable without an
// administrative override. CANCELED and DONE are terminal.
func CanTransition(from, to VisitStatus) bool {
	for _, next := range guardedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func Guarded(from, to VisitStatus) Transition {
	return Transition{Kind: TransitionGuarded, From: from, To: to}
}

func Override(from, to VisitStatus) Transition {
	return Transition{Kind: TransitionOverride, From: from, To: to}
}
