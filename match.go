package oxalis

import "slices"

type matchCase[S any] struct {
	pred TagPredicate
	run  Reducer[S]
}

// MatchBuilder assembles an ordered list of (predicate, handler) pairs and
// freezes them into a single reducer. Cases are tried in registration
// order; the first predicate matching the action's tag wins, later cases
// are not consulted even if they would also match.
type MatchBuilder[S any] struct {
	cases   []matchCase[S]
	pending TagPredicate
}

func Match[S any]() *MatchBuilder[S] {
	return &MatchBuilder[S]{}
}

// When starts a new case. Must be followed by Then.
func (b *MatchBuilder[S]) When(pred TagPredicate) *MatchBuilder[S] {
	if pred == nil {
		panic("oxalis: nil predicate")
	}
	if b.pending != nil {
		panic("oxalis: When called twice without Then")
	}
	b.pending = pred
	return b
}

// WhenAction is shorthand for When(c.Pred()).
func (b *MatchBuilder[S]) WhenAction(c Creator) *MatchBuilder[S] {
	return b.When(c.Pred())
}

// Then attaches the handler for the pending When predicate.
func (b *MatchBuilder[S]) Then(run Reducer[S]) *MatchBuilder[S] {
	if run == nil {
		panic("oxalis: nil handler")
	}
	if b.pending == nil {
		panic("oxalis: Then without When")
	}
	b.cases = append(b.cases, matchCase[S]{pred: b.pending, run: run})
	b.pending = nil
	return b
}

// Build freezes the registered cases into an immutable reducer. An action
// matching no case passes the input state through untouched, by reference.
// The builder may keep being appended to afterwards without affecting
// reducers already built.
func (b *MatchBuilder[S]) Build() Reducer[S] {
	if b.pending != nil {
		panic("oxalis: When without Then at Build")
	}
	cases := slices.Clone(b.cases)
	return func(state S, act Action) (S, error) {
		for _, c := range cases {
			if c.pred(act.Tag) {
				return c.run(state, act)
			}
		}
		return state, nil
	}
}
