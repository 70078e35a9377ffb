package event

// Filter is a predicate over an Event. It is normalized from one of three
// admitted forms — a single type string, a set of type strings, or an
// arbitrary predicate — at registration time (see package registry).
type Filter func(Event) bool

// TypeIs matches events whose Type equals t exactly.
func TypeIs(t string) Filter {
	return func(e Event) bool { return e.Type == t }
}

// TypeIn matches events whose Type is a member of ts.
func TypeIn(ts ...string) Filter {
	set := make(map[string]struct{}, len(ts))
	for _, t := range ts {
		set[t] = struct{}{}
	}
	return func(e Event) bool {
		_, ok := set[e.Type]
		return ok
	}
}

// MatchFunc wraps an arbitrary predicate as a Filter.
func MatchFunc(f func(Event) bool) Filter {
	return f
}
