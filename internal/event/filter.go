package event

import "github.com/roach88/hivelog/internal/payload"

// Predicate selects events.
type Predicate func(Event) bool

// ByType matches any of the given types. No types matches everything.
func ByType(types ...Type) Predicate {
	if len(types) == 0 {
		return matchAll
	}
	set := make(map[Type]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return func(e Event) bool {
		_, ok := set[e.Type]
		return ok
	}
}

// ByCategory matches any of the given type namespaces.
func ByCategory(cats ...Category) Predicate {
	if len(cats) == 0 {
		return matchAll
	}
	set := make(map[Category]struct{}, len(cats))
	for _, c := range cats {
		set[c] = struct{}{}
	}
	return func(e Event) bool {
		_, ok := set[e.Type.Category()]
		return ok
	}
}

// ByStream matches events of one stream.
func ByStream(streamID string) Predicate {
	return func(e Event) bool { return e.StreamID == streamID }
}

// ByActor matches events originated by actor.
func ByActor(actor string) Predicate {
	return func(e Event) bool { return e.Actor == actor }
}

// ByCorrelation matches events of one correlated run.
func ByCorrelation(correlationID string) Predicate {
	return func(e Event) bool { return e.CorrelationID == correlationID }
}

// ByTimeRange matches from <= timestamp <= to, in milliseconds.
// A zero bound is open.
func ByTimeRange(from, to int64) Predicate {
	return func(e Event) bool {
		if from != 0 && e.Timestamp < from {
			return false
		}
		if to != 0 && e.Timestamp > to {
			return false
		}
		return true
	}
}

func matchAll(Event) bool { return true }

// Filter is a composite query. Zero-valued fields do not constrain; set
// fields are combined with AND.
type Filter struct {
	Types         []Type     `json:"types,omitempty"`
	Categories    []Category `json:"categories,omitempty"`
	StreamID      string     `json:"stream_id,omitempty"`
	Actor         string     `json:"actor,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	From          int64      `json:"from,omitempty"`
	To            int64      `json:"to,omitempty"`

	// Limit caps the result to the last Limit matches. Zero means no cap.
	Limit int `json:"limit,omitempty"`
}

// Normalize returns f with its string constraints in NFC, the form stored
// events carry.
func (f Filter) Normalize() Filter {
	f.StreamID = payload.NFC(f.StreamID)
	f.Actor = payload.NFC(f.Actor)
	f.CorrelationID = payload.NFC(f.CorrelationID)
	return f
}

// Predicates expands f into its component predicates.
func (f Filter) Predicates() []Predicate {
	var preds []Predicate
	if len(f.Types) > 0 {
		preds = append(preds, ByType(f.Types...))
	}
	if len(f.Categories) > 0 {
		preds = append(preds, ByCategory(f.Categories...))
	}
	if f.StreamID != "" {
		preds = append(preds, ByStream(f.StreamID))
	}
	if f.Actor != "" {
		preds = append(preds, ByActor(f.Actor))
	}
	if f.CorrelationID != "" {
		preds = append(preds, ByCorrelation(f.CorrelationID))
	}
	if f.From != 0 || f.To != 0 {
		preds = append(preds, ByTimeRange(f.From, f.To))
	}
	return preds
}

// Match reports whether e satisfies every constraint of f.
func (f Filter) Match(e Event) bool {
	for _, p := range f.Predicates() {
		if !p(e) {
			return false
		}
	}
	return true
}

// Select returns the events satisfying every predicate, in input order.
// The result is always a subsequence of events; the input is not modified.
func Select(events []Event, preds ...Predicate) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		keep := true
		for _, p := range preds {
			if !p(e) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, e)
		}
	}
	return out
}

// Apply runs f over events, preserving order, then applies f.Limit.
func Apply(events []Event, f Filter) []Event {
	out := Select(events, f.Predicates()...)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}
