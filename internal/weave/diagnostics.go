package weave

import (
	"fmt"
	"sync"

	"varweave/internal/metadata"
)

// Severity of a diagnostic event.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Kind identifies what happened.
type Kind string

const (
	KindNamesMustDiffer        Kind = "names-must-differ"
	KindMarkerNotFound         Kind = "marker-not-found"
	KindMarkerRejectedIsPublic Kind = "marker-rejected-is-public"
	KindCustomNameNotFound     Kind = "custom-name-not-found"
	KindAlreadyVariant         Kind = "already-variant"
	KindConflictingVariance    Kind = "conflicting-variance"
	KindMarkedVariant          Kind = "marked-variant"
)

// Event is one structured diagnostic. Fields that do not apply are empty.
type Event struct {
	Severity      Severity
	Kind          Kind
	Message       string
	TypeName      string
	ParameterName string
	Variance      metadata.GenericParameterAttributes
	AttributeName string
}

// Sink receives diagnostics. Implementations must not retain the module.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

type nopSink struct{}

func (nopSink) Emit(Event) {}

// MultiSink fans events out to every non-nil sink.
func MultiSink(sinks ...Sink) Sink {
	var live []Sink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	switch len(live) {
	case 0:
		return nopSink{}
	case 1:
		return live[0]
	}
	return SinkFunc(func(e Event) {
		for _, s := range live {
			s.Emit(e)
		}
	})
}

// Recorder keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events in emission order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns the number of events at severity s.
func (r *Recorder) Count(s Severity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Severity == s {
			n++
		}
	}
	return n
}

// OfKind returns the recorded events of kind k.
func (r *Recorder) OfKind(k Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// HasErrors reports whether any error-severity event was recorded.
func (r *Recorder) HasErrors() bool { return r.Count(SeverityError) > 0 }

// Patched is the number of parameters whose variance was rewritten.
func (r *Recorder) Patched() int { return len(r.OfKind(KindMarkedVariant)) }

func emitNamesMustDiffer(s Sink, name string) {
	s.Emit(Event{
		Severity:      SeverityError,
		Kind:          KindNamesMustDiffer,
		Message:       "the covariant and contravariant marker names cannot be the same",
		AttributeName: name,
	})
}

func emitMarkerNotFound(s Sink, v metadata.GenericParameterAttributes, name string) {
	s.Emit(Event{
		Severity:      SeverityDebug,
		Kind:          KindMarkerNotFound,
		Message:       fmt.Sprintf("no suitable attribute for marking %s parameters was found", roleName(v)),
		Variance:      v,
		AttributeName: name,
	})
}

func emitMarkerIsPublic(s Sink, v metadata.GenericParameterAttributes, name string) {
	s.Emit(Event{
		Severity:      SeverityWarning,
		Kind:          KindMarkerRejectedIsPublic,
		Message:       fmt.Sprintf("attribute %s derives from %s but is public and cannot mark %s parameters", name, metadata.AttributeTypeName, roleName(v)),
		Variance:      v,
		AttributeName: name,
	})
}

func emitCustomNameNotFound(s Sink, v metadata.GenericParameterAttributes, name string) {
	s.Emit(Event{
		Severity:      SeverityWarning,
		Kind:          KindCustomNameNotFound,
		Message:       fmt.Sprintf("custom attribute %s was not found", name),
		Variance:      v,
		AttributeName: name,
	})
}

func emitAlreadyVariant(s Sink, t *metadata.Type, g *metadata.GenericParameter) {
	s.Emit(Event{
		Severity:      SeverityWarning,
		Kind:          KindAlreadyVariant,
		Message:       fmt.Sprintf("type %s's parameter %s is already variant and will not be changed", t.FullName(), g.Name),
		TypeName:      t.FullName(),
		ParameterName: g.Name,
		Variance:      g.Variance(),
	})
}

func emitConflict(s Sink, t *metadata.Type, g *metadata.GenericParameter) {
	s.Emit(Event{
		Severity:      SeverityError,
		Kind:          KindConflictingVariance,
		Message:       fmt.Sprintf("type %s's parameter %s cannot be declared as both covariant and contravariant", t.FullName(), g.Name),
		TypeName:      t.FullName(),
		ParameterName: g.Name,
	})
}

func emitMarked(s Sink, t *metadata.Type, g *metadata.GenericParameter, v metadata.GenericParameterAttributes) {
	s.Emit(Event{
		Severity:      SeverityInfo,
		Kind:          KindMarkedVariant,
		Message:       fmt.Sprintf("marking type %s's parameter %s as %s", t.FullName(), g.Name, v),
		TypeName:      t.FullName(),
		ParameterName: g.Name,
		Variance:      v,
	})
}

func roleName(v metadata.GenericParameterAttributes) string {
	if v == metadata.Contravariant {
		return "contravariant"
	}
	return "covariant"
}
