package ofx

import (
	"errors"
	"fmt"
)

// HeaderError reports an unrecognized or invalid OFX header. It is fatal to
// the whole parse.
type HeaderError struct {
	Reason string
}

func (e *HeaderError) Error() string {
	return "error - invalid OFX header: " + e.Reason
}

// TagSoupError reports malformed tag structure in the OFX body, e.g. trailing
// text on a closing tag or an end tag that does not match the open element.
// Opens and Closes carry the occurrence counters for the offending tag at the
// time of the failure.
type TagSoupError struct {
	Tag    string
	Opens  int
	Closes int
	Reason string
}

func (e *TagSoupError) Error() string {
	if e.Tag == "" {
		return "error - malformed OFX: " + e.Reason
	}
	return fmt.Sprintf("error - malformed OFX: %s: <%s> (opened %d, closed %d)",
		e.Reason, e.Tag, e.Opens, e.Closes)
}

// ErrInvariant marks a tree builder state that tokenized input can not
// legally produce. Errors wrapping it indicate a bug in the builder, not bad
// data; callers distinguish it from TagSoupError via errors.Is.
var ErrInvariant = errors.New("error - tree builder invariant violated")

// ViolationKind classifies a SpecViolation so callers can tell a missing
// required field from an ordering or mutex failure.
type ViolationKind int

const (
	// ViolationValue is malformed or out-of-constraint element text.
	ViolationValue ViolationKind = iota
	// ViolationMissing is a required field with no value.
	ViolationMissing
	// ViolationUnknown is an undeclared, non-proprietary child tag.
	ViolationUnknown
	// ViolationMutex is a mutex field family with the wrong member count.
	ViolationMutex
	// ViolationOrdering is a field appearing after one it must precede.
	ViolationOrdering
	// ViolationCollision is a key collision between flattened siblings.
	ViolationCollision
)

func (k ViolationKind) String() string {
	switch k {
	case ViolationValue:
		return "value"
	case ViolationMissing:
		return "missing"
	case ViolationUnknown:
		return "unknown"
	case ViolationMutex:
		return "mutex"
	case ViolationOrdering:
		return "ordering"
	case ViolationCollision:
		return "collision"
	}
	return "unclassified"
}

// SpecViolation reports a field that fails its declared OFX constraint.
// Except for the missing-payload case handled by the response assembler, a
// SpecViolation aborts the whole parse.
type SpecViolation struct {
	Aggregate string
	Field     string
	Kind      ViolationKind
	Reason    string
}

func (e *SpecViolation) Error() string {
	msg := "error - OFX spec violation"
	if e.Aggregate != "" {
		msg += " in " + e.Aggregate
	}
	if e.Field != "" {
		msg += "." + e.Field
	}
	return fmt.Sprintf("%s (%s): %s", msg, e.Kind, e.Reason)
}

// ErrMissingPayload is returned when a transaction-response wrapper carries
// no statement payload because the server reported an error for that one
// statement. The response assembler absorbs it; it never aborts a parse.
var ErrMissingPayload = errors.New("error - transaction response wrapper has no statement payload")

// violation is shorthand for a SpecViolation without field context. The
// model layer fills in Aggregate/Field when one of these crosses it.
func violation(kind ViolationKind, format string, args ...interface{}) *SpecViolation {
	return &SpecViolation{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}
