// Package domain contains the request-scoped entities exchanged by the
// diagnostic engine, the AI adapter and the HTTP surface.
//
// Every value in this package is built from an incoming request, consumed
// synchronously during one scoring pass and then discarded. Nothing here is
// persisted or shared across requests.
package domain

import (
	"errors"
	"fmt"
)

// ResultType tags the kind of value carried by an Analysis result.
type ResultType string

const (
	ResultNumeric ResultType = "numeric"
	ResultBoolean ResultType = "boolean"
	ResultString  ResultType = "string"
)

// Severity grades a medication compatibility warning.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Priority grades a suggested analysis.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Source reports which computation path produced a response.
type Source string

const (
	SourceAI            Source = "ai"
	SourceDeterministic Source = "deterministic"
)

var (
	ErrInvalidResultType = errors.New("invalid analysis result type")
	ErrInvalidSeverity   = errors.New("invalid warning severity")
	ErrInvalidPriority   = errors.New("invalid analysis priority")
)

// IsValid reports whether the result type is one of the three supported tags.
func (r ResultType) IsValid() bool {
	switch r {
	case ResultNumeric, ResultBoolean, ResultString:
		return true
	default:
		return false
	}
}

// Validate returns an error when the result type is unknown.
func (r ResultType) Validate() error {
	if !r.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidResultType, string(r))
	}
	return nil
}

func (s Severity) IsValid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	default:
		return false
	}
}

func (s Severity) Validate() error {
	if !s.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, string(s))
	}
	return nil
}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

func (p Priority) Validate() error {
	if !p.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, string(p))
	}
	return nil
}

func (s Source) String() string {
	return string(s)
}
