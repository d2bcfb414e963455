// Package prgerr classifies the failures that abort a conversion run.
package prgerr

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// Kind identifies the class of a terminal conversion failure.
type Kind int

const (
	// Unknown is returned by KindOf for errors that carry no kind.
	Unknown Kind = iota
	// MalformedInput means a source element or attribute could not be decoded.
	MalformedInput
	// MissingDictionaryEntry means a 2021 record references a TERC code absent from the dictionary.
	MissingDictionaryEntry
	// UnsupportedConfiguration is detected before streaming begins.
	UnsupportedConfiguration
	// OutputIOFailure means the destination could not be written or finalized.
	OutputIOFailure
)

func (k Kind) String() string {
	switch k {
	case MalformedInput:
		return "malformed input"
	case MissingDictionaryEntry:
		return "missing dictionary entry"
	case UnsupportedConfiguration:
		return "unsupported configuration"
	case OutputIOFailure:
		return "output I/O failure"
	default:
		return "unknown"
	}
}

// Error tags an error with its Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with the given kind. Returns nil for a nil err.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Malformed builds a MalformedInput error.
func Malformed(format string, args ...any) error {
	return &Error{Kind: MalformedInput, Err: eris.Errorf(format, args...)}
}

// MissingEntry builds a MissingDictionaryEntry error.
func MissingEntry(format string, args ...any) error {
	return &Error{Kind: MissingDictionaryEntry, Err: eris.Errorf(format, args...)}
}

// Unsupported builds an UnsupportedConfiguration error.
func Unsupported(format string, args ...any) error {
	return &Error{Kind: UnsupportedConfiguration, Err: eris.Errorf(format, args...)}
}

// Output wraps err as an OutputIOFailure with a message.
func Output(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: OutputIOFailure, Err: eris.Wrap(err, msg)}
}

// KindOf returns the kind of the first *Error in the chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err (or any error in its chain) has the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Wrapf adds context to err and keeps the kind of the first *Error in its chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return &Error{Kind: e.Kind, Err: eris.Wrapf(e.Err, format, args...)}
	}
	return eris.Wrapf(err, format, args...)
}
