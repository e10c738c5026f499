// Package diagerr classifies the failures a diagnostic run can hit.
package diagerr

import (
	"errors"

	"github.com/rotisserie/eris"
)

// Kind is the category of a fatal error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfig covers missing paths, malformed dates and option values,
	// and depth lists too shallow for a requested band.
	KindConfig
	// KindData covers shape mismatches, empty streams, missing variables and
	// broken time axes.
	KindData
)

// String returns the human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// Error tags an underlying error with a Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config tags err as a configuration error.
func Config(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindConfig, Err: err}
}

// Configf builds a configuration error from a format string.
func Configf(format string, args ...any) error {
	return &Error{Kind: KindConfig, Err: eris.Errorf(format, args...)}
}

// Data tags err as a data error.
func Data(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindData, Err: err}
}

// Dataf builds a data error from a format string.
func Dataf(format string, args ...any) error {
	return &Error{Kind: KindData, Err: eris.Errorf(format, args...)}
}

// KindOf returns the kind of the first tagged error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsConfig reports whether err (or any error in its chain) is a configuration error.
func IsConfig(err error) bool {
	return err != nil && KindOf(err) == KindConfig
}

// IsData reports whether err (or any error in its chain) is a data error.
func IsData(err error) bool {
	return err != nil && KindOf(err) == KindData
}
