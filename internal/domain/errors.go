package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCatalogFetch signals that the raw catalog could not be retrieved.
	ErrCatalogFetch = errors.New("failed to load catalog")
	// ErrCatalogParse signals structurally corrupt delimited text.
	ErrCatalogParse = errors.New("catalog is not valid delimited text")
	// ErrIndexBuild signals a failure while building the fuzzy index.
	ErrIndexBuild = errors.New("index build failed")
	// ErrIndexNotReady signals a query issued before the index was initialized.
	ErrIndexNotReady = errors.New("index not ready")
	// ErrCatalogNotLoaded signals a dispatch before the catalog was handed off.
	ErrCatalogNotLoaded = errors.New("catalog not loaded")
	// ErrSessionClosed signals use of a torn down session.
	ErrSessionClosed = errors.New("session closed")
	// ErrSuperseded signals that a newer request replaced the one being awaited.
	ErrSuperseded = errors.New("request superseded")
	// ErrInvalidRequest signals a malformed query request.
	ErrInvalidRequest = errors.New("invalid request")
)

// LoadReason classifies a fatal catalog load failure.
type LoadReason string

// Load failure reasons.
const (
	ReasonFetch LoadReason = "fetch"
	ReasonParse LoadReason = "parse"
	ReasonIndex LoadReason = "index"
)

// LoadError is the single fatal error the load path reports.
// It carries a reason code so callers can tell failures apart.
type LoadError struct {
	Reason LoadReason
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrCatalogFetch.Error(), e.Reason, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// NewLoadError wraps err with a load reason.
func NewLoadError(reason LoadReason, err error) error {
	return &LoadError{Reason: reason, Err: err}
}

// LoadReasonOf extracts the load reason from err, or "" when err is not a load error.
func LoadReasonOf(err error) LoadReason {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Reason
	}
	return ""
}
