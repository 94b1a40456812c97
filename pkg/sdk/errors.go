package shelf

import "github.com/kailas-cloud/shelf/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrCatalogFetch     = domain.ErrCatalogFetch
	ErrCatalogParse     = domain.ErrCatalogParse
	ErrIndexBuild       = domain.ErrIndexBuild
	ErrIndexNotReady    = domain.ErrIndexNotReady
	ErrCatalogNotLoaded = domain.ErrCatalogNotLoaded
	ErrClosed           = domain.ErrSessionClosed
	ErrSuperseded       = domain.ErrSuperseded
	ErrInvalidRequest   = domain.ErrInvalidRequest
)

// LoadReason tells catalog load failures apart.
type LoadReason = domain.LoadReason

// Load failure reasons.
const (
	ReasonFetch = domain.ReasonFetch
	ReasonParse = domain.ReasonParse
	ReasonIndex = domain.ReasonIndex
)

// LoadReasonOf returns the reason carried by a Load error, or "".
func LoadReasonOf(err error) LoadReason { return domain.LoadReasonOf(err) }
