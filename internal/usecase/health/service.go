package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure or a load in progress.
	Degraded Status = "degraded"
	// Unhealthy indicates the catalog could not be loaded.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckLoading indicates the component is being (re)built.
	CheckLoading CheckResult = "loading"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status   Status
	Checks   map[string]CheckResult
	Products int
}

// Service coordinates health checks.
type Service struct {
	session SessionStater
}

// New creates a Service.
func New(session SessionStater) *Service {
	return &Service{session: session}
}

// Check reports whether a catalog is loaded and its index is ready.
func (s *Service) Check(_ context.Context) Report {
	st := s.session.State()
	checks := make(map[string]CheckResult, 2)

	switch {
	case st.LoadErr != nil:
		checks["catalog"] = CheckError
		checks["index"] = CheckError
	case st.Loading:
		checks["catalog"] = CheckLoading
		checks["index"] = CheckLoading
	case st.Ready:
		checks["catalog"] = CheckOK
		checks["index"] = CheckOK
	default:
		checks["catalog"] = CheckError
		checks["index"] = CheckError
	}

	status := Healthy
	for _, v := range checks {
		switch v {
		case CheckError:
			status = Unhealthy
		case CheckLoading:
			if status == Healthy {
				status = Degraded
			}
		}
	}

	return Report{Status: status, Checks: checks, Products: st.Products}
}
