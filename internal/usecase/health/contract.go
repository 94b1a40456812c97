package health

import "github.com/kailas-cloud/shelf/internal/usecase/session"

// SessionStater exposes the load state of the search session.
type SessionStater interface {
	State() session.State
}
