// Package wake defines the contract between the detector and the
// underlying recognition engine.
package wake

// ErrorKind classifies engine failures for the restart policy.
type ErrorKind string

const (
	// ErrorPermissionDenied means recognition permission was refused.
	// Fatal until the user re-enables the feature.
	ErrorPermissionDenied ErrorKind = "permission-denied"
	// ErrorServiceNotAllowed means the recognition service refused the
	// session. Handled exactly like a permission denial.
	ErrorServiceNotAllowed ErrorKind = "service-not-allowed"
	// ErrorTransient covers every other engine failure; eligible for an
	// automatic jittered restart.
	ErrorTransient ErrorKind = "transient"
)

// Permission reports whether this kind blocks automatic restarts.
func (k ErrorKind) Permission() bool {
	return k == ErrorPermissionDenied || k == ErrorServiceNotAllowed
}

// Callbacks receives the asynchronous signals of one engine session.
// Engines invoke them from their own goroutines, never synchronously from
// Start.
type Callbacks struct {
	// OnFragment delivers a piece of streamed transcript, interim or final.
	OnFragment func(text string, final bool)
	// OnEnded fires when the session stops on its own.
	OnEnded func()
	// OnError fires when the session fails.
	OnError func(kind ErrorKind, msg string)
}

// Session is a transient handle to one run of the recognition engine.
// Sessions are never reused; every start produces a fresh one.
type Session interface {
	// Stop detaches the session callbacks before tearing the session
	// down, so a late ended/error signal cannot arrive after a
	// deliberate stop. Safe to call more than once.
	Stop()
}

// Engine creates recognition sessions on demand.
type Engine interface {
	Start(cb Callbacks) (Session, error)
}
