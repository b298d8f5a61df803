package bisect

import "errors"

var (
	// ErrNoActiveVersion is returned when a judgment is recorded while no version is in use.
	ErrNoActiveVersion = errors.New("no node version is in use")
	// ErrRemoteMismatch is returned when a judgment is recorded against a different remote than the bisection's.
	ErrRemoteMismatch = errors.New("remote mismatch")
	// ErrInsufficientJudgments is returned when a selection is requested before a good and a bad judgment exist.
	ErrInsufficientJudgments = errors.New("at least one version has to be marked as good and one as bad")
	// ErrOrderingViolation is returned when good and bad judgments are interleaved in the catalog order.
	ErrOrderingViolation = errors.New("judgments contradict the version order")
	// ErrBoundaryNotFound is returned when the judged versions delimiting the search are not listed in the catalog.
	ErrBoundaryNotFound = errors.New("judged versions are missing from the catalog")

	// ErrNotStarted is returned when no persisted state exists yet.
	ErrNotStarted = errors.New("no bisection in progress")
	// ErrStorage is returned when the persisted state can't be read, parsed or written.
	ErrStorage = errors.New("bisect state storage failed")
	// ErrInstall is returned when the installation of the selected version failed.
	ErrInstall = errors.New("install failed")
	// ErrActivation is returned when switching to the selected version failed.
	ErrActivation = errors.New("activation failed")
)

// IsUserError reports whether err is an expected outcome of a bisection command which should be shown to the user
// as a plain message, rather than a failure that aborts the invocation.
func IsUserError(err error) bool {
	for _, userErr := range []error{
		ErrNoActiveVersion,
		ErrRemoteMismatch,
		ErrInsufficientJudgments,
		ErrOrderingViolation,
		ErrBoundaryNotFound,
	} {
		if errors.Is(err, userErr) {
			return true
		}
	}
	return false
}
