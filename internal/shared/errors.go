package shared

import "errors"

// Error taxonomy for the authorization engine. Services wrap these with
// fmt.Errorf("%w: detail") so call sites classify with errors.Is while the
// message keeps the offending name or id.
var (
	// ErrNotFound indicates a referenced role, permission, assignment or user
	// does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation or a delete blocked by
	// live dependents.
	ErrConflict = errors.New("conflict")
	// ErrCycle indicates a role parent reassignment or manager assignment
	// that would make an entity its own ancestor.
	ErrCycle = errors.New("cycle detected")
	// ErrUnauthenticated indicates a request without a resolvable caller
	// identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates a valid identity whose access decision was a
	// deny. Never carries the missing permission name.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// IsNotFound reports whether err classifies as ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// UserSafeMessage returns a message safe to surface to callers. Validation
// shaped errors keep their detail; everything else collapses to a generic
// string so storage failures never leak internals.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrCycle):
		return err.Error()
	case errors.Is(err, ErrUnauthenticated):
		return "authentication required"
	case errors.Is(err, ErrForbidden):
		return "access denied"
	default:
		return "internal error"
	}
}
