package session

import "github.com/dtroode/flavourmarket/internal/model"

// Decision is the outcome of guarded navigation.
type Decision int

const (
	// Wait renders nothing while the first lookup is pending.
	Wait Decision = iota
	Allow
	RedirectToLogin
)

// Decide returns what an identity-requiring page does for the given session state.
func Decide(identity *model.Identity, loading bool) Decision {
	switch {
	case loading:
		return Wait
	case identity == nil:
		return RedirectToLogin
	default:
		return Allow
	}
}
