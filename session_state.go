package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

const textCodeInvalidTransition = "INVALID_SESSION_STATE_TRANSITION"

// ErrInvalidTransition is returned when a requested session state
// change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid session state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// sessionTransitions is the allowed lifecycle graph. Sign-out is legal
// from every state, so it is handled outside the map. Re-login from an
// authenticated session is allowed; starting a second authentication
// attempt while one is in flight is not.
var sessionTransitions = map[SessionState][]SessionState{
	StateAnonymous:      {StateAuthenticating},
	StateAuthenticating: {StateAuthenticated, StateAnonymous},
	StateAuthenticated:  {StateAuthenticating, StateRefreshing, StateAnonymous},
	StateRefreshing:     {StateAuthenticated, StateAnonymous},
}

// canTransition reports whether moving from one state to another is
// part of the lifecycle graph.
func canTransition(from, to SessionState) bool {
	if to == StateAnonymous {
		return true
	}
	for _, allowed := range sessionTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
