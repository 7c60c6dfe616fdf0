package types

import "errors"

var (
	// ErrForbidden is returned when the caller's role or ownership does not allow an action
	ErrForbidden = errors.New("forbidden")

	// ErrNoAgency is returned for agency-scoped operations by a profile without an agency
	ErrNoAgency = errors.New("profile has no agency")
)
