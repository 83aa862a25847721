package catalog

import "go.trai.ch/zerr"

var (
	// ErrDuplicateIdentity is returned when two entries share an identity.
	ErrDuplicateIdentity = zerr.New("duplicate package identity")

	// ErrUnknownIdentity is returned for identities or names that are not installed.
	ErrUnknownIdentity = zerr.New("unknown package identity")

	// ErrInvalidIdentity is returned for empty or malformed identities and negative sizes.
	ErrInvalidIdentity = zerr.New("invalid package identity")

	// ErrMultipleMatches is returned when a name maps to more than one installed identity.
	ErrMultipleMatches = zerr.New("package name matches multiple installed identities")
)
