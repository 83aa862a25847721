package rpm

import "go.trai.ch/zerr"

var (
	// ErrQueryFailed is returned when an rpm invocation fails or produces
	// output that cannot be parsed.
	ErrQueryFailed = zerr.New("rpm query failed")

	// ErrQueryTimeout is returned when an rpm invocation exceeds the
	// configured query timeout.
	ErrQueryTimeout = zerr.New("rpm query timed out")
)
