package paths

// MalformedPathError reports a caller-supplied path that cannot be
// canonicalized: blank input, a string that stays unparsable even after
// percent-encoding, a path with no resolvable scheme, or a path that
// resolves to a bare root.
//
// This is always a data defect in the input, never retried or swallowed
// here. It is distinct from a path being out of scope (non-matching
// scheme), which Normalize reports as not applicable without an error.
type MalformedPathError struct {
	// Path is the raw input that failed
	Path string

	// Reason describes what was wrong with it
	Reason string

	// Err is the underlying parse failure, if any
	Err error
}

// Error implements the error interface.
func (e *MalformedPathError) Error() string {
	if e.Err != nil {
		return "malformed path " + quote(e.Path) + ": " + e.Reason + ": " + e.Err.Error()
	}
	return "malformed path " + quote(e.Path) + ": " + e.Reason
}

// Unwrap returns the underlying parse failure, if any.
func (e *MalformedPathError) Unwrap() error {
	return e.Err
}

func quote(s string) string {
	return "[" + s + "]"
}
