package update

// CodecError reports an encode or decode failure in the underlying wire
// codec. The codec is opaque to this package: the error is surfaced as-is
// to the caller, never retried or interpreted here.
type CodecError struct {
	// Op is "encode" or "decode"
	Op string

	// Err is the underlying codec failure
	Err error
}

// Error implements the error interface.
func (e *CodecError) Error() string {
	return "update " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying codec failure.
func (e *CodecError) Unwrap() error {
	return e.Err
}
