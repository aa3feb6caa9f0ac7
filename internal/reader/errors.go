package reader

import "fmt"

// ReadError reports a file that is absent, malformed for its format, or
// undecodable under the configured encoding.
type ReadError struct {
	Path   string
	Format Format
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading %s file %s: %v", e.Format, e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// ParseError locates a syntax problem inside a file.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}
