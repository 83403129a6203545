package ccl

import "fmt"

// ParseError describes a syntax or grammar violation in condition source
// text. It identifies the offending token and its byte position so rule
// authors can locate the mistake. A ParseError is fatal to loading the one
// rule that contains it, never to the process.
type ParseError struct {
	Pos     int
	Token   string
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Message)
	}
	return fmt.Sprintf("parse error at position %d near %q: %s", e.Pos, e.Token, e.Message)
}

func newParseError(pos int, token, format string, args ...any) *ParseError {
	return &ParseError{
		Pos:     pos,
		Token:   token,
		Message: fmt.Sprintf(format, args...),
	}
}
