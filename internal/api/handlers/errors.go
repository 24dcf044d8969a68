package handlers

import "fmt"

// RequestError wraps any unexpected failure inside a request handler.
// The router's error handler turns it into a generic 500 page.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }
