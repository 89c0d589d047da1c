package error

import "net/http"

// GenericError is implemented by every API-visible error kind so the REST
// recovery middleware can map it to a response without type-specific code.
type GenericError interface {
	error
	ErrCode() string
	StatusCode() int
}

// ValidationError rejects bad input at admission. It is user-correctable,
// surfaced immediately and never retried.
type ValidationError string

func (err ValidationError) Error() string   { return string(err) }
func (err ValidationError) ErrCode() string { return "VALIDATION_ERROR" }
func (err ValidationError) StatusCode() int { return http.StatusBadRequest }

type NotFoundError string

func (err NotFoundError) Error() string   { return string(err) }
func (err NotFoundError) ErrCode() string { return "NOT_FOUND_ERROR" }
func (err NotFoundError) StatusCode() int { return http.StatusNotFound }

// InvalidTransitionError signals a status change that is not legal from the
// record's current state, including a lost claim race.
type InvalidTransitionError string

func (err InvalidTransitionError) Error() string   { return string(err) }
func (err InvalidTransitionError) ErrCode() string { return "INVALID_TRANSITION_ERROR" }
func (err InvalidTransitionError) StatusCode() int { return http.StatusConflict }
