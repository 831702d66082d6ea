package util

import (
	"errors"
	"fmt"
)

// Error codes for expected user-input and race conditions. None of these
// are fatal; they abort the triggering operation before any durable write.
const (
	CodeNotRegistered     = "NOT_REGISTERED"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeForbidden         = "FORBIDDEN"
	CodeNotAssignable     = "NOT_ASSIGNABLE"
	CodeAlreadyOpen       = "ALREADY_OPEN"
	CodeBrokenLink        = "BROKEN_LINK"
	CodeBadAction         = "BAD_ACTION"
	CodeDeliveryFailed    = "DELIVERY_FAILED"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors. Message is plain language
// suitable for sending back to the chat that triggered the operation.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func NewNotRegistered() error {
	return NewDomainError(CodeNotRegistered, "please complete registration first")
}

func NewNotFound(resource string, id int64) error {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s #%d not found", resource, id))
}

func NewInvalidTransition(message string) error {
	return NewDomainError(CodeInvalidTransition, message)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message)
}

func NewNotAssignable(message string) error {
	return NewDomainError(CodeNotAssignable, message)
}

func NewAlreadyOpen(requestID int64) error {
	return NewDomainError(CodeAlreadyOpen, fmt.Sprintf("a clarification for request #%d is already in progress", requestID))
}

func NewBrokenLink() error {
	return NewDomainError(CodeBrokenLink, "this conversation is no longer linked to a request, use the menu to continue")
}

func NewBadAction(token string) error {
	return NewDomainError(CodeBadAction, fmt.Sprintf("unrecognized action %q", token))
}

func NewDeliveryFailed(err error) error {
	return &DomainError{
		Code:    CodeDeliveryFailed,
		Message: "the message could not be delivered",
		Err:     err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:    CodeInternal,
		Message: "something went wrong, please try again",
		Err:     err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "something went wrong, please try again",
		Err:     err,
	}
}

// HasCode reports whether err is a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
