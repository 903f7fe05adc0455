package entities

import (
	"errors"
	"fmt"
)

// RejectReason is the machine readable cause of a refused wager request
type RejectReason string

const (
	ReasonUnauthenticated   RejectReason = "Unauthenticated"
	ReasonPhaseClosed       RejectReason = "PhaseClosed"
	ReasonInvalidStake      RejectReason = "InvalidStake"
	ReasonInvalidCategory   RejectReason = "InvalidCategory"
	ReasonTooManyCategories RejectReason = "TooManyCategories"
	ReasonInsufficientFunds RejectReason = "InsufficientFunds"
)

// RejectionError is a request error reported only to the requester.
// Two rejections compare equal under errors.Is when their reasons match.
type RejectionError struct {
	Reason  RejectReason
	Message string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *RejectionError) Is(target error) bool {
	var other *RejectionError
	if !errors.As(target, &other) {
		return false
	}
	return e.Reason == other.Reason
}

// Reject builds a rejection with a formatted message
func Reject(reason RejectReason, format string, args ...any) *RejectionError {
	return &RejectionError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrUnauthenticated   = &RejectionError{Reason: ReasonUnauthenticated}
	ErrPhaseClosed       = &RejectionError{Reason: ReasonPhaseClosed}
	ErrInvalidStake      = &RejectionError{Reason: ReasonInvalidStake}
	ErrInvalidCategory   = &RejectionError{Reason: ReasonInvalidCategory}
	ErrTooManyCategories = &RejectionError{Reason: ReasonTooManyCategories}
	ErrInsufficientFunds = &RejectionError{Reason: ReasonInsufficientFunds}
)

// ErrAccountNotFound is returned when an operation names an unknown account
var ErrAccountNotFound = errors.New("account not found")
