package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrNothingToFinish = errors.New("nothing to finish")
	// ErrNotAccepting means the target course stopped accepting files
	// between reading the session and appending.
	ErrNotAccepting = errors.New("course is not accepting files")
	ErrContention   = errors.New("session update lost too many races")
)

type DenyReason string

const (
	DenyNoJoinRequest DenyReason = "no_join_request"
	DenyNotMember     DenyReason = "not_member"
	DenyQueryError    DenyReason = "query_error"
)

type DeniedError struct {
	Reason        DenyReason
	LockChannelID int64
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied: %s", e.Reason)
}

type ValidationError struct {
	Command string
	Usage   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for /%s", e.Command)
}

type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
