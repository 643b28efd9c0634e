package service

import (
	"errors"
	"fmt"
)

var (
	// ErrChannelUnavailable matches every scan that failed to read the channel.
	// Callers should offer a retry, not report an empty inbox.
	ErrChannelUnavailable = errors.New("approval: message channel unavailable")
	// ErrDeliveryFailed matches every response or request that could not be sent.
	ErrDeliveryFailed = errors.New("approval: delivery failed")
	// ErrRequestNotOpen is returned by Respond for ids absent from the open set.
	ErrRequestNotOpen = errors.New("approval: request is not open")
)

// ChannelError reports a failed channel read. It matches
// ErrChannelUnavailable and the transport error.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrChannelUnavailable, e.Op, e.Err)
}

func (e *ChannelError) Unwrap() []error {
	return []error{ErrChannelUnavailable, e.Err}
}

// DeliveryError reports a failed send. The request it answers stays open.
type DeliveryError struct {
	RequestID string
	Err       error
}

func (e *DeliveryError) Error() string {
	if e.RequestID == "" {
		return fmt.Sprintf("%s: %v", ErrDeliveryFailed, e.Err)
	}
	return fmt.Sprintf("%s: request %s: %v", ErrDeliveryFailed, e.RequestID, e.Err)
}

func (e *DeliveryError) Unwrap() []error {
	return []error{ErrDeliveryFailed, e.Err}
}
