package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAuthRejected = errors.New("auth rejected")

	ErrSendFailure    = errors.New("send failure")
	ErrSessionClosed  = fmt.Errorf("%w: session closed", ErrSendFailure)
	ErrSendBufferFull = fmt.Errorf("%w: send buffer full", ErrSendFailure)

	ErrRecomputeFailure = errors.New("dashboard recompute failure")
	ErrStoreUnavailable = errors.New("notification store unavailable")

	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotEligible          = errors.New("user is not a recipient of this notification")
	ErrInvalidTarget        = errors.New("invalid notification target")
	ErrInvalidNotification  = errors.New("invalid notification payload")
	ErrForbiddenRoom        = errors.New("room cannot be joined by clients")
	ErrForbidden            = errors.New("forbidden")
	ErrUnknownMutation      = errors.New("unknown mutation event")
	ErrInvalidMutation      = errors.New("invalid mutation event")
)
