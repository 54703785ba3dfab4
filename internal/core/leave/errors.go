package leave

import "errors"

var (
	ErrInvalidID          = errors.New("leave: invalid id")
	ErrInvalidRequesterID = errors.New("leave: invalid requester id")
	ErrInvalidDateRange   = errors.New("leave: invalid date range")
	ErrInvalidReason      = errors.New("leave: invalid reason")
	ErrInvalidStage       = errors.New("leave: invalid stage")
	ErrInvalidVerdict     = errors.New("leave: invalid verdict")
	ErrRequestNotFound    = errors.New("leave: request not found")
	ErrOverlappingRequest = errors.New("leave: overlapping unresolved request")
	ErrAlreadyResolved    = errors.New("leave: already resolved")
)
