package errors

import "errors"

var (
	ErrNotFound = errors.New("visit not found")

	ErrInvalidID = errors.New("invalid visit ID format")

	// ErrDuplicateSlot is returned when a write would leave two SCHEDULED
	// visits on the same property at the same instant.
	ErrDuplicateSlot = errors.New("property already has a scheduled visit at this time")

	// ErrClaimRejected means the broker compare-and-swap matched nothing:
	// either a broker is already assigned or the status is not claimable.
	ErrClaimRejected = errors.New("visit cannot be claimed")

	// ErrCancelRejected means the cancel compare-and-swap matched nothing
	// because the visit is no longer in a cancelable status.
	ErrCancelRejected = errors.New("visit cannot be canceled")
)
