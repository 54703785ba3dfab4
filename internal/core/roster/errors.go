package roster

import "errors"

var (
	ErrInvalidDirectorID   = errors.New("roster: invalid director id")
	ErrInvalidMemberID     = errors.New("roster: invalid member id")
	ErrInvalidBand         = errors.New("roster: invalid band")
	ErrInvalidDelta        = errors.New("roster: invalid delta")
	ErrAggregateNotFound   = errors.New("roster: aggregate not found")
	ErrMemberNotFound      = errors.New("roster: member not found")
	ErrMemberAlreadyListed = errors.New("roster: member already listed")
	ErrAggregateConflict   = errors.New("roster: aggregate version conflict")
	ErrInconsistentDelta   = errors.New("roster: delta would break aggregate invariant")
)
