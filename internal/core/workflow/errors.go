package workflow

import "errors"

var (
	ErrInvalidActorID     = errors.New("workflow: invalid actor id")
	ErrInvalidRosterOp    = errors.New("workflow: invalid roster op")
	ErrMemberHasOpenLeave = errors.New("workflow: member has unresolved leave requests")
)
