package principal

import "errors"

var (
	ErrInvalidID           = errors.New("principal: invalid id")
	ErrInvalidRole         = errors.New("principal: invalid role")
	ErrInvalidDepartmentID = errors.New("principal: invalid department id")
	ErrInvalidOrgLink      = errors.New("principal: invalid org link")
	ErrPrincipalNotFound   = errors.New("principal: not found")
	ErrAlreadyExists       = errors.New("principal: already exists")
)
