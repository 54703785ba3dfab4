package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ogurasousui/staffhub/internal/core/authz"
	"github.com/ogurasousui/staffhub/internal/core/leave"
	"github.com/ogurasousui/staffhub/internal/core/principal"
	"github.com/ogurasousui/staffhub/internal/core/role"
	"github.com/ogurasousui/staffhub/internal/core/roster"
	"github.com/ogurasousui/staffhub/internal/core/workflow"
)

type errorResponse struct {
	Error string `json:"error"`
}

func toHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, leave.ErrInvalidID),
		errors.Is(err, leave.ErrInvalidRequesterID),
		errors.Is(err, leave.ErrInvalidDateRange),
		errors.Is(err, leave.ErrInvalidReason),
		errors.Is(err, leave.ErrInvalidStage),
		errors.Is(err, leave.ErrInvalidVerdict),
		errors.Is(err, principal.ErrInvalidID),
		errors.Is(err, principal.ErrInvalidRole),
		errors.Is(err, principal.ErrInvalidDepartmentID),
		errors.Is(err, principal.ErrInvalidOrgLink),
		errors.Is(err, roster.ErrInvalidDirectorID),
		errors.Is(err, roster.ErrInvalidMemberID),
		errors.Is(err, roster.ErrInvalidBand),
		errors.Is(err, roster.ErrInvalidDelta),
		errors.Is(err, role.ErrUnknownRole),
		errors.Is(err, workflow.ErrInvalidActorID),
		errors.Is(err, workflow.ErrInvalidRosterOp):
		return http.StatusBadRequest
	case errors.Is(err, authz.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, leave.ErrRequestNotFound),
		errors.Is(err, principal.ErrPrincipalNotFound),
		errors.Is(err, roster.ErrAggregateNotFound),
		errors.Is(err, roster.ErrMemberNotFound):
		return http.StatusNotFound
	case errors.Is(err, leave.ErrOverlappingRequest),
		errors.Is(err, leave.ErrAlreadyResolved),
		errors.Is(err, principal.ErrAlreadyExists),
		errors.Is(err, roster.ErrMemberAlreadyListed),
		errors.Is(err, roster.ErrAggregateConflict),
		errors.Is(err, roster.ErrInconsistentDelta),
		errors.Is(err, workflow.ErrMemberHasOpenLeave):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := toHTTPStatus(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		message = "internal error"
	}
	writeJSON(w, code, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
