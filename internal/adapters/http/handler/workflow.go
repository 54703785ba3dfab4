package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ogurasousui/staffhub/internal/core/leave"
	"github.com/ogurasousui/staffhub/internal/core/principal"
	"github.com/ogurasousui/staffhub/internal/core/role"
	"github.com/ogurasousui/staffhub/internal/core/roster"
	"github.com/ogurasousui/staffhub/internal/core/workflow"
)

// principalHeader は操作主体の構成員 ID を運ぶリクエストヘッダです。
// 認証は前段のゲートウェイで完了している前提で、ここでは検証済み ID として扱います。
const principalHeader = "X-Principal-ID"

const dateLayout = "2006-01-02"

// WorkflowHandler はワークフローユースケースの HTTP 実装です。
type WorkflowHandler struct {
	svc workflow.UseCase
}

// NewWorkflowHandler は WorkflowHandler を生成します。
func NewWorkflowHandler(svc workflow.UseCase) *WorkflowHandler {
	return &WorkflowHandler{svc: svc}
}

// Routes はワークフローのエンドポイント一式を返します。
func (h *WorkflowHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/leave-requests", h.RequestLeave)
	r.Get("/leave-requests/{requestID}", h.GetLeaveRequest)
	r.Post("/leave-requests/{requestID}/decision", h.DecideLeave)

	r.Post("/roster/mutations", h.MutateRoster)

	r.Get("/principals/{principalID}", h.GetPrincipal)
	r.Get("/principals/{principalID}/leave-requests", h.ListLeaveRequests)
	r.Get("/directors/{directorID}/aggregate", h.GetDivisionAggregate)

	return r
}

type requestLeaveBody struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
}

// RequestLeave は休暇申請を受け付けます。申請者はリクエストヘッダの主体です。
func (h *WorkflowHandler) RequestLeave(w http.ResponseWriter, r *http.Request) {
	var body requestLeaveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body", leave.ErrInvalidDateRange))
		return
	}

	start, err := parseDate(body.StartDate)
	if err != nil {
		writeError(w, fmt.Errorf("%w: start_date %q", leave.ErrInvalidDateRange, body.StartDate))
		return
	}
	end, err := parseDate(body.EndDate)
	if err != nil {
		writeError(w, fmt.Errorf("%w: end_date %q", leave.ErrInvalidDateRange, body.EndDate))
		return
	}

	created, err := h.svc.RequestLeave(r.Context(), workflow.RequestLeaveInput{
		RequesterID: r.Header.Get(principalHeader),
		StartDate:   start,
		EndDate:     end,
		Reason:      body.Reason,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLeaveResponse(created))
}

type decideLeaveBody struct {
	Stage    string `json:"stage"`
	Verdict  string `json:"verdict"`
	Comments string `json:"comments"`
}

// DecideLeave は承認・却下の判断を申請へ適用します。
func (h *WorkflowHandler) DecideLeave(w http.ResponseWriter, r *http.Request) {
	var body decideLeaveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body", leave.ErrInvalidVerdict))
		return
	}

	decided, err := h.svc.DecideLeave(r.Context(), workflow.DecideLeaveInput{
		ActorID:   r.Header.Get(principalHeader),
		RequestID: chi.URLParam(r, "requestID"),
		Stage:     leave.Stage(body.Stage),
		Verdict:   leave.DecisionValue(body.Verdict),
		Comments:  body.Comments,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLeaveResponse(decided))
}

type memberPayloadBody struct {
	ID           string  `json:"id"`
	Role         string  `json:"role"`
	ManagerID    *string `json:"manager_id"`
	DirectorID   string  `json:"director_id"`
	DepartmentID string  `json:"department_id"`
}

type mutateRosterBody struct {
	Op       string             `json:"op"`
	Member   *memberPayloadBody `json:"member"`
	MemberID string             `json:"member_id"`
	NewRole  string             `json:"new_role"`
}

// MutateRoster は名簿変更(追加・削除・役職変更)を適用し、更新後の集計を返します。
func (h *WorkflowHandler) MutateRoster(w http.ResponseWriter, r *http.Request) {
	var body mutateRosterBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body", workflow.ErrInvalidRosterOp))
		return
	}

	in := workflow.MutateRosterInput{
		ActorID:  r.Header.Get(principalHeader),
		Op:       workflow.RosterOp(body.Op),
		MemberID: body.MemberID,
		NewRole:  role.Role(body.NewRole),
	}
	if body.Member != nil {
		in.Member = workflow.AddMemberPayload{
			ID:           body.Member.ID,
			Role:         role.Role(body.Member.Role),
			ManagerID:    body.Member.ManagerID,
			DirectorID:   body.Member.DirectorID,
			DepartmentID: body.Member.DepartmentID,
		}
	}

	aggregate, err := h.svc.MutateRoster(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAggregateResponse(aggregate))
}

// GetPrincipal は構成員情報を返します。
func (h *WorkflowHandler) GetPrincipal(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.GetPrincipal(r.Context(), r.Header.Get(principalHeader), chi.URLParam(r, "principalID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPrincipalResponse(found))
}

// GetLeaveRequest は一件の休暇申請を返します。
func (h *WorkflowHandler) GetLeaveRequest(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.GetLeaveRequest(r.Context(), r.Header.Get(principalHeader), chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLeaveResponse(found))
}

// ListLeaveRequests は指定申請者の休暇申請一覧を返します。
func (h *WorkflowHandler) ListLeaveRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.svc.ListLeaveRequests(r.Context(), r.Header.Get(principalHeader), chi.URLParam(r, "principalID"))
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]leaveResponse, 0, len(requests))
	for _, req := range requests {
		items = append(items, toLeaveResponse(req))
	}

	writeJSON(w, http.StatusOK, listLeaveResponse{LeaveRequests: items})
}

// GetDivisionAggregate は部門集計を返します。
func (h *WorkflowHandler) GetDivisionAggregate(w http.ResponseWriter, r *http.Request) {
	aggregate, err := h.svc.GetDivisionAggregate(r.Context(), r.Header.Get(principalHeader), chi.URLParam(r, "directorID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAggregateResponse(aggregate))
}

type stageDecisionResponse struct {
	Value     string     `json:"value"`
	DecidedBy string     `json:"decided_by,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	Comments  string     `json:"comments,omitempty"`
}

type leaveResponse struct {
	ID          string                `json:"id"`
	RequesterID string                `json:"requester_id"`
	StartDate   string                `json:"start_date"`
	EndDate     string                `json:"end_date"`
	Reason      string                `json:"reason"`
	Manager     stageDecisionResponse `json:"manager_decision"`
	Director    stageDecisionResponse `json:"director_decision"`
	Status      string                `json:"status"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

type listLeaveResponse struct {
	LeaveRequests []leaveResponse `json:"leave_requests"`
}

type principalResponse struct {
	ID           string    `json:"id"`
	Role         string    `json:"role"`
	ManagerID    *string   `json:"manager_id,omitempty"`
	DirectorID   *string   `json:"director_id,omitempty"`
	DepartmentID string    `json:"department_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type aggregateResponse struct {
	DirectorID     string    `json:"director_id"`
	TotalEmployees int       `json:"total_employees"`
	TotalManagers  int       `json:"total_managers"`
	MemberIDs      []string  `json:"member_ids"`
	Version        int64     `json:"version"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toLeaveResponse(req *leave.Request) leaveResponse {
	return leaveResponse{
		ID:          req.ID,
		RequesterID: req.RequesterID,
		StartDate:   req.StartDate.Format(dateLayout),
		EndDate:     req.EndDate.Format(dateLayout),
		Reason:      req.Reason,
		Manager:     toStageResponse(req.Manager),
		Director:    toStageResponse(req.Director),
		Status:      string(req.Status),
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
	}
}

func toStageResponse(d leave.StageDecision) stageDecisionResponse {
	return stageDecisionResponse{
		Value:     string(d.Value),
		DecidedBy: d.DecidedBy,
		DecidedAt: d.DecidedAt,
		Comments:  d.Comments,
	}
}

func toPrincipalResponse(p *principal.Principal) principalResponse {
	return principalResponse{
		ID:           p.ID,
		Role:         string(p.Role),
		ManagerID:    p.ManagerID,
		DirectorID:   p.DirectorID,
		DepartmentID: p.DepartmentID,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func toAggregateResponse(a *roster.Aggregate) aggregateResponse {
	memberIDs := a.MemberIDs
	if memberIDs == nil {
		memberIDs = []string{}
	}
	return aggregateResponse{
		DirectorID:     a.DirectorID,
		TotalEmployees: a.TotalEmployees,
		TotalManagers:  a.TotalManagers,
		MemberIDs:      memberIDs,
		Version:        a.Version,
		UpdatedAt:      a.UpdatedAt,
	}
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse(dateLayout, raw)
}
