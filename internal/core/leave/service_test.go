package leave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

// lockingTxManager は読み書きトランザクションを直列化し、
// requestId スコープのロック規律をテスト内で再現します。
type lockingTxManager struct {
	mu sync.Mutex
}

func (m *lockingTxManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (m *lockingTxManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

type fakeLeaveRepo struct {
	mu       sync.Mutex
	requests map[string]*Request
}

func newFakeLeaveRepo() *fakeLeaveRepo {
	return &fakeLeaveRepo{requests: make(map[string]*Request)}
}

func (r *fakeLeaveRepo) Create(_ context.Context, req *Request) (*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = cloneRequest(req)
	return cloneRequest(req), nil
}

func (r *fakeLeaveRepo) Update(_ context.Context, req *Request) (*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[req.ID]; !ok {
		return nil, ErrRequestNotFound
	}
	r.requests[req.ID] = cloneRequest(req)
	return cloneRequest(req), nil
}

func (r *fakeLeaveRepo) FindByID(_ context.Context, id string) (*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return cloneRequest(req), nil
}

func (r *fakeLeaveRepo) FindByIDForUpdate(ctx context.Context, id string) (*Request, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeLeaveRepo) ListByRequester(_ context.Context, requesterID string) ([]*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*Request
	for _, req := range r.requests {
		if req.RequesterID == requesterID {
			result = append(result, cloneRequest(req))
		}
	}
	return result, nil
}

func (r *fakeLeaveRepo) ListUnresolvedByRequester(_ context.Context, requesterID string) ([]*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*Request
	for _, req := range r.requests {
		if req.RequesterID == requesterID && !req.Status.Terminal() {
			result = append(result, cloneRequest(req))
		}
	}
	return result, nil
}

func cloneRequest(req *Request) *Request {
	if req == nil {
		return nil
	}
	copy := *req
	if req.Manager.DecidedAt != nil {
		at := *req.Manager.DecidedAt
		copy.Manager.DecidedAt = &at
	}
	if req.Director.DecidedAt != nil {
		at := *req.Director.DecidedAt
		copy.Director.DecidedAt = &at
	}
	return &copy
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDeriveStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		manager  DecisionValue
		director DecisionValue
		want     Status
	}{
		{DecisionPending, DecisionPending, StatusPending},
		{DecisionPending, DecisionApproved, StatusPending},
		{DecisionPending, DecisionRejected, StatusRejected},
		{DecisionApproved, DecisionPending, StatusPending},
		{DecisionApproved, DecisionApproved, StatusApproved},
		{DecisionApproved, DecisionRejected, StatusRejected},
		{DecisionRejected, DecisionPending, StatusRejected},
		{DecisionRejected, DecisionApproved, StatusRejected},
		{DecisionRejected, DecisionRejected, StatusRejected},
	}

	for _, tc := range cases {
		if got := DeriveStatus(tc.manager, tc.director); got != tc.want {
			t.Fatalf("DeriveStatus(%s, %s) = %s, want %s", tc.manager, tc.director, got, tc.want)
		}
	}
}

func TestService_Submit_Success(t *testing.T) {
	t.Parallel()

	repo := newFakeLeaveRepo()
	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(repo, &stubClock{now: now}, nil)

	created, err := svc.Submit(context.Background(), SubmitInput{
		RequesterID: " emp-1 ",
		StartDate:   time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC),
		EndDate:     date(2024, 3, 3),
		Reason:      "  family matter  ",
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
	if created.RequesterID != "emp-1" {
		t.Fatalf("expected trimmed requester id, got %q", created.RequesterID)
	}
	if !created.StartDate.Equal(date(2024, 3, 1)) {
		t.Fatalf("expected start date truncated to day, got %v", created.StartDate)
	}
	if created.Reason != "family matter" {
		t.Fatalf("expected trimmed reason, got %q", created.Reason)
	}
	if created.Status != StatusPending || created.Manager.Value != DecisionPending || created.Director.Value != DecisionPending {
		t.Fatalf("expected fully pending request, got %+v", created)
	}
	if !created.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at from clock, got %v", created.CreatedAt)
	}
}

func TestService_Submit_InvalidDateRange(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeLeaveRepo(), &stubClock{now: time.Now().UTC()}, nil)

	_, err := svc.Submit(context.Background(), SubmitInput{
		RequesterID: "emp-1",
		StartDate:   date(2024, 3, 3),
		EndDate:     date(2024, 3, 1),
		Reason:      "trip",
	})
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
}

func TestService_Submit_OverlappingUnresolved(t *testing.T) {
	t.Parallel()

	repo := newFakeLeaveRepo()
	svc := NewService(repo, &stubClock{now: time.Now().UTC()}, nil)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, SubmitInput{
		RequesterID: "emp-1",
		StartDate:   date(2024, 3, 1),
		EndDate:     date(2024, 3, 3),
		Reason:      "first",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Submit(ctx, SubmitInput{
		RequesterID: "emp-1",
		StartDate:   date(2024, 3, 3),
		EndDate:     date(2024, 3, 5),
		Reason:      "second",
	})
	if !errors.Is(err, ErrOverlappingRequest) {
		t.Fatalf("expected ErrOverlappingRequest, got %v", err)
	}

	// 別の申請者の同一期間は重複にならない。
	if _, err := svc.Submit(ctx, SubmitInput{
		RequesterID: "emp-2",
		StartDate:   date(2024, 3, 1),
		EndDate:     date(2024, 3, 3),
		Reason:      "other requester",
	}); err != nil {
		t.Fatalf("unexpected error for other requester: %v", err)
	}

	// 隣接するが重ならない期間は許容される。
	if _, err := svc.Submit(ctx, SubmitInput{
		RequesterID: "emp-1",
		StartDate:   date(2024, 3, 4),
		EndDate:     date(2024, 3, 6),
		Reason:      "adjacent",
	}); err != nil {
		t.Fatalf("unexpected error for adjacent range: %v", err)
	}
}

func TestService_Submit_OverlapWithResolvedAllowed(t *testing.T) {
	t.Parallel()

	repo := newFakeLeaveRepo()
	svc := NewService(repo, &stubClock{now: time.Now().UTC()}, nil)
	ctx := context.Background()

	first, err := svc.Submit(ctx, SubmitInput{
		RequesterID: "emp-1",
		StartDate:   date(2024, 3, 1),
		EndDate:     date(2024, 3, 3),
		Reason:      "first",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Decide(ctx, DecideInput{RequestID: first.ID, Stage: StageDirector, Verdict: DecisionRejected, DecidedBy: "dir-1"}); err != nil {
		t.Fatalf("unexpected error rejecting: %v", err)
	}

	if _, err := svc.Submit(ctx, SubmitInput{
		RequesterID: "emp-1",
		StartDate:   date(2024, 3, 2),
		EndDate:     date(2024, 3, 4),
		Reason:      "retry after rejection",
	}); err != nil {
		t.Fatalf("expected resubmission over resolved request to succeed, got %v", err)
	}
}

func TestService_Decide_ManagerThenDirectorApproves(t *testing.T) {
	t.Parallel()

	repo := newFakeLeaveRepo()
	clk := &stubClock{now: time.Date(2024, 2, 20, 10, 0, 0, 0, time.UTC)}
	svc := NewService(repo, clk, nil)
	ctx := context.Background()

	req, err := svc.Submit(ctx, SubmitInput{
		RequesterID: "emp-1",
		StartDate:   date(2024, 3, 1),
		EndDate:     date(2024, 3, 3),
		Reason:      "vacation",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clk.now = clk.now.Add(time.Hour)
	afterManager, err := svc.Decide(ctx, DecideInput{
		RequestID: req.ID,
		Stage:     StageManager,
		Verdict:   DecisionApproved,
		Comments:  "fine by me",
		DecidedBy: "mgr-1",
	})
	if err != nil {
		t.Fatalf("manager decision returned error: %v", err)
	}
	if afterManager.Status != StatusPending {
		t.Fatalf("expected pending after single approval, got %s", afterManager.Status)
	}
	if afterManager.Manager.DecidedBy != "mgr-1" || afterManager.Manager.DecidedAt == nil {
		t.Fatalf("expected manager decision metadata, got %+v", afterManager.Manager)
	}
	if afterManager.Manager.Comments != "fine by me" {
		t.Fatalf("expected manager comments recorded, got %q", afterManager.Manager.Comments)
	}

	clk.now = clk.now.Add(time.Hour)
	afterDirector, err := svc.Decide(ctx, DecideInput{
		RequestID: req.ID,
		Stage:     StageDirector,
		Verdict:   DecisionApproved,
		DecidedBy: "dir-1",
	})
	if err != nil {
		t.Fatalf("director decision returned error: %v", err)
	}
	if afterDirector.Status != StatusApproved {
		t.Fatalf("expected approved after both approvals, got %s", afterDirector.Status)
	}
}

func TestService_Decide_DirectorRejectionIsFinal(t *testing.T) {
	t.Parallel()

	repo := newFakeLeaveRepo()
	svc := NewService(repo, &stubClock{now: time.Now().UTC()}, nil)
	ctx := context.Background()

	req, err := svc.Submit(ctx, SubmitInput{
		RequesterID: "emp-1",
		StartDate:   date(2024, 3, 1),
		EndDate:     date(2024, 3, 3),
		Reason:      "vacation",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rejected, err := svc.Decide(ctx, DecideInput{
		RequestID: req.ID,
		Stage:     StageDirector,
		Verdict:   DecisionRejected,
		Comments:  "blackout period",
		DecidedBy: "dir-1",
	})
	if err != nil {
		t.Fatalf("director rejection returned error: %v", err)
	}
	if rejected.Status != StatusRejected {
		t.Fatalf("expected immediate rejection, got %s", rejected.Status)
	}

	// 終端に達した申請への後続判断は失敗し、レコードは変化しない。
	_, err = svc.Decide(ctx, DecideInput{
		RequestID: req.ID,
		Stage:     StageManager,
		Verdict:   DecisionApproved,
		DecidedBy: "mgr-1",
	})
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}

	stored, err := svc.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Manager.Value != DecisionPending || stored.Status != StatusRejected {
		t.Fatalf("expected record unchanged after failed decision, got %+v", stored)
	}
}

func TestService_Decide_StageAlreadyDecided(t *testing.T) {
	t.Parallel()

	repo := newFakeLeaveRepo()
	svc := NewService(repo, &stubClock{now: time.Now().UTC()}, nil)
	ctx := context.Background()

	req, err := svc.Submit(ctx, SubmitInput{
		RequesterID: "emp-1",
		StartDate:   date(2024, 3, 1),
		EndDate:     date(2024, 3, 3),
		Reason:      "vacation",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Decide(ctx, DecideInput{RequestID: req.ID, Stage: StageManager, Verdict: DecisionApproved, DecidedBy: "mgr-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Decide(ctx, DecideInput{RequestID: req.ID, Stage: StageManager, Verdict: DecisionRejected, DecidedBy: "mgr-1"})
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved for re-decided stage, got %v", err)
	}
}

func TestService_Decide_SameStageRaceHasOneWinner(t *testing.T) {
	t.Parallel()

	repo := newFakeLeaveRepo()
	svc := NewService(repo, &stubClock{now: time.Now().UTC()}, &lockingTxManager{})
	ctx := context.Background()

	req, err := svc.Submit(ctx, SubmitInput{
		RequesterID: "emp-1",
		StartDate:   date(2024, 3, 1),
		EndDate:     date(2024, 3, 3),
		Reason:      "vacation",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const racers = 8
	errs := make(chan error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Decide(ctx, DecideInput{
				RequestID: req.ID,
				Stage:     StageManager,
				Verdict:   DecisionApproved,
				DecidedBy: "mgr-1",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var winners, losers int
	for err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrAlreadyResolved):
			losers++
		default:
			t.Fatalf("unexpected race error: %v", err)
		}
	}
	if winners != 1 || losers != racers-1 {
		t.Fatalf("expected exactly one winner, got %d winners and %d losers", winners, losers)
	}
}

func TestService_Decide_ConcurrentDistinctStagesBothSucceed(t *testing.T) {
	t.Parallel()

	repo := newFakeLeaveRepo()
	svc := NewService(repo, &stubClock{now: time.Now().UTC()}, &lockingTxManager{})
	ctx := context.Background()

	req, err := svc.Submit(ctx, SubmitInput{
		RequesterID: "emp-1",
		StartDate:   date(2024, 3, 1),
		EndDate:     date(2024, 3, 3),
		Reason:      "vacation",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, stage := range []Stage{StageManager, StageDirector} {
		wg.Add(1)
		go func(stage Stage) {
			defer wg.Done()
			_, err := svc.Decide(ctx, DecideInput{
				RequestID: req.ID,
				Stage:     stage,
				Verdict:   DecisionApproved,
				DecidedBy: string(stage) + "-actor",
			})
			errs <- err
		}(stage)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("expected both stage decisions to succeed, got %v", err)
		}
	}

	stored, err := svc.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Status != StatusApproved {
		t.Fatalf("expected derived approved status, got %s", stored.Status)
	}
}

func TestService_Decide_InvalidInput(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeLeaveRepo(), &stubClock{now: time.Now().UTC()}, nil)
	ctx := context.Background()

	if _, err := svc.Decide(ctx, DecideInput{RequestID: "req-1", Stage: Stage("ceo"), Verdict: DecisionApproved}); !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("expected ErrInvalidStage, got %v", err)
	}
	if _, err := svc.Decide(ctx, DecideInput{RequestID: "req-1", Stage: StageManager, Verdict: DecisionPending}); !errors.Is(err, ErrInvalidVerdict) {
		t.Fatalf("expected ErrInvalidVerdict for pending verdict, got %v", err)
	}
	if _, err := svc.Decide(ctx, DecideInput{RequestID: " ", Stage: StageManager, Verdict: DecisionApproved}); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := svc.Decide(ctx, DecideInput{RequestID: "missing", Stage: StageManager, Verdict: DecisionApproved}); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}
