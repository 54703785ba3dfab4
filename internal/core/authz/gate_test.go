package authz

import "testing"

func subject(id, managerID, directorID string) Subject {
	return Subject{ID: id, ManagerID: managerID, DirectorID: directorID}
}

func TestCanAct_SelfAccess(t *testing.T) {
	t.Parallel()

	emp := subject("emp-1", "mgr-1", "dir-1")

	if d := CanAct(emp, emp, ActionViewRecord); !d.Allowed {
		t.Fatalf("expected self view to be allowed, got %+v", d)
	}
	if d := CanAct(emp, emp, ActionUpdateRecord); !d.Allowed {
		t.Fatalf("expected self update to be allowed, got %+v", d)
	}
	if d := CanAct(emp, emp, ActionApproveLeaveStage1); d.Allowed {
		t.Fatalf("self access must not grant approval actions")
	}
}

func TestCanAct_ManagerOfDirectReport(t *testing.T) {
	t.Parallel()

	mgr := subject("mgr-1", "", "dir-1")
	report := subject("emp-1", "mgr-1", "dir-1")
	other := subject("emp-2", "mgr-9", "dir-1")

	for _, action := range []Action{ActionAssignTask, ActionApproveLeaveStage1, ActionViewSubordinate} {
		if d := CanAct(mgr, report, action); !d.Allowed {
			t.Fatalf("expected %s on direct report to be allowed, got %+v", action, d)
		}
	}

	if d := CanAct(mgr, other, ActionApproveLeaveStage1); d.Allowed {
		t.Fatalf("manager must not decide for someone else's report")
	}
	// 直属上長でも二段階目の承認はできない。
	if d := CanAct(mgr, report, ActionApproveLeaveStage2); d.Allowed {
		t.Fatalf("manager must not decide the director stage, even for own report")
	}
}

func TestCanAct_DirectorOfDivision(t *testing.T) {
	t.Parallel()

	dir := subject("dir-1", "", "")
	mgr := subject("mgr-1", "", "dir-1")
	emp := subject("emp-1", "mgr-1", "dir-1")
	outside := subject("emp-9", "mgr-9", "dir-2")

	for _, action := range []Action{ActionApproveLeaveStage2, ActionAddRosterMember, ActionRemoveRosterMember, ActionViewDivision} {
		if d := CanAct(dir, emp, action); !d.Allowed {
			t.Fatalf("expected %s on division member to be allowed, got %+v", action, d)
		}
	}

	// 直属報告のマネージャも部門長の対象に含まれる。
	if d := CanAct(dir, mgr, ActionApproveLeaveStage2); !d.Allowed {
		t.Fatalf("expected director stage decision for direct-report manager to be allowed, got %+v", d)
	}

	if d := CanAct(dir, outside, ActionApproveLeaveStage2); d.Allowed {
		t.Fatalf("director must not act outside own division")
	}
	if d := CanAct(dir, emp, ActionApproveLeaveStage1); d.Allowed {
		t.Fatalf("director link must not grant the manager stage")
	}
}

func TestCanAct_DeniedReason(t *testing.T) {
	t.Parallel()

	a := subject("emp-1", "mgr-1", "dir-1")
	b := subject("emp-2", "mgr-1", "dir-1")

	d := CanAct(a, b, ActionViewRecord)
	if d.Allowed {
		t.Fatalf("peer access must be denied")
	}
	if d.Reason != "insufficient authority" {
		t.Fatalf("unexpected denial reason: %q", d.Reason)
	}
}

func TestCanAct_EmptyActorNeverMatches(t *testing.T) {
	t.Parallel()

	anon := Subject{}
	orphan := subject("emp-1", "", "")

	if d := CanAct(anon, orphan, ActionViewRecord); d.Allowed {
		t.Fatalf("empty actor id must not match empty org links")
	}
}
