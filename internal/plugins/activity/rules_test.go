package activity

import (
	"testing"
)

func strPtr(s string) *string { return &s }

func update(kind Kind, old, new Image) *ChangeLogRecord {
	return &ChangeLogRecord{ID: "log-1", TableName: kind, Operation: OpUpdate, OldImage: old, NewImage: new, ChangedBy: strPtr("u-1")}
}

// --- Registry ---

func TestRegistry_CoversAllKinds(t *testing.T) {
	for _, k := range AllKinds {
		ks, ok := registry[k]
		if !ok {
			t.Errorf("kind %s has no registry entry", k)
			continue
		}
		if ks.equal == nil {
			t.Errorf("kind %s has no equality rule", k)
		}
		if ks.resolve == nil {
			t.Errorf("kind %s has no resolver", k)
		}
	}
	if len(registry) != len(AllKinds) {
		t.Errorf("registry has %d entries, want %d", len(registry), len(AllKinds))
	}
}

// --- Rule 1: no-op updates ---

func TestReconcile_ProjectCounterOnlyUpdateIsNoise(t *testing.T) {
	rec := update(KindProjects,
		Image{"id": "p-1", "name": "Apollo", "description": "Moon", "progress": float64(10), "total_tasks": float64(3)},
		Image{"id": "p-1", "name": "Apollo", "description": "Moon", "progress": float64(40), "total_tasks": float64(4)},
	)
	if v := Reconcile(rec); !v.Noise {
		t.Error("expected project update touching only counters to be noise")
	}
}

func TestReconcile_ProjectRenameIsKept(t *testing.T) {
	rec := update(KindProjects,
		Image{"id": "p-1", "name": "Apollo", "description": "Moon", "progress": float64(10)},
		Image{"id": "p-1", "name": "Artemis", "description": "Moon", "progress": float64(10)},
	)
	if v := Reconcile(rec); v.Noise {
		t.Errorf("expected rename to be kept, got noise (%s)", v.Reason)
	}
}

func TestReconcile_ProjectDescriptionClearedIsKept(t *testing.T) {
	rec := update(KindProjects,
		Image{"id": "p-1", "name": "Apollo", "description": "Moon"},
		Image{"id": "p-1", "name": "Apollo", "description": nil},
	)
	if v := Reconcile(rec); v.Noise {
		t.Error("expected description change to be kept")
	}
}

func TestReconcile_IdenticalImagesAreNoise(t *testing.T) {
	img := Image{"id": "m-1", "project_id": "p-1", "name": "Beta"}
	other := Image{"id": "m-1", "project_id": "p-1", "name": "Beta"}
	if v := Reconcile(update(KindMilestones, img, other)); !v.Noise {
		t.Error("expected identical milestone images to be noise")
	}
}

func TestReconcile_TaskAttachmentCountUpdateIsKept(t *testing.T) {
	// Tasks use full-image equality, so a counter change is a real change.
	rec := update(KindTasks,
		Image{"id": "t-1", "project_id": "p-1", "title": "Wire", "attachments_count": float64(0)},
		Image{"id": "t-1", "project_id": "p-1", "title": "Wire", "attachments_count": float64(1)},
	)
	if v := Reconcile(rec); v.Noise {
		t.Error("expected task attachments_count update to be kept")
	}
}

func TestReconcile_InsertAndDeleteNeverNoOp(t *testing.T) {
	img := Image{"id": "c-1", "task_id": "t-1", "comment": "hi"}
	for _, op := range []Operation{OpInsert, OpDelete} {
		rec := &ChangeLogRecord{ID: "log-1", TableName: KindComments, Operation: op, ChangedBy: strPtr("u-1")}
		if op == OpInsert {
			rec.NewImage = img
		} else {
			rec.OldImage = img
		}
		if v := Reconcile(rec); v.Noise {
			t.Errorf("%s: expected keep, got noise (%s)", op, v.Reason)
		}
	}
}

func TestReconcile_UnknownKindKept(t *testing.T) {
	rec := update(Kind("widgets"), Image{"a": 1.0}, Image{"a": 1.0})
	if v := Reconcile(rec); v.Noise {
		t.Error("expected unknown kind to be kept")
	}
}

// --- Rule 2: users ---

func TestReconcile_UserBookkeepingUpdateIsNoise(t *testing.T) {
	rec := update(KindUsers,
		Image{"id": "u-1", "name": "Ada", "email": "ada@example.com", "last_login_at": "2026-01-01 10:00:00", "updated_at": "2026-01-01 10:00:00"},
		Image{"id": "u-1", "name": "Ada", "email": "ada@example.com", "last_login_at": "2026-01-02 09:00:00", "updated_at": "2026-01-02 09:00:00"},
	)
	v := Reconcile(rec)
	if !v.Noise {
		t.Fatal("expected timestamp-only user update to be noise")
	}
	if v.Reason == "no-op update" {
		t.Error("expected the user rule to fire, not the generic no-op rule")
	}
}

func TestReconcile_UserCriticalFields(t *testing.T) {
	base := func() Image {
		return Image{
			"id": "u-1", "name": "Ada", "email": "ada@example.com", "password": "hash-1",
			"is_premium": float64(0), "premium_start_date": nil, "premium_end_date": nil,
			"premium_session_id": nil, "user_cancelled_premium": float64(0),
		}
	}
	for _, field := range userCriticalFields {
		t.Run(field, func(t *testing.T) {
			after := base()
			after[field] = "changed"
			if v := Reconcile(update(KindUsers, base(), after)); v.Noise {
				t.Errorf("expected change to %s to be kept", field)
			}
		})
	}
}

// --- Rule 3: invitation acceptance ---

func TestReconcile_InvitationDeleteWithoutActorIsNoise(t *testing.T) {
	rec := &ChangeLogRecord{
		ID: "log-1", TableName: KindInvitations, Operation: OpDelete,
		OldImage: Image{"id": "i-1", "project_id": "p-1", "email": "new@example.com"},
	}
	if v := Reconcile(rec); !v.Noise {
		t.Error("expected actor-less invitation delete to be noise")
	}
}

func TestReconcile_InvitationCancelledByUserIsKept(t *testing.T) {
	rec := &ChangeLogRecord{
		ID: "log-1", TableName: KindInvitations, Operation: OpDelete, ChangedBy: strPtr("u-1"),
		OldImage: Image{"id": "i-1", "project_id": "p-1", "email": "new@example.com"},
	}
	if v := Reconcile(rec); v.Noise {
		t.Error("expected invitation cancelled by a user to be kept")
	}
}

func TestReconcile_InvitationInsertWithoutActorIsKept(t *testing.T) {
	rec := &ChangeLogRecord{
		ID: "log-1", TableName: KindInvitations, Operation: OpInsert,
		NewImage: Image{"id": "i-1", "project_id": "p-1", "email": "new@example.com"},
	}
	if v := Reconcile(rec); v.Noise {
		t.Error("expected invitation insert to be kept")
	}
}

// --- Rule 4: self-invite ---

func TestReconcile_SelfInviteMembership(t *testing.T) {
	tests := []struct {
		name      string
		userID    any
		inviterID any
		wantNoise bool
	}{
		{"owner bootstrap", "u-1", "u-1", true},
		{"invited by another member", "u-2", "u-1", false},
		{"no inviter", "u-2", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &ChangeLogRecord{
				ID: "log-1", TableName: KindMembers, Operation: OpInsert, ChangedBy: strPtr("u-1"),
				NewImage: Image{"project_id": "p-1", "user_id": tt.userID, "inviter_user_id": tt.inviterID, "role": "owner"},
			}
			if got := Reconcile(rec).Noise; got != tt.wantNoise {
				t.Errorf("expected noise=%v, got %v", tt.wantNoise, got)
			}
		})
	}
}

func TestReconcile_SelfInviteRuleOnlyForInserts(t *testing.T) {
	img := Image{"project_id": "p-1", "user_id": "u-1", "inviter_user_id": "u-1", "role": "owner"}
	rec := &ChangeLogRecord{ID: "log-1", TableName: KindMembers, Operation: OpDelete, OldImage: img, ChangedBy: strPtr("u-1")}
	if v := Reconcile(rec); v.Noise {
		t.Error("expected owner membership delete to be kept")
	}
}

// --- ParseKinds ---

func TestParseKinds(t *testing.T) {
	got, err := ParseKinds([]string{"tasks, comments", "files", "tasks", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Kind{KindTasks, KindComments, KindFiles}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kind %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestParseKinds_Empty(t *testing.T) {
	got, err := ParseKinds(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no kinds, got %v", got)
	}
}

func TestParseKinds_Unknown(t *testing.T) {
	_, err := ParseKinds([]string{"tasks,change_logs"})
	assertAppError(t, err, 400)
}

func TestImageString(t *testing.T) {
	img := Image{"s": "x", "n": float64(42), "f": 1.5, "null": nil}
	cases := map[string]string{"s": "x", "n": "42", "f": "1.5", "null": "", "missing": ""}
	for key, want := range cases {
		if got := img.String(key); got != want {
			t.Errorf("String(%q) = %q, want %q", key, got, want)
		}
	}
}
