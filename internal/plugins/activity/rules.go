package activity

import (
	"reflect"
)

// Verdict is the reconciliation outcome for one record. A noisy record is
// purged from the log and never shown.
type Verdict struct {
	Noise  bool
	Reason string
}

var keep = Verdict{}

func noise(reason string) Verdict {
	return Verdict{Noise: true, Reason: reason}
}

// equalFunc reports whether an UPDATE changed nothing worth showing.
type equalFunc func(old, new Image) bool

// noiseFunc is a table-specific rule applied after the no-op check.
type noiseFunc func(rec *ChangeLogRecord) Verdict

// userCriticalFields are the account fields whose change is shown as
// activity. Updates touching only other columns (login timestamps,
// updated_at) are noise.
var userCriticalFields = []string{
	"name", "email", "password", "is_premium",
	"premium_start_date", "premium_end_date",
	"premium_session_id", "user_cancelled_premium",
}

// Reconcile classifies a raw record. The generic no-op UPDATE check runs
// first using the kind's equality; records that survive it go through the
// kind's own rule, if it has one. INSERT and DELETE records are never
// no-ops. Unknown kinds are kept.
func Reconcile(rec *ChangeLogRecord) Verdict {
	ks, ok := registry[rec.TableName]
	if !ok {
		return keep
	}

	if rec.Operation == OpUpdate && rec.OldImage != nil && rec.NewImage != nil {
		if ks.equal(rec.OldImage, rec.NewImage) {
			return noise("no-op update")
		}
	}

	if ks.noise != nil {
		return ks.noise(rec)
	}
	return keep
}

// imagesEqual is the default equality: every column identical.
func imagesEqual(old, new Image) bool {
	return reflect.DeepEqual(old, new)
}

// fieldsEqual returns an equality that only compares the given columns.
func fieldsEqual(fields ...string) equalFunc {
	return func(old, new Image) bool {
		return len(changedFields(old, new, fields)) == 0
	}
}

// changedFields returns the subset of fields whose values differ.
func changedFields(old, new Image, fields []string) []string {
	var changed []string
	for _, f := range fields {
		if !reflect.DeepEqual(old[f], new[f]) {
			changed = append(changed, f)
		}
	}
	return changed
}

// projectsEqual compares only name and description. Counter columns
// (total_tasks, completed_tasks, progress) are rewritten as a side effect of
// every task change.
var projectsEqual = fieldsEqual("name", "description")

// userUpdateNoise purges user updates that touch none of the critical fields.
func userUpdateNoise(rec *ChangeLogRecord) Verdict {
	if rec.Operation != OpUpdate {
		return keep
	}
	if len(changedFields(rec.OldImage, rec.NewImage, userCriticalFields)) == 0 {
		return noise("user update without account changes")
	}
	return keep
}

// invitationAcceptedNoise purges the actor-less delete that happens when an
// invitation is converted into a membership. The membership insert is
// logged on its own.
func invitationAcceptedNoise(rec *ChangeLogRecord) Verdict {
	if rec.Operation == OpDelete && rec.ChangedBy == nil {
		return noise("invitation converted to membership")
	}
	return keep
}

// selfInviteNoise purges the membership row a project creator gets when the
// project is created.
func selfInviteNoise(rec *ChangeLogRecord) Verdict {
	if rec.Operation != OpInsert {
		return keep
	}
	userID := rec.NewImage.String("user_id")
	if userID != "" && userID == rec.NewImage.String("inviter_user_id") {
		return noise("project owner bootstrap")
	}
	return keep
}
