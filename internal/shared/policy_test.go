package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllow(t *testing.T) {
	var (
		owner      = Actor{ID: 1, Role: RoleEmployee}
		peer       = Actor{ID: 5, Role: RoleEmployee}
		supervisor = Actor{ID: 2, Role: RoleSupervisor}
		otherSuper = Actor{ID: 6, Role: RoleSupervisor}
		admin      = Actor{ID: 3, Role: RoleAdmin}
	)
	supID := supervisor.ID
	target := Target{OwnerID: owner.ID, SupervisorID: &supID}
	unassigned := Target{OwnerID: owner.ID}

	cases := []struct {
		name   string
		actor  Actor
		action Action
		target Target
		want   bool
	}{
		{"owner edits own report", owner, ActionReportEdit, target, true},
		{"peer cannot edit", peer, ActionReportEdit, target, false},
		{"supervisor cannot edit", supervisor, ActionReportEdit, target, false},
		{"admin cannot edit content", admin, ActionReportEdit, target, false},
		{"owner submits own report", owner, ActionReportSubmit, target, true},
		{"supervisor cannot submit", supervisor, ActionReportSubmit, target, false},
		{"assigned supervisor reviews", supervisor, ActionReportReview, target, true},
		{"other supervisor cannot review", otherSuper, ActionReportReview, target, false},
		{"no supervisor means no review", supervisor, ActionReportReview, unassigned, false},
		{"admin cannot review", admin, ActionReportReview, target, false},
		{"assigned supervisor requests revision", supervisor, ActionReportRevision, target, true},
		{"owner cannot request revision", owner, ActionReportRevision, target, false},
		{"admin resets", admin, ActionReportReset, target, true},
		{"supervisor cannot reset", supervisor, ActionReportReset, target, false},
		{"admin closes period", admin, ActionPeriodClose, Target{}, true},
		{"employee cannot close period", owner, ActionPeriodClose, Target{}, false},
		{"admin reopens period", admin, ActionPeriodReopen, Target{}, true},
		{"admin views audit", admin, ActionAuditView, Target{}, true},
		{"supervisor cannot view audit", supervisor, ActionAuditView, Target{}, false},
		{"owner comments", owner, ActionReportComment, target, true},
		{"assigned supervisor comments", supervisor, ActionReportComment, target, true},
		{"admin comments", admin, ActionReportComment, target, true},
		{"peer cannot comment", peer, ActionReportComment, target, false},
		{"unknown action denied", admin, Action("report.export"), target, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Allow(tc.actor, tc.action, tc.target))
		})
	}
}

func TestValidationErrorUnwrap(t *testing.T) {
	err := NewValidationError(map[string]string{"body": "required", "rating": "unknown value"})
	require.ErrorIs(t, err, ErrValidationFailed)
	require.Equal(t, "validation failed: body: required; rating: unknown value", err.Error())
}
