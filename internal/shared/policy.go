package shared

// Role enumerates platform roles.
type Role string

const (
	RoleEmployee   Role = "employee"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// Actor identifies the user performing an action.
type Actor struct {
	ID   int64
	Role Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Action enumerates capability-checked operations.
type Action string

const (
	ActionReportEdit     Action = "report.edit"
	ActionReportSubmit   Action = "report.submit"
	ActionReportReview   Action = "report.review"
	ActionReportRevision Action = "report.request_revision"
	ActionReportReset    Action = "report.reset_to_draft"
	ActionReportComment  Action = "report.comment"
	ActionPeriodClose    Action = "period.close"
	ActionPeriodReopen   Action = "period.reopen"
	ActionAuditView      Action = "audit.view"
)

// Target describes the entity an action applies to. OwnerID is the employee
// who owns the report; SupervisorID is that employee's assigned supervisor,
// nil when unassigned.
type Target struct {
	OwnerID      int64
	SupervisorID *int64
}

// Allow is the capability policy: role checks live here, not inside the
// state machine. Returns true when the actor may perform action on target.
func Allow(actor Actor, action Action, target Target) bool {
	switch action {
	case ActionReportEdit, ActionReportSubmit:
		return actor.Role == RoleEmployee && actor.ID == target.OwnerID
	case ActionReportReview, ActionReportRevision:
		return actor.Role == RoleSupervisor && target.SupervisorID != nil && *target.SupervisorID == actor.ID
	case ActionReportReset, ActionPeriodClose, ActionPeriodReopen, ActionAuditView:
		return actor.Role == RoleAdmin
	case ActionReportComment:
		if actor.ID == target.OwnerID {
			return true
		}
		if target.SupervisorID != nil && *target.SupervisorID == actor.ID {
			return true
		}
		return actor.Role == RoleAdmin
	default:
		return false
	}
}
