package users

import (
	"context"
	"fmt"

	"github.com/gridlog/gridlog/internal/shared"
)

// Directory is the read contract other modules consume for identity,
// role, and supervisor-assignment lookups.
type Directory interface {
	Get(ctx context.Context, id int64) (User, error)
	SupervisorOf(ctx context.Context, employeeID int64) (*User, error)
}

type repository interface {
	GetUser(ctx context.Context, id int64) (User, error)
	ListTeam(ctx context.Context, supervisorID int64) ([]User, error)
	ListActiveByRole(ctx context.Context, role shared.Role) ([]User, error)
	UpdatePrefs(ctx context.Context, id int64, prefs NotificationPrefs) error
}

// Service exposes identity lookups and preference management.
type Service struct {
	repo  repository
	audit shared.AuditSink
}

// NewService constructs a Service.
func NewService(repo repository, audit shared.AuditSink) *Service {
	return &Service{repo: repo, audit: audit}
}

var _ Directory = (*Service)(nil)

// Get returns the user by id.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// Resolve satisfies the middleware ActorResolver contract. Inactive users
// resolve to an error so deactivated accounts lose access immediately.
func (s *Service) Resolve(ctx context.Context, userID int64) (shared.Actor, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return shared.Actor{}, err
	}
	if !user.IsActive {
		return shared.Actor{}, fmt.Errorf("users: account %d deactivated: %w", userID, shared.ErrForbidden)
	}
	return shared.Actor{ID: user.ID, Role: user.Role}, nil
}

// SupervisorOf returns the employee's assigned supervisor, or nil when the
// employee has none.
func (s *Service) SupervisorOf(ctx context.Context, employeeID int64) (*User, error) {
	employee, err := s.repo.GetUser(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if employee.SupervisorID == nil {
		return nil, nil
	}
	supervisor, err := s.repo.GetUser(ctx, *employee.SupervisorID)
	if err != nil {
		return nil, err
	}
	return &supervisor, nil
}

// Team lists the active employees reporting to a supervisor.
func (s *Service) Team(ctx context.Context, supervisorID int64) ([]User, error) {
	return s.repo.ListTeam(ctx, supervisorID)
}

// UpdatePrefs stores new notification preferences for the acting user.
func (s *Service) UpdatePrefs(ctx context.Context, actor shared.Actor, prefs NotificationPrefs) (User, error) {
	if err := s.repo.UpdatePrefs(ctx, actor.ID, prefs); err != nil {
		return User{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  &actor.ID,
			Action:   shared.AuditUserPrefsUpdate,
			Entity:   "user",
			EntityID: fmt.Sprintf("%d", actor.ID),
			Meta:     map[string]any{"email_enabled": prefs.EmailEnabled},
		})
	}
	return s.repo.GetUser(ctx, actor.ID)
}
