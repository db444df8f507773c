package users

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/gridlog/gridlog/internal/shared"
)

type memoryUserRepo struct {
	users map[int64]User
}

func (r *memoryUserRepo) GetUser(ctx context.Context, id int64) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r *memoryUserRepo) ListTeam(ctx context.Context, supervisorID int64) ([]User, error) {
	var out []User
	for _, u := range r.users {
		if u.SupervisorID != nil && *u.SupervisorID == supervisorID && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memoryUserRepo) ListActiveByRole(ctx context.Context, role shared.Role) ([]User, error) {
	var out []User
	for _, u := range r.users {
		if u.Role == role && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memoryUserRepo) UpdatePrefs(ctx context.Context, id int64, prefs NotificationPrefs) error {
	u, ok := r.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Prefs = prefs
	r.users[id] = u
	return nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func (a *recordingAudit) RecordTx(ctx context.Context, tx pgx.Tx, log shared.AuditLog) error {
	return a.Record(ctx, log)
}

func usersFixture() (*Service, *memoryUserRepo, *recordingAudit) {
	supID := int64(2)
	repo := &memoryUserRepo{users: map[int64]User{
		1: {ID: 1, Role: shared.RoleEmployee, IsActive: true, SupervisorID: &supID, Prefs: DefaultPrefs()},
		2: {ID: 2, Role: shared.RoleSupervisor, IsActive: true, Prefs: DefaultPrefs()},
		3: {ID: 3, Role: shared.RoleEmployee, IsActive: false, SupervisorID: &supID},
		4: {ID: 4, Role: shared.RoleEmployee, IsActive: true},
	}}
	audit := &recordingAudit{}
	return NewService(repo, audit), repo, audit
}

func TestResolve(t *testing.T) {
	svc, _, _ := usersFixture()

	actor, err := svc.Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, shared.Actor{ID: 1, Role: shared.RoleEmployee}, actor)

	_, err = svc.Resolve(context.Background(), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResolveDeactivatedAccount(t *testing.T) {
	svc, _, _ := usersFixture()

	_, err := svc.Resolve(context.Background(), 3)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestSupervisorOf(t *testing.T) {
	svc, _, _ := usersFixture()

	sup, err := svc.SupervisorOf(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, sup)
	require.Equal(t, int64(2), sup.ID)

	// Unassigned employees have no supervisor and that is not an error.
	sup, err = svc.SupervisorOf(context.Background(), 4)
	require.NoError(t, err)
	require.Nil(t, sup)
}

func TestUpdatePrefs(t *testing.T) {
	svc, repo, audit := usersFixture()
	actor := shared.Actor{ID: 1, Role: shared.RoleEmployee}

	prefs := DefaultPrefs()
	prefs.EmailEnabled = false
	updated, err := svc.UpdatePrefs(context.Background(), actor, prefs)
	require.NoError(t, err)
	require.False(t, updated.Prefs.EmailEnabled)
	require.False(t, repo.users[1].Prefs.EmailEnabled)

	require.Len(t, audit.logs, 1)
	require.Equal(t, shared.AuditUserPrefsUpdate, audit.logs[0].Action)
	require.Equal(t, &actor.ID, audit.logs[0].ActorID)
}
