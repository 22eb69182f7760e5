package roles

import (
	"context"
	"errors"
	"io"
	"testing"

	"task-board-sync/internal/models"
	"task-board-sync/internal/session"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeOwners struct {
	owners map[string]string
	err    error
	calls  int
}

func (f *fakeOwners) ProductOwnerID(_ context.Context, projectID string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.owners[projectID], nil
}

func quietLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func taskA() models.Task {
	return models.Task{ID: "A", Title: "Ship it", CreatedBy: "U1", AssigneeID: models.StringPtr("U2"), ProjectID: "P"}
}

func TestResolve_ExcludesActor(t *testing.T) {
	r := NewResolver(&fakeOwners{owners: map[string]string{"P": "U3"}}, nil, quietLogger())
	m := r.Resolve(context.Background(), taskA(), "U1", models.NotifyTaskStatusChanged)

	require.Equal(t, []string{"U2", "U3"}, m.UserIDs())
	require.Equal(t, "Assignee", m.Label("U2"))
	require.Equal(t, "product-owner", m.Label("U3"))
	require.False(t, m.Has("U1"))
}

func TestResolve_MergesRolesForOneUser(t *testing.T) {
	task := taskA()
	task.AssigneeID = models.StringPtr("U1")
	r := NewResolver(&fakeOwners{owners: map[string]string{"P": "U1"}}, nil, quietLogger())

	m := r.Resolve(context.Background(), task, "U9", models.NotifyTaskUpdated)
	require.Equal(t, 1, m.Len())
	require.Equal(t, "Creator, Assignee and product-owner", m.Label("U1"))
}

func TestResolve_CreatorAndAssigneeLabel(t *testing.T) {
	task := taskA()
	task.AssigneeID = models.StringPtr("U1")
	r := NewResolver(&fakeOwners{}, nil, quietLogger())

	m := r.Resolve(context.Background(), task, "U5", models.NotifyTaskStatusChanged)
	require.Equal(t, []string{"U1"}, m.UserIDs())
	require.Equal(t, "Creator and Assignee", m.Label("U1"))
}

func TestResolve_OverdueKeepsActor(t *testing.T) {
	r := NewResolver(&fakeOwners{}, nil, quietLogger())
	m := r.Resolve(context.Background(), taskA(), "U1", models.NotifyTaskOverdue)
	require.True(t, m.Has("U1"))
	require.True(t, m.Has("U2"))
}

func TestResolve_EmptyWhenOnlyActorCares(t *testing.T) {
	task := models.Task{ID: "A", CreatedBy: "U1", AssigneeID: models.StringPtr("  "), ProjectID: "P"}
	r := NewResolver(&fakeOwners{owners: map[string]string{"P": "U1"}}, nil, quietLogger())
	m := r.Resolve(context.Background(), task, "U1", models.NotifyTaskStatusChanged)
	require.Equal(t, 0, m.Len())
}

func TestResolve_FailedOwnerLookupIsCachedForSession(t *testing.T) {
	owners := &fakeOwners{err: errors.New("projects service down")}
	sess := session.New(models.NewActor("U1", "alice"), "tok", 8)
	r := NewResolver(owners, sess, quietLogger())

	for i := 0; i < 3; i++ {
		m := r.Resolve(context.Background(), taskA(), "U1", models.NotifyTaskStatusChanged)
		require.Equal(t, []string{"U2"}, m.UserIDs())
	}
	require.Equal(t, 1, owners.calls)

	sess.Logout()
	owners.err = nil
	owners.owners = map[string]string{"P": "U3"}
	m := r.Resolve(context.Background(), taskA(), "U1", models.NotifyTaskStatusChanged)
	require.True(t, m.Has("U3"))
	require.Equal(t, 2, owners.calls)
}

func TestResolve_OwnerIsCached(t *testing.T) {
	owners := &fakeOwners{owners: map[string]string{"P": "U3"}}
	sess := session.New(models.NewActor("U1", "alice"), "tok", 8)
	r := NewResolver(owners, sess, quietLogger())

	r.Resolve(context.Background(), taskA(), "U1", models.NotifyTaskStatusChanged)
	r.Resolve(context.Background(), taskA(), "U1", models.NotifyTaskStatusChanged)
	require.Equal(t, 1, owners.calls)
}

func TestFormatLabel(t *testing.T) {
	require.Equal(t, "", FormatLabel(nil))
	require.Equal(t, "Creator", FormatLabel([]Role{Creator}))
	require.Equal(t, "Creator and Assignee", FormatLabel([]Role{Creator, Assignee}))
	require.Equal(t, "Creator, Assignee and product-owner", FormatLabel([]Role{Creator, Assignee, ProductOwner}))
}

func TestRoleMap_AddIgnoresDuplicatesAndBlanks(t *testing.T) {
	m := NewRoleMap()
	m.Add("U1", Assignee)
	m.Add("U1", Assignee)
	m.Add("", Creator)
	m.Add("U1", Creator)
	require.Equal(t, 1, m.Len())
	require.Equal(t, []Role{Creator, Assignee}, m.Roles("U1"))

	m.Remove("U1")
	m.Remove("nobody")
	require.Equal(t, 0, m.Len())
}
