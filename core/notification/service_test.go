package notification_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/notification"
	"github.com/trezcool/studentportal/core/user"
	"github.com/trezcool/studentportal/testutil"
)

func TestService_Broadcast(t *testing.T) {
	svcs := testutil.NewServices(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, svcs.UsrRepo, "Admin", "admin@x.com", "Abc12345", user.RoleAdmin)
	var students []user.User
	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		students = append(students, testutil.CreateUser(t, svcs.UsrRepo, "S", email, "Abc12345", user.RoleStudent))
	}

	_, err := svcs.NotifSvc.Broadcast(ctx, students[0].Principal(), "hi")
	assert.ErrorIs(t, err, core.ErrForbidden)
	_, err = svcs.NotifSvc.Broadcast(ctx, admin.Principal(), "   ")
	assert.True(t, core.IsValidation(err))

	n, err := svcs.NotifSvc.Broadcast(ctx, admin.Principal(), " Campus closed ")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ids := map[int64]bool{}
	for _, s := range students {
		list, err := svcs.NotifSvc.ListFor(ctx, s.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Campus closed", list[0].Message)
		assert.False(t, list[0].IsRead)
		ids[list[0].ID] = true
	}
	assert.Len(t, ids, 3, "each student gets an independent copy")

	// reading one copy leaves the others unread
	list, err := svcs.NotifSvc.ListFor(ctx, students[0].ID)
	require.NoError(t, err)
	require.NoError(t, svcs.NotifSvc.MarkRead(ctx, students[0].Principal(), list[0].ID))
	for i, want := range []int{0, 1, 1} {
		unread, err := svcs.NotifSvc.UnreadCount(ctx, students[i].ID)
		require.NoError(t, err)
		assert.Equal(t, want, unread)
	}

	unread, err := svcs.NotifSvc.UnreadCount(ctx, admin.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)
	require.Len(t, svcs.Events.Events(), 1)
	assert.Equal(t, 3, svcs.Events.Events()[0].Data["recipients"])
}

func TestService_Broadcast_noStudents(t *testing.T) {
	svcs := testutil.NewServices(t)
	admin := testutil.CreateUser(t, svcs.UsrRepo, "Admin", "admin@x.com", "Abc12345", user.RoleAdmin)

	n, err := svcs.NotifSvc.Broadcast(context.Background(), admin.Principal(), "hello")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestService_SendToStudent(t *testing.T) {
	svcs := testutil.NewServices(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, svcs.UsrRepo, "Admin", "admin@x.com", "Abc12345", user.RoleAdmin)
	ann := testutil.CreateUser(t, svcs.UsrRepo, "Ann", "ann@x.com", "Abc12345", user.RoleStudent)

	_, err := svcs.NotifSvc.SendToStudent(ctx, ann.Principal(), ann.ID, "hi")
	assert.ErrorIs(t, err, core.ErrForbidden)
	_, err = svcs.NotifSvc.SendToStudent(ctx, admin.Principal(), admin.ID, "hi")
	assert.True(t, core.IsNotFound(err))
	_, err = svcs.NotifSvc.SendToStudent(ctx, admin.Principal(), 999, "hi")
	assert.True(t, core.IsNotFound(err))

	n, err := svcs.NotifSvc.SendToStudent(ctx, admin.Principal(), ann.ID, "See me")
	require.NoError(t, err)
	assert.Equal(t, ann.ID, n.RecipientID)
	assert.False(t, n.IsRead)
}

func TestService_MarkRead(t *testing.T) {
	svcs := testutil.NewServices(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, svcs.UsrRepo, "Admin", "admin@x.com", "Abc12345", user.RoleAdmin)
	ann := testutil.CreateUser(t, svcs.UsrRepo, "Ann", "ann@x.com", "Abc12345", user.RoleStudent)
	bob := testutil.CreateUser(t, svcs.UsrRepo, "Bob", "bob@x.com", "Abc12345", user.RoleStudent)

	n, err := svcs.NotifSvc.SendOne(ctx, ann.ID, "hello")
	require.NoError(t, err)

	assert.ErrorIs(t, svcs.NotifSvc.MarkRead(ctx, admin.Principal(), n.ID), core.ErrForbidden)
	assert.ErrorIs(t, svcs.NotifSvc.MarkRead(ctx, bob.Principal(), n.ID), core.ErrForbidden)
	assert.ErrorIs(t, svcs.NotifSvc.MarkRead(ctx, ann.Principal(), 999), notification.ErrNotFound)

	require.NoError(t, svcs.NotifSvc.MarkRead(ctx, ann.Principal(), n.ID))
	require.NoError(t, svcs.NotifSvc.MarkRead(ctx, ann.Principal(), n.ID))
	unread, err := svcs.NotifSvc.UnreadCount(ctx, ann.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestService_SendOne(t *testing.T) {
	svcs := testutil.NewServices(t)
	ctx := context.Background()
	ann := testutil.CreateUser(t, svcs.UsrRepo, "Ann", "ann@x.com", "Abc12345", user.RoleStudent)

	_, err := svcs.NotifSvc.SendOne(ctx, ann.ID, "")
	assert.True(t, core.IsValidation(err))

	for _, msg := range []string{"first", "second"} {
		_, err = svcs.NotifSvc.SendOne(ctx, ann.ID, msg)
		require.NoError(t, err)
	}
	list, err := svcs.NotifSvc.ListFor(ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Message)
}
