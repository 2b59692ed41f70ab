package services

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anaslahboub/app-microservice/internal/models"
	"github.com/anaslahboub/app-microservice/internal/realtime"
	apperrors "github.com/anaslahboub/app-microservice/pkg/errors"
)

func TestGroupLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	group, err := env.groups.Create(ctx, actorOf(alice), CreateGroupInput{Name: " Physics 101 ", Subject: "physics"})
	require.NoError(t, err)
	require.Equal(t, "Physics 101", group.Name)

	members, err := env.groups.Members(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.True(t, members[0].IsAdmin)

	_, err = env.groups.AddMember(ctx, actorOf(alice), group.ID, bob.ID)
	require.NoError(t, err)
	_, err = env.groups.AddMember(ctx, actorOf(alice), group.ID, bob.ID)
	require.ErrorIs(t, err, apperrors.ErrConflict)
	_, err = env.groups.AddMember(ctx, actorOf(bob), group.ID, carol.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = env.groups.AssignCoAdmin(ctx, actorOf(bob), group.ID, bob.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
	member, err := env.groups.AssignCoAdmin(ctx, actorOf(alice), group.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, member.IsCoAdmin)

	_, err = env.groups.AddMember(ctx, actorOf(bob), group.ID, carol.ID)
	require.NoError(t, err)
	require.ErrorIs(t, env.groups.RemoveMember(ctx, actorOf(bob), group.ID, alice.ID), apperrors.ErrForbidden)
	require.ErrorIs(t, env.groups.RemoveMember(ctx, actorOf(alice), group.ID, alice.ID), apperrors.ErrForbidden)
	require.NoError(t, env.groups.RemoveMember(ctx, actorOf(bob), group.ID, carol.ID))
	require.ErrorIs(t, env.groups.RemoveMember(ctx, actorOf(bob), group.ID, carol.ID), apperrors.ErrNotFound)

	kinds := func(userID string) []models.NotificationKind {
		var out []models.NotificationKind
		for _, n := range env.notificationsFor(t, userID) {
			out = append(out, n.Kind)
		}
		return out
	}
	require.Equal(t, []models.NotificationKind{models.KindMemberAdded, models.KindCoAdminAssigned}, kinds(bob.ID))
	require.Equal(t, []models.NotificationKind{models.KindMemberAdded, models.KindMemberRemoved}, kinds(carol.ID))

	require.NoError(t, env.groups.Leave(ctx, actorOf(bob), group.ID))
	require.ErrorIs(t, env.groups.Leave(ctx, actorOf(bob), group.ID), apperrors.ErrNotFound)

	var left models.Notification
	require.NoError(t, env.db.Where("kind = ?", models.KindMemberLeft).Take(&left).Error)
	require.Equal(t, models.AudienceGroup, left.Audience)
	require.Equal(t, strconv.FormatInt(group.ID, 10), left.AudienceKey)

	members, err = env.groups.Members(ctx, group.ID)
	require.NoError(t, err)
	statuses := map[string]string{}
	for _, m := range members {
		statuses[m.UserID] = m.Status
	}
	require.Equal(t, map[string]string{
		alice.ID: models.MemberStatusActive,
		bob.ID:   models.MemberStatusLeft,
	}, statuses)

	// A member who left can be added back.
	rejoined, err := env.groups.AddMember(ctx, actorOf(alice), group.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, models.MemberStatusActive, rejoined.Status)
	require.False(t, rejoined.IsCoAdmin)

	archived, err := env.groups.Archive(ctx, actorOf(alice), group.ID)
	require.NoError(t, err)
	require.True(t, archived.Archived)
	_, err = env.groups.Archive(ctx, actorOf(bob), group.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = env.groups.AddMember(ctx, actorOf(alice), group.ID, dave.ID)
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	require.ErrorIs(t, env.groups.Delete(ctx, actorOf(bob), group.ID), apperrors.ErrForbidden)
	require.NoError(t, env.groups.Delete(ctx, actorOf(alice), group.ID))
	_, err = env.groups.Get(ctx, group.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	var broadcasts []models.Notification
	require.NoError(t, env.db.Where("audience = ?", models.AudienceTopic).Order("id").Find(&broadcasts).Error)
	require.Len(t, broadcasts, 3)
	require.Equal(t, models.KindGroupCreated, broadcasts[0].Kind)
	require.Equal(t, models.KindGroupArchived, broadcasts[1].Kind)
	require.Equal(t, models.KindGroupDeleted, broadcasts[2].Kind)
	require.Equal(t, "Group 'Physics 101' has been deleted", broadcasts[2].Message)
}

func TestGroupAuthorizeSubscription(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	group, err := env.groups.Create(ctx, actorOf(alice), CreateGroupInput{Name: "Chemistry"})
	require.NoError(t, err)

	require.NoError(t, env.groups.AuthorizeSubscription(ctx, alice.ID, realtime.GroupTopic(group.ID)))
	require.ErrorIs(t, env.groups.AuthorizeSubscription(ctx, bob.ID, realtime.GroupTopic(group.ID)), realtime.ErrForbiddenDestination)
	require.ErrorIs(t, env.groups.AuthorizeSubscription(ctx, alice.ID, "/topic/other"), realtime.ErrUnknownDestination)

	require.NoError(t, env.groups.Leave(ctx, actorOf(alice), group.ID))
	require.ErrorIs(t, env.groups.AuthorizeSubscription(ctx, alice.ID, realtime.GroupTopic(group.ID)), realtime.ErrForbiddenDestination)
}
