package services

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anaslahboub/app-microservice/internal/models"
	"github.com/anaslahboub/app-microservice/internal/realtime"
	"github.com/anaslahboub/app-microservice/internal/userclient"
)

func TestComposeRoutesByKind(t *testing.T) {
	composer, err := NewComposer(&EventStore{})
	require.NoError(t, err)

	post := &models.Post{BaseModel: models.BaseModel{ID: 4}, AuthorID: alice.ID, Content: "Lab report"}
	comment := &models.Comment{BaseModel: models.BaseModel{ID: 9}, PostID: 4, Content: "Nice"}
	chat := &models.Chat{BaseModel: models.BaseModel{ID: 2}, SenderID: bob.ID, RecipientID: alice.ID}
	message := &models.Message{BaseModel: models.BaseModel{ID: 11}, Content: "hello", Type: models.MessageText}
	group := &models.Group{BaseModel: models.BaseModel{ID: 6}, Name: "Physics"}

	tests := []struct {
		name     string
		event    Event
		route    realtime.Route
		audience models.Audience
		key      string
		message  string
	}{
		{"bookmark", Event{Kind: models.KindPostBookmarked, Origin: bob, Post: post},
			realtime.ToUser(alice.ID, realtime.DestinationUserNotifications), models.AudienceUser, alice.ID, "Bob Durand bookmarked your post"},
		{"upvote", Event{Kind: models.KindPostUpvoted, Origin: bob, Post: post},
			realtime.ToUser(alice.ID, realtime.DestinationUserNotifications), models.AudienceUser, alice.ID, "Bob Durand upvoted your post"},
		{"comment", Event{Kind: models.KindNewComment, Origin: bob, Post: post, Comment: comment},
			realtime.ToUser(alice.ID, realtime.DestinationUserNotifications), models.AudienceUser, alice.ID, "Bob Durand commented on your post"},
		{"approved", Event{Kind: models.KindPostApproved, Origin: carol, Post: post},
			realtime.ToUser(alice.ID, realtime.DestinationUserNotifications), models.AudienceUser, alice.ID, "Your post has been approved"},
		{"new post", Event{Kind: models.KindNewPost, Origin: alice, Post: post},
			realtime.ToTopic(realtime.TopicNotifications), models.AudienceTopic, realtime.TopicNotifications, "New post created by Alice Martin"},
		{"message", Event{Kind: models.KindMessage, Origin: bob, Recipient: alice.ID, Chat: chat, Message: message},
			realtime.ToUser(alice.ID, realtime.DestinationUserChat), models.AudienceUser, alice.ID, "Bob Durand sent you a message"},
		{"seen", Event{Kind: models.KindSeen, Origin: alice, Recipient: bob.ID, Chat: chat},
			realtime.ToUser(bob.ID, realtime.DestinationUserChat), models.AudienceUser, bob.ID, "Alice Martin has seen your messages"},
		{"image", Event{Kind: models.KindImage, Origin: bob, Recipient: alice.ID, Chat: chat, Message: message, Media: []byte{1}},
			realtime.ToUser(alice.ID, realtime.DestinationUserChat), models.AudienceUser, alice.ID, "Bob Durand sent you an image"},
		{"member added", Event{Kind: models.KindMemberAdded, Origin: alice, Recipient: dave.ID, Group: group},
			realtime.ToUser(dave.ID, realtime.DestinationUserNotifications), models.AudienceUser, dave.ID, "User has been added to group 'Physics'"},
		{"member removed", Event{Kind: models.KindMemberRemoved, Origin: alice, Recipient: dave.ID, Group: group},
			realtime.ToUser(dave.ID, realtime.DestinationUserNotifications), models.AudienceUser, dave.ID, "User has been removed from group 'Physics'"},
		{"co-admin", Event{Kind: models.KindCoAdminAssigned, Origin: alice, Recipient: dave.ID, Group: group},
			realtime.ToUser(dave.ID, realtime.DestinationUserNotifications), models.AudienceUser, dave.ID, "User has been designated as co-admin for group 'Physics'"},
		{"member left", Event{Kind: models.KindMemberLeft, Origin: dave, Group: group},
			realtime.ToGroup(6), models.AudienceGroup, strconv.Itoa(6), "User has left group 'Physics'"},
		{"group archived", Event{Kind: models.KindGroupArchived, Origin: alice, Group: group},
			realtime.ToTopic(realtime.TopicNotifications), models.AudienceTopic, realtime.TopicNotifications, "Group 'Physics' has been archived"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			composed, err := composer.Compose(tc.event)
			require.NoError(t, err)
			require.NotNil(t, composed)
			require.Equal(t, tc.route, composed.Route)
			require.Equal(t, tc.audience, composed.Notification.Audience)
			require.Equal(t, tc.key, composed.Notification.AudienceKey)
			require.Equal(t, tc.message, composed.Notification.Message)
			require.Equal(t, tc.event.Kind, composed.Notification.Kind)
			require.Equal(t, tc.event.Origin.ID, composed.Notification.OriginUserID)
		})
	}
}

func TestComposeSuppressesSelfEngagement(t *testing.T) {
	composer, err := NewComposer(&EventStore{})
	require.NoError(t, err)
	post := &models.Post{AuthorID: carol.ID}

	for _, kind := range []models.NotificationKind{
		models.KindPostLiked, models.KindPostBookmarked, models.KindPostUpvoted, models.KindPostDownvoted,
	} {
		composed, err := composer.Compose(Event{Kind: kind, Origin: carol, Post: post})
		require.NoError(t, err)
		require.Nil(t, composed)
	}

	composed, err := composer.Compose(Event{Kind: models.KindNewComment, Origin: carol, Post: post, Comment: &models.Comment{}})
	require.NoError(t, err)
	require.Nil(t, composed)
}

func TestComposeTruncatesPreview(t *testing.T) {
	composer, err := NewComposer(&EventStore{})
	require.NoError(t, err)
	post := &models.Post{AuthorID: alice.ID, Content: strings.Repeat("x", 150)}

	composed, err := composer.Compose(Event{Kind: models.KindPostLiked, Origin: bob, Post: post})
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("x", 100)+"...", composed.Notification.Content)
}

func TestComposeRejectsIncompleteEvents(t *testing.T) {
	composer, err := NewComposer(&EventStore{})
	require.NoError(t, err)

	_, err = composer.Compose(Event{Kind: models.KindPostLiked, Origin: bob})
	require.ErrorIs(t, err, errIncompleteEvent)

	_, err = composer.Compose(Event{Kind: models.KindMessage, Origin: bob, Chat: &models.Chat{}})
	require.ErrorIs(t, err, errIncompleteEvent)

	_, err = composer.Compose(Event{Kind: "UNKNOWN", Origin: bob})
	require.Error(t, err)
}

func TestComposeFallsBackToUserID(t *testing.T) {
	composer, err := NewComposer(&EventStore{})
	require.NoError(t, err)
	post := &models.Post{AuthorID: alice.ID}

	composed, err := composer.Compose(Event{Kind: models.KindPostLiked, Origin: userclient.User{ID: bob.ID}, Post: post})
	require.NoError(t, err)
	require.Equal(t, "bob liked your post", composed.Notification.Message)
}
