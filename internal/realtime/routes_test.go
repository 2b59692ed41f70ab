package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveDestination(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
		err      error
	}{
		{name: "user inbox", raw: "/user/queue/notifications", expected: DestinationUserNotifications},
		{name: "user chat", raw: " /user/chat/ ", expected: DestinationUserChat},
		{name: "explicit own inbox", raw: "/user/alice/queue/notifications", expected: DestinationUserNotifications},
		{name: "explicit own chat", raw: "/user/alice/chat", expected: DestinationUserChat},
		{name: "someone else's inbox", raw: "/user/bob/queue/notifications", err: ErrForbiddenDestination},
		{name: "global topic", raw: "/topic/notifications", expected: TopicNotifications},
		{name: "group topic", raw: "/topic/group/42", expected: "/topic/group/42"},
		{name: "bad group id", raw: "/topic/group/abc", err: ErrUnknownDestination},
		{name: "unknown user suffix", raw: "/user/alice/secrets", err: ErrUnknownDestination},
		{name: "unknown", raw: "/queue/anything", err: ErrUnknownDestination},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveDestination("alice", tc.raw)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)
		})
	}
}

func TestRouteKeys(t *testing.T) {
	require.Equal(t, "user:alice", ToUser("alice", DestinationUserNotifications).Key())
	require.Equal(t, "user:alice", ToUser("alice", DestinationUserChat).Key())
	require.Equal(t, "topic:/topic/notifications", ToTopic(TopicNotifications).Key())
	require.Equal(t, "topic:/topic/group/7", ToGroup(7).Key())

	id, ok := GroupIDFromDestination(GroupTopic(7))
	require.True(t, ok)
	require.EqualValues(t, 7, id)

	_, ok = GroupIDFromDestination(TopicNotifications)
	require.False(t, ok)
}
