package realtime

import (
	"errors"
	"strconv"
	"strings"
)

// Destinations understood by the hub. User destinations are resolved against
// the connection's user, topics fan out to every subscriber.
const (
	DestinationUserNotifications = "/user/queue/notifications"
	DestinationUserChat          = "/user/chat"
	TopicNotifications           = "/topic/notifications"

	groupTopicPrefix = "/topic/group/"
	userPrefix       = "/user/"
)

var (
	// ErrUnknownDestination is returned for destinations the hub does not serve.
	ErrUnknownDestination = errors.New("realtime: unknown destination")
	// ErrForbiddenDestination is returned when a user names another user's queue
	// or a group they do not belong to.
	ErrForbiddenDestination = errors.New("realtime: destination not permitted")
)

// Route addresses a published message. A non-empty UserID scopes the
// destination to that user's sessions.
type Route struct {
	Destination string `json:"destination"`
	UserID      string `json:"userId,omitempty"`
}

// ToUser routes to every session of userID subscribed to destination.
func ToUser(userID, destination string) Route {
	return Route{Destination: destination, UserID: userID}
}

// ToTopic routes to every session subscribed to a topic.
func ToTopic(destination string) Route {
	return Route{Destination: destination}
}

// ToGroup routes to the topic of a single group.
func ToGroup(groupID int64) Route {
	return Route{Destination: GroupTopic(groupID)}
}

// Key identifies the ordering domain of a route. Messages sharing a key are
// delivered in publication order.
func (r Route) Key() string {
	if r.UserID != "" {
		return "user:" + r.UserID
	}
	return "topic:" + r.Destination
}

// IsUser reports whether the route targets a single user's sessions.
func (r Route) IsUser() bool {
	return r.UserID != ""
}

// GroupTopic returns the topic destination for a group.
func GroupTopic(groupID int64) string {
	return groupTopicPrefix + strconv.FormatInt(groupID, 10)
}

// GroupIDFromDestination extracts the group id from a group topic.
func GroupIDFromDestination(destination string) (int64, bool) {
	if !strings.HasPrefix(destination, groupTopicPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(destination, groupTopicPrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ResolveDestination canonicalises a destination requested by userID.
// "/user/{uid}/chat" and "/user/{uid}/queue/notifications" resolve to their
// user-relative form when uid is the caller.
func ResolveDestination(userID, raw string) (string, error) {
	destination := strings.TrimRight(strings.TrimSpace(raw), "/")

	switch destination {
	case DestinationUserNotifications, DestinationUserChat, TopicNotifications:
		return destination, nil
	}

	if _, ok := GroupIDFromDestination(destination); ok {
		return destination, nil
	}

	if strings.HasPrefix(destination, userPrefix) {
		rest := strings.TrimPrefix(destination, userPrefix)
		owner, suffix, found := strings.Cut(rest, "/")
		if !found {
			return "", ErrUnknownDestination
		}
		canonical := userPrefix + suffix
		if canonical != DestinationUserNotifications && canonical != DestinationUserChat {
			return "", ErrUnknownDestination
		}
		if owner != userID {
			return "", ErrForbiddenDestination
		}
		return canonical, nil
	}

	return "", ErrUnknownDestination
}

func isUserDestination(destination string) bool {
	return strings.HasPrefix(destination, userPrefix)
}

func uniqueDestinations(destinations []string) []string {
	seen := make(map[string]struct{}, len(destinations))
	var result []string
	for _, destination := range destinations {
		destination = strings.TrimSpace(destination)
		if destination == "" {
			continue
		}
		if _, exists := seen[destination]; exists {
			continue
		}
		seen[destination] = struct{}{}
		result = append(result, destination)
	}
	return result
}
