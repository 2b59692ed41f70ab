package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/anaslahboub/app-microservice/internal/models"
	"github.com/anaslahboub/app-microservice/internal/realtime"
	"github.com/anaslahboub/app-microservice/internal/userclient"
	"github.com/anaslahboub/app-microservice/pkg/metrics"
)

// Event is a domain occurrence that may produce a notification. Only the
// fields relevant to Kind need to be set.
type Event struct {
	Kind      models.NotificationKind
	Origin    userclient.User
	Recipient string
	Post      *models.Post
	Comment   *models.Comment
	Chat      *models.Chat
	Message   *models.Message
	Group     *models.Group
	Media     []byte
}

// Composed is a notification ready to be stored together with its route.
type Composed struct {
	Notification models.Notification
	Route        realtime.Route
}

var errIncompleteEvent = errors.New("composer: incomplete event")

// Composer turns domain events into notifications and routes.
type Composer struct {
	store *EventStore
}

// NewComposer constructs a Composer.
func NewComposer(store *EventStore) (*Composer, error) {
	if store == nil {
		return nil, errors.New("composer: event store is required")
	}
	return &Composer{store: store}, nil
}

// Compose builds the notification for ev. It returns nil when the event does
// not notify anyone, as when users engage with their own posts.
func (c *Composer) Compose(ev Event) (*Composed, error) {
	origin := ev.Origin
	n := models.Notification{
		Kind:           ev.Kind,
		OriginUserID:   origin.ID,
		OriginUserName: origin.FullName(),
	}

	switch ev.Kind {
	case models.KindPostLiked, models.KindPostBookmarked, models.KindPostUpvoted, models.KindPostDownvoted:
		if ev.Post == nil {
			return nil, fmt.Errorf("%w: %s requires a post", errIncompleteEvent, ev.Kind)
		}
		if ev.Post.AuthorID == origin.ID {
			return nil, nil
		}
		n.Message = origin.FullName() + " " + engagementVerb(ev.Kind) + " your post"
		n.Content = models.Preview(ev.Post.Content)
		setPostSubject(&n, ev.Post)
		return toUser(n, ev.Post.AuthorID, realtime.DestinationUserNotifications), nil

	case models.KindNewComment:
		if ev.Post == nil || ev.Comment == nil {
			return nil, fmt.Errorf("%w: %s requires a post and a comment", errIncompleteEvent, ev.Kind)
		}
		if ev.Post.AuthorID == origin.ID {
			return nil, nil
		}
		n.Message = origin.FullName() + " commented on your post"
		n.Content = models.Preview(ev.Comment.Content)
		setPostSubject(&n, ev.Post)
		n.SubjectType = "comment"
		n.SubjectID = ev.Comment.ID
		meta := map[string]any{"comment_id": ev.Comment.ID}
		if ev.Comment.ParentCommentID != nil {
			meta["parent_comment_id"] = *ev.Comment.ParentCommentID
		}
		n.Metadata = metadata(meta)
		return toUser(n, ev.Post.AuthorID, realtime.DestinationUserNotifications), nil

	case models.KindPostApproved:
		if ev.Post == nil {
			return nil, fmt.Errorf("%w: %s requires a post", errIncompleteEvent, ev.Kind)
		}
		n.Message = "Your post has been approved"
		n.Content = models.Preview(ev.Post.Content)
		setPostSubject(&n, ev.Post)
		return toUser(n, ev.Post.AuthorID, realtime.DestinationUserNotifications), nil

	case models.KindNewPost:
		if ev.Post == nil {
			return nil, fmt.Errorf("%w: %s requires a post", errIncompleteEvent, ev.Kind)
		}
		n.Message = "New post created by " + origin.FullName()
		n.Content = models.Preview(ev.Post.Content)
		setPostSubject(&n, ev.Post)
		return toTopic(n), nil

	case models.KindMessage, models.KindImage, models.KindSeen:
		if ev.Chat == nil || ev.Recipient == "" {
			return nil, fmt.Errorf("%w: %s requires a chat and a recipient", errIncompleteEvent, ev.Kind)
		}
		n.ChatID = int64Ptr(ev.Chat.ID)
		n.ChatName = origin.FullName()
		n.SubjectType = "chat"
		n.SubjectID = ev.Chat.ID
		switch ev.Kind {
		case models.KindMessage:
			if ev.Message == nil {
				return nil, fmt.Errorf("%w: %s requires a message", errIncompleteEvent, ev.Kind)
			}
			n.Message = origin.FullName() + " sent you a message"
			n.Content = models.Preview(ev.Message.Content)
			n.MessageType = string(ev.Message.Type)
			n.Metadata = metadata(map[string]any{"message_id": ev.Message.ID})
		case models.KindImage:
			if ev.Message == nil {
				return nil, fmt.Errorf("%w: %s requires a message", errIncompleteEvent, ev.Kind)
			}
			n.Message = origin.FullName() + " sent you an image"
			n.MessageType = string(ev.Message.Type)
			n.Media = ev.Media
			n.Metadata = metadata(map[string]any{"message_id": ev.Message.ID, "media_path": ev.Message.MediaPath})
		case models.KindSeen:
			n.Message = origin.FullName() + " has seen your messages"
		}
		return toUser(n, ev.Recipient, realtime.DestinationUserChat), nil

	case models.KindMemberAdded, models.KindMemberRemoved, models.KindCoAdminAssigned:
		if ev.Group == nil || ev.Recipient == "" {
			return nil, fmt.Errorf("%w: %s requires a group and a recipient", errIncompleteEvent, ev.Kind)
		}
		setGroupSubject(&n, ev.Group)
		n.Message = groupMessage(ev.Kind, ev.Group.Name)
		n.Metadata = metadata(map[string]any{"user_id": ev.Recipient})
		return toUser(n, ev.Recipient, realtime.DestinationUserNotifications), nil

	case models.KindMemberLeft:
		if ev.Group == nil {
			return nil, fmt.Errorf("%w: %s requires a group", errIncompleteEvent, ev.Kind)
		}
		setGroupSubject(&n, ev.Group)
		n.Message = groupMessage(ev.Kind, ev.Group.Name)
		n.Audience = models.AudienceGroup
		n.AudienceKey = strconv.FormatInt(ev.Group.ID, 10)
		return &Composed{Notification: n, Route: realtime.ToGroup(ev.Group.ID)}, nil

	case models.KindGroupCreated, models.KindGroupDeleted, models.KindGroupArchived:
		if ev.Group == nil {
			return nil, fmt.Errorf("%w: %s requires a group", errIncompleteEvent, ev.Kind)
		}
		setGroupSubject(&n, ev.Group)
		n.Message = groupMessage(ev.Kind, ev.Group.Name)
		n.Content = models.Preview(ev.Group.Description)
		return toTopic(n), nil
	}

	return nil, fmt.Errorf("composer: unknown notification kind %q", ev.Kind)
}

// Emit composes ev, stores the notification in tx and queues its publication
// on out. It returns nil when nothing was composed.
func (c *Composer) Emit(tx *gorm.DB, out *Outbox, ev Event) (*models.Notification, error) {
	composed, err := c.Compose(ev)
	if err != nil || composed == nil {
		return nil, err
	}

	n := composed.Notification
	if err := c.store.AppendNotification(tx, &n); err != nil {
		return nil, err
	}

	out.Add(composed.Route, n)
	if n.Audience == models.AudienceUser {
		out.InvalidateUnread(n.AudienceKey)
	}
	metrics.NotificationsComposed.WithLabelValues(string(n.Kind)).Inc()
	return &n, nil
}

func toUser(n models.Notification, userID, destination string) *Composed {
	n.Audience = models.AudienceUser
	n.AudienceKey = userID
	return &Composed{Notification: n, Route: realtime.ToUser(userID, destination)}
}

func toTopic(n models.Notification) *Composed {
	n.Audience = models.AudienceTopic
	n.AudienceKey = realtime.TopicNotifications
	return &Composed{Notification: n, Route: realtime.ToTopic(realtime.TopicNotifications)}
}

func setPostSubject(n *models.Notification, post *models.Post) {
	n.SubjectType = "post"
	n.SubjectID = post.ID
	n.PostID = int64Ptr(post.ID)
	n.GroupID = post.GroupID
}

func setGroupSubject(n *models.Notification, group *models.Group) {
	n.SubjectType = "group"
	n.SubjectID = group.ID
	n.GroupID = int64Ptr(group.ID)
	n.GroupName = group.Name
}

func engagementVerb(kind models.NotificationKind) string {
	switch kind {
	case models.KindPostLiked:
		return "liked"
	case models.KindPostBookmarked:
		return "bookmarked"
	case models.KindPostUpvoted:
		return "upvoted"
	case models.KindPostDownvoted:
		return "downvoted"
	}
	return "engaged with"
}

func groupMessage(kind models.NotificationKind, name string) string {
	switch kind {
	case models.KindMemberAdded:
		return fmt.Sprintf("User has been added to group '%s'", name)
	case models.KindMemberRemoved:
		return fmt.Sprintf("User has been removed from group '%s'", name)
	case models.KindMemberLeft:
		return fmt.Sprintf("User has left group '%s'", name)
	case models.KindCoAdminAssigned:
		return fmt.Sprintf("User has been designated as co-admin for group '%s'", name)
	case models.KindGroupCreated:
		return fmt.Sprintf("Group '%s' has been created", name)
	case models.KindGroupDeleted:
		return fmt.Sprintf("Group '%s' has been deleted", name)
	case models.KindGroupArchived:
		return fmt.Sprintf("Group '%s' has been archived", name)
	}
	return ""
}

func metadata(values map[string]any) datatypes.JSON {
	data, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
