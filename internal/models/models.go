package models

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrNoConversation = errors.New("no conversation selected")
)

// Profile is a denormalized snapshot of another user, as the server
// returned it at the time. It is not kept live.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	Bio         string `json:"bio,omitempty"`
	Age         int    `json:"age,omitempty"`
}

type NotificationKind string

const (
	NotificationKindLike       NotificationKind = "like"
	NotificationKindMessage    NotificationKind = "message"
	NotificationKindSwipe      NotificationKind = "swipe"
	NotificationKindMatch      NotificationKind = "match"
	NotificationKindConnection NotificationKind = "connection"
)

// Notification is a server-originated event directed at the current user.
// ID is stable across re-fetch and push delivery and is the dedup key.
type Notification struct {
	ID              string           `json:"id"`
	SenderID        string           `json:"senderId"`
	Sender          Profile          `json:"sender"`
	Kind            NotificationKind `json:"kind"`
	RelatedEntityID string           `json:"relatedEntityId,omitempty"`
	Read            bool             `json:"read"`
	CreatedAt       int64            `json:"createdAt"` // Unix timestamp (seconds)
}

// Conversation is a chat thread between the current user and exactly one
// other user. At most one exists per otherUserId.
type Conversation struct {
	OtherUserID string       `json:"otherUserId"`
	Other       Profile      `json:"other"`
	LastMessage *ChatMessage `json:"lastMessage,omitempty"`
	UnreadCount int          `json:"unreadCount"`
	MatchedAt   int64        `json:"matchedAt"`
}

// SendStatus is client-side only. Messages fetched from the server are
// always StatusSent; an optimistic send is StatusSending until the server
// confirms it or the request fails.
type SendStatus string

const (
	StatusSending SendStatus = "sending"
	StatusSent    SendStatus = "sent"
	StatusFailed  SendStatus = "failed"
)

// ChatMessage is one message within a conversation. Ordering is
// server-assigned creation order; clients never reorder.
type ChatMessage struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"senderId"`
	ReceiverID string     `json:"receiverId"`
	Content    string     `json:"content"`
	CreatedAt  int64      `json:"createdAt"` // Unix timestamp (seconds)
	Status     SendStatus `json:"-"`
}

// Post is a feed entry. Body is the raw markdown from the server; BodyHTML
// is the rendered, sanitized form and is filled in client-side.
type Post struct {
	ID        string  `json:"id"`
	Author    Profile `json:"author"`
	Body      string  `json:"body"`
	BodyHTML  string  `json:"-"`
	LikeCount int     `json:"likeCount"`
	Liked     bool    `json:"liked"`
	CreatedAt int64   `json:"createdAt"`
}

type SwipeDirection string

const (
	SwipeLike      SwipeDirection = "like"
	SwipePass      SwipeDirection = "pass"
	SwipeSuperlike SwipeDirection = "superlike"
)

// SwipeResult is the server's answer to a created swipe. Matched is true
// when the other user already liked the current user.
type SwipeResult struct {
	ID       string         `json:"id"`
	TargetID string         `json:"targetId"`
	Action   SwipeDirection `json:"action"`
	Matched  bool           `json:"matched"`
}

type LocalSwipeType string

const (
	LocalSwipeLike      LocalSwipeType = "like"
	LocalSwipeSuperlike LocalSwipeType = "superlike"
	LocalSwipeMatch     LocalSwipeType = "match"
)

// LocalSwipeNotification is a client-synthesized record, persisted locally
// per user id. It never comes from the server.
type LocalSwipeNotification struct {
	ID        string         `json:"id"`
	Type      LocalSwipeType `json:"type"`
	Sender    Profile        `json:"sender"`
	Timestamp int64          `json:"timestamp"`
	Read      bool           `json:"read"`
}

type ClientEventType string

const (
	ClientEventTypeJoin ClientEventType = "join"
)

// ClientEvent is sent from the client over the push channel. The join event
// associates the transport connection with a user identity.
type ClientEvent struct {
	Type   ClientEventType `json:"type"`
	UserID string          `json:"userId"`
}

type ServerEventType string

const (
	ServerEventTypeNotification ServerEventType = "notification"
)

// ServerEvent is a push-delivered event scoped to the joined identity.
type ServerEvent struct {
	Type         ServerEventType `json:"type"`
	Notification *Notification   `json:"notification,omitempty"`
}
