package notifications

import (
	"context"
	"encoding/json"
	"log/slog"

	"xclone/internal/middleware"
	"xclone/internal/observability"
)

// Feed event types.
const (
	EventPostCreated         = "post_created"
	EventPostReactionUpdated = "post_reaction_updated"
	EventPostReplied         = "post_replied"
)

// FeedEvent is the JSON frame sent to feed sockets.
type FeedEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type PostCreatedPayload struct {
	PostID   uint   `json:"post_id"`
	Username string `json:"username"`
}

type ReactionPayload struct {
	PostID        uint   `json:"post_id"`
	Actor         string `json:"actor"`
	Action        string `json:"action"`
	LikesCount    *int   `json:"likes_count,omitempty"`
	RetweetsCount *int   `json:"retweets_count,omitempty"`
}

type RepliedPayload struct {
	ParentID uint   `json:"parent_id"`
	ReplyID  uint   `json:"reply_id"`
	Username string `json:"username"`
}

// FeedPublisher delivers events through Redis when it is available, which
// reaches this instance's hub through its subscription, and straight to the
// local hub otherwise.
type FeedPublisher struct {
	hub      *Hub
	notifier *Notifier
}

func NewFeedPublisher(hub *Hub, notifier *Notifier) *FeedPublisher {
	return &FeedPublisher{hub: hub, notifier: notifier}
}

// Publish never fails the caller; events are hints to re-read state.
func (p *FeedPublisher) Publish(ctx context.Context, eventType string, payload interface{}) {
	if p == nil {
		return
	}
	data, err := json.Marshal(FeedEvent{Type: eventType, Payload: payload})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to marshal feed event",
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
		return
	}
	observability.FeedEventsTotal.WithLabelValues(eventType).Inc()

	if p.notifier.Enabled() {
		err := p.notifier.PublishFeedEvent(ctx, string(data))
		if err == nil {
			return
		}
		middleware.Logger.WarnContext(ctx, "redis publish failed, delivering locally",
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
	}
	if p.hub != nil {
		p.hub.BroadcastAll(string(data))
	}
}
