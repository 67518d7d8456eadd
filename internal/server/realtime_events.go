package server

import (
	"context"

	"xclone/internal/models"
	"xclone/internal/notifications"
	"xclone/internal/service"
)

func (s *Server) publishPostCreated(ctx context.Context, post *models.Post) {
	s.publisher.Publish(ctx, notifications.EventPostCreated, notifications.PostCreatedPayload{
		PostID:   post.ID,
		Username: post.Username,
	})
}

func (s *Server) publishLike(ctx context.Context, postID uint, actor string, res *service.LikeResult) {
	action := "unlike"
	if res.Liked {
		action = "like"
	}
	likes := res.LikesCount
	s.publisher.Publish(ctx, notifications.EventPostReactionUpdated, notifications.ReactionPayload{
		PostID:     postID,
		Actor:      actor,
		Action:     action,
		LikesCount: &likes,
	})
}

func (s *Server) publishRetweet(ctx context.Context, postID uint, actor string, res *service.RetweetResult) {
	action := "unretweet"
	if res.Retweeted {
		action = "retweet"
	}
	retweets := res.RetweetsCount
	s.publisher.Publish(ctx, notifications.EventPostReactionUpdated, notifications.ReactionPayload{
		PostID:        postID,
		Actor:         actor,
		Action:        action,
		RetweetsCount: &retweets,
	})
}

func (s *Server) publishReply(ctx context.Context, reply *models.Post) {
	if reply.ParentPostID == nil {
		return
	}
	s.publisher.Publish(ctx, notifications.EventPostReplied, notifications.RepliedPayload{
		ParentID: *reply.ParentPostID,
		ReplyID:  reply.ID,
		Username: reply.Username,
	})
}
