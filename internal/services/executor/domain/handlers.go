// Package domain implements the side effects behind each action kind. The
// executor loop stays generic; everything platform-specific lives here.
package domain

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	actiondomain "github.com/veilworld/veilworld/internal/services/actions/domain"
)

// Post is the content an action operates on.
type Post struct {
	ID   string
	Text string
}

// PostSource reads post content from the content service.
type PostSource interface {
	GetPost(ctx context.Context, postID string) (Post, error)
}

// Platform performs the external side effects. Implementations must be safe
// to retry: the executor may re-run a handler after a crash mid-attempt.
type Platform interface {
	// DeletePost removes a post. Deleting an already-deleted post succeeds.
	DeletePost(ctx context.Context, postID string) error
	// Publish cross-posts text as a standalone post and returns its
	// external identifier.
	Publish(ctx context.Context, text string) (string, error)
	// Reply cross-posts text as a reply to an existing external post.
	Reply(ctx context.Context, externalID, text string) (string, error)
}

// Handler executes one action kind. A returned error wrapped with Permanent
// stops retries; anything else is retried with backoff.
type Handler interface {
	Execute(ctx context.Context, request actiondomain.Request) error
}

// DeleteHandler removes the post from the platform.
type DeleteHandler struct {
	platform Platform
}

// NewDeleteHandler builds the delete action handler.
func NewDeleteHandler(platform Platform) *DeleteHandler {
	return &DeleteHandler{platform: platform}
}

// Execute deletes the post. The platform treats missing posts as deleted, so
// a retried delete converges instead of failing.
func (h *DeleteHandler) Execute(ctx context.Context, request actiondomain.Request) error {
	if err := h.platform.DeletePost(ctx, request.PostID); err != nil {
		return fmt.Errorf("delete post %s: %w", request.PostID, err)
	}
	return nil
}

// tweetURL matches links to posts on x.com or twitter.com and captures the
// status identifier.
var tweetURL = regexp.MustCompile(`https?://(?:www\.)?(?:x|twitter)\.com/\w+/status/(\d+)`)

// EmbeddedTweetID extracts the status id of the first tweet link in text.
func EmbeddedTweetID(text string) (string, bool) {
	match := tweetURL.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// PromoteHandler cross-posts the post to the external platform. When the
// request asks for a reply, the post must embed a tweet link to reply to;
// a reply request without one is a permanent failure.
type PromoteHandler struct {
	platform Platform
	posts    PostSource
}

// NewPromoteHandler builds the promote action handler.
func NewPromoteHandler(platform Platform, posts PostSource) *PromoteHandler {
	return &PromoteHandler{platform: platform, posts: posts}
}

// Execute publishes the post content, as a reply when requested.
func (h *PromoteHandler) Execute(ctx context.Context, request actiondomain.Request) error {
	post, err := h.posts.GetPost(ctx, request.PostID)
	if err != nil {
		return fmt.Errorf("load post %s: %w", request.PostID, err)
	}
	text := strings.TrimSpace(post.Text)
	if text == "" {
		return Permanent(fmt.Errorf("post %s has no content to promote", request.PostID))
	}

	if request.AsReply {
		tweetID, ok := EmbeddedTweetID(text)
		if !ok {
			return Permanent(fmt.Errorf("post %s embeds no tweet to reply to", request.PostID))
		}
		if _, err := h.platform.Reply(ctx, tweetID, text); err != nil {
			return fmt.Errorf("reply to tweet %s: %w", tweetID, err)
		}
		return nil
	}

	if _, err := h.platform.Publish(ctx, text); err != nil {
		return fmt.Errorf("publish post %s: %w", request.PostID, err)
	}
	return nil
}

// Handlers wires the default handler set for the executor loop.
func Handlers(platform Platform, posts PostSource) map[actiondomain.Kind]Handler {
	return map[actiondomain.Kind]Handler{
		actiondomain.KindDelete:  NewDeleteHandler(platform),
		actiondomain.KindPromote: NewPromoteHandler(platform, posts),
	}
}
