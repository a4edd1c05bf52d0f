package fixtures

import (
	"context"
	"sync"

	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/poller"
)

// FetcherStub is a test implementation of the poller.Fetcher interface.
type FetcherStub struct {
	poller.Fetcher

	PollFunc func(context.Context, message.OpenGroup, uint64) ([]poller.Post, error)
}

// Poll fetches posts newer than since from g.
func (f *FetcherStub) Poll(
	ctx context.Context,
	g message.OpenGroup,
	since uint64,
) ([]poller.Post, error) {
	if f.PollFunc != nil {
		return f.PollFunc(ctx, g, since)
	}

	if f.Fetcher != nil {
		return f.Fetcher.Poll(ctx, g, since)
	}

	return nil, nil
}

// SinkStub is a test implementation of the poller.Sink interface.
//
// It records every post it receives.
type SinkStub struct {
	poller.Sink

	HandlePostsFunc func(context.Context, string, []poller.Post) error

	m     sync.Mutex
	posts map[string][]poller.Post
}

// HandlePosts handles posts fetched for a conversation.
func (s *SinkStub) HandlePosts(
	ctx context.Context,
	conversationID string,
	posts []poller.Post,
) error {
	s.m.Lock()
	if s.posts == nil {
		s.posts = map[string][]poller.Post{}
	}
	s.posts[conversationID] = append(s.posts[conversationID], posts...)
	s.m.Unlock()

	if s.HandlePostsFunc != nil {
		return s.HandlePostsFunc(ctx, conversationID, posts)
	}

	if s.Sink != nil {
		return s.Sink.HandlePosts(ctx, conversationID, posts)
	}

	return nil
}

// Posts returns the posts received for the given conversation.
func (s *SinkStub) Posts(conversationID string) []poller.Post {
	s.m.Lock()
	defer s.m.Unlock()

	return append([]poller.Post(nil), s.posts[conversationID]...)
}
