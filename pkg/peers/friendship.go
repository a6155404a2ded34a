package peers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// FriendshipClient checks the social graph.
type FriendshipClient struct {
	c *Client
}

// NewFriendshipClient wraps a base Client.
func NewFriendshipClient(c *Client) *FriendshipClient { return &FriendshipClient{c: c} }

// AreFriends reports whether a and b have an accepted friendship.
func (f *FriendshipClient) AreFriends(ctx context.Context, a, b string) (bool, error) {
	q := url.Values{}
	q.Set("user_a", a)
	q.Set("user_b", b)
	var out struct {
		Friends bool `json:"friends"`
	}
	status, err := f.c.do(ctx, http.MethodGet, "/v1/friendships/check", q, nil, &out)
	if err != nil {
		return false, err
	}
	if status != http.StatusOK {
		return false, fmt.Errorf("friendship check: unexpected status %d", status)
	}
	return out.Friends, nil
}
