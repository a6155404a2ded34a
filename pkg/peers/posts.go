package peers

import (
	"context"
	"fmt"
	"net/http"

	"pixchat/pkg/chat"
)

// PostsClient resolves posts from the post catalog service.
type PostsClient struct {
	c *Client
}

// NewPostsClient wraps a base Client.
func NewPostsClient(c *Client) *PostsClient { return &PostsClient{c: c} }

// PostExists reports whether the post id resolves in the catalog.
func (p *PostsClient) PostExists(ctx context.Context, id string) (bool, error) {
	status, err := p.c.do(ctx, http.MethodGet, "/v1/posts/"+id, nil, nil, nil)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("post lookup: unexpected status %d", status)
	}
}

// PostSnapshot fetches the summary fields shown on a thread row.
func (p *PostsClient) PostSnapshot(ctx context.Context, id string) (*chat.PostSnapshot, error) {
	var out chat.PostSnapshot
	status, err := p.c.do(ctx, http.MethodGet, "/v1/posts/"+id, nil, nil, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("post %s not found", id)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("post lookup: unexpected status %d", status)
	}
	return &out, nil
}
