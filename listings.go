package snoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	pkgerrs "github.com/go-snoo/snoo/pkg/errors"
	"github.com/go-snoo/snoo/pkg/types"
)

// GetHot retrieves hot posts from a subreddit, or the front page when the
// request (or its Subreddit) is empty.
func (c *Client) GetHot(ctx context.Context, request *types.PostsRequest) (*types.PostsResponse, error) {
	return c.getPostListing(ctx, "hot", request)
}

// GetNew retrieves the newest posts from a subreddit, or the front page when
// the request (or its Subreddit) is empty.
func (c *Client) GetNew(ctx context.Context, request *types.PostsRequest) (*types.PostsResponse, error) {
	return c.getPostListing(ctx, "new", request)
}

// getPostListing fetches one page of a post listing and extracts the cursors
// for the adjacent pages.
func (c *Client) getPostListing(ctx context.Context, sort string, request *types.PostsRequest) (*types.PostsResponse, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	subreddit := ""
	pagination := types.Pagination{}
	if request != nil {
		subreddit = request.Subreddit
		pagination = request.Pagination
	}

	if subreddit != "" {
		if err := c.validator.ValidateSubredditName(subreddit); err != nil {
			return nil, err
		}
	}
	if err := c.validator.ValidatePagination(&pagination); err != nil {
		return nil, err
	}

	path := sort
	if subreddit != "" {
		path = "r/" + subreddit + "/" + sort
	}

	req, err := c.http.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	applyPagination(req, pagination)

	var result types.Thing
	if _, err := c.http.Do(req, &result); err != nil {
		return nil, err
	}

	posts, err := c.parser.ExtractPosts(&result)
	if err != nil {
		return nil, err
	}

	response := &types.PostsResponse{Posts: posts}
	if listing, err := c.parser.ParseListing(&result); err == nil {
		response.AfterFullname = listing.AfterFullname
		response.BeforeFullname = listing.BeforeFullname
	}
	return response, nil
}

func applyPagination(req *http.Request, pagination types.Pagination) {
	q := req.URL.Query()
	if pagination.Limit > 0 {
		q.Set("limit", strconv.Itoa(pagination.Limit))
	}
	if pagination.After != "" {
		q.Set("after", pagination.After)
	}
	if pagination.Before != "" {
		q.Set("before", pagination.Before)
	}
	req.URL.RawQuery = q.Encode()
}

// GetComments retrieves a post together with its comment tree. Reddit may
// truncate large trees; the response's MoreIDs can be expanded with
// GetMoreComments.
func (c *Client) GetComments(ctx context.Context, request *types.CommentsRequest) (*types.CommentsResponse, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	if request == nil {
		return nil, &pkgerrs.ConfigError{Field: "request", Message: "comments request cannot be nil"}
	}
	if request.Subreddit == "" || request.PostID == "" {
		return nil, &pkgerrs.ConfigError{Field: "request", Message: "subreddit and postID are required"}
	}
	if err := c.validator.ValidateSubredditName(request.Subreddit); err != nil {
		return nil, err
	}
	if err := c.validator.ValidatePagination(&request.Pagination); err != nil {
		return nil, err
	}

	path := "r/" + request.Subreddit + "/comments/" + request.PostID
	req, err := c.http.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	applyPagination(req, request.Pagination)

	raw, err := c.http.DoRaw(req)
	if err != nil {
		return nil, err
	}

	things, err := decodeCommentsPayload(raw)
	if err != nil {
		return nil, err
	}

	post, comments, moreIDs, err := c.parser.ExtractPostAndComments(things)
	if err != nil {
		return nil, err
	}

	// post may be nil when Reddit returns only the comment listing.
	return &types.CommentsResponse{
		Post:     post,
		Comments: comments,
		MoreIDs:  moreIDs,
	}, nil
}

// decodeCommentsPayload handles the two shapes the comments endpoint
// produces: the usual [post_listing, comments_listing] array and a bare
// Listing object.
func decodeCommentsPayload(raw []byte) ([]*types.Thing, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, &pkgerrs.ParseError{Operation: "GetComments", Message: "empty response"}
	}

	switch trimmed[0] {
	case '[':
		var things []*types.Thing
		if err := json.Unmarshal(raw, &things); err != nil {
			return nil, &pkgerrs.ParseError{Operation: "GetComments", Message: "failed to parse comments array", Err: err}
		}
		return things, nil
	case '{':
		var thing types.Thing
		if err := json.Unmarshal(raw, &thing); err != nil {
			return nil, &pkgerrs.ParseError{Operation: "GetComments", Message: "failed to parse comments object", Err: err}
		}
		if thing.Kind != "Listing" {
			return nil, &pkgerrs.ParseError{Operation: "GetComments", Message: "unexpected response kind: " + thing.Kind}
		}
		return []*types.Thing{&thing}, nil
	default:
		return nil, &pkgerrs.ParseError{Operation: "GetComments", Message: "unrecognized response payload"}
	}
}

// GetCommentsMultiple loads comments for several posts in parallel and
// returns the responses in input order. The first error encountered is
// returned alongside whatever succeeded.
func (c *Client) GetCommentsMultiple(ctx context.Context, requests []*types.CommentsRequest) ([]*types.CommentsResponse, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return []*types.CommentsResponse{}, nil
	}

	type result struct {
		index    int
		response *types.CommentsResponse
		err      error
	}
	results := make(chan result, len(requests))

	for i, req := range requests {
		go func(index int, r *types.CommentsRequest) {
			resp, err := c.GetComments(ctx, r)
			results <- result{index: index, response: resp, err: err}
		}(i, req)
	}

	responses := make([]*types.CommentsResponse, len(requests))
	var firstErr error
	for range requests {
		res := <-results
		if res.err != nil && firstErr == nil {
			firstErr = res.err
		}
		responses[res.index] = res.response
	}
	return responses, firstErr
}

// GetMoreComments expands comment IDs that were truncated from an earlier
// GetComments response, using the morechildren endpoint.
func (c *Client) GetMoreComments(ctx context.Context, request *types.MoreCommentsRequest) ([]*types.Comment, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	if request == nil {
		return nil, &pkgerrs.ConfigError{Field: "request", Message: "more comments request cannot be nil"}
	}
	if request.LinkID == "" {
		return nil, &pkgerrs.ConfigError{Field: "LinkID", Message: "linkID is required"}
	}
	if len(request.CommentIDs) == 0 {
		return []*types.Comment{}, nil
	}
	if err := c.validator.ValidateCommentIDs(request.CommentIDs); err != nil {
		return nil, err
	}

	linkID := request.LinkID
	if !strings.HasPrefix(linkID, "t3_") {
		linkID = "t3_" + linkID
	}

	form := url.Values{}
	form.Set("link_id", linkID)
	form.Set("children", strings.Join(request.CommentIDs, ","))
	form.Set("api_type", "json")
	if request.Sort != "" {
		form.Set("sort", request.Sort)
	}
	if request.Depth > 0 {
		form.Set("depth", strconv.Itoa(request.Depth))
	}
	if request.Limit > 0 {
		form.Set("limit_children", strconv.Itoa(request.Limit))
	}

	raw, err := c.http.PostForm(ctx, "api/morechildren", form)
	if err != nil {
		return nil, err
	}

	things, err := decodeJSONEnvelope(raw, "GetMoreComments")
	if err != nil {
		return nil, err
	}

	var comments []*types.Comment
	for _, thing := range things {
		if thing.Kind != "t1" {
			continue
		}
		comment, err := c.parser.ParseComment(thing)
		if err != nil {
			continue
		}
		comments = append(comments, comment)
	}
	return comments, nil
}

// decodeJSONEnvelope unwraps the {"json": {"errors": [...], "data":
// {"things": [...]}}} shape shared by the api_type=json write endpoints.
func decodeJSONEnvelope(raw []byte, operation string) ([]*types.Thing, error) {
	var response struct {
		JSON struct {
			Errors [][]json.RawMessage `json:"errors"`
			Data   struct {
				Things []*types.Thing `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, &pkgerrs.ParseError{Operation: operation, Message: "failed to parse response envelope", Err: err}
	}
	if len(response.JSON.Errors) > 0 {
		return nil, &pkgerrs.APIError{
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("API error: %s", formatAPIErrors(response.JSON.Errors[0])),
		}
	}
	return response.JSON.Data.Things, nil
}

// formatAPIErrors renders one Reddit error tuple (code, message, field) into
// a readable string.
func formatAPIErrors(tuple []json.RawMessage) string {
	parts := make([]string, 0, len(tuple))
	for _, raw := range tuple {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			parts = append(parts, s)
			continue
		}
		parts = append(parts, string(raw))
	}
	return strings.Join(parts, ": ")
}
