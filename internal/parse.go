package internal

import (
	"encoding/json"
	"fmt"

	pkgerrs "github.com/go-snoo/snoo/pkg/errors"
	"github.com/go-snoo/snoo/pkg/types"
)

// Thing kind tags used by the Reddit API.
const (
	KindListing   = "Listing"
	KindComment   = "t1"
	KindAccount   = "t2"
	KindLink      = "t3"
	KindMessage   = "t4"
	KindSubreddit = "t5"
	KindMore      = "more"
)

// Parser decodes Thing envelopes into concrete types.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// data validates the envelope kind and returns its payload.
func (p *Parser) data(thing *types.Thing, kind string) (json.RawMessage, error) {
	if thing == nil {
		return nil, &pkgerrs.ParseError{Message: "thing is nil"}
	}
	if thing.Kind != kind {
		return nil, &pkgerrs.ParseError{Message: fmt.Sprintf("expected kind %s, got %s", kind, thing.Kind)}
	}
	return thing.Data, nil
}

func (p *Parser) decode(thing *types.Thing, kind string, v any) error {
	data, err := p.data(thing, kind)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &pkgerrs.ParseError{Message: fmt.Sprintf("failed to decode %s payload", kind), Err: err}
	}
	return nil
}

// ParseThing dispatches on the envelope kind and returns the typed payload.
func (p *Parser) ParseThing(thing *types.Thing) (any, error) {
	if thing == nil {
		return nil, &pkgerrs.ParseError{Message: "thing is nil"}
	}

	switch thing.Kind {
	case KindListing:
		return p.ParseListing(thing)
	case KindComment:
		return p.ParseComment(thing)
	case KindAccount:
		return p.ParseAccount(thing)
	case KindLink:
		return p.ParsePost(thing)
	case KindMessage:
		return p.ParseMessage(thing)
	case KindSubreddit:
		return p.ParseSubreddit(thing)
	case KindMore:
		return p.ParseMore(thing)
	default:
		return nil, &pkgerrs.ParseError{Message: "unknown kind: " + thing.Kind}
	}
}

// ParseListing extracts ListingData from a "Listing" Thing.
func (p *Parser) ParseListing(thing *types.Thing) (*types.ListingData, error) {
	var listing types.ListingData
	if err := p.decode(thing, KindListing, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// ParsePost extracts a Post from a "t3" Thing.
func (p *Parser) ParsePost(thing *types.Thing) (*types.Post, error) {
	var post types.Post
	if err := p.decode(thing, KindLink, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// ParseComment extracts a Comment from a "t1" Thing, recursively decoding its
// replies. Reddit sends an empty string instead of a Listing when a comment
// has no replies.
func (p *Parser) ParseComment(thing *types.Thing) (*types.Comment, error) {
	var comment types.Comment
	if err := p.decode(thing, KindComment, &comment); err != nil {
		return nil, err
	}

	var rawData struct {
		Replies json.RawMessage `json:"replies"`
	}
	if err := json.Unmarshal(thing.Data, &rawData); err == nil && len(rawData.Replies) > 0 && string(rawData.Replies) != `""` {
		var repliesThing types.Thing
		if err := json.Unmarshal(rawData.Replies, &repliesThing); err == nil {
			replies, moreIDs, _ := p.ExtractComments(&repliesThing)
			comment.Replies = replies
			comment.MoreChildrenIDs = moreIDs
		}
	}

	return &comment, nil
}

// ParseSubreddit extracts SubredditData from a "t5" Thing.
func (p *Parser) ParseSubreddit(thing *types.Thing) (*types.SubredditData, error) {
	var subreddit types.SubredditData
	if err := p.decode(thing, KindSubreddit, &subreddit); err != nil {
		return nil, err
	}
	return &subreddit, nil
}

// ParseAccount extracts AccountData from a "t2" Thing.
func (p *Parser) ParseAccount(thing *types.Thing) (*types.AccountData, error) {
	var account types.AccountData
	if err := p.decode(thing, KindAccount, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// ParseMessage extracts MessageData from a "t4" Thing.
func (p *Parser) ParseMessage(thing *types.Thing) (*types.MessageData, error) {
	var message types.MessageData
	if err := p.decode(thing, KindMessage, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// ParseMore extracts MoreData from a "more" Thing.
func (p *Parser) ParseMore(thing *types.Thing) (*types.MoreData, error) {
	var more types.MoreData
	if err := p.decode(thing, KindMore, &more); err != nil {
		return nil, err
	}
	return &more, nil
}

// ExtractPosts extracts all posts from a listing Thing, skipping children
// that fail to decode.
func (p *Parser) ExtractPosts(listing *types.Thing) ([]*types.Post, error) {
	listingData, err := p.ParseListing(listing)
	if err != nil {
		return nil, err
	}

	posts := make([]*types.Post, 0, len(listingData.Children))
	for _, child := range listingData.Children {
		if child.Kind != KindLink {
			continue
		}
		post, err := p.ParsePost(child)
		if err != nil {
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// ExtractComments flattens a comment tree Thing (either a single comment or a
// Listing) into comments plus the IDs of truncated children.
func (p *Parser) ExtractComments(thing *types.Thing) ([]*types.Comment, []string, error) {
	comments := make([]*types.Comment, 0)
	moreIDs := make([]string, 0)

	if thing.Kind == KindComment {
		comment, err := p.ParseComment(thing)
		if err != nil {
			return nil, nil, err
		}
		comments = append(comments, comment)
		if comment.Replies != nil {
			comments = append(comments, comment.Replies...)
		}
		return comments, moreIDs, nil
	}

	if thing.Kind != KindListing {
		return nil, nil, &pkgerrs.ParseError{Message: "expected Listing or t1, got " + thing.Kind}
	}

	listingData, err := p.ParseListing(thing)
	if err != nil {
		return nil, nil, err
	}

	for _, child := range listingData.Children {
		switch child.Kind {
		case KindComment:
			comment, err := p.ParseComment(child)
			if err != nil {
				continue
			}
			comments = append(comments, comment)
			if comment.Replies != nil {
				comments = append(comments, comment.Replies...)
			}
		case KindMore:
			more, err := p.ParseMore(child)
			if err != nil {
				continue
			}
			moreIDs = append(moreIDs, more.Children...)
		}
	}

	return comments, moreIDs, nil
}

// ExtractPostAndComments parses the usual GetComments response shape,
// [post_listing, comments_listing], tolerating responses that omit the post.
func (p *Parser) ExtractPostAndComments(response []*types.Thing) (*types.Post, []*types.Comment, []string, error) {
	if len(response) == 0 {
		return nil, nil, nil, &pkgerrs.ParseError{Message: "empty response"}
	}

	if len(response) >= 2 {
		var post *types.Post
		if posts, err := p.ExtractPosts(response[0]); err == nil && len(posts) > 0 {
			post = posts[0]
		}

		comments, moreIDs, err := p.ExtractComments(response[1])
		if err != nil {
			if post != nil {
				return post, nil, nil, &pkgerrs.ParseError{Message: "failed to extract comments", Err: err}
			}
			return nil, nil, nil, &pkgerrs.ParseError{Message: "failed to extract both post and comments", Err: err}
		}
		return post, comments, moreIDs, nil
	}

	// Single listing: comments without the post, or a post-only response.
	comments, moreIDs, err := p.ExtractComments(response[0])
	if err != nil {
		posts, postErr := p.ExtractPosts(response[0])
		if postErr != nil || len(posts) == 0 {
			return nil, nil, nil, &pkgerrs.ParseError{Message: "failed to extract data from single listing", Err: err}
		}
		return posts[0], nil, nil, nil
	}
	return nil, comments, moreIDs, nil
}
