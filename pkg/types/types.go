// Package types defines the wire-level objects exchanged with the Reddit API
// and the request/option structs accepted by the client.
package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jinzhu/copier"
)

// ThingData holds the identifying fields shared by all Reddit objects.
// It is embedded by the concrete types such as Post and Comment.
type ThingData struct {
	ID   string `json:"id"`   // ID without the type prefix
	Name string `json:"name"` // fullname, e.g. "t3_abc123"
}

// GetID returns the object's ID.
func (td ThingData) GetID() string { return td.ID }

// GetName returns the object's fullname.
func (td ThingData) GetName() string { return td.Name }

// Thing is the envelope Reddit wraps every API object in: a kind tag plus the
// raw payload, decoded lazily by the parser.
type Thing struct {
	ThingData
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Votable is embedded by things that can be voted on.
type Votable struct {
	Ups   int `json:"ups"`
	Downs int `json:"downs"`
	// Likes is the authenticated user's vote: true up, false down, nil none.
	Likes *bool `json:"likes"`
}

// Created is embedded by things that carry a creation time.
type Created struct {
	Created    float64 `json:"created"`
	CreatedUTC float64 `json:"created_utc"`
}

// Edited represents Reddit's "edited" field, which is either a boolean (old
// edits and unedited things) or a float timestamp (modern edits).
type Edited struct {
	IsEdited  bool
	Timestamp float64
}

// UnmarshalJSON accepts the boolean, null, and timestamp encodings.
func (e *Edited) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(string(data)) {
	case "false", "null":
		*e = Edited{}
		return nil
	case "true":
		*e = Edited{IsEdited: true}
		return nil
	}

	var timestamp float64
	if err := json.Unmarshal(data, &timestamp); err != nil {
		return fmt.Errorf("unrecognized type for 'edited' field: %s", data)
	}
	*e = Edited{IsEdited: true, Timestamp: timestamp}
	return nil
}

// MediaDescriptor describes one inline-media asset attached to a post or
// comment, keyed by asset ID in a MediaMetadata map. Kind is the descriptor's
// "e" value; the known set is Image, RedditVideo, and AnimatedImage.
type MediaDescriptor struct {
	ID       string `json:"id"`
	Kind     string `json:"e"`
	Status   string `json:"status"`
	MimeType string `json:"m,omitempty"`
}

// MediaMetadata maps inline-media asset IDs to their descriptors. A nil map
// means the entity carries no tracked inline media; editing such an entity
// with PreserveInlineMedia set is a harmless no-op.
type MediaMetadata map[string]*MediaDescriptor

// InlineMediaType identifies the kind of asset being uploaded inline.
type InlineMediaType string

const (
	InlineImage InlineMediaType = "image"
	InlineGIF   InlineMediaType = "gif"
	InlineVideo InlineMediaType = "video"
)

// InlineMedia describes a local media file to upload and embed in a body.
// Bodies reference uploads through {placeholder} markers that the client
// substitutes once the asset ID is known.
type InlineMedia struct {
	// Path is the local filesystem path of the media file.
	Path string
	// MediaType selects the embed markup used for the asset.
	MediaType InlineMediaType
	// Caption is optional display text rendered under the media.
	Caption string
}

// EditOptions controls optional behavior of the edit operation.
type EditOptions struct {
	// PreserveInlineMedia rewrites links that refer to the entity's existing
	// inline media back into typed media elements. This relies on undocumented
	// endpoint behavior and is best-effort.
	PreserveInlineMedia bool

	// InlineMedia maps body placeholder names to media files that should be
	// uploaded and embedded as part of the edit.
	InlineMedia map[string]*InlineMedia
}

// ListingData is the payload of a "Listing" Thing and carries pagination
// cursors alongside its children.
type ListingData struct {
	BeforeFullname string   `json:"before"`
	AfterFullname  string   `json:"after"`
	Modhash        string   `json:"modhash"`
	Children       []*Thing `json:"children"`
}

// Pagination captures the cursor controls shared by listing endpoints.
// Reddit paginates by fullname: After/Before hold values like "t3_abc123".
type Pagination struct {
	// Limit caps the number of items returned; Reddit enforces a maximum of
	// 100 and defaults to 25 when zero.
	Limit int
	// After requests items following this fullname. Mutually exclusive with
	// Before.
	After string
	// Before requests items preceding this fullname.
	Before string
}

// PostsRequest targets a subreddit listing; an empty Subreddit means the
// front page.
type PostsRequest struct {
	Subreddit string
	Pagination
}

// CommentsRequest targets the comment listing of a single post.
type CommentsRequest struct {
	Subreddit string
	PostID    string
	Pagination
}

// MoreCommentsRequest expands comment IDs that were truncated from an earlier
// listing response.
type MoreCommentsRequest struct {
	LinkID     string
	CommentIDs []string

	// Sort is one of confidence, new, top, controversial, old, qa.
	Sort string
	// Depth limits reply nesting; zero means no limit.
	Depth int
	// Limit caps the number of comments returned.
	Limit int
}

// SubredditData contains the payload of a "t5" Thing.
type SubredditData struct {
	ThingData
	AccountsActive    int     `json:"accounts_active"`
	Description       string  `json:"description"`
	DisplayName       string  `json:"display_name"`
	HeaderImg         *string `json:"header_img"`
	Over18            bool    `json:"over18"`
	PublicDescription string  `json:"public_description"`
	Subscribers       int64   `json:"subscribers"`
	SubmissionType    string  `json:"submission_type"`
	SubredditType     string  `json:"subreddit_type"`
	Title             string  `json:"title"`
	URL               string  `json:"url"`
	UserIsBanned      *bool   `json:"user_is_banned"`
	UserIsModerator   *bool   `json:"user_is_moderator"`
	UserIsSubscriber  *bool   `json:"user_is_subscriber"`
}

// MessageData contains the payload of a "t4" Thing.
type MessageData struct {
	ThingData
	Created
	Author      string          `json:"author"`
	Body        string          `json:"body"`
	BodyHTML    string          `json:"body_html"`
	Context     string          `json:"context"`
	New         bool            `json:"new"`
	ParentID    *string         `json:"parent_id"`
	RepliesData json.RawMessage `json:"replies"`
	Subject     string          `json:"subject"`
	Subreddit   *string         `json:"subreddit"`
	WasComment  bool            `json:"was_comment"`
}

// AccountData contains the payload of a "t2" Thing.
type AccountData struct {
	ThingData
	Created
	CommentKarma     int    `json:"comment_karma"`
	HasVerifiedEmail *bool  `json:"has_verified_email"`
	InboxCount       int    `json:"inbox_count,omitempty"`
	IsGold           bool   `json:"is_gold"`
	IsMod            bool   `json:"is_mod"`
	LinkKarma        int    `json:"link_karma"`
	Modhash          string `json:"modhash,omitempty"`
	Over18           bool   `json:"over_18"`
}

// MoreData is the payload of a "more" Thing, listing truncated comment IDs.
type MoreData struct {
	ThingData
	Children []string `json:"children"`
}

// Post represents a Reddit post (a "t3" link).
type Post struct {
	ThingData
	Votable
	Created
	Author        string          `json:"author"`
	Domain        string          `json:"domain"`
	Hidden        bool            `json:"hidden"`
	IsSelf        bool            `json:"is_self"`
	Locked        bool            `json:"locked"`
	Media         json.RawMessage `json:"media"`
	MediaEmbed    json.RawMessage `json:"media_embed"`
	MediaMetadata MediaMetadata   `json:"media_metadata"`
	NumComments   int             `json:"num_comments"`
	Over18        bool            `json:"over_18"`
	Permalink     string          `json:"permalink"`
	Saved         bool            `json:"saved"`
	Score         int             `json:"score"`
	SelfText      string          `json:"selftext"`
	SelfTextHTML  *string         `json:"selftext_html"`
	Subreddit     string          `json:"subreddit"`
	SubredditID   string          `json:"subreddit_id"`
	Thumbnail     string          `json:"thumbnail"`
	Title         string          `json:"title"`
	URL           string          `json:"url"`
	Edited        Edited          `json:"edited"`
	Distinguished *string         `json:"distinguished"`
	Stickied      bool            `json:"stickied"`
}

// Comment represents a Reddit comment (a "t1").
type Comment struct {
	ThingData
	Votable
	Created
	Author          string        `json:"author"`
	Body            string        `json:"body"`
	BodyHTML        string        `json:"body_html"`
	Edited          Edited        `json:"edited"`
	Gilded          int           `json:"gilded"`
	LinkID          string        `json:"link_id"`
	MediaMetadata   MediaMetadata `json:"media_metadata"`
	ParentID        string        `json:"parent_id"`
	Replies         []*Comment    `json:"-"` // populated by the parser from the raw replies field
	Saved           bool          `json:"saved"`
	Score           int           `json:"score"`
	ScoreHidden     bool          `json:"score_hidden"`
	Subreddit       string        `json:"subreddit"`
	SubredditID     string        `json:"subreddit_id"`
	Distinguished   *string       `json:"distinguished"`
	MoreChildrenIDs []string      `json:"-"` // aggregated IDs for deferred loading
}

// RefreshFrom replaces the comment's fields with a freshly fetched
// representation, keeping the fields that describe parsed-tree context rather
// than the comment itself (Replies, MoreChildrenIDs).
func (c *Comment) RefreshFrom(updated *Comment) error {
	if updated == nil {
		return fmt.Errorf("updated comment is nil")
	}

	replies := c.Replies
	moreIDs := c.MoreChildrenIDs
	if err := copier.Copy(c, updated); err != nil {
		return fmt.Errorf("failed to refresh comment: %w", err)
	}
	c.Replies = replies
	c.MoreChildrenIDs = moreIDs
	return nil
}

// RefreshFrom replaces the post's fields with a freshly fetched
// representation.
func (p *Post) RefreshFrom(updated *Post) error {
	if updated == nil {
		return fmt.Errorf("updated post is nil")
	}
	if err := copier.Copy(p, updated); err != nil {
		return fmt.Errorf("failed to refresh post: %w", err)
	}
	return nil
}

// PostsResponse is a page of posts plus the cursors for adjacent pages.
type PostsResponse struct {
	Posts          []*Post
	AfterFullname  string
	BeforeFullname string
}

// CommentsResponse is a post together with its comment tree and the IDs of
// comments Reddit truncated from the response.
type CommentsResponse struct {
	Post     *Post
	Comments []*Comment
	MoreIDs  []string
}
