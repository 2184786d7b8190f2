package snoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	pkgerrs "github.com/go-snoo/snoo/pkg/errors"
	"github.com/go-snoo/snoo/pkg/richtext"
	"github.com/go-snoo/snoo/pkg/types"
)

const (
	editPath       = "api/edit"
	deletePath     = "api/del"
	mediaAssetPath = "api/media/asset.json"
	convertPath    = "r/%s/api/convert_rte_body_format"
)

// mimeTypes maps the upload file extensions Reddit accepts for inline media.
var mimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".mov":  "video/quicktime",
	".mp4":  "video/mp4",
}

// EditComment replaces the comment's body, refreshes the comment in place
// from the response, and returns it.
//
// Plain Markdown bodies are submitted as text. Bodies that embed inline media
// (or that reference uploads from opts.InlineMedia via {placeholder} markers)
// are converted to Reddit's rich-text format first; with
// opts.PreserveInlineMedia set, links referring to the comment's existing
// inline media are rewritten back into typed media elements before
// submission. Preservation relies on undocumented endpoint behavior and is
// best-effort.
func (c *Client) EditComment(ctx context.Context, comment *types.Comment, body string, opts *types.EditOptions) (*types.Comment, error) {
	if comment == nil {
		return nil, &pkgerrs.ConfigError{Field: "comment", Message: "comment cannot be nil"}
	}

	thing, err := c.edit(ctx, comment.Name, comment.Subreddit, comment.MediaMetadata, body, opts)
	if err != nil {
		return nil, err
	}

	updated, err := c.parser.ParseComment(thing)
	if err != nil {
		return nil, err
	}
	if err := comment.RefreshFrom(updated); err != nil {
		return nil, err
	}
	return comment, nil
}

// EditPost replaces a self post's body, refreshes the post in place from the
// response, and returns it. See EditComment for how inline media is handled.
func (c *Client) EditPost(ctx context.Context, post *types.Post, body string, opts *types.EditOptions) (*types.Post, error) {
	if post == nil {
		return nil, &pkgerrs.ConfigError{Field: "post", Message: "post cannot be nil"}
	}

	thing, err := c.edit(ctx, post.Name, post.Subreddit, post.MediaMetadata, body, opts)
	if err != nil {
		return nil, err
	}

	updated, err := c.parser.ParsePost(thing)
	if err != nil {
		return nil, err
	}
	if err := post.RefreshFrom(updated); err != nil {
		return nil, err
	}
	return post, nil
}

// Delete removes the thing with the given fullname. Reddit reports success
// even for already-deleted things.
func (c *Client) Delete(ctx context.Context, fullname string) error {
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}
	if err := c.validator.ValidateFullname(fullname); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("id", fullname)
	_, err := c.http.PostForm(ctx, deletePath, form)
	return err
}

// edit builds and submits the edit request for one thing and returns the
// updated Thing envelope. Any reconciliation failure aborts before the edit
// request is sent.
func (c *Client) edit(ctx context.Context, fullname, subreddit string, media types.MediaMetadata, body string, opts *types.EditOptions) (*types.Thing, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	if err := c.validator.ValidateFullname(fullname); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &types.EditOptions{}
	}

	form := url.Values{}
	form.Set("thing_id", fullname)
	form.Set("api_type", "json")
	if c.config.ValidateOnSubmit {
		form.Set("validate_on_submit", "true")
	}

	useRichText := richtext.ContainsInlineMedia(body)

	if len(opts.InlineMedia) > 0 {
		substituted, err := c.substituteInlineMedia(ctx, body, opts.InlineMedia)
		if err != nil {
			return nil, err
		}
		body = substituted
		useRichText = true
	}

	if !useRichText {
		form.Set("text", body)
		return c.submitEdit(ctx, form)
	}

	doc, err := c.ConvertToRichText(ctx, subreddit, body)
	if err != nil {
		return nil, err
	}
	if opts.PreserveInlineMedia {
		if err := richtext.Reconcile(doc, media); err != nil {
			return nil, err
		}
	}

	encoded, err := doc.Encode()
	if err != nil {
		return nil, err
	}
	form.Set("richtext_json", string(encoded))
	return c.submitEdit(ctx, form)
}

func (c *Client) submitEdit(ctx context.Context, form url.Values) (*types.Thing, error) {
	raw, err := c.http.PostForm(ctx, editPath, form)
	if err != nil {
		return nil, err
	}

	things, err := decodeJSONEnvelope(raw, "Edit")
	if err != nil {
		return nil, err
	}
	if len(things) == 0 {
		return nil, &pkgerrs.ParseError{Operation: "Edit", Message: "response contained no updated thing"}
	}
	return things[0], nil
}

// ConvertToRichText converts a Markdown body to a fancypants rich-text
// document through the subreddit's conversion endpoint.
func (c *Client) ConvertToRichText(ctx context.Context, subreddit, body string) (richtext.Document, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	if err := c.validator.ValidateSubredditName(subreddit); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("output_mode", "rtjson")
	form.Set("markdown_text", body)

	raw, err := c.http.PostForm(ctx, fmt.Sprintf(convertPath, subreddit), form)
	if err != nil {
		return nil, err
	}

	var response struct {
		Output richtext.Document `json:"output"`
	}
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "ConvertToRichText", Message: "failed to parse conversion response", Err: err}
	}
	if response.Output == nil {
		return nil, &pkgerrs.ParseError{Operation: "ConvertToRichText", Message: "conversion response carried no output document"}
	}
	return response.Output, nil
}

// substituteInlineMedia uploads each media file and replaces its
// {placeholder} marker in the body with the embed markup for the returned
// asset ID.
func (c *Client) substituteInlineMedia(ctx context.Context, body string, media map[string]*types.InlineMedia) (string, error) {
	for placeholder, item := range media {
		if item == nil {
			return "", &pkgerrs.ConfigError{Field: "InlineMedia", Message: fmt.Sprintf("media for placeholder %q is nil", placeholder)}
		}
		assetID, err := c.UploadInlineMedia(ctx, item)
		if err != nil {
			return "", err
		}
		markup := fmt.Sprintf("![%s](%s %q)", item.MediaType, assetID, item.Caption)
		body = strings.ReplaceAll(body, "{"+placeholder+"}", markup)
	}
	return body, nil
}

type uploadLease struct {
	Args struct {
		Action string `json:"action"`
		Fields []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"fields"`
	} `json:"args"`
	Asset struct {
		AssetID string `json:"asset_id"`
	} `json:"asset"`
}

// UploadInlineMedia requests an upload lease for the media file, uploads it
// to the lease's action URL, and returns the asset ID used to reference the
// media inline. The uploaded object is named with a fresh UUID so local file
// names never reach the media store.
func (c *Client) UploadInlineMedia(ctx context.Context, media *types.InlineMedia) (string, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return "", err
	}
	if media == nil || media.Path == "" {
		return "", &pkgerrs.ConfigError{Field: "InlineMedia", Message: "media path is required"}
	}

	ext := strings.ToLower(filepath.Ext(media.Path))
	mimeType, ok := mimeTypes[ext]
	if !ok {
		return "", &pkgerrs.ConfigError{Field: "InlineMedia.Path", Message: fmt.Sprintf("unsupported media extension %q", ext)}
	}

	form := url.Values{}
	form.Set("filepath", uuid.New().String()+ext)
	form.Set("mimetype", mimeType)

	raw, err := c.http.PostForm(ctx, mediaAssetPath, form)
	if err != nil {
		return "", err
	}

	var lease uploadLease
	if err := json.Unmarshal(raw, &lease); err != nil {
		return "", &pkgerrs.ParseError{Operation: "UploadInlineMedia", Message: "failed to parse upload lease", Err: err}
	}
	if lease.Args.Action == "" || lease.Asset.AssetID == "" {
		return "", &pkgerrs.ParseError{Operation: "UploadInlineMedia", Message: "upload lease is incomplete"}
	}

	if err := c.uploadToLease(ctx, &lease, media.Path); err != nil {
		return "", err
	}
	return lease.Asset.AssetID, nil
}

// uploadToLease performs the multipart upload the lease describes. The media
// store is a separate host and does not take the API bearer token.
func (c *Client) uploadToLease(ctx context.Context, lease *uploadLease, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return &pkgerrs.RequestError{Operation: "UploadInlineMedia", Err: err}
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, field := range lease.Args.Fields {
		if err := writer.WriteField(field.Name, field.Value); err != nil {
			return &pkgerrs.RequestError{Operation: "UploadInlineMedia", Err: err}
		}
	}
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return &pkgerrs.RequestError{Operation: "UploadInlineMedia", Err: err}
	}
	if _, err := io.Copy(part, file); err != nil {
		return &pkgerrs.RequestError{Operation: "UploadInlineMedia", Err: err}
	}
	if err := writer.Close(); err != nil {
		return &pkgerrs.RequestError{Operation: "UploadInlineMedia", Err: err}
	}

	// Lease actions come back protocol-relative.
	action := lease.Args.Action
	if strings.HasPrefix(action, "//") {
		action = "https:" + action
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action, &buf)
	if err != nil {
		return &pkgerrs.RequestError{Operation: "UploadInlineMedia", URL: action, Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return &pkgerrs.RequestError{Operation: "UploadInlineMedia", URL: action, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &pkgerrs.APIError{StatusCode: resp.StatusCode, Message: "media upload failed"}
	}
	return nil
}
