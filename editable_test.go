package snoo

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pkgerrs "github.com/go-snoo/snoo/pkg/errors"
	"github.com/go-snoo/snoo/pkg/richtext"
	"github.com/go-snoo/snoo/pkg/types"
)

func editedCommentEnvelope(body string) string {
	return `{"json":{"errors":[],"data":{"things":[
		{"kind":"t1","data":{"id":"c1","name":"t1_c1","body":` + jsonString(body) + `,"subreddit":"golang","edited":1618087000.0}}
	]}}}`
}

func jsonString(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func TestEditCommentPlainText(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.handle(t, "/api/edit", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if got := r.PostForm.Get("thing_id"); got != "t1_c1" {
			t.Errorf("thing_id = %q", got)
		}
		if got := r.PostForm.Get("api_type"); got != "json" {
			t.Errorf("api_type = %q", got)
		}
		if got := r.PostForm.Get("text"); got != "updated body" {
			t.Errorf("text = %q", got)
		}
		if r.PostForm.Has("richtext_json") {
			t.Error("plain edit must not send richtext_json")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(editedCommentEnvelope("updated body")))
	})
	client := newScriptClient(t, ts)

	comment := &types.Comment{
		ThingData: types.ThingData{ID: "c1", Name: "t1_c1"},
		Body:      "old body",
		Subreddit: "golang",
		Replies:   []*types.Comment{{ThingData: types.ThingData{ID: "child"}}},
	}

	updated, err := client.EditComment(context.Background(), comment, "updated body", nil)
	if err != nil {
		t.Fatalf("EditComment returned error: %v", err)
	}
	if updated != comment {
		t.Error("EditComment must refresh the comment in place")
	}
	if comment.Body != "updated body" {
		t.Errorf("body = %q", comment.Body)
	}
	if !comment.Edited.IsEdited {
		t.Error("edited flag not refreshed")
	}
	if len(comment.Replies) != 1 {
		t.Errorf("replies were not preserved: %v", comment.Replies)
	}
}

func TestEditCommentRichTextWithPreservedMedia(t *testing.T) {
	t.Parallel()

	body := "still here\n\nhttps://i.redd.it/abc123.jpg"
	convertOutput := `{"output":{"document":[
		{"e":"par","c":[{"e":"text","t":"still here"}]},
		{"e":"par","c":[{"e":"link","u":"https://i.redd.it/abc123.jpg","t":"https://i.redd.it/abc123.jpg"}]}
	]}}`

	ts := newTestServer(t)
	ts.handle(t, "/r/golang/api/convert_rte_body_format", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if got := r.PostForm.Get("output_mode"); got != "rtjson" {
			t.Errorf("output_mode = %q", got)
		}
		if got := r.PostForm.Get("markdown_text"); got != body {
			t.Errorf("markdown_text = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(convertOutput))
	})
	ts.handle(t, "/api/edit", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if r.PostForm.Has("text") {
			t.Error("rich-text edit must not send a text field")
		}
		rtjson := r.PostForm.Get("richtext_json")
		if rtjson == "" {
			t.Fatal("richtext_json missing")
		}
		// The tracked link must have been rewritten into a media element.
		if !strings.Contains(rtjson, `"e":"img"`) || !strings.Contains(rtjson, `"id":"abc123"`) {
			t.Errorf("link not reconciled: %s", rtjson)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(editedCommentEnvelope("still here")))
	})
	client := newScriptClient(t, ts)

	comment := &types.Comment{
		ThingData: types.ThingData{ID: "c1", Name: "t1_c1"},
		Subreddit: "golang",
		MediaMetadata: types.MediaMetadata{
			"abc123": {ID: "abc123", Kind: "Image", Status: "valid"},
		},
	}

	if _, err := client.EditComment(context.Background(), comment, body, &types.EditOptions{PreserveInlineMedia: true}); err != nil {
		t.Fatalf("EditComment returned error: %v", err)
	}
}

func TestEditCommentReconcileFailureAbortsEdit(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.handle(t, "/r/golang/api/convert_rte_body_format", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"output":{"document":[
			{"e":"par","c":[{"e":"link","u":"https://i.redd.it/abc123.jpg","t":"x"}]}
		]}}`))
	})
	ts.handle(t, "/api/edit", func(w http.ResponseWriter, r *http.Request) {
		t.Error("edit endpoint must not be hit when reconciliation fails")
	})
	client := newScriptClient(t, ts)

	comment := &types.Comment{
		ThingData: types.ThingData{ID: "c1", Name: "t1_c1"},
		Subreddit: "golang",
		MediaMetadata: types.MediaMetadata{
			"abc123": {ID: "abc123", Kind: "Hologram"},
		},
	}

	_, err := client.EditComment(context.Background(), comment, "x\n\nhttps://i.redd.it/abc123.jpg", &types.EditOptions{PreserveInlineMedia: true})
	var kindErr *richtext.UnknownMediaKindError
	if !errors.As(err, &kindErr) {
		t.Fatalf("expected UnknownMediaKindError, got %v", err)
	}
}

func TestEditPost(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.handle(t, "/api/edit", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if got := r.PostForm.Get("thing_id"); got != "t3_p1" {
			t.Errorf("thing_id = %q", got)
		}
		if got := r.PostForm.Get("validate_on_submit"); got != "true" {
			t.Errorf("validate_on_submit = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"json":{"errors":[],"data":{"things":[
			{"kind":"t3","data":{"id":"p1","name":"t3_p1","selftext":"new text","subreddit":"golang"}}
		]}}}`))
	})
	client := newTestClientWithConfig(t, ts, &Config{
		ClientSecret:     "secret",
		Username:         "tester",
		Password:         "hunter2",
		ValidateOnSubmit: true,
	})

	post := &types.Post{
		ThingData: types.ThingData{ID: "p1", Name: "t3_p1"},
		SelfText:  "old text",
		Subreddit: "golang",
	}

	if _, err := client.EditPost(context.Background(), post, "new text", nil); err != nil {
		t.Fatalf("EditPost returned error: %v", err)
	}
	if post.SelfText != "new text" {
		t.Errorf("selftext = %q", post.SelfText)
	}
}

func TestEditValidation(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	client := newScriptClient(t, ts)

	if _, err := client.EditComment(context.Background(), nil, "body", nil); err == nil {
		t.Error("expected error for nil comment")
	}
	if _, err := client.EditPost(context.Background(), nil, "body", nil); err == nil {
		t.Error("expected error for nil post")
	}

	badName := &types.Comment{ThingData: types.ThingData{Name: "c1"}}
	if _, err := client.EditComment(context.Background(), badName, "body", nil); err == nil {
		t.Error("expected error for unprefixed fullname")
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	var deleted string
	ts.handle(t, "/api/del", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		deleted = r.PostForm.Get("id")
		w.Write([]byte(`{}`))
	})
	client := newScriptClient(t, ts)

	if err := client.Delete(context.Background(), "t1_c1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if deleted != "t1_c1" {
		t.Errorf("deleted id = %q", deleted)
	}

	if err := client.Delete(context.Background(), "not-a-fullname"); err == nil {
		t.Error("expected error for invalid fullname")
	}
}

func TestConvertToRichText(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.handle(t, "/r/golang/api/convert_rte_body_format", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"output":{"document":[{"e":"par","c":[{"e":"text","t":"hello"}]}]}}`))
	})
	client := newScriptClient(t, ts)

	doc, err := client.ConvertToRichText(context.Background(), "golang", "hello")
	if err != nil {
		t.Fatalf("ConvertToRichText returned error: %v", err)
	}
	if doc["document"] == nil {
		t.Errorf("document missing: %v", doc)
	}

	ts.handle(t, "/r/broken/api/convert_rte_body_format", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	_, err = client.ConvertToRichText(context.Background(), "broken", "hello")
	var parseErr *pkgerrs.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected ParseError for missing output, got %v", err)
	}
}

func TestUploadInlineMedia(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "picture.png")
	if err := os.WriteFile(path, []byte("fake image bytes"), 0o644); err != nil {
		t.Fatalf("failed to write media file: %v", err)
	}

	ts := newTestServer(t)
	var leasedName string
	ts.handle(t, "/api/media/asset.json", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		leasedName = r.PostForm.Get("filepath")
		if !strings.HasSuffix(leasedName, ".png") {
			t.Errorf("filepath = %q, want .png suffix", leasedName)
		}
		if leasedName == "picture.png" {
			t.Error("local file name must not be sent as the object name")
		}
		if got := r.PostForm.Get("mimetype"); got != "image/png" {
			t.Errorf("mimetype = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"args": {
				"action": "` + ts.URL + `/media-bucket",
				"fields": [{"name": "key", "value": "uploads/xyz"}, {"name": "policy", "value": "signed"}]
			},
			"asset": {"asset_id": "asset123"}
		}`))
	})
	ts.handle(t, "/media-bucket", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("failed to parse multipart body: %v", err)
		}
		if got := r.FormValue("key"); got != "uploads/xyz" {
			t.Errorf("key field = %q", got)
		}
		if got := r.FormValue("policy"); got != "signed" {
			t.Errorf("policy field = %q", got)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("media store upload must not carry the API bearer token")
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("file part missing: %v", err)
		}
		file.Close()
		w.WriteHeader(http.StatusCreated)
	})
	client := newScriptClient(t, ts)

	assetID, err := client.UploadInlineMedia(context.Background(), &types.InlineMedia{
		Path:      path,
		MediaType: types.InlineImage,
	})
	if err != nil {
		t.Fatalf("UploadInlineMedia returned error: %v", err)
	}
	if assetID != "asset123" {
		t.Errorf("asset ID = %q", assetID)
	}
}

func TestUploadInlineMediaRejectsUnknownExtension(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	client := newScriptClient(t, ts)

	_, err := client.UploadInlineMedia(context.Background(), &types.InlineMedia{Path: "notes.txt"})
	var configErr *pkgerrs.ConfigError
	if !errors.As(err, &configErr) {
		t.Errorf("expected ConfigError, got %v", err)
	}
}

func TestEditCommentWithInlineMediaUpload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cat.gif")
	if err := os.WriteFile(path, []byte("gif bytes"), 0o644); err != nil {
		t.Fatalf("failed to write media file: %v", err)
	}

	ts := newTestServer(t)
	ts.handle(t, "/api/media/asset.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"args": {"action": "` + ts.URL + `/media-bucket", "fields": []},
			"asset": {"asset_id": "gif456"}
		}`))
	})
	ts.handle(t, "/media-bucket", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	ts.handle(t, "/r/golang/api/convert_rte_body_format", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		// The placeholder must have been replaced with embed markup for the
		// uploaded asset before conversion.
		markdown := r.PostForm.Get("markdown_text")
		if !strings.Contains(markdown, "gif456") || strings.Contains(markdown, "{pic}") {
			t.Errorf("placeholder not substituted: %q", markdown)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"output":{"document":[{"e":"par","c":[{"e":"text","t":"look"}]}]}}`))
	})
	ts.handle(t, "/api/edit", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if !r.PostForm.Has("richtext_json") {
			t.Error("inline-media edit must submit rich text")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(editedCommentEnvelope("look")))
	})
	client := newScriptClient(t, ts)

	comment := &types.Comment{
		ThingData: types.ThingData{ID: "c1", Name: "t1_c1"},
		Subreddit: "golang",
	}

	_, err := client.EditComment(context.Background(), comment, "look {pic}", &types.EditOptions{
		InlineMedia: map[string]*types.InlineMedia{
			"pic": {Path: path, MediaType: types.InlineGIF, Caption: "a cat"},
		},
	})
	if err != nil {
		t.Fatalf("EditComment returned error: %v", err)
	}
}
