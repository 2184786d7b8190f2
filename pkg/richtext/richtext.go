// Package richtext manipulates Reddit's "fancypants" rich-text documents.
//
// The fancypants schema is owned by Reddit and produced by the
// convert_rte_body_format endpoint; this package treats it as an opaque JSON
// tree whose shape is asserted, never defined. Its main job is reconciling
// link elements with the inline-media assets already attached to the post or
// comment being edited, so that re-submitting an edited body does not turn
// previously uploaded images, GIFs, and videos into plain links.
package richtext

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-snoo/snoo/pkg/types"
)

// Canonical inline-media leaf kinds as they appear in rich-text documents.
const (
	KindImage = "img"
	KindVideo = "video"
	KindGIF   = "gif"
)

// mediaKinds maps media_metadata descriptor kinds ("e" values) to rich-text
// leaf kinds. The set is closed; a descriptor outside it means Reddit shipped
// a media type this library does not understand yet, which must surface as an
// error rather than produce a malformed body.
var mediaKinds = map[string]string{
	"Image":         KindImage,
	"RedditVideo":   KindVideo,
	"AnimatedImage": KindGIF,
}

var (
	// hostedMediaPattern matches Markdown paragraphs that embed a Reddit-hosted
	// media URL (preview.redd.it, i.redd.it, or a reddit.com/link permalink).
	hostedMediaPattern = regexp.MustCompile(
		`\n\n!?(\[.*?\])?\(?https://((preview|i)\.redd\.it|reddit\.com/link)`)

	// assetPlaceholderPattern matches paragraphs that consist of a bare asset
	// token with an optional quoted caption, e.g. `\n\nabc123 "a caption"`.
	assetPlaceholderPattern = regexp.MustCompile(
		`\n\n!?(\[.*?\])?\(?([a-zA-Z0-9]+)( ".*?")?\)?`)
)

// ContainsInlineMedia reports whether a Markdown body carries inline-media
// markup and therefore must be submitted through the rich-text path.
// Go's regexp has no negative lookahead, so the upstream single-pattern check
// is split in two: hosted media URLs, then bare asset tokens with anything
// starting in "https" excluded so arbitrary links do not count.
func ContainsInlineMedia(body string) bool {
	if hostedMediaPattern.MatchString(body) {
		return true
	}
	for _, m := range assetPlaceholderPattern.FindAllStringSubmatch(body, -1) {
		if !strings.HasPrefix(m[2], "https") {
			return true
		}
	}
	return false
}

// Document is a parsed fancypants rich-text document: an object whose
// "document" key holds the ordered block elements. It is mutated in place by
// Reconcile and serialized back verbatim, preserving any fields this package
// does not interpret.
type Document map[string]any

// Parse decodes raw fancypants JSON into a Document.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rich-text document: %w", err)
	}
	return doc, nil
}

// Encode serializes the document back to wire JSON.
func (d Document) Encode() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rich-text document: %w", err)
	}
	return data, nil
}

// Reconcile rewrites link elements that refer to known inline-media assets
// into typed media leaves, preserving captions. media is the entity's
// media_metadata mapping; a nil or empty map makes Reconcile a no-op.
//
// Links whose URL contains no known asset ID are left untouched: media
// created outside the tracked upload flow (external images, arbitrary links)
// is expected to stay a plain link. Reconcile mutates doc in place and never
// reorders or resizes the block sequence.
//
// Running Reconcile twice on an already-reconciled document is not supported;
// rewritten leaves carry string content and no longer have link items to scan.
func Reconcile(doc Document, media map[string]*types.MediaDescriptor) error {
	if len(media) == 0 {
		return nil
	}

	kinds := make(map[string]string, len(media))
	for id, descriptor := range media {
		if descriptor == nil {
			return &UnknownMediaKindError{MediaID: id}
		}
		kind, ok := mediaKinds[descriptor.Kind]
		if !ok {
			return &UnknownMediaKindError{MediaID: id, Kind: descriptor.Kind}
		}
		kinds[id] = kind
	}

	blocks, ok := doc["document"].([]any)
	if !ok {
		return &SchemaError{Detail: "document is not an array of block elements"}
	}

	// Walk a snapshot so replacing blocks[i] cannot perturb the traversal.
	snapshot := make([]any, len(blocks))
	copy(snapshot, blocks)

	for i, raw := range snapshot {
		block, ok := raw.(map[string]any)
		if !ok {
			return &SchemaError{Detail: fmt.Sprintf("block %d is not an object", i)}
		}

		content := block["c"]
		if _, isLeaf := content.(string); isLeaf {
			// String content marks an inline-media leaf, terminal by contract.
			kind, _ := block["e"].(string)
			if kind != KindImage && kind != KindVideo && kind != KindGIF {
				return &SchemaError{Detail: fmt.Sprintf("unexpected leaf kind %q in block %d", kind, i)}
			}
			continue
		}
		if content == nil {
			// Elements without inline content, e.g. a horizontal rule.
			continue
		}

		items, ok := content.([]any)
		if !ok {
			return &SchemaError{Detail: fmt.Sprintf("block %d content is neither text nor an item array", i)}
		}

		for _, rawItem := range items {
			item, ok := rawItem.(map[string]any)
			if !ok {
				continue
			}
			if kind, _ := item["e"].(string); kind != "link" {
				continue
			}
			linkURL, _ := item["u"].(string)
			id, matched := matchMediaID(linkURL, kinds)
			if !matched {
				continue
			}

			leaf := map[string]any{"e": kinds[id], "id": id}
			if text, ok := item["t"].(string); ok && text != linkURL {
				leaf["c"] = text // display text differs from the URL: keep it as the caption
			}
			blocks[i] = leaf
		}
	}

	return nil
}

// matchMediaID reports which known asset ID a link URL refers to. The ID is
// expected to appear verbatim as a host or path token once the scheme and any
// query string are stripped. If several tokens happen to match, any one may be
// chosen; the upstream encoding does not disambiguate further.
func matchMediaID(linkURL string, known map[string]string) (string, bool) {
	if i := strings.Index(linkURL, "://"); i >= 0 {
		linkURL = linkURL[i+len("://"):]
	}
	if i := strings.IndexByte(linkURL, '?'); i >= 0 {
		linkURL = linkURL[:i]
	}

	tokens := strings.FieldsFunc(linkURL, func(r rune) bool {
		return r == '.' || r == '/'
	})
	for _, token := range tokens {
		if _, ok := known[token]; ok {
			return token, true
		}
	}
	return "", false
}

// SchemaError indicates the rich-text document deviates from the schema this
// package understands. It points at an upstream format change and is worth a
// bug report.
type SchemaError struct {
	// Detail describes where the document diverged from the expected shape.
	Detail string
}

func (e *SchemaError) Error() string {
	return "unexpected rich-text schema: " + e.Detail
}

// UnknownMediaKindError indicates a media_metadata descriptor carried a kind
// outside the closed Image/RedditVideo/AnimatedImage set.
type UnknownMediaKindError struct {
	MediaID string
	Kind    string
}

func (e *UnknownMediaKindError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("media %q has no kind descriptor", e.MediaID)
	}
	return fmt.Sprintf("unknown media kind %q for media %q", e.Kind, e.MediaID)
}
