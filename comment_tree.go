package snoo

import "github.com/go-snoo/snoo/pkg/types"

// CommentTree navigates a parsed comment tree, e.g. to locate one's own
// comment before editing or deleting it.
type CommentTree struct {
	roots []*types.Comment
}

// NewCommentTree wraps top-level comments (with their parsed replies) in a
// navigable tree.
func NewCommentTree(comments []*types.Comment) *CommentTree {
	return &CommentTree{roots: comments}
}

// TopLevel returns the root comments.
func (t *CommentTree) TopLevel() []*types.Comment {
	return t.roots
}

// Walk applies fn to every comment in depth-first order, passing its nesting
// depth (0 for top-level comments).
func (t *CommentTree) Walk(fn func(*types.Comment, int)) {
	walkComments(t.roots, 0, fn)
}

func walkComments(comments []*types.Comment, depth int, fn func(*types.Comment, int)) {
	for _, comment := range comments {
		if comment == nil {
			continue
		}
		fn(comment, depth)
		walkComments(comment.Replies, depth+1, fn)
	}
}

// Flatten returns every comment in the tree in depth-first order.
func (t *CommentTree) Flatten() []*types.Comment {
	var result []*types.Comment
	t.Walk(func(c *types.Comment, _ int) {
		result = append(result, c)
	})
	return result
}

// Find returns the first comment matching the condition, or nil.
func (t *CommentTree) Find(match func(*types.Comment) bool) *types.Comment {
	var found *types.Comment
	t.Walk(func(c *types.Comment, _ int) {
		if found == nil && match(c) {
			found = c
		}
	})
	return found
}

// ByID returns the comment with the given (unprefixed) ID, or nil.
func (t *CommentTree) ByID(id string) *types.Comment {
	return t.Find(func(c *types.Comment) bool { return c.ID == id })
}

// ByAuthor returns all comments written by the given author.
func (t *CommentTree) ByAuthor(author string) []*types.Comment {
	var result []*types.Comment
	t.Walk(func(c *types.Comment, _ int) {
		if c.Author == author {
			result = append(result, c)
		}
	})
	return result
}

// Count returns the number of comments in the tree.
func (t *CommentTree) Count() int {
	count := 0
	t.Walk(func(*types.Comment, int) { count++ })
	return count
}

// Depth returns the maximum reply nesting depth; 0 for a tree with only
// top-level comments.
func (t *CommentTree) Depth() int {
	max := 0
	t.Walk(func(_ *types.Comment, depth int) {
		if depth > max {
			max = depth
		}
	})
	return max
}
