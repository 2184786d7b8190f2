package internal

import (
	"fmt"
	"strings"

	pkgerrs "github.com/go-snoo/snoo/pkg/errors"
	"github.com/go-snoo/snoo/pkg/types"
)

const (
	minSubredditLength = 3
	maxSubredditLength = 21

	maxPaginationLimit = 100

	maxCommentIDs = 100
	maxIDLength   = 100

	maxUserAgentLength = 256
)

// fullnamePrefixes are the type tags a fullname may carry.
var fullnamePrefixes = map[string]bool{
	"t1": true, // comment
	"t2": true, // account
	"t3": true, // link
	"t4": true, // message
	"t5": true, // subreddit
	"t6": true, // award
}

// Validator checks request parameters against Reddit's documented limits
// before anything goes on the wire.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateSubredditName checks a subreddit name against Reddit's naming rules.
func (v *Validator) ValidateSubredditName(name string) error {
	if name == "" {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: "subreddit name cannot be empty"}
	}
	if len(name) < minSubredditLength {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("subreddit name must be at least %d characters", minSubredditLength)}
	}
	if len(name) > maxSubredditLength {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("subreddit name cannot exceed %d characters", maxSubredditLength)}
	}
	if name[0] == '_' || name[len(name)-1] == '_' {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: "subreddit name cannot start or end with underscore"}
	}

	prevWasUnderscore := false
	for i, ch := range name {
		if !isAlphanumeric(ch) && ch != '_' {
			return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("subreddit name contains invalid character %q at position %d", ch, i)}
		}
		if ch == '_' {
			if prevWasUnderscore {
				return &pkgerrs.ConfigError{Field: "subreddit", Message: "subreddit name cannot contain consecutive underscores"}
			}
			prevWasUnderscore = true
		} else {
			prevWasUnderscore = false
		}
	}
	return nil
}

// ValidateFullname checks the "<type>_<base36 id>" format used to target
// things in edit and delete requests.
func (v *Validator) ValidateFullname(fullname string) error {
	if fullname == "" {
		return &pkgerrs.ConfigError{Field: "fullname", Message: "fullname cannot be empty"}
	}

	prefix, id, found := strings.Cut(fullname, "_")
	if !found || !fullnamePrefixes[prefix] {
		return &pkgerrs.ConfigError{Field: "fullname", Message: fmt.Sprintf("fullname %q must start with a type prefix like t1_ or t3_", fullname)}
	}
	if err := validateThingID(id); err != nil {
		return &pkgerrs.ConfigError{Field: "fullname", Message: err.Error()}
	}
	return nil
}

// ValidatePagination checks listing cursor parameters.
func (v *Validator) ValidatePagination(pagination *types.Pagination) error {
	if pagination == nil {
		return nil
	}
	if pagination.After != "" && pagination.Before != "" {
		return &pkgerrs.ConfigError{Field: "pagination", Message: "cannot set both After and Before"}
	}
	if pagination.Limit < 0 {
		return &pkgerrs.ConfigError{Field: "pagination.Limit", Message: "limit cannot be negative"}
	}
	if pagination.Limit > maxPaginationLimit {
		return &pkgerrs.ConfigError{Field: "pagination.Limit", Message: fmt.Sprintf("limit cannot exceed %d", maxPaginationLimit)}
	}
	return nil
}

// ValidateCommentIDs checks a morechildren ID batch against API limits.
func (v *Validator) ValidateCommentIDs(ids []string) error {
	if len(ids) > maxCommentIDs {
		return &pkgerrs.ConfigError{Field: "CommentIDs", Message: fmt.Sprintf("cannot request more than %d comment IDs at once (got %d)", maxCommentIDs, len(ids))}
	}
	for i, id := range ids {
		if err := validateThingID(id); err != nil {
			return &pkgerrs.ConfigError{
				Field:   fmt.Sprintf("CommentIDs[%d]", i),
				Message: err.Error(),
			}
		}
	}
	return nil
}

// ValidateUserAgent rejects User-Agent strings that could be used for header
// injection.
func (v *Validator) ValidateUserAgent(ua string) error {
	if ua == "" {
		return &pkgerrs.ConfigError{Field: "UserAgent", Message: "user agent cannot be empty"}
	}
	if strings.ContainsAny(ua, "\r\n") {
		return &pkgerrs.ConfigError{Field: "UserAgent", Message: "user agent cannot contain newline characters"}
	}
	if len(ua) > maxUserAgentLength {
		return &pkgerrs.ConfigError{Field: "UserAgent", Message: fmt.Sprintf("user agent too long (max %d characters)", maxUserAgentLength)}
	}
	return nil
}

// validateThingID checks one bare (unprefixed) base36 thing ID.
func validateThingID(id string) error {
	if id == "" {
		return fmt.Errorf("thing ID cannot be empty")
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("thing ID too long (max %d characters)", maxIDLength)
	}
	for _, ch := range id {
		if !isAlphanumeric(ch) {
			return fmt.Errorf("thing ID contains invalid character %q (only alphanumeric allowed)", ch)
		}
	}
	return nil
}

func isAlphanumeric(ch rune) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
