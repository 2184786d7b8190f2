// Package snoo is a Go client for the Reddit API with first-class support
// for editing posts and comments, including bodies that embed inline media.
//
// The client authenticates through OAuth2 and supports the script
// (username/password), web (authorization code), application-only, and
// implicit flows. Requests are rate limited client-side and honor Reddit's
// rate-limit response headers.
//
// Basic usage:
//
//	client, err := snoo.NewClient(&snoo.Config{
//		ClientID:     "your-client-id",
//		ClientSecret: "your-client-secret",
//		Username:     "your-username",
//		Password:     "your-password",
//		UserAgent:    "script:myapp:1.0 by /u/you",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	posts, err := client.GetHot(ctx, &types.PostsRequest{Subreddit: "golang"})
//
// Editing preserves inline media on request:
//
//	_, err = client.EditComment(ctx, comment, newBody, &types.EditOptions{
//		PreserveInlineMedia: true,
//	})
//
// When a body embeds inline media, the edit is routed through Reddit's
// rich-text format: the body is converted remotely, links that refer to the
// entity's existing media attachments are reconciled back into typed media
// elements (see package pkg/richtext), and the resulting document is
// submitted in place of plain text.
package snoo
