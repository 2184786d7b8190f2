package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/go-snoo/snoo"
	"github.com/go-snoo/snoo/pkg/types"
)

func main() {
	clientID := os.Getenv("REDDIT_CLIENT_ID")
	clientSecret := os.Getenv("REDDIT_CLIENT_SECRET")
	username := os.Getenv("REDDIT_USERNAME")
	password := os.Getenv("REDDIT_PASSWORD")

	if clientID == "" || clientSecret == "" {
		log.Fatal("REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET environment variables are required")
	}

	// Route structured logs to stdout; adjust the level as needed.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	client, err := snoo.NewClient(&snoo.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Username:     username,
		Password:     password,
		UserAgent:    "example-bot/1.0 by YourUsername",
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect to Reddit: %v", err)
	}
	fmt.Println("Successfully connected to Reddit!")

	if username != "" && password != "" {
		me, err := client.Me(ctx)
		if err != nil {
			log.Printf("Failed to get user info: %v", err)
		} else {
			fmt.Printf("Authenticated as user: %s\n", me.Name)
		}
	}

	// Browse r/golang.
	hot, err := client.GetHot(ctx, &types.PostsRequest{
		Subreddit:  "golang",
		Pagination: types.Pagination{Limit: 5},
	})
	if err != nil {
		log.Fatalf("Failed to get hot posts: %v", err)
	}
	fmt.Println("\nHot posts from r/golang:")
	for i, post := range hot.Posts {
		fmt.Printf("%d. %s (score: %d, comments: %d)\n",
			i+1, post.Title, post.Score, post.NumComments)
	}

	if len(hot.Posts) == 0 {
		return
	}

	// Load the comment tree for the first post and walk it.
	comments, err := client.GetComments(ctx, &types.CommentsRequest{
		Subreddit:  "golang",
		PostID:     hot.Posts[0].ID,
		Pagination: types.Pagination{Limit: 25},
	})
	if err != nil {
		log.Fatalf("Failed to get comments: %v", err)
	}
	if comments.Post != nil {
		fmt.Printf("\nComments for post: %s\n", comments.Post.Title)
	}

	tree := snoo.NewCommentTree(comments.Comments)
	fmt.Printf("Loaded %d comments, max depth %d\n", tree.Count(), tree.Depth())
	tree.Walk(func(c *types.Comment, depth int) {
		if depth <= 1 {
			fmt.Printf("  %*s- %s: %.80s\n", depth*2, "", c.Author, c.Body)
		}
	})

	// Expand truncated replies, if any.
	if len(comments.MoreIDs) > 0 {
		batch := comments.MoreIDs
		if len(batch) > 10 {
			batch = batch[:10]
		}
		more, err := client.GetMoreComments(ctx, &types.MoreCommentsRequest{
			LinkID:     hot.Posts[0].ID,
			CommentIDs: batch,
			Sort:       "confidence",
		})
		if err != nil {
			log.Printf("Failed to load more comments: %v", err)
		} else {
			fmt.Printf("Loaded %d additional comments\n", len(more))
		}
	}

	// Edit one of the authenticated user's own comments, keeping any inline
	// media it carries intact.
	if username != "" {
		if mine := tree.ByAuthor(username); len(mine) > 0 {
			comment := mine[0]
			newBody := comment.Body + "\n\nEdit: updated from the example program."

			updated, err := client.EditComment(ctx, comment, newBody, &types.EditOptions{
				PreserveInlineMedia: true,
			})
			if err != nil {
				log.Printf("Failed to edit comment: %v", err)
			} else {
				fmt.Printf("\nEdited comment %s (edited at %.0f)\n",
					updated.Name, updated.Edited.Timestamp)
			}
		}
	}
}
