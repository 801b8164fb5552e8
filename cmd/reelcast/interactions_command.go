package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelcast/internal/store"
)

type interactionView struct {
	ID          int64             `json:"id"`
	Platform    string            `json:"platform"`
	UnitID      int64             `json:"unit_id"`
	CommentID   string            `json:"comment_id"`
	Author      string            `json:"author"`
	Text        string            `json:"text"`
	Sentiment   store.Sentiment   `json:"sentiment"`
	ReplyStatus store.ReplyStatus `json:"reply_status"`
	Response    string            `json:"response,omitempty"`
	RepliedAt   *time.Time        `json:"replied_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

func newInteractionsCommand(ctx *commandContext) *cobra.Command {
	interactionsCmd := &cobra.Command{
		Use:   "interactions",
		Short: "Inspect recorded comments and replies",
	}

	var platform string
	var sentiments []string
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded interactions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.InteractionFilter{Platform: strings.TrimSpace(platform), Limit: limit}
			for _, s := range sentiments {
				filter.Sentiments = append(filter.Sentiments, store.Sentiment(strings.ToLower(strings.TrimSpace(s))))
			}
			return ctx.withStore(func(st *store.Store) error {
				records, err := st.ListInteractions(cmd.Context(), filter)
				if err != nil {
					return err
				}
				views := make([]interactionView, 0, len(records))
				for _, r := range records {
					views = append(views, interactionView{
						ID:          r.ID,
						Platform:    r.Platform,
						UnitID:      r.UnitID,
						CommentID:   r.ExternalCommentID,
						Author:      r.Author,
						Text:        r.Text,
						Sentiment:   r.Sentiment,
						ReplyStatus: r.ReplyStatus,
						Response:    r.GeneratedResponse,
						RepliedAt:   r.RepliedAt,
						CreatedAt:   r.CreatedAt,
					})
				}
				return ctx.emit(cmd, views, func() error {
					out := cmd.OutOrStdout()
					if len(views) == 0 {
						fmt.Fprintln(out, "No interactions")
						return nil
					}
					rows := make([][]string, 0, len(views))
					for _, v := range views {
						rows = append(rows, []string{
							strconv.FormatInt(v.ID, 10),
							v.Platform,
							truncate(v.Author, 20),
							truncate(v.Text, 40),
							string(v.Sentiment),
							string(v.ReplyStatus),
							formatTimestamp(v.CreatedAt),
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"ID", "Platform", "Author", "Comment", "Sentiment", "Reply", "Seen"},
						rows,
						[]columnAlignment{alignRight},
					))
					return nil
				})
			})
		},
	}
	listCmd.Flags().StringVarP(&platform, "platform", "p", "", "Filter by platform")
	listCmd.Flags().StringSliceVar(&sentiments, "sentiment", nil, "Filter by sentiment")
	listCmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum interactions to list")

	interactionsCmd.AddCommand(listCmd)
	return interactionsCmd
}
