package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelcast/internal/store"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect content logs",
	}
	logsCmd.AddCommand(newLogsListCommand(ctx))
	logsCmd.AddCommand(newLogsResetCommand(ctx))
	return logsCmd
}

// logView is the JSON shape of a content log.
type logView struct {
	ID             int64            `json:"id"`
	ItemID         int64            `json:"item_id"`
	Status         store.LogStatus  `json:"status"`
	Artifacts      map[string]int64 `json:"artifacts"`
	ErrorKind      string           `json:"error_kind,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	ProcessingTime time.Duration    `json:"processing_time"`
	RunID          string           `json:"run_id"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func newLogView(l *store.ContentLog) logView {
	artifacts := make(map[string]int64, len(l.ArtifactIDs))
	for stage, id := range l.ArtifactIDs {
		artifacts[string(stage)] = id
	}
	return logView{
		ID:             l.ID,
		ItemID:         l.ItemID,
		Status:         l.Status,
		Artifacts:      artifacts,
		ErrorKind:      l.ErrorKind,
		ErrorMessage:   l.ErrorMessage,
		ProcessingTime: l.ProcessingTime,
		RunID:          l.RunID,
		UpdatedAt:      l.UpdatedAt,
	}
}

func newLogsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var runID string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List content logs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.LogFilter{RunID: strings.TrimSpace(runID), Limit: limit}
			for _, s := range statuses {
				filter.Statuses = append(filter.Statuses, store.LogStatus(strings.ToLower(strings.TrimSpace(s))))
			}
			return ctx.withStore(func(st *store.Store) error {
				logs, err := st.ListLogs(cmd.Context(), filter)
				if err != nil {
					return err
				}
				views := make([]logView, 0, len(logs))
				for _, l := range logs {
					views = append(views, newLogView(l))
				}
				return ctx.emit(cmd, views, func() error {
					out := cmd.OutOrStdout()
					if len(views) == 0 {
						fmt.Fprintln(out, "No content logs")
						return nil
					}
					fmt.Fprintln(out, renderLogsTable(views))
					return nil
				})
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (processing, completed, failed)")
	cmd.Flags().StringVar(&runID, "run", "", "Filter by run id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum logs to list")
	return cmd
}

func renderLogsTable(views []logView) string {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		detail := ""
		if v.ErrorMessage != "" {
			detail = v.ErrorKind + ": " + v.ErrorMessage
		}
		rows = append(rows, []string{
			strconv.FormatInt(v.ID, 10),
			strconv.FormatInt(v.ItemID, 10),
			string(v.Status),
			strconv.Itoa(len(v.Artifacts)) + "/" + strconv.Itoa(len(store.Stages())),
			v.ProcessingTime.Round(time.Millisecond).String(),
			formatTimestamp(v.UpdatedAt),
			truncate(detail, 48),
		})
	}
	return renderTable(
		[]string{"ID", "Item", "Status", "Stages", "Time", "Updated", "Error"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignRight},
	)
}

func newLogsResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <item-id>",
		Short: "Delete an item's terminal content log so the item is processed again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || itemID <= 0 {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			return ctx.withStore(func(st *store.Store) error {
				return resetLog(cmd.Context(), st, itemID, cmd)
			})
		},
	}
}

func resetLog(ctx context.Context, st *store.Store, itemID int64, cmd *cobra.Command) error {
	removed, err := st.DeleteTerminalLog(ctx, itemID)
	if err != nil {
		return fmt.Errorf("reset item %d: %w", itemID, err)
	}
	out := cmd.OutOrStdout()
	if !removed {
		fmt.Fprintf(out, "Item %d has no terminal content log\n", itemID)
		return nil
	}
	fmt.Fprintf(out, "Item %d reset; it is eligible for the next run\n", itemID)
	return nil
}
