package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelcast/internal/daemon"
	"reelcast/internal/unitaccess"
)

func newUnitsCommand(ctx *commandContext) *cobra.Command {
	unitsCmd := &cobra.Command{
		Use:   "units",
		Short: "Inspect and requeue scheduled publication units",
	}
	unitsCmd.AddCommand(newUnitsListCommand(ctx))
	unitsCmd.AddCommand(newUnitsRequeueCommand(ctx))
	return unitsCmd
}

func newUnitsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled units, newest slot first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(access unitaccess.Access) error {
				units, err := access.Units(cmd.Context(), statuses, limit)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, units, func() error {
					out := cmd.OutOrStdout()
					if len(units) == 0 {
						fmt.Fprintln(out, "No units")
						return nil
					}
					fmt.Fprintln(out, renderUnitsTable(units))
					return nil
				})
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (scheduled, published, failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum units to list")
	return cmd
}

func renderUnitsTable(units []daemon.UnitView) string {
	rows := make([][]string, 0, len(units))
	for _, u := range units {
		detail := u.PublishedURL
		if u.ErrorMessage != "" {
			detail = strings.TrimSpace(u.ErrorKind + ": " + u.ErrorMessage)
		}
		rows = append(rows, []string{
			strconv.FormatInt(u.ID, 10),
			strconv.FormatInt(u.ItemID, 10),
			u.Platform,
			formatTimestamp(u.ScheduledTime),
			string(u.Status),
			truncate(u.Title, 40),
			truncate(detail, 48),
		})
	}
	return renderTable(
		[]string{"ID", "Item", "Platform", "Slot", "Status", "Title", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignRight},
	)
}

func newUnitsRequeueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <unit-id>",
		Short: "Schedule a failed unit again in the next free slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid unit id %q", args[0])
			}
			return ctx.withAccess(cmd.Context(), func(access unitaccess.Access) error {
				unit, err := access.Requeue(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("requeue unit %d: %w", id, err)
				}
				return ctx.emit(cmd, unit, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Unit %d requeued as unit %d on %s at %s\n",
						id, unit.ID, unit.Platform, formatTimestamp(unit.ScheduledTime))
					return nil
				})
			})
		},
	}
}
