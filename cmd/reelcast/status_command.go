package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelcast/internal/daemon"
	"reelcast/internal/preflight"
	"reelcast/internal/store"
	"reelcast/internal/unitaccess"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pipeline, scheduler, and interaction status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(access unitaccess.Access) error {
				status, err := access.Status(cmd.Context())
				if err != nil {
					return err
				}
				if probe {
					cfg, err := ctx.ensureConfig()
					if err != nil {
						return err
					}
					probeCtx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
					status.Preflight = append(status.Preflight, preflight.RunConnectivity(probeCtx, cfg)...)
					cancel()
				}
				return ctx.emit(cmd, status, func() error {
					out := cmd.OutOrStdout()
					for _, line := range statusLines(status, shouldColorize(out)) {
						fmt.Fprintln(out, line)
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "Also probe provider and platform endpoints")
	return cmd
}

func statusLines(status *daemon.Status, colorize bool) []string {
	var lines []string
	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	if status.Running {
		lines = append(lines, renderStatusLine("Reelcast", statusOK, fmt.Sprintf("Running (pid %d, since %s)", status.PID, formatTimestampPtr(status.StartedAt)), colorize))
	} else {
		lines = append(lines, renderStatusLine("Reelcast", statusWarn, "Not running", colorize))
	}
	db := status.Database
	switch {
	case db.Error != "":
		lines = append(lines, renderStatusLine("Database", statusError, db.Error, colorize))
	case db.Integrity != "" && db.Integrity != "ok":
		lines = append(lines, renderStatusLine("Database", statusError, "integrity "+db.Integrity, colorize))
	default:
		lines = append(lines, renderStatusLine("Database", statusOK, fmt.Sprintf("%s (schema %d)", db.Path, db.SchemaVersion), colorize))
	}

	wf := status.Workflow
	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Pipeline", colorize)...)
	if wf.Running {
		lines = append(lines, renderStatusLine("Run", statusInfo, "In progress", colorize))
	}
	if run := wf.LastRun; run != nil {
		kind := statusOK
		if run.Failed > 0 || run.Interrupted {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine("Last run", kind, fmt.Sprintf("%s: %d processed, %d completed, %d failed, %d units scheduled",
			formatTimestamp(run.FinishedAt), run.Processed, run.Completed, run.Failed, run.Scheduled), colorize))
	} else {
		lines = append(lines, renderStatusLine("Last run", statusInfo, "None", colorize))
	}
	if wf.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, wf.LastError, colorize))
	}
	lines = append(lines, renderStatusLine("Items", statusInfo, fmt.Sprintf("%d", wf.Stats.Items), colorize))
	lines = append(lines, renderStatusLine("Content logs", statusInfo, countsText(logCounts(wf.Stats)), colorize))
	lines = append(lines, renderStatusLine("Units", statusInfo, countsText(unitCounts(wf.Stats)), colorize))
	lines = append(lines, stageHealthLines(wf.StageHealth, colorize)...)

	if s := status.Scheduler; s != nil {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Scheduler", colorize)...)
		lines = append(lines, renderStatusLine("Dispatch loop", loopKind(s.Running), fmt.Sprintf("running %s, last tick %s", yesNo(s.Running), formatTimestampPtr(s.LastTick)), colorize))
		lines = append(lines, renderStatusLine("Dispatched", statusInfo, fmt.Sprintf("%d published, %d failed", s.Dispatched, s.Failed), colorize))
		if len(s.Upcoming) > 0 {
			lines = append(lines, renderStatusLine("Next slot", statusInfo, formatTimestamp(s.Upcoming[0]), colorize))
		}
	}

	if m := status.Interaction; m != nil {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Interactions", colorize)...)
		if !m.Enabled {
			lines = append(lines, renderStatusLine("Monitor", statusWarn, "Disabled", colorize))
		} else {
			lines = append(lines, renderStatusLine("Monitor", loopKind(m.Running), fmt.Sprintf("running %s, last poll %s", yesNo(m.Running), formatTimestampPtr(m.LastPoll)), colorize))
		}
		lines = append(lines, renderStatusLine("Replies this hour", statusInfo, quotaText(m.RepliesThisHour, m.RepliesPerHour), colorize))
	}

	if len(status.Preflight) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Preflight", colorize)...)
		lines = append(lines, preflightLines(status.Preflight, colorize)...)
	}
	return lines
}

func loopKind(running bool) statusKind {
	if running {
		return statusOK
	}
	return statusWarn
}

func logCounts(stats store.Stats) map[string]int {
	out := make(map[string]int, len(stats.Logs))
	for k, v := range stats.Logs {
		out[string(k)] = v
	}
	return out
}

func unitCounts(stats store.Stats) map[string]int {
	out := make(map[string]int, len(stats.Units))
	for k, v := range stats.Units {
		out[string(k)] = v
	}
	return out
}

func countsText(counts map[string]int) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}

func quotaText(used map[string]int, limit int) string {
	if len(used) == 0 {
		return fmt.Sprintf("0/%d", limit)
	}
	keys := make([]string, 0, len(used))
	for k := range used {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d/%d", k, used[k], limit))
	}
	return strings.Join(parts, ", ")
}
