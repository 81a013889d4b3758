package common

import (
	"fmt"
	"strings"
	"time"

	"guildbot/models"
)

// FormatDiscordTimestamp formats a time as a Discord timestamp that displays in user's local timezone
// Format types: "t" = short time, "T" = long time, "d" = short date, "D" = long date,
// "f" = short date/time, "F" = long date/time, "R" = relative time
func FormatDiscordTimestamp(t time.Time, format string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), format)
}

// FormatQueueList renders active queues with their member counts
func FormatQueueList(summaries []*models.QueueSummary) string {
	if len(summaries) == 0 {
		return "There are no open queues."
	}

	var b strings.Builder
	b.WriteString("**Queues**\n")
	for _, summary := range summaries {
		icon := "🟢"
		if summary.Queue.IsLocked {
			icon = "🔒"
		}
		fmt.Fprintf(&b, "%s **%s** (%d)", icon, summary.Queue.Name, summary.MemberCount)
		if summary.Queue.Description != "" {
			fmt.Fprintf(&b, ": %s", summary.Queue.Description)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
