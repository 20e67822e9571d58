package bot

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	summaryPrefix   = "[JiraBot] "
	summaryMaxRunes = 100
	taskIssueType   = "Bug"
	emptySummary    = "New task from chat"
)

// TaskSummary is the first line of the message, cut to 100 runes.
func TaskSummary(text string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	first = strings.TrimSpace(first)
	if r := []rune(first); len(r) > summaryMaxRunes {
		first = string(r[:summaryMaxRunes])
	}
	if first == "" {
		first = emptySummary
	}
	return summaryPrefix + first
}

// MessageLink points at a message inside a supergroup topic. Supergroup
// ids carry a -100 prefix that t.me links omit.
func MessageLink(chatID int64, threadID, messageID int) string {
	id := strings.TrimPrefix(strconv.FormatInt(chatID, 10), "-100")
	return fmt.Sprintf("https://t.me/c/%s/%d/%d", id, threadID, messageID)
}

func TaskDescription(text string, m Meta) string {
	caller := "Caller user: "
	if m.Requester.Username != "" {
		caller += "@" + m.Requester.Username + " "
	}
	caller += "(" + strings.TrimSpace(m.FirstName+" "+m.LastName) + ")"

	lines := []string{}
	if t := strings.TrimSpace(text); t != "" {
		lines = append(lines, t)
	}
	lines = append(lines,
		"Created by bot from: "+MessageLink(m.ChatID, m.ThreadID, m.MessageID),
		caller,
	)
	return strings.Join(lines, "\n")
}
