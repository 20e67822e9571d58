package report

import "github.com/frahmantamala/tracker-bot/internal/tracker"

// FilterWindow keeps worklogs created within [start, effective end], both
// ends inclusive, and drops issues left without worklogs. The input is not
// modified.
func FilterWindow(issues []tracker.Issue, sprint tracker.Sprint) []tracker.Issue {
	start, end := sprint.StartDate, sprint.EffectiveEnd()

	out := make([]tracker.Issue, 0, len(issues))
	for _, issue := range issues {
		var kept []tracker.Worklog
		for _, w := range issue.Worklogs {
			if w.CreatedAt.Before(start) || w.CreatedAt.After(end) {
				continue
			}
			kept = append(kept, w)
		}
		if len(kept) == 0 {
			continue
		}
		issue.Worklogs = kept
		out = append(out, issue)
	}
	return out
}
