package report_test

import (
	"time"

	"github.com/frahmantamala/tracker-bot/internal/report"
	"github.com/frahmantamala/tracker-bot/internal/tracker"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FilterWindow", func() {
	var sprint tracker.Sprint

	BeforeEach(func() {
		sprint = tracker.Sprint{
			ID:        7,
			Name:      "Sprint 7",
			StartDate: day("2024-01-01"),
			EndDate:   day("2024-01-14"),
		}
	})

	It("keeps worklogs on both boundaries", func() {
		issues := []tracker.Issue{{
			ID: "1", Key: "PROJ-1",
			Worklogs: []tracker.Worklog{
				worklog("a", "Alice", 60, day("2024-01-01")),
				worklog("a", "Alice", 60, day("2024-01-14")),
				worklog("a", "Alice", 60, day("2023-12-31")),
				worklog("a", "Alice", 60, day("2024-01-14").Add(time.Second)),
			},
		}}

		out := report.FilterWindow(issues, sprint)

		Expect(out).To(HaveLen(1))
		Expect(out[0].Worklogs).To(HaveLen(2))
	})

	It("drops issues left without worklogs and leaves the input untouched", func() {
		issues := []tracker.Issue{
			{ID: "1", Key: "PROJ-1", Worklogs: []tracker.Worklog{worklog("a", "Alice", 60, day("2024-02-01"))}},
			{ID: "2", Key: "PROJ-2"},
		}

		Expect(report.FilterWindow(issues, sprint)).To(BeEmpty())
		Expect(issues[0].Worklogs).To(HaveLen(1))
	})

	It("ends at the completion date when the sprint closed early", func() {
		completed := day("2024-01-10")
		sprint.CompleteDate = &completed
		issues := []tracker.Issue{{
			ID: "1", Key: "PROJ-1",
			Worklogs: []tracker.Worklog{
				worklog("a", "Alice", 60, day("2024-01-09")),
				worklog("a", "Alice", 60, day("2024-01-12")),
			},
		}}

		out := report.FilterWindow(issues, sprint)

		Expect(out).To(HaveLen(1))
		Expect(out[0].Worklogs).To(HaveLen(1))
		Expect(out[0].Worklogs[0].CreatedAt).To(Equal(day("2024-01-09")))
	})
})
