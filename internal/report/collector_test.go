package report_test

import (
	"context"
	"fmt"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/report"
	"github.com/frahmantamala/tracker-bot/internal/tracker"
	"github.com/frahmantamala/tracker-bot/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func sprintIssues(n int) []tracker.Issue {
	issues := make([]tracker.Issue, n)
	for i := range issues {
		issues[i] = tracker.Issue{
			ID:  fmt.Sprint(100 + i),
			Key: fmt.Sprintf("PROJ-%d", i+1),
		}
	}
	return issues
}

var _ = Describe("Collector", func() {
	var (
		ctx  context.Context
		fake *FakeTracker
		c    *report.Collector
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = NewFakeTracker()
		c = report.NewCollector(fake, 2, logger.Discard())
	})

	It("pages until the total is reached without duplicates", func() {
		fake.Issues = sprintIssues(5)

		issues, err := c.Collect(ctx, 7)

		Expect(err).NotTo(HaveOccurred())
		Expect(issues).To(HaveLen(5))
		Expect(fake.Offsets).To(Equal([]int{0, 2, 4}))
	})

	It("stops after an exact last page", func() {
		fake.Issues = sprintIssues(4)

		issues, err := c.Collect(ctx, 7)

		Expect(err).NotTo(HaveOccurred())
		Expect(issues).To(HaveLen(4))
		Expect(fake.Offsets).To(Equal([]int{0, 2}))
	})

	It("handles an empty sprint", func() {
		issues, err := c.Collect(ctx, 7)

		Expect(err).NotTo(HaveOccurred())
		Expect(issues).To(BeEmpty())
		Expect(fake.Offsets).To(Equal([]int{0}))
	})

	It("stops on a short page when the total overstates the sprint", func() {
		fake.Issues = sprintIssues(3)
		fake.ReportedTotal = 10

		issues, err := c.Collect(ctx, 7)

		Expect(err).NotTo(HaveOccurred())
		Expect(issues).To(HaveLen(3))
		Expect(fake.Offsets).To(Equal([]int{0, 2}))
	})

	It("stops on an empty page when the total overstates the sprint", func() {
		fake.Issues = sprintIssues(4)
		fake.ReportedTotal = 10

		issues, err := c.Collect(ctx, 7)

		Expect(err).NotTo(HaveOccurred())
		Expect(issues).To(HaveLen(4))
		Expect(fake.Offsets).To(Equal([]int{0, 2, 4}))
	})

	It("drops issues repeated across pages", func() {
		fake.Issues = sprintIssues(3)
		fake.Issues = append(fake.Issues, fake.Issues[0])

		issues, err := c.Collect(ctx, 7)

		Expect(err).NotTo(HaveOccurred())
		Expect(issues).To(HaveLen(3))
	})

	It("fails as a whole when a page fails", func() {
		fake.Issues = sprintIssues(5)
		fake.FailIssuesAt = 2

		issues, err := c.Collect(ctx, 7)

		Expect(issues).To(BeNil())
		Expect(err).To(MatchError(internal.ErrTrackerUnavailable))
	})

	It("refetches worklogs only for truncated issues", func() {
		fake.Issues = sprintIssues(2)
		fake.Issues[0].Worklogs = []tracker.Worklog{worklog("a", "Alice", 60, day("2024-01-02"))}
		fake.Issues[0].WorklogTotal = 3
		fake.Issues[1].Worklogs = []tracker.Worklog{worklog("b", "Bob", 60, day("2024-01-02"))}
		fake.Issues[1].WorklogTotal = 1
		fake.FullWorklogs["100"] = []tracker.Worklog{
			worklog("a", "Alice", 60, day("2024-01-02")),
			worklog("a", "Alice", 60, day("2024-01-03")),
			worklog("a", "Alice", 60, day("2024-01-04")),
		}

		issues, err := c.Collect(ctx, 7)

		Expect(err).NotTo(HaveOccurred())
		Expect(fake.WorklogCalls).To(Equal([]string{"100"}))
		Expect(issues[0].Worklogs).To(HaveLen(3))
		Expect(issues[1].Worklogs).To(HaveLen(1))
	})

	It("fails when a worklog refetch fails", func() {
		fake.Issues = sprintIssues(1)
		fake.Issues[0].WorklogTotal = 25
		fake.FailWorklogs = true

		_, err := c.Collect(ctx, 7)

		Expect(err).To(MatchError(internal.ErrTrackerUnavailable))
	})
})
