package report_test

import (
	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/report"
	"github.com/frahmantamala/tracker-bot/internal/tracker"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Aggregation", func() {
	var issues []tracker.Issue

	BeforeEach(func() {
		issues = []tracker.Issue{
			{
				ID: "10", Key: "PROJ-1", ProjectKey: "PROJ", Summary: "Login",
				Worklogs: []tracker.Worklog{
					worklog("acc-a", "Alice", 3600, day("2024-01-02")),
					worklog("acc-b", "bob", 1800, day("2024-01-03")),
					worklog("acc-a", "Alice", 1800, day("2024-01-01")),
				},
			},
			{
				ID: "11", Key: "OPS-4", ProjectKey: "OPS", Summary: "Deploy",
				Worklogs: []tracker.Worklog{
					worklog("acc-a", "Alice A.", 7200, day("2024-01-05")),
				},
			},
		}
	})

	Describe("SummarizeByUser", func() {
		It("sums per account and sorts by name", func() {
			users := report.SummarizeByUser(issues)

			Expect(users).To(HaveLen(2))
			Expect(users[0].AccountID).To(Equal("acc-a"))
			Expect(users[0].TotalSeconds).To(Equal(int64(12600)))
			Expect(users[1].DisplayName).To(Equal("bob"))
			Expect(users[1].TotalSeconds).To(Equal(int64(1800)))
		})

		It("attributes a user to the latest worklog's project and name", func() {
			users := report.SummarizeByUser(issues)

			Expect(users[0].ProjectKey).To(Equal("OPS"))
			Expect(users[0].DisplayName).To(Equal("Alice A."))
		})

		It("does not depend on input order", func() {
			reversed := []tracker.Issue{issues[1], issues[0]}
			reversed[1].Worklogs = []tracker.Worklog{
				issues[0].Worklogs[2], issues[0].Worklogs[0], issues[0].Worklogs[1],
			}

			Expect(report.SummarizeByUser(reversed)).To(Equal(report.SummarizeByUser(issues)))
		})

		It("falls back to the display name when the account id is missing", func() {
			users := report.SummarizeByUser([]tracker.Issue{{
				Key: "PROJ-2",
				Worklogs: []tracker.Worklog{
					worklog("", "Ghost", 60, day("2024-01-01")),
					worklog("", "Ghost", 60, day("2024-01-02")),
				},
			}})

			Expect(users).To(HaveLen(1))
			Expect(users[0].AccountID).To(Equal("Ghost"))
			Expect(users[0].TotalSeconds).To(Equal(int64(120)))
		})
	})

	Describe("DetailByIssueAuthor", func() {
		It("groups by issue and author with a chronological trail", func() {
			rows := report.DetailByIssueAuthor(issues)

			Expect(rows).To(HaveLen(3))
			Expect(rows[0].Issue.Key).To(Equal("PROJ-1"))
			Expect(rows[0].AuthorDisplayName).To(Equal("Alice"))
			Expect(rows[0].TotalSeconds).To(Equal(int64(5400)))
			Expect(rows[0].Trail).To(HaveLen(2))
			Expect(rows[0].Trail[0].CreatedAt).To(Equal(day("2024-01-01")))
			Expect(rows[1].AuthorDisplayName).To(Equal("bob"))
			Expect(rows[2].Issue.Key).To(Equal("OPS-4"))
		})

		It("keeps the total per issue equal to the sum of its worklogs", func() {
			var fromRows, fromWorklogs int64
			for _, r := range report.DetailByIssueAuthor(issues) {
				fromRows += r.TotalSeconds
			}
			for _, i := range issues {
				for _, w := range i.Worklogs {
					fromWorklogs += w.TimeSpentSeconds
				}
			}
			Expect(fromRows).To(Equal(fromWorklogs))
		})
	})

	Describe("FilterVisible", func() {
		var policy *access.Policy

		BeforeEach(func() {
			policy, _ = access.ParsePolicy(access.RawPolicy{
				SuperAdmins:           "root",
				AvailabilityByKeys:    "PROJ:alice",
				RelationByNameOrEmail: "alice:Alice:Alice A.",
			})
		})

		It("shows only the requester's own worklogs", func() {
			ac := access.Evaluate(access.RequesterIdentity{ID: "1", Username: "alice"}, policy)

			out := report.FilterVisible(issues, ac)

			Expect(out).To(HaveLen(2))
			Expect(out[0].Worklogs).To(HaveLen(2))
			for _, w := range out[0].Worklogs {
				Expect(w.AuthorAccountID).To(Equal("acc-a"))
			}
		})

		It("shows nothing to a requester without relations", func() {
			ac := access.Evaluate(access.RequesterIdentity{ID: "2", Username: "mallory"}, policy)
			Expect(report.FilterVisible(issues, ac)).To(BeEmpty())
		})

		It("shows everything to super admins", func() {
			ac := access.Evaluate(access.RequesterIdentity{ID: "3", Username: "root"}, policy)
			Expect(report.FilterVisible(issues, ac)).To(Equal(issues))
		})
	})
})
