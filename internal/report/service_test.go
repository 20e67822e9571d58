package report_test

import (
	"context"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/core/events"
	"github.com/frahmantamala/tracker-bot/internal/report"
	"github.com/frahmantamala/tracker-bot/internal/tracker"
	"github.com/frahmantamala/tracker-bot/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		fake      *FakeTracker
		publisher *RecordingPublisher
		policy    *access.Policy
		svc       *report.Service
		admin     *access.Context
		member    *access.Context
		outsider  *access.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = NewFakeTracker()
		publisher = &RecordingPublisher{}

		var issues []access.ParseIssue
		policy, issues = access.ParsePolicy(access.RawPolicy{
			SuperAdmins:           "root",
			AvailabilityByKeys:    "PROJ:alice",
			RelationByNameOrEmail: "alice:X:x@example.com",
			CompensationRules:     "alice:{amount=10,currency=USD,type=hourly,key=PROJ}",
		})
		Expect(issues).To(BeEmpty())

		admin = access.Evaluate(access.RequesterIdentity{ID: "1", Username: "root"}, policy)
		member = access.Evaluate(access.RequesterIdentity{ID: "2", Username: "alice"}, policy)
		outsider = access.Evaluate(access.RequesterIdentity{ID: "3", Username: "mallory"}, policy)

		fake.Projects = []tracker.Project{{Key: "PROJ", Name: "Project"}, {Key: "OPS", Name: "Operations"}}
		fake.Boards["PROJ"] = []tracker.Board{{ID: 1, Name: "PROJ board", ProjectKey: "PROJ"}}
		fake.Sprints[7] = tracker.Sprint{
			ID: 7, Name: "Sprint 7", State: tracker.SprintClosed,
			StartDate: day("2024-01-01"), EndDate: day("2024-01-14"),
			OriginBoardID: 1,
		}
		fake.Issues = []tracker.Issue{{
			ID: "100", Key: "PROJ-1", ProjectKey: "PROJ", Summary: "Login", Status: "Done",
			TimeSpentSeconds: 7200,
			Worklogs: []tracker.Worklog{
				{ID: "a", AuthorAccountID: "acc-x", AuthorDisplayName: "X", AuthorEmail: "x@example.com", CreatedAt: day("2024-01-05"), TimeSpentSeconds: 3600},
				{ID: "b", AuthorAccountID: "acc-x", AuthorDisplayName: "X", AuthorEmail: "x@example.com", CreatedAt: day("2024-02-01"), TimeSpentSeconds: 3600},
			},
			WorklogTotal: 2,
		}}

		svc = report.NewService(fake, policy, publisher, 2, logger.Discard())
	})

	Describe("SprintReport", func() {
		It("counts only worklogs inside the sprint window", func() {
			rep, err := svc.SprintReport(ctx, admin, "PROJ", 7)

			Expect(err).NotTo(HaveOccurred())
			Expect(rep.IssueCount).To(Equal(1))
			Expect(rep.UserCount).To(Equal(1))

			users := lines(rep.Users.Data)
			Expect(users).To(HaveLen(2))
			Expect(users[1]).To(Equal(`X,"1",x@example.com,alice,10,USD,hourly,10`))

			issues := lines(rep.Issues.Data)
			Expect(issues).To(HaveLen(2))
			Expect(issues[1]).To(ContainSubstring("PROJ-1"))
			Expect(rep.Issues.Name).To(Equal("Sprint 7_2024-01-01_2024-01-14_sprint_issues.csv"))
		})

		It("lets a member see their own time and pay", func() {
			rep, err := svc.SprintReport(ctx, member, "proj", 7)

			Expect(err).NotTo(HaveOccurred())
			Expect(lines(rep.Users.Data)[1]).To(ContainSubstring("alice,10,USD"))
		})

		It("rejects requesters without project access", func() {
			_, err := svc.SprintReport(ctx, outsider, "PROJ", 7)

			Expect(err).To(MatchError(internal.ErrNoProjectAccess))
			Expect(publisher.Events).To(HaveLen(1))
			Expect(publisher.Events[0].EventType()).To(Equal(events.EventTypeReportFailed))
		})

		It("reports unknown sprints", func() {
			_, err := svc.SprintReport(ctx, admin, "PROJ", 99)
			Expect(err).To(MatchError(internal.ErrSprintNotFound))
		})

		It("rejects sprints of another project's board", func() {
			s := fake.Sprints[7]
			s.OriginBoardID = 42
			fake.Sprints[7] = s

			_, err := svc.SprintReport(ctx, admin, "PROJ", 7)

			Expect(err).To(MatchError(internal.ErrSprintNotFound))
		})

		It("publishes a generated event with counts", func() {
			rep, err := svc.SprintReport(ctx, admin, "PROJ", 7)
			Expect(err).NotTo(HaveOccurred())

			Expect(publisher.Events).To(HaveLen(1))
			e, ok := publisher.Events[0].(*events.ReportGeneratedEvent)
			Expect(ok).To(BeTrue())
			Expect(e.RequestID).To(Equal(rep.RequestID))
			Expect(e.SprintName).To(Equal("Sprint 7"))
			Expect(e.IssueCount).To(Equal(1))
		})

		It("returns tables by kind", func() {
			rep, err := svc.SprintReport(ctx, admin, "PROJ", 7)
			Expect(err).NotTo(HaveOccurred())

			f, err := rep.File(report.KindUsers)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Name).To(HaveSuffix("_user_time_spent.csv"))

			_, err = rep.File("pdf")
			Expect(err).To(MatchError(internal.ErrInvalidReportKind))
		})

		It("hides other users' worklogs from members", func() {
			fake.Issues[0].Worklogs = append(fake.Issues[0].Worklogs, tracker.Worklog{
				ID: "c", AuthorAccountID: "acc-y", AuthorDisplayName: "Y", CreatedAt: day("2024-01-06"), TimeSpentSeconds: 60,
			})
			fake.Issues[0].WorklogTotal = 3

			rep, err := svc.SprintReport(ctx, member, "PROJ", 7)

			Expect(err).NotTo(HaveOccurred())
			Expect(string(rep.Users.Data)).NotTo(ContainSubstring("Y,"))
		})
	})

	Describe("ListProjects", func() {
		It("filters by access", func() {
			projects, err := svc.ListProjects(ctx, member)
			Expect(err).NotTo(HaveOccurred())
			Expect(projects).To(HaveLen(1))
			Expect(projects[0].Key).To(Equal("PROJ"))

			all, err := svc.ListProjects(ctx, admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(all[0].Key).To(Equal("OPS"))
			Expect(all).To(HaveLen(2))
		})
	})

	Describe("ListSprints", func() {
		BeforeEach(func() {
			fake.Boards["PROJ"] = append(fake.Boards["PROJ"], tracker.Board{ID: 2, ProjectKey: "PROJ"})
			fake.BoardSprints[1] = []tracker.Sprint{
				{ID: 5, State: tracker.SprintClosed, StartDate: day("2023-12-01")},
				{ID: 6, State: tracker.SprintClosed, StartDate: day("2023-12-15")},
				{ID: 7, State: tracker.SprintActive, StartDate: day("2024-01-01")},
			}
			fake.BoardSprints[2] = []tracker.Sprint{
				{ID: 7, State: tracker.SprintActive, StartDate: day("2024-01-01")},
				{ID: 9, State: tracker.SprintFuture, StartDate: day("2024-01-15")},
			}
		})

		It("returns active and last finished sprints across boards", func() {
			sprints, err := svc.ListSprints(ctx, member, "PROJ")

			Expect(err).NotTo(HaveOccurred())
			ids := make([]int, 0, len(sprints))
			for _, s := range sprints {
				ids = append(ids, s.ID)
			}
			Expect(ids).To(Equal([]int{6, 7}))
		})

		It("requires project access", func() {
			_, err := svc.ListSprints(ctx, outsider, "PROJ")
			Expect(err).To(MatchError(internal.ErrNoProjectAccess))
		})
	})
})
