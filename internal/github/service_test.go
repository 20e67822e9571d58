package github_test

import (
	"context"
	"errors"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/github"
	"github.com/frahmantamala/tracker-bot/internal/tracker"
	"github.com/frahmantamala/tracker-bot/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ExtractIssueKeys", func() {
	DescribeTable("finds issue keys of known projects",
		func(texts []string, expected []string) {
			Expect(github.ExtractIssueKeys([]string{"PROJ", "OPS"}, texts...)).To(Equal(expected))
		},
		Entry("branch with dash", []string{"feature/PROJ-12-login"}, []string{"PROJ-12"}),
		Entry("lower case with underscore", []string{"proj_7_fix"}, []string{"PROJ-7"}),
		Entry("branch and title share a key", []string{"PROJ-12", "PROJ-12: login"}, []string{"PROJ-12"}),
		Entry("several keys", []string{"ops-3", "Fix PROJ-12 and PROJ-4"}, []string{"OPS-3", "PROJ-12", "PROJ-4"}),
		Entry("key glued to another word", []string{"MYPROJ-12"}, nil),
		Entry("unknown project", []string{"WEB-1"}, nil),
		Entry("key without number", []string{"PROJ-x"}, nil),
	)
})

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		fake    *FakeTracker
		service *github.Service
		payload github.WebhookPayload
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = NewFakeTracker("PROJ", "OPS")
		service = github.NewService(fake, 2, logger.Discard())
		payload = github.WebhookPayload{
			BranchName: "feature/proj-12-login",
			PRTitle:    "PROJ-12 OPS-3: login",
			PRURL:      "https://github.com/acme/app/pull/5",
		}
	})

	It("comments the pull request on every referenced issue", func() {
		fake.Comments["PROJ-12"] = []tracker.Comment{{ID: "1", Body: "unrelated"}}
		fake.Comments["OPS-3"] = nil

		resp, err := service.LinkPullRequest(ctx, payload)

		Expect(err).NotTo(HaveOccurred())
		Expect(resp.IssueKeys).To(Equal([]string{"OPS-3", "PROJ-12"}))
		Expect(resp.IssueLinks).To(Equal([]string{
			"https://jira.example.com/browse/OPS-3",
			"https://jira.example.com/browse/PROJ-12",
		}))
		Expect(fake.Added).To(HaveKeyWithValue("PROJ-12", []string{"Pull request created: https://github.com/acme/app/pull/5"}))
		Expect(fake.Added).To(HaveKey("OPS-3"))
	})

	It("does not comment twice", func() {
		fake.Comments["PROJ-12"] = []tracker.Comment{{ID: "1", Body: "Pull request created: https://github.com/acme/app/pull/5"}}
		fake.Comments["OPS-3"] = nil

		resp, err := service.LinkPullRequest(ctx, payload)

		Expect(err).NotTo(HaveOccurred())
		Expect(resp.IssueKeys).To(ContainElement("PROJ-12"))
		Expect(fake.Added).NotTo(HaveKey("PROJ-12"))
	})

	It("drops keys that do not resolve to an issue", func() {
		fake.Comments["PROJ-12"] = nil

		resp, err := service.LinkPullRequest(ctx, payload)

		Expect(err).NotTo(HaveOccurred())
		Expect(resp.IssueKeys).To(Equal([]string{"PROJ-12"}))
	})

	It("fails when nothing references a project", func() {
		payload.BranchName = "main"
		payload.PRTitle = "chore: bump deps"

		_, err := service.LinkPullRequest(ctx, payload)
		Expect(err).To(MatchError(internal.ErrProjectNotFound))
	})

	It("rejects a payload without a pull request url", func() {
		payload.PRURL = "not a url"

		_, err := service.LinkPullRequest(ctx, payload)

		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
	})

	It("reports tracker failures", func() {
		fake.CommentErr = errors.New("connection reset")

		_, err := service.LinkPullRequest(ctx, payload)
		Expect(err).To(MatchError(internal.ErrTrackerUnavailable))
	})
})
