package report_test

import (
	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/report"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("Compensation", func() {
	var policy *access.Policy

	BeforeEach(func() {
		var issues []access.ParseIssue
		policy, issues = access.ParsePolicy(access.RawPolicy{
			RelationByNameOrEmail: "alice:Alice:alice@example.com,bob:Bob",
			CompensationRules:     "alice:{amount=10,currency=USD,type=hourly,key=PROJ}|alice:{amount=7,currency=USD,type=hourly,key=OPS}|bob:{amount=500,currency=EUR,type=fixed}",
		})
		Expect(issues).To(BeEmpty())
	})

	It("multiplies hourly rates by hours", func() {
		r := report.NewCompensationResolver(policy, policy.AllCompensation())

		line := r.Resolve(report.UserTime{DisplayName: "Alice", ProjectKey: "PROJ", TotalSeconds: 5 * 3600})

		Expect(line.Identity).To(Equal("alice"))
		Expect(line.Resolved()).To(BeTrue())
		Expect(line.Total.Equal(decimal.NewFromInt(50))).To(BeTrue())
	})

	It("picks the rule of the user's project", func() {
		r := report.NewCompensationResolver(policy, policy.AllCompensation())

		line := r.Resolve(report.UserTime{Email: "ALICE@example.com", ProjectKey: "ops", TotalSeconds: 3600})

		Expect(line.Rule.ProjectKey).To(Equal("OPS"))
		Expect(line.Total.Equal(decimal.NewFromInt(7))).To(BeTrue())
	})

	It("keeps fixed amounts regardless of hours", func() {
		r := report.NewCompensationResolver(policy, policy.AllCompensation())

		line := r.Resolve(report.UserTime{DisplayName: "bob", ProjectKey: "PROJ", TotalSeconds: 123})

		Expect(line.Total.Equal(decimal.NewFromInt(500))).To(BeTrue())
		Expect(line.Rule.Currency).To(Equal("EUR"))
	})

	It("leaves unknown authors unresolved", func() {
		r := report.NewCompensationResolver(policy, policy.AllCompensation())

		line := r.Resolve(report.UserTime{DisplayName: "Stranger", TotalSeconds: 3600})

		Expect(line.Identity).To(BeEmpty())
		Expect(line.Resolved()).To(BeFalse())
	})

	It("resolves the identity but no rule when the rules are hidden", func() {
		r := report.NewCompensationResolver(policy, map[string][]access.CompensationRule{})

		line := r.Resolve(report.UserTime{DisplayName: "bob", TotalSeconds: 3600})

		Expect(line.Identity).To(Equal("bob"))
		Expect(line.Resolved()).To(BeFalse())
	})

	It("is a no-op without a policy", func() {
		line := report.NewCompensationResolver(nil, nil).Resolve(report.UserTime{DisplayName: "bob"})
		Expect(line).To(Equal(report.CompensationLine{}))
	})
})
