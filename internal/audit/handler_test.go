package audit_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/audit"
	auditDatamodel "github.com/frahmantamala/tracker-bot/internal/core/datamodel/audit"
	"github.com/frahmantamala/tracker-bot/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Handler", func() {
	var (
		repo    *memoryRepo
		handler *audit.Handler
		ac      *access.Context
	)

	BeforeEach(func() {
		repo = &memoryRepo{records: []*auditDatamodel.ReportRequest{
			{RequestID: "a", RequesterID: "1", Status: audit.StatusGenerated},
		}}
		handler = audit.NewHandler(audit.NewService(repo, logger.Discard()))
		policy, _ := access.ParsePolicy(access.RawPolicy{SuperAdmins: "root"})
		ac = access.Evaluate(access.RequesterIdentity{ID: "1", Username: "root"}, policy)
	})

	list := func(query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/audit/reports"+query, nil)
		req = req.WithContext(access.WithContext(req.Context(), ac))
		rec := httptest.NewRecorder()
		handler.ListReportRequests(rec, req)
		return rec
	}

	It("uses the default limit", func() {
		rec := list("")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(repo.limits).To(Equal([]int{50}))
		var body audit.ListResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Requests).To(HaveLen(1))
	})

	It("passes an explicit limit through", func() {
		Expect(list("?limit=5").Code).To(Equal(http.StatusOK))
		Expect(repo.limits).To(Equal([]int{5}))
	})

	DescribeTable("rejects limits below one",
		func(query, message string) {
			rec := list(query)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring(message))
			Expect(repo.limits).To(BeEmpty())
		},
		Entry("zero", "?limit=0", "limit must be at least 1"),
		Entry("negative", "?limit=-3", "limit must be at least 1"),
		Entry("not a number", "?limit=ten", "limit must be a positive integer"),
	)

	It("requires an access context", func() {
		rec := httptest.NewRecorder()
		handler.ListReportRequests(rec, httptest.NewRequest(http.MethodGet, "/api/v1/audit/reports", nil))

		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})
})
