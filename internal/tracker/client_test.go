package tracker_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	"github.com/frahmantamala/tracker-bot/internal/tracker"
	"github.com/frahmantamala/tracker-bot/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Client", func() {
	var (
		ctx    context.Context
		mux    *http.ServeMux
		server *httptest.Server
		client *tracker.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		mux = http.NewServeMux()
		server = httptest.NewServer(mux)
		client = tracker.NewClient(tracker.Config{
			BaseURL:      server.URL + "/",
			Email:        "bot@example.com",
			APIToken:     "secret",
			PageSize:     2,
			RetryBackoff: time.Millisecond,
		}, logger.Discard())
	})

	AfterEach(func() {
		server.Close()
	})

	It("reads sprint issues with embedded worklogs", func() {
		mux.HandleFunc("/rest/agile/1.0/sprint/7/issue", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			user, pass, ok := r.BasicAuth()
			Expect(ok).To(BeTrue())
			Expect(user).To(Equal("bot@example.com"))
			Expect(pass).To(Equal("secret"))
			Expect(r.URL.Query().Get("startAt")).To(Equal("2"))
			Expect(r.URL.Query().Get("maxResults")).To(Equal("2"))

			io.WriteString(w, `{
				"startAt": 2, "maxResults": 2, "total": 3,
				"issues": [{
					"id": "100", "key": "PROJ-3",
					"fields": {
						"summary": "Login",
						"status": {"name": "Done"},
						"timeoriginalestimate": 14400,
						"timespent": 19800,
						"sprint": {"name": "Sprint 7"},
						"closedSprints": [{"name": "Sprint 6"}],
						"worklog": {"total": 30, "worklogs": [{
							"id": "1",
							"author": {"accountId": "acc", "displayName": "Alice", "emailAddress": "alice@example.com"},
							"created": "2024-01-05T10:00:00.000+0000",
							"timeSpentSeconds": 3600,
							"comment": {"type": "doc", "version": 1, "content": [{"type": "paragraph", "content": [{"type": "text", "text": "review"}]}]}
						}]}
					}
				}]
			}`)
		})

		page, err := client.GetIssuesForSprint(ctx, 7, 2)

		Expect(err).NotTo(HaveOccurred())
		Expect(page.Total).To(Equal(3))
		Expect(page.Issues).To(HaveLen(1))
		issue := page.Issues[0]
		Expect(issue.ProjectKey).To(Equal("PROJ"))
		Expect(*issue.OriginalEstimateSeconds).To(Equal(int64(14400)))
		Expect(issue.TimeSpentSeconds).To(Equal(int64(19800)))
		Expect(issue.SprintNames).To(Equal([]string{"Sprint 6", "Sprint 7"}))
		Expect(issue.WorklogTotal).To(Equal(30))
		Expect(issue.Worklogs[0].Comment).To(Equal("review"))
		Expect(issue.Worklogs[0].CreatedAt.Equal(time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC))).To(BeTrue())
	})

	It("pages through issue worklogs", func() {
		mux.HandleFunc("/rest/api/3/issue/100/worklog", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			switch r.URL.Query().Get("startAt") {
			case "0":
				io.WriteString(w, `{"startAt":0,"total":3,"worklogs":[{"id":"1","timeSpentSeconds":60},{"id":"2","timeSpentSeconds":60}]}`)
			default:
				io.WriteString(w, `{"startAt":2,"total":3,"worklogs":[{"id":"3","timeSpentSeconds":60}]}`)
			}
		})

		worklogs, err := client.GetIssueWorklogs(ctx, "100")

		Expect(err).NotTo(HaveOccurred())
		Expect(worklogs).To(HaveLen(3))
	})

	It("parses sprints with agile timestamps", func() {
		mux.HandleFunc("/rest/agile/1.0/sprint/7", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			io.WriteString(w, `{"id":7,"name":"Sprint 7","state":"CLOSED","startDate":"2024-01-01T09:00:00.000Z","endDate":"2024-01-14T18:00:00.000Z","completeDate":"2024-01-12T12:00:00.000Z","originBoardId":3}`)
		})

		sprint, err := client.GetSprint(ctx, 7)

		Expect(err).NotTo(HaveOccurred())
		Expect(sprint.State).To(Equal(tracker.SprintClosed))
		Expect(sprint.OriginBoardID).To(Equal(3))
		Expect(sprint.EffectiveEnd()).To(Equal(*sprint.CompleteDate))
	})

	It("reports missing resources as not found without retrying", func() {
		var calls int32
		mux.HandleFunc("/rest/agile/1.0/sprint/9", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			atomic.AddInt32(&calls, 1)
			http.Error(w, `{"errorMessages":["not found"]}`, http.StatusNotFound)
		})

		_, err := client.GetSprint(ctx, 9)

		Expect(tracker.IsNotFound(err)).To(BeTrue())
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(1)))
	})

	It("retries throttled requests", func() {
		var calls int32
		mux.HandleFunc("/rest/agile/1.0/sprint/7", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			io.WriteString(w, `{"id":7,"name":"Sprint 7","state":"active"}`)
		})

		sprint, err := client.GetSprint(ctx, 7)

		Expect(err).NotTo(HaveOccurred())
		Expect(sprint.Name).To(Equal("Sprint 7"))
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(3)))
	})

	It("gives up after the retry budget", func() {
		mux.HandleFunc("/rest/agile/1.0/sprint/7", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := client.GetSprint(ctx, 7)

		var se *tracker.StatusError
		Expect(err).To(BeAssignableToTypeOf(se))
		Expect(err.Error()).To(ContainSubstring("status 503"))
	})

	It("does not repeat an issue creation after a gateway error", func() {
		var posts int32
		mux.HandleFunc("/rest/api/3/issue", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Method).To(Equal(http.MethodPost))
			if atomic.AddInt32(&posts, 1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			io.WriteString(w, `{"id":"1","key":"PROJ-1"}`)
		})

		_, err := client.CreateIssue(ctx, tracker.NewIssue{ProjectKey: "PROJ", Summary: "Broken button"})

		var se *tracker.StatusError
		Expect(err).To(BeAssignableToTypeOf(se))
		Expect(err.Error()).To(ContainSubstring("status 502"))
		Expect(atomic.LoadInt32(&posts)).To(Equal(int32(1)))
	})

	It("repeats a comment only when throttled", func() {
		var posts int32
		mux.HandleFunc("/rest/api/3/issue/PROJ-1/comment", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			if atomic.AddInt32(&posts, 1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusCreated)
		})

		Expect(client.AddComment(ctx, "PROJ-1", "hello")).To(Succeed())
		Expect(atomic.LoadInt32(&posts)).To(Equal(int32(2)))
	})

	It("lists boards and board sprints", func() {
		mux.HandleFunc("/rest/agile/1.0/board", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Query().Get("projectKeyOrId")).To(Equal("PROJ"))
			io.WriteString(w, `{"isLast":true,"values":[{"id":3,"name":"PROJ board","location":{"projectKey":"PROJ"}}]}`)
		})
		mux.HandleFunc("/rest/agile/1.0/board/3/sprint", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			io.WriteString(w, `{"startAt":0,"maxResults":2,"isLast":true,"values":[{"id":7,"name":"Sprint 7","state":"active"}]}`)
		})

		boards, err := client.GetProjectBoards(ctx, "PROJ")
		Expect(err).NotTo(HaveOccurred())
		Expect(boards).To(Equal([]tracker.Board{{ID: 3, Name: "PROJ board", ProjectKey: "PROJ"}}))

		page, err := client.GetBoardSprints(ctx, 3, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(page.IsLast).To(BeTrue())
		Expect(page.Sprints[0].State).To(Equal(tracker.SprintActive))
	})

	It("creates issues with a document description", func() {
		mux.HandleFunc("/rest/api/3/issue", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Method).To(Equal(http.MethodPost))
			var body map[string]map[string]any
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
			Expect(body["fields"]["summary"]).To(Equal("Broken button"))
			Expect(body["fields"]["issuetype"]).To(Equal(map[string]any{"name": "Task"}))
			Expect(body["fields"]["description"]).To(HaveKeyWithValue("type", "doc"))
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{"id":"200","key":"PROJ-42"}`)
		})

		created, err := client.CreateIssue(ctx, tracker.NewIssue{ProjectKey: "PROJ", Summary: "Broken button", Description: "line one\nline two"})

		Expect(err).NotTo(HaveOccurred())
		Expect(created.Key).To(Equal("PROJ-42"))
		Expect(created.Link).To(Equal(server.URL + "/browse/PROJ-42"))
	})

	It("uploads attachments as multipart with the no-check header", func() {
		mux.HandleFunc("/rest/api/3/issue/PROJ-42/attachments", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Header.Get("X-Atlassian-Token")).To(Equal("no-check"))
			file, header, err := r.FormFile("file")
			Expect(err).NotTo(HaveOccurred())
			defer file.Close()
			data, _ := io.ReadAll(file)
			Expect(header.Filename).To(Equal("shot.jpg"))
			Expect(string(data)).To(Equal("jpeg-bytes"))
			io.WriteString(w, `[]`)
		})

		Expect(client.AddAttachment(ctx, "PROJ-42", "shot.jpg", strings.NewReader("jpeg-bytes"))).To(Succeed())
	})

	It("reads comments as plain text and adds new ones", func() {
		var posted string
		mux.HandleFunc("/rest/api/3/issue/PROJ-1/comment", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			if r.Method == http.MethodPost {
				raw, _ := io.ReadAll(r.Body)
				posted = string(raw)
				w.WriteHeader(http.StatusCreated)
				return
			}
			io.WriteString(w, `{"total":2,"comments":[
				{"id":"1","body":{"type":"doc","version":1,"content":[{"type":"paragraph","content":[{"type":"text","text":"Pull request created: https://example.com/pr/1"}]}]}},
				{"id":"2","body":"plain"}
			]}`)
		})

		comments, err := client.GetIssueComments(ctx, "PROJ-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(comments).To(Equal([]tracker.Comment{
			{ID: "1", Body: "Pull request created: https://example.com/pr/1"},
			{ID: "2", Body: "plain"},
		}))

		Expect(client.AddComment(ctx, "PROJ-1", "hello")).To(Succeed())
		Expect(posted).To(ContainSubstring(`"text":"hello"`))
	})
})
