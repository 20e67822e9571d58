package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/github"
	"github.com/frahmantamala/tracker-bot/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"
)

func setenv(key, value string) {
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(os.Unsetenv, key)
}

var _ = Describe("loadConfig", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "tracker-bot-config")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)
	})

	It("falls back to defaults without a config file", func() {
		cfg, err := loadConfig(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.Port).To(Equal(8080))
		Expect(cfg.Telegram.Workers).To(Equal(4))
		Expect(cfg.Report.Timeout).To(Equal(2 * time.Minute))
		Expect(cfg.Server.OpenAPIPath).To(Equal("api/openapi.yml"))
	})

	It("reads config.yml and lets the environment override it", func() {
		yml := []byte("http_server:\n  port: 9000\ntracker:\n  base_url: https://file.atlassian.net\n  page_size: 25\n")
		Expect(os.WriteFile(filepath.Join(dir, "config.yml"), yml, 0o600)).To(Succeed())
		setenv("TRACKERBOT_HTTP_SERVER_PORT", "9100")

		cfg, err := loadConfig(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.Port).To(Equal(9100))
		Expect(cfg.Tracker.BaseURL).To(Equal("https://file.atlassian.net"))
		Expect(cfg.Tracker.PageSize).To(Equal(25))
	})

	It("binds the legacy environment names", func() {
		setenv("SUPERADMIN_LIST", "boss")
		setenv("AVAILABILITY_BY_KEYS", "ABC:alice")
		setenv("JIRA_HOST", "https://legacy.atlassian.net")
		setenv("CHAT_ID", "-1001234567890")

		cfg, err := loadConfig(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Access.SuperAdminList).To(Equal("boss"))
		Expect(cfg.Access.AvailabilityByKeys).To(Equal("ABC:alice"))
		Expect(cfg.Tracker.BaseURL).To(Equal("https://legacy.atlassian.net"))
		Expect(cfg.Telegram.ChatID).To(Equal(int64(-1001234567890)))
	})

	It("binds the legacy GitHub workflow names", func() {
		setenv("GITHUB_PERSONAL_ACCESS_TOKEN", "ghp_legacy")
		setenv("GITHUB_WORKFLOW_SETTINGS", "app:{branch=main,environment=prod,workflowId=deploy.yml,owner=acme}")

		cfg, err := loadConfig(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.GitHub.Token).To(Equal("ghp_legacy"))
		Expect(cfg.GitHub.WorkflowSettings).To(HavePrefix("app:{"))
		Expect(cfg.GitHub.APIURL).To(Equal("https://api.github.com"))
	})

	It("prefers the prefixed name over the legacy one", func() {
		setenv("BOT_TOKEN", "legacy")
		setenv("TRACKERBOT_TELEGRAM_BOT_TOKEN", "current")

		cfg, err := loadConfig(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Telegram.BotToken).To(Equal("current"))
	})
})

var _ = Describe("writePolicy", func() {
	It("renders the snapshot and skipped entries as YAML", func() {
		policy, issues := access.ParsePolicy(access.RawPolicy{
			SuperAdmins:        "@Boss",
			AvailabilityByKeys: "abc:alice:bob",
			CompensationRules:  "alice:{amount=10,currency=usd,type=hourly}|bob:{amount=x,currency=USD,type=fixed}",
		})

		var out bytes.Buffer
		Expect(writePolicy(&out, policy, nil, issues)).To(Succeed())

		var doc policyDocument
		Expect(yaml.Unmarshal(out.Bytes(), &doc)).To(Succeed())
		Expect(doc.Policy.SuperAdmins).To(ConsistOf("boss"))
		Expect(doc.Policy.Availability).To(HaveKeyWithValue("ABC", []string{"alice", "bob"}))
		Expect(doc.Policy.Compensation["alice"]).To(HaveLen(1))
		Expect(doc.Policy.Compensation["alice"][0].Currency).To(Equal("USD"))
		Expect(doc.Skipped).To(HaveLen(1))
		Expect(doc.Skipped[0].Setting).To(Equal(access.SettingCompensation))
		Expect(doc.Workflows).To(BeEmpty())
	})

	It("lists the configured workflows next to the policy", func() {
		policy, _ := access.ParsePolicy(access.RawPolicy{})
		workflows, issues := buildWorkflows(internal.GitHubConfig{
			WorkflowSettings: "app:{branch=main,environment=prod,workflowId=deploy.yml,owner=acme}|app:{environment=dev}",
		}, logger.Discard())

		var out bytes.Buffer
		Expect(writePolicy(&out, policy, workflows, issues)).To(Succeed())

		var doc policyDocument
		Expect(yaml.Unmarshal(out.Bytes(), &doc)).To(Succeed())
		Expect(doc.Workflows).To(HaveLen(1))
		Expect(doc.Workflows[0].WorkflowID).To(Equal("deploy.yml"))
		Expect(doc.Skipped).To(HaveLen(1))
		Expect(doc.Skipped[0].Setting).To(Equal(github.SettingWorkflows))
	})
})
