package cmd

import (
	"fmt"
	"io"

	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/github"
	"github.com/frahmantamala/tracker-bot/pkg/logger"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect the access policy",
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the parsed access policy as YAML",
	Long:  `Parse the access and GitHub workflow settings from config and environment and print the result, including skipped entries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configDir)
		if err != nil {
			return err
		}
		policy, issues := buildPolicy(cfg.Access, logger.Discard())
		workflows, workflowIssues := buildWorkflows(cfg.GitHub, logger.Discard())
		return writePolicy(cmd.OutOrStdout(), policy, workflows, append(issues, workflowIssues...))
	},
}

type policyDocument struct {
	Policy    access.Snapshot     `yaml:"policy"`
	Workflows []github.Workflow   `yaml:"workflows,omitempty"`
	Skipped   []access.ParseIssue `yaml:"skipped,omitempty"`
}

func writePolicy(w io.Writer, policy *access.Policy, workflows *github.WorkflowSettings, issues []access.ParseIssue) error {
	doc := policyDocument{Policy: policy.Snapshot(), Workflows: workflows.All(), Skipped: issues}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode policy: %w", err)
	}
	return enc.Close()
}

func init() {
	policyCmd.AddCommand(policyShowCmd)
	rootCmd.AddCommand(policyCmd)
}

