package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"agentteam/internal/app/agentteam"
	domain "agentteam/internal/domain/agentteam"
)

func (c *cli) templatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List loaded agent templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var templates []domain.Template
			raw, err := c.api.get(cmd.Context(), "/templates", nil, &templates)
			if err != nil {
				return err
			}
			if c.format() == "json" {
				return writeJSON(c.out, raw)
			}
			tw := newTable(c.out, "TEMPLATE", "ROLE", "SKILLS", "SKILL HASH", "ISSUE")
			for _, t := range templates {
				issue := "-"
				if t.SkillIssue != nil {
					issue = red(string(t.SkillIssue.Code))
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", t.ID, t.Role, len(t.Skills), dash(truncate(t.SkillHash, 16)), issue)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) instancesCommand() *cobra.Command {
	var missionID, parentID, status string
	cmd := &cobra.Command{
		Use:   "instances [instance-id]",
		Short: "List agent instances or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return c.showInstance(cmd.Context(), args[0])
			}
			query := url.Values{}
			if missionID != "" {
				query.Set("missionID", missionID)
			}
			if parentID != "" {
				query.Set("parentInstanceID", parentID)
			}
			if status != "" {
				query.Set("status", status)
			}
			var instances []agentteam.InstanceView
			raw, err := c.api.get(cmd.Context(), "/instances", query, &instances)
			if err != nil {
				return err
			}
			if c.format() == "json" {
				return writeJSON(c.out, raw)
			}
			reasonWidth := terminalWidth(c.out) - 100
			tw := newTable(c.out, "INSTANCE", "MISSION", "PARENT", "TEMPLATE", "ROLE", "STATUS", "TOKENS", "REASON")
			for _, inst := range instances {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					inst.InstanceID, inst.MissionID, dash(inst.ParentInstanceID), inst.TemplateID,
					inst.Role, statusText(inst.Status), inst.Usage.TokensUsed, dash(truncate(inst.Reason, reasonWidth)))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&missionID, "mission", "", "only instances of this mission")
	cmd.Flags().StringVar(&parentID, "parent", "", "only children of this instance")
	cmd.Flags().StringVar(&status, "status", "", "queued, running, completed, failed or cancelled")
	return cmd
}

func (c *cli) showInstance(ctx context.Context, instanceID string) error {
	var view agentteam.InstanceView
	raw, err := c.api.get(ctx, "/instances/"+url.PathEscape(instanceID), nil, &view)
	if err != nil {
		return err
	}
	if c.format() == "json" {
		return writeJSON(c.out, raw)
	}
	fmt.Fprintf(c.out, "%s %s\n", bold("instance"), view.InstanceID)
	rows := [][2]string{
		{"mission", view.MissionID},
		{"parent", dash(view.ParentInstanceID)},
		{"template", view.TemplateID},
		{"role", string(view.Role)},
		{"source", string(view.Source)},
		{"status", statusText(view.Status)},
		{"session", view.SessionID},
		{"run", dash(view.RunID)},
		{"skill hash", dash(view.SkillHash)},
		{"reason", dash(view.Reason)},
		{"tokens", fmt.Sprintf("%d", view.Usage.TokensUsed)},
		{"steps", fmt.Sprintf("%d", view.Usage.StepsUsed)},
		{"tool calls", fmt.Sprintf("%d", view.Usage.ToolCallsUsed)},
		{"cost usd", fmt.Sprintf("%.4f", view.Usage.CostUsedUSD)},
		{"elapsed ms", fmt.Sprintf("%d", view.Usage.ElapsedMs)},
	}
	for _, row := range rows {
		fmt.Fprintf(c.out, "  %-12s %s\n", gray(row[0]), row[1])
	}
	return nil
}

func (c *cli) missionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "missions",
		Short: "Summarize missions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var missions []agentteam.MissionSummary
			raw, err := c.api.get(cmd.Context(), "/missions", nil, &missions)
			if err != nil {
				return err
			}
			if c.format() == "json" {
				return writeJSON(c.out, raw)
			}
			tw := newTable(c.out, "MISSION", "TOTAL", "RUNNING", "QUEUED", "DONE", "FAILED", "CANCELLED", "TOKENS", "COST USD")
			for _, m := range missions {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%.4f\n",
					m.MissionID, m.InstanceCount, m.RunningCount, m.QueuedCount, m.CompletedCount,
					m.FailedCount, m.CancelledCount, m.TokenUsedTotal, m.CostUsedUSDTotal)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) approvalsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "approvals",
		Short: "List pending spawn and tool approvals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var view agentteam.ApprovalsView
			raw, err := c.api.get(cmd.Context(), "/approvals", nil, &view)
			if err != nil {
				return err
			}
			if c.format() == "json" {
				return writeJSON(c.out, raw)
			}
			tw := newTable(c.out, "APPROVAL", "KIND", "MISSION", "SUBJECT", "REASON")
			for _, a := range view.SpawnApprovals {
				fmt.Fprintf(tw, "%s\tspawn\t%s\t%s\t%s\n", a.ApprovalID, dash(a.Request.MissionID), spawnSubject(a.Request), dash(a.Reason))
			}
			for _, a := range view.ToolApprovals {
				fmt.Fprintf(tw, "%s\ttool\t%s\t%s\t%s\n", a.ApprovalID, a.MissionID, a.InstanceID+" "+a.Tool, dash(a.Reason))
			}
			return tw.Flush()
		},
	}
}

func spawnSubject(req domain.SpawnRequest) string {
	target := req.TemplateID
	if target == "" {
		target = string(req.Role)
	}
	if req.ParentInstanceID != "" {
		return req.ParentInstanceID + " -> " + target
	}
	return target
}

func (c *cli) spawnCommand() *cobra.Command {
	var (
		body   spawnRequestBody
		budget string
	)
	cmd := &cobra.Command{
		Use:   "spawn",
		Short: "Request a new agent instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if body.TemplateID == "" && body.Role == "" {
				return fmt.Errorf("--template or --role is required")
			}
			if strings.TrimSpace(budget) != "" {
				var limit domain.BudgetLimit
				if err := json.Unmarshal([]byte(budget), &limit); err != nil {
					return fmt.Errorf("--budget: %w", err)
				}
				body.BudgetOverride = &limit
			}
			var result agentteam.SpawnResult
			raw, err := c.api.post(cmd.Context(), "/spawn", body, &result)
			if err != nil {
				return err
			}
			if c.format() == "json" {
				if err := writeJSON(c.out, raw); err != nil {
					return err
				}
			} else {
				c.printSpawn(result)
			}
			return outcomeError(result.OK, result.RequiresUserApproval, string(result.Code), result.Error)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&body.MissionID, "mission", "", "existing mission id")
	flags.StringVar(&body.ParentInstanceID, "parent", "", "parent instance id")
	flags.StringVar(&body.TemplateID, "template", "", "template id")
	flags.StringVar(&body.Role, "role", "", "role used to pick a template")
	flags.StringVar(&body.Source, "source", string(domain.SourceUIAction), "request source")
	flags.StringVar(&body.Justification, "justification", "", "why the instance is needed")
	flags.StringVar(&body.SessionID, "session", "", "requesting session id")
	flags.StringVar(&budget, "budget", "", `budget override as JSON, e.g. {"max_tokens":5000}`)
	return cmd
}

type spawnRequestBody struct {
	MissionID        string              `json:"missionID,omitempty"`
	ParentInstanceID string              `json:"parentInstanceID,omitempty"`
	TemplateID       string              `json:"templateID,omitempty"`
	Role             string              `json:"role,omitempty"`
	Source           string              `json:"source,omitempty"`
	Justification    string              `json:"justification,omitempty"`
	BudgetOverride   *domain.BudgetLimit `json:"budget_override,omitempty"`
	SessionID        string              `json:"sessionID,omitempty"`
}

func (c *cli) printSpawn(result agentteam.SpawnResult) {
	switch {
	case result.OK:
		fmt.Fprintf(c.out, "%s instance %s in mission %s (session %s, %s)\n",
			green("spawned"), bold(result.InstanceID), result.MissionID, result.SessionID, statusText(result.Status))
	case result.RequiresUserApproval:
		fmt.Fprintf(c.out, "%s approval %s: %s\n", yellow("queued"), bold(result.ApprovalID), result.Error)
	default:
		fmt.Fprintf(c.out, "%s %s: %s\n", red("denied"), result.Code, result.Error)
	}
}

// outcomeError turns a policy outcome into a non-zero exit. A spawn parked
// for approval is not an error.
func outcomeError(ok, queued bool, code, message string) error {
	if ok || queued {
		return nil
	}
	if message == "" {
		return fmt.Errorf("%s", code)
	}
	return fmt.Errorf("%s: %s", code, message)
}

func (c *cli) cancelCommand() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel an instance subtree or a whole mission",
	}
	instance := &cobra.Command{
		Use:   "instance <instance-id>",
		Short: "Cancel an instance and its descendants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result agentteam.InstanceResult
			raw, err := c.api.post(cmd.Context(), "/instance/"+url.PathEscape(args[0])+"/cancel", map[string]string{"reason": reason}, &result)
			if err != nil {
				return err
			}
			if c.format() == "json" {
				return writeJSON(c.out, raw)
			}
			if result.OK {
				fmt.Fprintf(c.out, "%s %s\n", statusText(result.Status), result.InstanceID)
			}
			return outcomeError(result.OK, false, string(result.Code), result.Error)
		},
	}
	mission := &cobra.Command{
		Use:   "mission <mission-id>",
		Short: "Cancel every instance of a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result agentteam.MissionCancelResult
			raw, err := c.api.post(cmd.Context(), "/mission/"+url.PathEscape(args[0])+"/cancel", map[string]string{"reason": reason}, &result)
			if err != nil {
				return err
			}
			if c.format() == "json" {
				return writeJSON(c.out, raw)
			}
			if result.OK {
				fmt.Fprintf(c.out, "%s mission %s (%d instances)\n", gray("cancelled"), result.MissionID, result.CancelledInstances)
			}
			return outcomeError(result.OK, false, string(result.Code), result.Error)
		},
	}
	cmd.PersistentFlags().StringVar(&reason, "reason", "", "cancellation reason")
	cmd.AddCommand(instance, mission)
	return cmd
}

// resolveCommand builds "approve" or "deny" with spawn and tool children.
func (c *cli) resolveCommand(approve bool) *cobra.Command {
	verb, action := "deny", "Deny"
	if approve {
		verb, action = "approve", "Approve"
	}
	var reason string
	cmd := &cobra.Command{
		Use:   verb,
		Short: action + " a pending approval",
	}
	for _, kind := range []string{"spawn", "tool"} {
		kind := kind
		cmd.AddCommand(&cobra.Command{
			Use:   kind + " <approval-id>",
			Short: action + " a pending " + kind + " approval",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path := "/approvals/" + kind + "/" + url.PathEscape(args[0]) + "/" + verb
				var result agentteam.ApprovalResult
				raw, err := c.api.post(cmd.Context(), path, map[string]string{"reason": reason}, &result)
				if err != nil {
					return err
				}
				if c.format() == "json" {
					return writeJSON(c.out, raw)
				}
				if result.OK {
					fmt.Fprintf(c.out, "%s %s approval %s\n", decisionText(result.Decision), kind, result.ApprovalID)
					if result.Spawn != nil {
						c.printSpawn(*result.Spawn)
					}
				}
				return outcomeError(result.OK, false, string(result.Code), result.Error)
			},
		})
	}
	cmd.PersistentFlags().StringVar(&reason, "reason", "", "decision note")
	return cmd
}

func decisionText(decision domain.ApprovalStatus) string {
	switch decision {
	case domain.ApprovalApproved:
		return green(string(decision))
	case domain.ApprovalDenied:
		return red(string(decision))
	}
	return yellow(string(decision))
}

func (c *cli) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print client and server versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(c.out, "teamctl %s\n", version)
			if used := c.v.ConfigFileUsed(); used != "" {
				fmt.Fprintf(c.out, "config  %s\n", used)
			} else {
				fmt.Fprintf(c.out, "config  %s\n", gray("none (looked for "+configFileHint()+")"))
			}
			var health struct {
				Status  string `json:"status"`
				Version string `json:"version"`
			}
			if _, err := c.api.do(cmd.Context(), "GET", c.api.base+"/health", nil, &health); err != nil {
				fmt.Fprintf(c.out, "server  %s (%s)\n", red("unreachable"), c.api.base)
				return nil
			}
			fmt.Fprintf(c.out, "server  %s %s (%s)\n", health.Version, health.Status, c.api.base)
			return nil
		},
	}
}
