package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	internalApp "github.com/dosacha/simvex-api/internal/app"
	"github.com/dosacha/simvex-api/internal/domain"

	"github.com/bytedance/sonic"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type inspectFlags struct {
	tenant string
	model  int64
	json   bool
}

// inspectReport 租户数据快照
type inspectReport struct {
	Tenant    string                  `json:"tenant"`
	ModelID   *int64                  `json:"modelId,omitempty"`
	Workflow  *domain.WorkflowState   `json:"workflow"`
	Memos     []*domain.Memo          `json:"memos,omitempty"`
	AiHistory []*domain.AiHistoryItem `json:"aiHistory,omitempty"`
}

func init() {
	flags := new(inspectFlags)

	inspectCmd := &cobra.Command{
		Use:   "inspect --tenant tenant_id [--model model_id] [--json]",
		Short: "Print a tenant's workflow graph, and memos and AI history for one model",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, lg, err := runtimeFromCommand(cmd)
			if err != nil {
				fmt.Printf("Failed to load config: %v\n", err)
				os.Exit(1)
			}
			defer lg.Sync()

			a, err := internalApp.NewApp(cfg, lg)
			if err != nil {
				fmt.Printf("Failed to open repositories: %v\n", err)
				os.Exit(1)
			}
			defer a.Shutdown(nil)

			var model *int64
			if cmd.Flags().Changed("model") {
				model = &flags.model
			}

			report, err := collectReport(cmd.Context(), a.Repos, flags.tenant, model)
			if err != nil {
				fmt.Printf("Inspect failed: %v\n", err)
				os.Exit(1)
			}
			if flags.json {
				err = printReportJSON(cmd.OutOrStdout(), report)
			} else {
				printReportTables(cmd.OutOrStdout(), report)
			}
			if err != nil {
				fmt.Printf("Inspect failed: %v\n", err)
				os.Exit(1)
			}
		},
	}

	inspectCmd.Flags().StringVarP(&flags.tenant, "tenant", "t", "", "tenant id")
	inspectCmd.Flags().Int64VarP(&flags.model, "model", "m", 0, "model id for memos and AI history")
	inspectCmd.Flags().BoolVar(&flags.json, "json", false, "print JSON instead of tables")
	_ = inspectCmd.MarkFlagRequired("tenant")

	rootCmd.AddCommand(inspectCmd)
}

func collectReport(ctx context.Context, repos *domain.Repositories, tenant string, model *int64) (*inspectReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	state, err := repos.Workflow.List(ctx, tenant)
	if err != nil {
		return nil, err
	}
	report := &inspectReport{Tenant: tenant, ModelID: model, Workflow: state}
	if model == nil {
		return report, nil
	}

	if report.Memos, err = repos.Memo.ListByModel(ctx, tenant, *model); err != nil {
		return nil, err
	}
	if report.AiHistory, err = repos.AiHistory.ListByModel(ctx, tenant, *model); err != nil {
		return nil, err
	}
	return report, nil
}

func printReportJSON(out io.Writer, report *inspectReport) error {
	data, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func printReportTables(out io.Writer, report *inspectReport) {
	fmt.Fprintf(out, "Tenant: %s\n\nNodes\n", report.Tenant)
	nodes := newTable(out, "ID", "Title", "X", "Y", "Files")
	for _, n := range report.Workflow.Nodes {
		nodes.Append([]string{
			strconv.FormatInt(n.ID, 10),
			truncate(n.Title, 30),
			strconv.FormatFloat(n.X, 'f', -1, 64),
			strconv.FormatFloat(n.Y, 'f', -1, 64),
			strconv.Itoa(len(n.Files)),
		})
	}
	nodes.Render()

	fmt.Fprintln(out, "\nConnections")
	conns := newTable(out, "ID", "From", "To", "From Anchor", "To Anchor")
	for _, c := range report.Workflow.Connections {
		conns.Append([]string{
			strconv.FormatInt(c.ID, 10),
			strconv.FormatInt(c.From, 10),
			strconv.FormatInt(c.To, 10),
			c.FromAnchor,
			c.ToAnchor,
		})
	}
	conns.Render()

	if report.ModelID == nil {
		return
	}

	fmt.Fprintf(out, "\nMemos (model %d)\n", *report.ModelID)
	memos := newTable(out, "ID", "Title", "Content")
	for _, m := range report.Memos {
		memos.Append([]string{strconv.FormatInt(m.ID, 10), truncate(m.Title, 30), truncate(m.Content, 40)})
	}
	memos.Render()

	fmt.Fprintf(out, "\nAI History (model %d)\n", *report.ModelID)
	history := newTable(out, "Timestamp", "Question", "Answer")
	for _, h := range report.AiHistory {
		history.Append([]string{h.Timestamp, truncate(h.Question, 40), truncate(h.Answer, 40)})
	}
	history.Render()
}
