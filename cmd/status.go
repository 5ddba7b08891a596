// File: cmd/status.go
package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/exam-autofill/internal/agent"
	"github.com/xkilldash9x/exam-autofill/internal/exam"
	"github.com/xkilldash9x/exam-autofill/internal/observability"
	"github.com/xkilldash9x/exam-autofill/internal/report"
)

func newStatusCmd() *cobra.Command {
	var (
		qid      string
		xlsxPath string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which questions on the exam page are answered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			comps, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Shutdown(logger)

			if qid != "" {
				comps.primeIndex(ctx, logger)
				params, err := json.Marshal(map[string]interface{}{"qid": qid})
				if err != nil {
					return err
				}
				result, err := comps.registry.Execute(ctx, agent.Action{Type: agent.ActionGetQuestionStatus, Params: params})
				if err != nil {
					return err
				}
				if err := printJSON(cmd, result); err != nil {
					return err
				}
				if !result.Succeeded() {
					return fmt.Errorf("status query failed: %s", result.ErrorCode)
				}
				return nil
			}

			result, err := comps.registry.Execute(ctx, agent.Action{Type: agent.ActionGetAllQuestionsStatus})
			if err != nil {
				return err
			}
			if !result.Succeeded() {
				_ = printJSON(cmd, result)
				return fmt.Errorf("page scan failed: %s", result.ErrorCode)
			}
			scan, ok := result.Data.(*exam.ScanResult)
			if !ok {
				return fmt.Errorf("unexpected scan result type %T", result.Data)
			}

			if asJSON {
				if err := printJSON(cmd, scan); err != nil {
					return err
				}
			} else if err := printStatusTable(cmd.OutOrStdout(), scan); err != nil {
				return err
			}

			if xlsxPath != "" {
				if err := exportWorkbook(xlsxPath, scan); err != nil {
					return err
				}
				logger.Info("Status workbook written", zap.String("path", xlsxPath), zap.Int("questions", scan.Total))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&qid, "qid", "", "query a single question by display position or question id")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write the scan to this xlsx file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the scan as JSON instead of a table")
	return cmd
}

// printStatusTable writes one line per question followed by a summary.
func printStatusTable(w io.Writer, scan *exam.ScanResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tLABEL\tQID\tTYPE\tANSWERED\tANSWER")
	for _, q := range scan.Questions {
		answer := ""
		if q.Answer != nil {
			answer = q.Answer.String()
		}
		answered := "no"
		switch {
		case q.Answered:
			answered = "yes"
		case q.HasVisualSelection:
			answered = "marked"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", q.Index, q.DisplayNumber, q.QID, q.Type, answered, answer)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d of %d questions answered\n", scan.AnsweredCount(), scan.Total)
	return err
}

func exportWorkbook(path string, scan *exam.ScanResult) error {
	path, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("invalid --xlsx path: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := report.WriteStatusWorkbook(f, scan); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
