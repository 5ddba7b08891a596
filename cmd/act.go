// File: cmd/act.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/exam-autofill/internal/agent"
	"github.com/xkilldash9x/exam-autofill/internal/observability"
)

func newActCmd() *cobra.Command {
	var (
		params string
		noScan bool
	)

	cmd := &cobra.Command{
		Use:   "act ACTION_TYPE",
		Short: "Run one exam action and print its result as JSON",
		Long: "Run one exam action against the open exam page, for example:\n\n" +
			`  exam-autofill act select_single_choice --params '{"qid": 3, "choice": "B"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			raw := strings.TrimSpace(params)
			if raw == "" {
				raw = "{}"
			}
			if !json.Valid([]byte(raw)) {
				return fmt.Errorf("--params is not valid JSON")
			}

			comps, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Shutdown(logger)

			actionType, ok := comps.registry.ParseActionType(args[0])
			if !ok {
				return fmt.Errorf("unknown action type %q (known: %s)", args[0], joinTypes(comps.registry.Types()))
			}

			if !noScan && actionType != agent.ActionGetAllQuestionsStatus {
				comps.primeIndex(ctx, logger)
			}

			result, err := comps.registry.Execute(ctx, agent.Action{Type: actionType, Params: json.RawMessage(raw)})
			if err != nil {
				return err
			}
			if err := printJSON(cmd, result); err != nil {
				return err
			}
			if !result.Succeeded() {
				return fmt.Errorf("action %s failed: %s", actionType, result.ErrorCode)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&params, "params", "p", "", "action parameters as a JSON object")
	cmd.Flags().BoolVar(&noScan, "no-scan", false, "skip the page scan that lets display positions resolve")
	return cmd
}

func joinTypes(types []agent.ActionType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = strings.ToLower(string(t))
	}
	return strings.Join(names, ", ")
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
