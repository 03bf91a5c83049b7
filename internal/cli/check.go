package cli

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolagent/mcp"
	"github.com/effective-security/toolagent/pkg/toolargs"
	"github.com/effective-security/toolagent/tools"
	"github.com/effective-security/x/values"
	"github.com/spf13/cobra"
)

func newCheckCmd(a *app) *cobra.Command {
	var (
		serverURL string
		tool      string
		args      string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "List the tools and call one of them",
		Example: `  toolagent check
  toolagent check --tool add --args '{"a": 1, "b": 2}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			input, err := toolargs.ParseObject(args)
			if err != nil {
				return errors.WithMessage(err, "invalid --args")
			}

			url := values.StringsCoalesce(serverURL, a.cfg.Client.ServerURL)
			sess, err := mcp.Connect(ctx, url, mcp.WithClientInfo(mcp.DefaultClientName, a.cfg.Server.Version))
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			list, err := sess.ListTools(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\n\n", tools.Describe(list...))

			res, err := sess.CallTool(ctx, tool, input.Map())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server-url", "", "SSE endpoint of the tool host")
	cmd.Flags().StringVar(&tool, "tool", "get_temperature", "Tool to call")
	cmd.Flags().StringVar(&args, "args", `{"location": "New York"}`, "Tool arguments, a JSON object")
	return cmd
}
