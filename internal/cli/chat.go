package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolagent/assistants"
	"github.com/effective-security/toolagent/callbacks"
	"github.com/effective-security/toolagent/mcp"
	"github.com/effective-security/toolagent/pkg/config"
	"github.com/effective-security/toolagent/pkg/llmfactory"
	"github.com/effective-security/toolagent/pkg/llms"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type chatFlags struct {
	serverURL       string
	model           string
	maxIterations   int
	duplicateNotice bool
	verbose         bool
	stats           bool
}

func newChatCmd(a *app) *cobra.Command {
	var flags chatFlags

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Answer queries interactively",
		Long: `Connect to the tool host and answer queries read from stdin.
Type 'quit' to exit.`,
		Example: `  toolagent chat
  toolagent chat --server-url http://127.0.0.1:9000/sse --model qwen3-8b --stats`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, a.cfg, &flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.serverURL, "server-url", "", "SSE endpoint of the tool host")
	f.StringVar(&flags.model, "model", "", "Model to use, default from the LLM configuration")
	f.IntVar(&flags.maxIterations, "max-iterations", 0, "Maximum tool-enabled completions per query")
	f.BoolVar(&flags.duplicateNotice, "duplicate-notice", false, "Tell the model when a duplicate tool call is skipped")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "Print the messages sent to the model")
	f.BoolVar(&flags.stats, "stats", false, "Print the trace and the stats of each query to stderr")
	return cmd
}

func runChat(cmd *cobra.Command, cfg *config.Config, flags *chatFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	client := cfg.Client
	client.ServerURL = values.StringsCoalesce(flags.serverURL, client.ServerURL)
	client.Model = values.StringsCoalesce(flags.model, client.Model)
	client.MaxIterations = values.NumbersCoalesce(flags.maxIterations, client.MaxIterations)
	client.DuplicateNotice = client.DuplicateNotice || flags.duplicateNotice

	callTimeout, err := client.CallTimeoutDuration()
	if err != nil {
		return err
	}

	model, err := newModel(&cfg.LLM, client.Model)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Connecting to SSE MCP server at %s\n", client.ServerURL)
	sess, err := mcp.Connect(ctx, client.ServerURL, mcp.WithClientInfo(mcp.DefaultClientName, cfg.Server.Version))
	if err != nil {
		return err
	}
	defer func() {
		_ = sess.Close()
		fmt.Fprintln(out, "\nMCP Client Closed!")
	}()

	list, err := sess.ListTools(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(list))
	for _, d := range list {
		names = append(names, d.Name)
	}
	fmt.Fprintf(out, "Connected to SSE MCP Server at %s. Available tools: %v\n", client.ServerURL, names)

	mode := callbacks.ModeDefault
	if flags.verbose {
		mode = callbacks.ModeVerbose
	}
	fanout := callbacks.NewFanout(
		callbacks.NewPrinter(out, mode),
		callbacks.NewPackageLogger(logger),
	)
	var pad *callbacks.Scratchpad
	if flags.stats {
		pad = callbacks.NewScratchpad(mode)
		fanout.Add(pad)
	}

	opts := []assistants.Option{
		assistants.WithModel(client.Model),
		assistants.WithMaxTokens(client.MaxTokens),
		assistants.WithMaxIterations(client.MaxIterations),
		assistants.WithDuplicateNotice(client.DuplicateNotice),
		assistants.WithCallTimeout(callTimeout),
		assistants.WithCallback(fanout),
	}
	if client.Temperature != nil {
		opts = append(opts, assistants.WithTemperature(*client.Temperature))
	}
	agent := assistants.New(opts...)
	session := assistants.NewSession(model, sess)

	ask := func(ctx context.Context, query string) (string, error) {
		queryID := uuid.NewString()
		ctx = assistants.WithQueryID(ctx, queryID)

		answer, err := agent.ProcessQuery(ctx, session, query)
		if pad != nil {
			if _, trace := pad.EndRun(queryID); len(trace) > 0 {
				_, _ = cmd.ErrOrStderr().Write(trace)
			}
		}
		if err != nil {
			return "", err
		}
		return answer.Text, nil
	}

	fmt.Fprintln(out, "\nMCP Client Started!")
	fmt.Fprintln(out, "Type your queries or 'quit' to exit.")
	return chatLoop(ctx, cmd.InOrStdin(), out, ask)
}

// newModel returns the named model, or the default model of the configuration.
func newModel(cfg *llmfactory.Config, name string) (llms.Model, error) {
	f := llmfactory.New(cfg)
	if name == "" {
		return f.DefaultModel()
	}
	return f.ModelByName(name)
}

type askFunc func(ctx context.Context, query string) (string, error)

// maxQueryLen is the longest query line accepted from the input.
const maxQueryLen = 1 << 20

// chatLoop reads queries from in until EOF, 'quit' or cancellation,
// and writes the answers to out. A failed query does not end the loop,
// unless the tool host connection is lost.
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, ask askFunc) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxQueryLen)
	for {
		fmt.Fprint(out, "\nQuery: ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		query := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(query, "quit") {
			return nil
		}
		if query == "" {
			continue
		}

		answer, err := ask(ctx, query)
		if ctx.Err() != nil {
			logger.ContextKV(ctx, xlog.NOTICE, "status", "interrupted")
			return nil
		}
		if errors.Is(err, mcp.ErrTransport) {
			return err
		}
		if err != nil {
			fmt.Fprintf(out, "\nError: %s\n", err.Error())
			continue
		}
		fmt.Fprintf(out, "\n%s\n", answer)
	}
}
