package cli

import (
	"strings"

	"github.com/effective-security/toolagent/mcp/toolhost"
	"github.com/effective-security/x/values"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr    string
		baseURL string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tools over MCP",
		Long: `Start the tool host. Clients connect to the SSE endpoint at /sse
and post requests to /message.`,
		Example: `  toolagent serve
  toolagent serve --listen 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg.Server
			addr = values.StringsCoalesce(addr, cfg.ListenAddr)
			baseURL = values.StringsCoalesce(baseURL, cfg.BaseURL, advertisedURL(addr))

			srv, err := toolhost.NewServer(cfg.Name, cfg.Version)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context(), addr, baseURL)
		},
	}

	cmd.Flags().StringVar(&addr, "listen", "", "Listen address, default :8000")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Externally visible URL of the server")
	return cmd
}

// advertisedURL returns the URL clients on this host use to reach addr.
func advertisedURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
