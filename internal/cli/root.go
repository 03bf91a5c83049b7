package cli

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolagent/pkg/config"
	"github.com/effective-security/xlog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolagent/internal", "cli")

// app is the state shared by the commands.
type app struct {
	configFile string
	envFile    string
	logLevel   string

	cfg *config.Config
}

// NewRootCmd creates the top-level toolagent command with all subcommands.
func NewRootCmd() *cobra.Command {
	a := new(app)

	cmd := &cobra.Command{
		Use:   "toolagent",
		Short: "Tool-calling chat agent over MCP",
		Long: `toolagent answers questions with a chat model that calls tools
served by an MCP tool host.

Run "toolagent serve" to start the tool host, then "toolagent chat".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Configuration file, YAML or JSON")
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Environment file, loaded if present")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: TRACE|DEBUG|INFO|NOTICE|WARNING|ERROR|CRITICAL")

	cmd.AddCommand(
		newServeCmd(a),
		newChatCmd(a),
		newCheckCmd(a),
	)

	return cmd
}

func (a *app) init() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !os.IsNotExist(err) {
			return errors.WithMessagef(err, "failed to load %s", a.envFile)
		}
	}

	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := strings.ToUpper(a.logLevel)
	if level == "" {
		level = cfg.Log.Level
	}
	l, err := xlog.ParseLevel(level)
	if err != nil {
		return errors.WithMessagef(err, "invalid log level %q", level)
	}
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	xlog.SetGlobalLogLevel(l)

	logger.KV(xlog.DEBUG,
		"status", "config_loaded",
		"file", a.configFile,
		"log_level", level,
	)
	return nil
}
