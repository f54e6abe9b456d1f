package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ga1ien/kulti-stream/internal/adapter/claude"
	"github.com/ga1ien/kulti-stream/internal/adapter/gemini"
	"github.com/ga1ien/kulti-stream/internal/adapter/watcher"
	"github.com/ga1ien/kulti-stream/internal/infrastructure/config"
	"github.com/ga1ien/kulti-stream/internal/infrastructure/logger"
	"github.com/ga1ien/kulti-stream/pkg/kulti"
)

func newClaudeHookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claude-hook",
		Short: "Claude Code hook entrypoint (reads the hook event from stdin)",
		Long: `Wire this into Claude Code's hook config for PreToolUse, PostToolUse,
UserPromptSubmit, Stop, SubagentStart and SubagentStop. The event name
arrives in CLAUDE_HOOK_EVENT_NAME and the body on stdin.

Hooks always exit 0: a streaming failure must never block the agent.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			settings := cliSettings(cmd)
			log := logger.NewHookLogger()
			client := kulti.NewClient(settings.ServerURL,
				kulti.WithAgentID(settings.AgentID),
				kulti.WithAPIKey(settings.APIKey),
				kulti.WithLogger(log),
			)
			adapter := claude.New(settings, client, log)
			_ = adapter.Run(os.Stdin, os.Getenv(claude.EnvHookEvent))
		},
	}
}

func newGeminiHookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gemini-hook",
		Short: "Gemini CLI hook entrypoint (reads the hook event from stdin)",
		Long: `Wire this into Gemini CLI's hook config. The event name arrives in
GEMINI_HOOK_EVENT and the body on stdin; some events carry no body.

Hooks always exit 0: a streaming failure must never block the agent.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			settings := cliSettings(cmd)
			if agent, _ := cmd.Flags().GetString("agent"); agent == "" &&
				os.Getenv(config.EnvAgentID) == "" {
				settings.AgentID = gemini.DefaultAgentID
			}
			log := logger.NewHookLogger()
			client := kulti.NewClient(settings.ServerURL,
				kulti.WithAgentID(settings.AgentID),
				kulti.WithAPIKey(settings.APIKey),
				kulti.WithLogger(log),
			)
			adapter := gemini.New(settings, client, log)
			_ = adapter.Run(os.Stdin, os.Getenv(gemini.EnvHookEvent))
		},
	}
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a directory and stream file changes as they happen",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := cliSettings(cmd)
			if agent, _ := cmd.Flags().GetString("agent"); agent == "" &&
				os.Getenv(config.EnvAgentID) == "" {
				settings.AgentID = watcher.DefaultAgentID
			}
			if len(args) > 0 {
				settings.WatchPath = args[0]
			}
			if ignore, _ := cmd.Flags().GetString("ignore"); ignore != "" {
				settings.WatchIgnore = ignore
			}

			log := logger.NewHookLogger()
			client := kulti.NewClient(settings.ServerURL,
				kulti.WithAgentID(settings.AgentID),
				kulti.WithAPIKey(settings.APIKey),
				kulti.WithLogger(log),
			)
			defer client.Flush()

			w, err := watcher.New(settings, client, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return w.Run(ctx)
		},
	}
	cmd.Flags().String("ignore", "", "extra comma-separated ignore patterns")
	return cmd
}
