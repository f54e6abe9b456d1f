// Package cli implements the kulti-stream command line tool: the operator
// surface for streaming by hand, the hook entrypoints for Claude Code and
// Gemini CLI, the filesystem watcher, and a debugging viewer.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ga1ien/kulti-stream/internal/infrastructure/config"
	"github.com/ga1ien/kulti-stream/internal/infrastructure/logger"
	"github.com/ga1ien/kulti-stream/pkg/kulti"
	"github.com/ga1ien/kulti-stream/pkg/stream"
)

// NewRootCmd builds the full command tree.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kulti-stream",
		Short: "Stream your AI agent's activity to a Kulti state server",
		Long: `kulti-stream narrates what an agent is doing — thoughts, code, terminal
activity — to a Kulti state server, where viewers watch it live.

Environment:
  KULTI_STATE_SERVER   State server URL (default http://localhost:8766)
  KULTI_AGENT_ID       Agent ID (default "nex")
  KULTI_API_KEY        API key for authenticated streaming
  KULTI_STREAM_ENABLED "0" disables the hook adapters`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("agent", "a", "", "agent ID (overrides KULTI_AGENT_ID)")
	rootCmd.PersistentFlags().StringP("server", "s", "", "state server URL (overrides KULTI_STATE_SERVER)")
	rootCmd.PersistentFlags().StringP("key", "k", "", "API key (overrides KULTI_API_KEY)")

	rootCmd.AddCommand(
		newThoughtCommands()...,
	)
	rootCmd.AddCommand(
		newTaskCmd(),
		newStatusCmd(),
		newLiveCmd(),
		newGoalCmd(),
		newMilestoneCmd(),
		newTerminalCmd(),
		newCmdCmd(),
		newCodeCmd(),
		newCodeInlineCmd(),
		newFileCmd(),
		newClaudeHookCmd(),
		newGeminiHookCmd(),
		newWatchCmd(),
		newTailCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Show version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("kulti-stream v%s\n", version)
			},
		},
	)

	return rootCmd
}

// cliSettings resolves adapter settings with flag overrides applied.
func cliSettings(cmd *cobra.Command) config.Settings {
	settings := config.FromEnv()
	if agent, _ := cmd.Flags().GetString("agent"); agent != "" {
		settings.AgentID = agent
	}
	if server, _ := cmd.Flags().GetString("server"); server != "" {
		settings.ServerURL = server
	}
	if key, _ := cmd.Flags().GetString("key"); key != "" {
		settings.APIKey = key
	}
	return settings
}

// newCLIClient builds a client for an explicit operator command. Unlike the
// hook adapters, these always stream: typing the command is the opt-in.
func newCLIClient(cmd *cobra.Command) *kulti.Client {
	settings := cliSettings(cmd)
	return kulti.NewClient(settings.ServerURL,
		kulti.WithAgentID(settings.AgentID),
		kulti.WithAPIKey(settings.APIKey),
		kulti.WithLogger(logger.NewHookLogger()),
	)
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}

// ─── Thought commands ───

func newThoughtCommands() []*cobra.Command {
	think := &cobra.Command{
		Use:     "think <text>",
		Aliases: []string{"t"},
		Short:   "Stream a general thought",
		Args:    cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client := newCLIClient(cmd)
			client.Think(joinArgs(args), nil)
			client.Flush()
			fmt.Println("Streamed thought")
		},
	}

	reason := &cobra.Command{
		Use:     "reason <text>",
		Aliases: []string{"r"},
		Short:   "Stream reasoning — why you're doing something",
		Args:    cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client := newCLIClient(cmd)
			client.Reason(joinArgs(args))
			client.Flush()
			fmt.Println("Streamed reasoning")
		},
	}

	decide := &cobra.Command{
		Use:     "decide <text>",
		Aliases: []string{"d"},
		Short:   "Stream a decision",
		Args:    cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client := newCLIClient(cmd)
			client.Decide(joinArgs(args))
			client.Flush()
			fmt.Println("Streamed decision")
		},
	}

	observe := &cobra.Command{
		Use:     "observe <text>",
		Aliases: []string{"o"},
		Short:   "Stream an observation",
		Args:    cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client := newCLIClient(cmd)
			client.Observe(joinArgs(args))
			client.Flush()
			fmt.Println("Streamed observation")
		},
	}

	confused := &cobra.Command{
		Use:   "confused <text>",
		Short: "Stream confusion — something you don't understand",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client := newCLIClient(cmd)
			client.Confused(joinArgs(args))
			client.Flush()
			fmt.Println("Streamed confusion")
		},
	}

	evaluate := &cobra.Command{
		Use:     "evaluate <text>",
		Aliases: []string{"e"},
		Short:   "Stream an evaluation of options",
		Args:    cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			optionsFlag, _ := cmd.Flags().GetString("options")
			chosen, _ := cmd.Flags().GetString("chosen")
			var options []string
			if optionsFlag != "" {
				for _, opt := range strings.Split(optionsFlag, "|") {
					if opt = strings.TrimSpace(opt); opt != "" {
						options = append(options, opt)
					}
				}
			}
			client := newCLIClient(cmd)
			client.Evaluate(joinArgs(args), options, chosen)
			client.Flush()
			fmt.Println("Streamed evaluation")
		},
	}
	evaluate.Flags().String("options", "", `pipe-separated options, e.g. "JWT|Session|OAuth2"`)
	evaluate.Flags().String("chosen", "", "which option was picked")

	context := &cobra.Command{
		Use:   "context <text> [file]",
		Short: "Stream context loading",
		Args:  cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			file := ""
			if len(args) > 1 {
				file = args[1]
			}
			client := newCLIClient(cmd)
			client.Context(args[0], file)
			client.Flush()
			fmt.Println("Streamed context")
		},
	}

	tool := &cobra.Command{
		Use:   "tool <text> [toolName]",
		Short: "Stream tool usage",
		Args:  cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			toolName := ""
			if len(args) > 1 {
				toolName = args[1]
			}
			client := newCLIClient(cmd)
			client.Tool(args[0], toolName)
			client.Flush()
			fmt.Println("Streamed tool")
		},
	}

	prompt := &cobra.Command{
		Use:     "prompt <text> [promptFor]",
		Aliases: []string{"p"},
		Short:   "Stream a prompt being crafted",
		Args:    cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			promptFor := ""
			if len(args) > 1 {
				promptFor = args[1]
			}
			client := newCLIClient(cmd)
			client.Prompt(args[0], promptFor)
			client.Flush()
			fmt.Println("Streamed prompt")
		},
	}

	return []*cobra.Command{think, reason, decide, observe, confused, evaluate, context, tool, prompt}
}

// ─── State commands ───

func newTaskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "task <title>",
		Short: "Set the current task headline",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client := newCLIClient(cmd)
			client.Task(joinArgs(args))
			client.Flush()
			fmt.Println("Task set")
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status <status>",
		Aliases: []string{"st"},
		Short:   "Set agent status (offline|starting|working|thinking|paused|live|done)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := stream.Status(args[0])
			if !stream.ValidStatus(status) {
				return fmt.Errorf("invalid status %q", args[0])
			}
			client := newCLIClient(cmd)
			client.Status(status)
			client.Flush()
			fmt.Printf("Status: %s\n", status)
			return nil
		},
	}
}

func newLiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "Go live",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			client := newCLIClient(cmd)
			client.Status(stream.StatusLive)
			client.Flush()
			fmt.Println("LIVE")
		},
	}
}

func newGoalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "goal <title> [description]",
		Short: "Declare the session goal",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			description := ""
			if len(args) > 1 {
				description = joinArgs(args[1:])
			}
			client := newCLIClient(cmd)
			client.Goal(args[0], description)
			client.Flush()
			fmt.Println("Goal set")
		},
	}
}

func newMilestoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "milestone <label>",
		Short: "Record a progress milestone",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			done, _ := cmd.Flags().GetBool("done")
			client := newCLIClient(cmd)
			client.Milestone(joinArgs(args), done)
			client.Flush()
			fmt.Println("Milestone recorded")
		},
	}
	cmd.Flags().Bool("done", false, "mark the milestone completed")
	return cmd
}

func newTerminalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "terminal <text> [type]",
		Short: "Append a terminal line (info|error|success|warning|input|output)",
		Args:  cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			lineType := "info"
			if len(args) > 1 {
				lineType = args[1]
			}
			client := newCLIClient(cmd)
			client.Terminal([]stream.TerminalLine{
				{Type: lineType, Content: stream.Truncate(args[0], stream.MaxTerminalLen)},
			}, &stream.Stats{})
			client.Flush()
			fmt.Println("Streamed terminal line")
		},
	}
}

func newCmdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cmd <command> [output]",
		Short: "Stream a command and its output to the terminal panel",
		Args:  cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			lines := []stream.TerminalLine{{Type: "input", Content: "$ " + args[0]}}
			if len(args) > 1 && strings.TrimSpace(args[1]) != "" {
				lines = append(lines, stream.TerminalLine{
					Type:    "output",
					Content: stream.Truncate(args[1], stream.MaxTerminalLen),
				})
			}
			client := newCLIClient(cmd)
			client.Terminal(lines, nil)
			client.Flush()
			fmt.Println("Streamed command")
		},
	}
}

func newCodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "code <filepath> [write|edit|delete]",
		Aliases: []string{"c"},
		Short:   "Stream a file's content to the code panel",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "write"
			if len(args) > 1 {
				action = args[1]
			}
			client := newCLIClient(cmd)
			if err := client.CodeFile(args[0], action); err != nil {
				return fmt.Errorf("could not read file: %s", args[0])
			}
			client.Flush()
			fmt.Printf("Streamed %s (%s)\n", stream.ShortPath(args[0]), action)
			return nil
		},
	}
}

func newCodeInlineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "code-inline <filename> <content> [write|edit|delete]",
		Short: "Stream code passed on the command line",
		Args:  cobra.RangeArgs(2, 3),
		Run: func(cmd *cobra.Command, args []string) {
			action := "write"
			if len(args) > 2 {
				action = args[2]
			}
			client := newCLIClient(cmd)
			client.Code(&stream.Code{
				Filename: args[0],
				Content:  stream.Truncate(args[1], stream.MaxCodeLen),
				Action:   action,
			})
			client.Flush()
			fmt.Printf("Streamed %s (%s)\n", args[0], action)
		},
	}
}

func newFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "file <filepath> [write|edit|delete]",
		Short: "Stream a file change: observation plus content",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "write"
			if len(args) > 1 {
				action = args[1]
			}
			client := newCLIClient(cmd)
			client.Observe("File changed: " + stream.ShortPath(args[0]))
			if err := client.CodeFile(args[0], action); err != nil {
				return fmt.Errorf("could not read file: %s", args[0])
			}
			client.Flush()
			fmt.Printf("Streamed %s (%s)\n", stream.ShortPath(args[0]), action)
			return nil
		},
	}
}
