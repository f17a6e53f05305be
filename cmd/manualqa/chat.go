package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/manualqa/internal/assistant"
	"github.com/dgallion1/manualqa/internal/llm"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question and answer session",
	Long: `Start an interactive session about the manual. Follow-up questions see the
recent conversation.

Commands: exit or quit to leave, clear to forget the conversation, history to
print it, logs to show the last answer's metrics and toggle verbose logging.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, level, err := setup(true)
		if err != nil {
			return err
		}
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render(a.profile.Product+" manual assistant"))
		fmt.Fprintln(out, dimStyle.Render("Warming up "+a.generator.Model()+"..."))
		if err := a.assistant.Warmup(cmd.Context()); err != nil {
			fmt.Fprintln(out, warnStyle.Render("Warm-up failed, the first answer may be slow: "+err.Error()))
		}

		loop := &chatLoop{
			asker:   a.assistant,
			session: assistant.NewSession("", cfg.MaxTurns),
			level:   level,
			model:   a.generator.Model(),
			stats:   a.stats,
			out:     out,
		}
		return loop.run(cmd.Context(), cmd.InOrStdin())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

type asker interface {
	Ask(ctx context.Context, s *assistant.Session, req assistant.AskRequest) (*assistant.Answer, error)
}

// chatLoop is the read-answer loop behind the chat command.
type chatLoop struct {
	asker   asker
	session *assistant.Session
	level   *slog.LevelVar
	model   string
	stats   *llm.Stats
	out     io.Writer

	last *assistant.Answer
}

func (c *chatLoop) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, promptStyle.Render("You: "))
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "exit", "quit":
			fmt.Fprintln(c.out, dimStyle.Render("Goodbye."))
			return nil
		case "clear":
			c.session.Reset()
			c.last = nil
			fmt.Fprintln(c.out, dimStyle.Render("Conversation cleared."))
			continue
		case "history":
			fmt.Fprintln(c.out, c.session.Render())
			continue
		case "logs":
			c.toggleLogs()
			continue
		}

		ans, err := c.asker.Ask(ctx, c.session, assistant.AskRequest{Question: line})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			// The session is kept; the user can retry.
			fmt.Fprintln(c.out, errorStyle.Render(capitalize(err.Error())))
			continue
		}
		c.last = ans
		printAnswer(c.out, ans)
		printMetrics(c.out, ans)
	}
}

// toggleLogs flips between quiet and info logging and prints the latest
// metrics.
func (c *chatLoop) toggleLogs() {
	if c.level != nil {
		if c.level.Level() > slog.LevelInfo {
			c.level.Set(slog.LevelInfo)
			fmt.Fprintln(c.out, dimStyle.Render("Verbose logging on."))
		} else {
			c.level.Set(slog.LevelWarn)
			fmt.Fprintln(c.out, dimStyle.Render("Verbose logging off."))
		}
	}
	if c.last != nil {
		printMetrics(c.out, c.last)
	}
	if c.stats != nil {
		printLLMStats(c.out, c.model, c.stats.Snapshot())
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
