package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/manualqa/internal/assistant"
)

var (
	askChapter string
	askHeading string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, _, err := setup(true)
		if err != nil {
			return err
		}
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		ans, err := a.assistant.Ask(cmd.Context(), assistant.NewSession("", cfg.MaxTurns), assistant.AskRequest{
			Question: strings.Join(args, " "),
			Chapter:  askChapter,
			Heading:  askHeading,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printAnswer(out, ans)
		printMetrics(out, ans)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askChapter, "chapter", "", "Restrict retrieval to this chapter")
	askCmd.Flags().StringVar(&askHeading, "heading", "", "Restrict retrieval to this section heading")
	rootCmd.AddCommand(askCmd)
}
