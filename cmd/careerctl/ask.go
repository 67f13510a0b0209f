package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/career-agent/engine/app"
	"github.com/WessleyAI/career-agent/engine/domain"
	"github.com/WessleyAI/career-agent/engine/rag"
)

func newAskCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <resume_id> <question>...",
		Short: "Answer a question from a stored resume, with citations",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resumeID, question := args[0], strings.Join(args[1:], " ")
			if err := domain.ValidateID("resume_id", resumeID); err != nil {
				return err
			}
			if err := domain.ValidateQuestion("question", question); err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := app.OpenChunkStore(e.cfg, e.log)
			if err != nil {
				return fmt.Errorf("chunk store: %w", err)
			}
			defer store.Close()
			client, err := app.NewLLM(ctx, e.cfg)
			if err != nil {
				return fmt.Errorf("llm: %w", err)
			}

			ans, err := rag.New(app.NewEmbedder(e.cfg), client, store, rag.DefaultOptions(), e.log).Ask(ctx, resumeID, question)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ans.Result)
			if len(ans.Citations) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, c := range ans.Citations {
					fmt.Fprintf(out, "  %s\n", c)
				}
			}
			return nil
		},
	}
}
