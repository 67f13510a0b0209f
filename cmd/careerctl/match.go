package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/career-agent/engine/app"
	"github.com/WessleyAI/career-agent/engine/coach"
	"github.com/WessleyAI/career-agent/engine/domain"
	"github.com/WessleyAI/career-agent/engine/match"
)

func newMatchCmd(e *env) *cobra.Command {
	var (
		asJSON    bool
		withCoach bool
		mode      string
	)
	cmd := &cobra.Command{
		Use:   "match <resume_id> <job_id>",
		Short: "Score a stored resume against a stored job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resumeID, jobID := args[0], args[1]
			if err := domain.ValidateID("resume_id", resumeID); err != nil {
				return err
			}
			if err := domain.ValidateID("job_id", jobID); err != nil {
				return err
			}
			if mode == "" {
				mode = e.cfg.MatchMode
			}

			store, err := app.OpenChunkStore(e.cfg, e.log)
			if err != nil {
				return fmt.Errorf("chunk store: %w", err)
			}
			defer store.Close()

			ctx := cmd.Context()
			res, err := match.New(store, match.Options{Mode: match.Mode(mode)}, e.log).Compute(ctx, resumeID, jobID)
			if err != nil {
				return err
			}
			var rep *coach.Report
			if withCoach {
				client, err := app.NewLLM(ctx, e.cfg)
				if err != nil {
					return fmt.Errorf("llm: %w", err)
				}
				if rep, err = coach.New(client, store, e.log).Report(ctx, resumeID, jobID, res); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					*match.Result
					*coach.Report
				}{res, rep})
			}
			printMatch(out, res, rep)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().BoolVar(&withCoach, "coach", false, "add LLM feedback and a learning path")
	cmd.Flags().StringVar(&mode, "mode", "", "ann or bruteforce (default from match_mode)")
	return cmd
}

func printMatch(w io.Writer, res *match.Result, rep *coach.Report) {
	fmt.Fprintf(w, "Match score: %.2f%%  (%d resume chunks, %d job chunks)\n",
		res.MatchScorePercent, res.ResumeChunks, res.JobChunks)
	for i, p := range res.TopMatches {
		fmt.Fprintf(w, "\n#%d  %.4f\n  resume: %s\n  job:    %s\n", i+1, p.Score,
			domain.Truncate(p.ResumeChunk, domain.ListPreviewLen), domain.Truncate(p.JobMatch, domain.ListPreviewLen))
	}
	if rep == nil {
		return
	}
	if rep.Feedback.Error != "" {
		fmt.Fprintf(w, "\nFeedback unavailable: %s\n", rep.Feedback.Error)
	} else if len(rep.Feedback.MissingSkills) > 0 {
		fmt.Fprintf(w, "\nMissing skills: %v\n", rep.Feedback.MissingSkills)
	}
	for _, d := range rep.LearningPath.Roadmap {
		fmt.Fprintf(w, "Day %d: %s\n", d.Day, d.Goal)
	}
	if rep.LearningPath.PortfolioProject != "" {
		fmt.Fprintf(w, "Portfolio project: %s\n", rep.LearningPath.PortfolioProject)
	}
}
