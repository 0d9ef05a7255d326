package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/jobs"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var errExit = errors.New("exit requested")

var applyCmd = &cobra.Command{
	Use:   "apply [job-id...]",
	Short: "Apply to the given jobs, or to the best eligible stored jobs",
	Run: func(cmd *cobra.Command, args []string) {
		autoApprove, _ := cmd.Flags().GetBool("auto-approve")
		applyJobs(cmd.Context(), mustFlag(cmd, "user"), args, autoApprove)
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().StringP("user", "u", "", "user id")
	applyCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before applying")
}

func applyJobs(ctx context.Context, userID string, ids []string, autoApprove bool) {
	logger, config := setup()

	c, err := build(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}
	defer c.Close(logger)

	targets, err := applyTargets(ctx, c, userID, ids)
	if err != nil {
		logger.Fatal("selecting jobs", zap.Error(err))
	}
	if len(targets) == 0 {
		logger.Info("nothing to apply to")
		return
	}

	for _, j := range targets {
		fmt.Printf("%3d  %-40s  %-25s  %s\n", j.MatchScore, j.Title, j.Company, j.ID)
	}

	if !autoApprove {
		if err := confirm(fmt.Sprintf("Apply to %d jobs?", len(targets))); err != nil {
			logger.Info("stopping", zap.Error(err))
			return
		}
	}

	// Pauses between applications follow the same pacing as the auto-apply task.
	results, err := c.pipeline.ApplyAll(ctx, userID, targets)
	for i, res := range results {
		fields := []zap.Field{
			zap.String("job_id", targets[i].ID),
			zap.String("method", string(res.Method)),
			zap.String("application_id", res.ApplicationID),
		}
		if !res.Success {
			logger.Warn("application failed", append(fields, zap.String("error", res.Error))...)
			continue
		}
		logger.Info("successfully applied", append(fields, zap.String("confirmation", res.ConfirmationMessage))...)
	}
	if err != nil {
		logger.Warn("stopped before applying to every job", zap.Int("applied", len(results)), zap.Error(err))
	}
}

// applyTargets resolves explicit ids, or picks the eligible jobs the
// auto-apply task would choose.
func applyTargets(ctx context.Context, c *components, userID string, ids []string) ([]jobs.Summary, error) {
	if len(ids) > 0 {
		out := make([]jobs.Summary, 0, len(ids))
		for _, id := range ids {
			j, err := c.engine.GetJob(ctx, userID, id)
			if err != nil {
				return nil, err
			}
			out = append(out, j.Summary())
		}
		return out, nil
	}

	return c.pipeline.Eligible(ctx, userID)
}

func confirm(label string) error {
	prompt := promptui.Select{
		Label: label,
		Items: []string{PromptYes, PromptNo},
	}
	_, result, err := prompt.Run()
	if err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	if result != PromptYes {
		return errExit
	}
	return nil
}
