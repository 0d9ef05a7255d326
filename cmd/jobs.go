package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/search"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect stored jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored jobs, best match first",
	Run: func(cmd *cobra.Command, _ []string) {
		logger, config := setup()
		userID := mustFlag(cmd, "user")

		filters := search.Filters{Platform: flagString(cmd, "platform")}
		filters.MinScore, _ = cmd.Flags().GetInt("min-score")
		if s := flagString(cmd, "status"); s != "" {
			status, err := jobs.ParseStatus(s)
			if err != nil {
				logger.Fatal("parsing status", zap.Error(err))
			}
			filters.Status = status
		}

		c, err := build(cmd.Context(), config, logger)
		if err != nil {
			logger.Fatal("building the pipeline", zap.Error(err))
		}
		defer c.Close(logger)

		list, err := c.engine.ListJobs(cmd.Context(), userID, filters)
		if err != nil {
			logger.Fatal("listing jobs", zap.Error(err))
		}
		for _, j := range list {
			fmt.Printf("%3d  %-10s  %-12s  %-40s  %-25s  %s\n", j.MatchScore, j.Status, j.Platform, j.Title, j.Company, j.ID)
		}
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)

	jobsListCmd.Flags().StringP("user", "u", "", "user id")
	jobsListCmd.Flags().StringP("status", "s", "", "only jobs with this status")
	jobsListCmd.Flags().StringP("platform", "p", "", "only jobs from this platform")
	jobsListCmd.Flags().Int("min-score", 0, "minimum match score")
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
