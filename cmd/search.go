package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/jobs"
)

var searchQuery jobs.Query

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search every configured platform once and store the ranked results",
	Run: func(cmd *cobra.Command, _ []string) {
		searchOnce(cmd.Context(), mustFlag(cmd, "user"))
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringP("user", "u", "", "user id whose profile is used for scoring")
	searchCmd.Flags().StringVarP(&searchQuery.Text, "query", "q", "", "free text query")
	searchCmd.Flags().StringSliceVarP(&searchQuery.Keywords, "keywords", "k", nil, "additional keywords")
	searchCmd.Flags().StringVarP(&searchQuery.Location, "location", "l", "", "location filter")
	searchCmd.Flags().BoolVarP(&searchQuery.Remote, "remote", "r", false, "remote positions only")
	searchCmd.Flags().Float64Var(&searchQuery.MinSalary, "min-salary", 0, "minimum salary")
	searchCmd.Flags().StringSliceVar(&searchQuery.ExcludedCompanies, "exclude-company", nil, "companies to skip")
	searchCmd.Flags().IntVar(&searchQuery.Limit, "limit", 0, "maximum postings per platform")
}

func searchOnce(ctx context.Context, userID string) {
	logger, config := setup()

	c, err := build(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}
	defer c.Close(logger)

	res, err := c.engine.Search(ctx, userID, searchQuery)
	if err != nil {
		logger.Fatal("search", zap.Error(err))
	}

	for name, p := range res.Platforms {
		fields := []zap.Field{zap.String("platform", name), zap.Int("count", p.Count)}
		if p.Error != "" {
			fields = append(fields, zap.String("error", p.Error))
		}
		logger.Info("platform searched", fields...)
	}

	for _, j := range res.Jobs {
		fmt.Printf("%3d  %-40s  %-25s  %s\n", j.MatchScore, j.Title, j.Company, j.ID)
	}
	logger.Info("search finished", zap.Int("total", res.Total), zap.Int("new", res.New))
}

// mustFlag returns a required string flag or exits.
func mustFlag(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil || v == "" {
		cobra.CheckErr(fmt.Errorf("--%s is required", name))
	}
	return v
}
