package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/scheduler"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Run or inspect the scheduled pipeline tasks",
}

var tasksRunCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run one task now for every user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger, config := setup()

		c, err := build(cmd.Context(), config, logger)
		if err != nil {
			logger.Fatal("building the pipeline", zap.Error(err))
		}
		defer c.Close(logger)

		started := time.Now()
		if err := c.scheduler.RunNow(cmd.Context(), args[0]); err != nil {
			logger.Fatal("running task", zap.String("task", args[0]), zap.Error(err))
		}
		logger.Info("task finished", zap.String("task", args[0]), zap.Duration("took", time.Since(started)))
	},
}

var tasksStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the task table of a running daemon",
	Run: func(cmd *cobra.Command, _ []string) {
		logger, config := setup()

		addr := flagString(cmd, "addr")
		if addr == "" {
			addr = config.Metrics.Listen
		}
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		if !strings.Contains(addr, "://") {
			addr = "http://" + addr
		}

		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(addr + "/healthz")
		if err != nil {
			logger.Fatal("querying the daemon", zap.Error(err))
		}
		defer resp.Body.Close()

		var health struct {
			Tasks []scheduler.TaskStatus `json:"tasks"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			logger.Fatal("decoding the task table", zap.Error(err))
		}

		for _, t := range health.Tasks {
			state := "enabled"
			switch {
			case t.Running:
				state = "running"
			case !t.Enabled:
				state = "disabled"
			}
			fmt.Printf("%-12s  %-8s  every %-6s  next %s", t.Name, state, t.Interval, t.NextRun.Format(time.RFC3339))
			if t.LastError != "" {
				fmt.Printf("  last error: %s", t.LastError)
			}
			fmt.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksRunCmd, tasksStatusCmd)

	tasksStatusCmd.Flags().String("addr", "", "daemon metrics address (default is metrics.listen)")
}
