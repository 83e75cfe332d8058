package main

import (
	"fmt"

	"gardenloop/internal/feedbacklog"
	"gardenloop/internal/status"
	"gardenloop/internal/workspace"

	"github.com/spf13/cobra"
)

var (
	statusLog   bool
	statusStyle string
	statusWidth int
)

// statusCmd shows what the project has and what is missing
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show project inputs, designs and best scores",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusLog, "log", false, "Render the verify log")
	statusCmd.Flags().StringVar(&statusStyle, "style", "auto", "Markdown style for --log (auto, dark, light, notty)")
	statusCmd.Flags().IntVar(&statusWidth, "width", 100, "Word wrap width for --log")
}

func runStatus(cmd *cobra.Command, args []string) error {
	layout := workspace.NewLayout(cfg)
	flog := feedbacklog.New(layout.Feedback)
	out := cmd.OutOrStdout()

	if statusLog {
		rendered, err := status.RenderLog(flog, statusStyle, statusWidth)
		if err != nil {
			return err
		}
		fmt.Fprint(out, rendered)
		return nil
	}

	report, err := status.Collect(layout, flog)
	if err != nil {
		return err
	}
	fmt.Fprint(out, status.Render(report, status.DefaultStyles()))
	return nil
}
