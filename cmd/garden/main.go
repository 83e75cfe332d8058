package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gardenloop/internal/config"
	"gardenloop/internal/logging"
	"gardenloop/internal/perception"
	"gardenloop/internal/usage"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	rootDir    string
	configPath string

	// Loaded once in PersistentPreRunE
	cfg     *config.Config
	tracker *usage.Tracker

	// modelFactory builds the model client for commands that call out.
	modelFactory = newGeminiModel
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "garden",
	Short: "Garden design loop - generate and verify garden designs",
	Long: `garden turns photos of a real garden plus inspiration images into
design renderings, then has the model grade each design against the
photos. Rejected designs are moved aside and their feedback is fed into
the next attempt until one passes, scores stop improving, or attempts run out.

Project layout (relative to --root):
  ref/space/                 photos of the garden
  ref/inspiration/<zone>/    inspiration per zone
  drawings/layouts/          layout drawings
  generated/prompts/         <zone>.md, system_prompt.md, verify_prompt.md, annotate_prompt.md
  generated/visuals/         designs (<zone>_v<N>.jpg)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}

		base, err := logging.New(cfg.Logging, verbose)
		if err != nil {
			return err
		}
		logging.Initialize(base, cfg.Logging)
		logging.Boot("garden %s: root=%s model=%s", cmd.Name(), cfg.Root, cfg.LLM.Model)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if tracker != nil {
			if err := tracker.Save(); err != nil {
				logging.Get(logging.CategoryAPI).Warn("failed to save usage: %v", err)
			}
		}
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", "", "Project root (default: directory of the config file)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <root>/garden.yaml)")

	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(annotateCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves the config file from --config or --root. An explicit
// --root wins over the file and GARDEN_ROOT.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		dir := rootDir
		if dir == "" {
			dir = "."
		}
		path = filepath.Join(dir, config.DefaultConfigFile)
	}

	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if rootDir != "" {
		c.Root = rootDir
	}
	return c, nil
}

// usageTracker opens the project's usage file on first use.
func usageTracker() *usage.Tracker {
	if tracker == nil {
		tracker = usage.NewTracker(cfg.Path(cfg.Paths.Feedback))
	}
	return tracker
}

// newGeminiModel validates the key and builds the traced Gemini client.
func newGeminiModel(ctx context.Context, c *config.Config) (perception.ImageModel, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	client, err := perception.NewGeminiClient(ctx, perception.GeminiConfig{
		APIKey: c.LLM.APIKey,
		Model:  c.LLM.Model,
	})
	if err != nil {
		return nil, err
	}
	return perception.NewTracingClient(client).WithRecorder(usageTracker()), nil
}

// reportUsage logs the call totals of a traced model.
func reportUsage(model perception.ImageModel) {
	tc, ok := model.(*perception.TracingClient)
	if !ok {
		return
	}
	u := tc.Usage()
	logging.API("API usage: calls=%d failures=%d images=%d duration=%v", u.Calls, u.Failures, u.Images, u.Duration)
}
