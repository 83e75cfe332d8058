package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"gardenloop/internal/feedbacklog"
	"gardenloop/internal/verdict"
	"gardenloop/internal/verification"
	"gardenloop/internal/workspace"

	"github.com/spf13/cobra"
)

var (
	verifyImage string
	verifyAll   bool
	verifyWatch bool
)

// errVerifyMode is returned unless exactly one verify mode is chosen.
var errVerifyMode = errors.New("specify exactly one of --image, --all or --watch")

// verifyCmd grades designs against the space photos
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify designs against the garden photos",
	Long: `Grades designs against the space photos. REJECT designs are moved to
generated/rejected/ and every verdict is appended to verify_log.md.

Modes:
  --image P   verify one design (relative to --root)
  --all       verify every design in generated/visuals/
  --watch     verify new designs as they appear until interrupted`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyImage, "image", "i", "", "Design to verify")
	verifyCmd.Flags().BoolVar(&verifyAll, "all", false, "Verify every design")
	verifyCmd.Flags().BoolVar(&verifyWatch, "watch", false, "Verify new designs as they are written")
}

func runVerify(cmd *cobra.Command, args []string) error {
	modes := 0
	for _, set := range []bool{verifyImage != "", verifyAll, verifyWatch} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		return errVerifyMode
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	model, err := modelFactory(ctx, cfg)
	if err != nil {
		return err
	}
	defer reportUsage(model)

	layout := workspace.NewLayout(cfg)
	ver := verification.NewVerifier(cfg, layout, model, feedbacklog.New(layout.Feedback))

	switch {
	case verifyImage != "":
		res, err := ver.VerifyAndHandle(ctx, cfg.Path(verifyImage))
		if res.Verdict.Category != "" {
			printResult(out, res)
		}
		return err
	case verifyAll:
		tally, err := ver.VerifyAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Verified %d design(s): %d PASS, %d MARGINAL, %d REJECT, %d UNKNOWN\n", tally.Total(),
			tally[verdict.CategoryPass], tally[verdict.CategoryMarginal], tally[verdict.CategoryReject], tally[verdict.CategoryUnknown])
		return nil
	default:
		fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", layout.Visuals)
		return ver.Watch(ctx, func(res verification.Result) { printResult(out, res) })
	}
}

func printResult(w io.Writer, res verification.Result) {
	v := res.Verdict
	fmt.Fprintf(w, "%s: %d/%d %s\n", filepath.Base(res.Image), v.Score, verdict.MaxScore, v.Category)
	if res.FinalPath != "" && res.FinalPath != res.Image {
		fmt.Fprintf(w, "  moved to %s\n", res.FinalPath)
	}
	if fb := v.BuildFeedback(); fb != "" {
		fmt.Fprintf(w, "  %s\n", fb)
	}
}
