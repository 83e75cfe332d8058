package main

import (
	"fmt"

	"gardenloop/internal/annotation"
	"gardenloop/internal/workspace"

	"github.com/spf13/cobra"
)

var annotatePhoto string

// annotateCmd marks up the space photos
var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Annotate space photos with measurements and features",
	Long: `Sends each space photo with annotate_prompt.md and saves the marked-up
photo to generated/annotated/<name>_annotated.jpg, or the model's notes to
<name>_notes.md when it answers with text only.`,
	RunE: runAnnotate,
}

func init() {
	annotateCmd.Flags().StringVarP(&annotatePhoto, "photo", "p", "", "Annotate one photo (default: all space photos)")
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	model, err := modelFactory(ctx, cfg)
	if err != nil {
		return err
	}
	defer reportUsage(model)

	ann := annotation.NewAnnotator(cfg, workspace.NewLayout(cfg), model)
	var outputs []annotation.Output
	if annotatePhoto != "" {
		o, err := ann.Annotate(ctx, cfg.Path(annotatePhoto))
		if err != nil {
			return err
		}
		outputs = append(outputs, o)
	} else {
		outputs, err = ann.AnnotateAll(ctx)
	}

	for _, o := range outputs {
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", o.Path, o.Kind)
	}
	return err
}
