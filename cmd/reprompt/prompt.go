package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teilomillet/reprompt/tags"
	"github.com/teilomillet/reprompt/transform"
)

func newTransformCmd(a *app) *cobra.Command {
	var (
		force   bool
		inPlace bool
		noStack bool
		model   string
		size    string
	)

	cmd := &cobra.Command{
		Use:   "transform <file|->",
		Short: "Rewrite a prompt into a structured prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			text, err := a.readInput(path, force)
			if err != nil {
				return err
			}

			orch, err := a.orchestrator(a.progressPrinter())
			if err != nil {
				return err
			}
			store := a.rulesStore()

			res, err := orch.Transform(cmd.Context(), transform.TransformRequest{
				Prompt:            text,
				Document:          path,
				InferStack:        a.cfg.Transform.InferStack && !noStack,
				Rules:             store.Snapshot(),
				Model:             model,
				SearchContextSize: size,
			})
			if err != nil {
				return err
			}

			if err := a.writeOutput(path, res.Text, inPlace); err != nil {
				return err
			}
			if a.cfg.Transform.ShowStats {
				fmt.Fprintln(a.errOut, res.Stats.Summary())
				fmt.Fprintln(a.errOut, res.Stats.String())
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Accept files that are not prompt files")
	cmd.Flags().BoolVarP(&inPlace, "write", "w", false, "Replace the file content instead of printing")
	cmd.Flags().BoolVar(&noStack, "no-stack", false, "Do not append the detected project stack")
	cmd.Flags().StringVar(&model, "model", "", "Model (default from configuration)")
	cmd.Flags().StringVar(&size, "search-context-size", "", "Search context size: low, medium or high")
	return cmd
}

func newExamplesCmd(a *app) *cobra.Command {
	var (
		force     bool
		inPlace   bool
		count     int
		selection string
	)

	cmd := &cobra.Command{
		Use:   "examples <file|->",
		Short: "Generate examples and place them in the <examples> block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			text, err := a.readInput(path, force)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("count") && a.cfg.Examples.AskEachTime && path != "-" {
				if count, err = a.askCount(a.cfg.Examples.DefaultCount); err != nil {
					return err
				}
			}

			orch, err := a.orchestrator(a.progressPrinter())
			if err != nil {
				return err
			}
			res, err := orch.GenerateExamples(cmd.Context(), transform.ExamplesRequest{
				Text:      text,
				Selection: selection,
				Count:     count,
				Document:  path,
			})
			if err != nil {
				return err
			}

			if err := a.writeOutput(path, res.Text, inPlace); err != nil {
				return err
			}
			fmt.Fprintf(a.errOut, "Generated %d examples in %s.\n", res.Count, transform.FormatElapsed(res.Elapsed))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Accept files that are not prompt files")
	cmd.Flags().BoolVarP(&inPlace, "write", "w", false, "Update the file instead of printing")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of examples, 1 to 10 (default from configuration)")
	cmd.Flags().StringVar(&selection, "selection", "", "Instruction to use instead of the document's <instruction> block")
	return cmd
}

func newRunCmd(a *app) *cobra.Command {
	var (
		force bool
		model string
		size  string
	)

	cmd := &cobra.Command{
		Use:   "run <file|->",
		Short: "Send a prompt as is and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := a.readInput(args[0], force)
			if err != nil {
				return err
			}
			orch, err := a.orchestrator(a.progressPrinter())
			if err != nil {
				return err
			}
			res, err := orch.Run(cmd.Context(), transform.RunRequest{
				Prompt:            text,
				Model:             model,
				SearchContextSize: size,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, res.String())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Accept files that are not prompt files")
	cmd.Flags().StringVar(&model, "model", "", "Model (default from configuration)")
	cmd.Flags().StringVar(&size, "search-context-size", "", "Search context size: low, medium or high")
	return cmd
}

func newScoreCmd(a *app) *cobra.Command {
	var (
		force  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "score <file|->",
		Short: "Score how complete a prompt is",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := a.readInput(args[0], force)
			if err != nil {
				return err
			}
			score, ok := tags.ScorePrompt(text)
			if !ok {
				return fmt.Errorf("%s", tags.ErrNoPrompt)
			}
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(score)
			}
			fmt.Fprintln(a.out, score.String())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Accept files that are not prompt files")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the score as JSON")
	return cmd
}
