package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "reprompt",
		Short:         "Turn terse prompts into structured ones",
		Long:          "reprompt rewrites prompts into tagged, structured prompts using the Sonar API,\ngenerates examples for them, and scores how complete they are.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", defaultConfigFile, "Path to configuration file")
	flags.StringVar(&a.root, "root", "", "Workspace root (overrides workspace.root)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(
		newTransformCmd(a),
		newExamplesCmd(a),
		newRunCmd(a),
		newScoreCmd(a),
		newDetectCmd(a),
		newRulesCmd(a),
		newServeCmd(a),
		newValidateCmd(a),
		newVersionCmd(a),
	)
	return root
}
