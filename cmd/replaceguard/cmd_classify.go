package main

import (
	"fmt"
	"strings"

	"replaceguard/internal/target"

	"github.com/spf13/cobra"
)

// classifyCmd reports how replace targets would be classified.
var classifyCmd = &cobra.Command{
	Use:   "classify <target>...",
	Short: "Show whether replace targets count as local paths",
	Long: `Classifies each argument as the right-hand side of a replace directive.

Example:
  replaceguard classify ../fork 'example.com/fork v1.2.0'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	c := target.NewClassifier(cfg.ExtraLocalPrefixes...)

	out := cmd.OutOrStdout()
	for _, a := range args {
		res := c.ClassifyTarget(strings.TrimSpace(a))
		verdict := "remote"
		if res.Local {
			verdict = fmt.Sprintf("local (%s)", res.Shape)
		}
		fmt.Fprintf(out, "%s\t%s\n", res.Target, verdict)
	}
	return nil
}
