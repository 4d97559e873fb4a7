// File: cmd/rules.go
package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/phortress/internal/analysis/static/php/sources"
)

// newRulesCmd lists the sources, sanitizers and sinks in effect, including
// those added through configuration.
func newRulesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Lists the taint sources, sanitizers and sinks in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs := sources.NewFromConfig(a.cfg.Analysis()).Definitions()
			return writeRules(cmd.OutOrStdout(), defs)
		},
	}
}

func writeRules(out io.Writer, defs sources.Definitions) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "KIND\tNAME\tDETAIL")
	for _, name := range defs.InputVariables {
		fmt.Fprintf(w, "source\t%s\tvariable\n", name)
	}
	for _, name := range defs.InputFunctions {
		fmt.Fprintf(w, "source\t%s()\tfunction\n", name)
	}
	for _, s := range defs.Sanitizers {
		classes := make([]string, len(s.Protects))
		for i, c := range s.Protects {
			classes[i] = string(c)
		}
		fmt.Fprintf(w, "sanitizer\t%s()\tprotects %s\n", s.Name, strings.Join(classes, ", "))
	}
	for _, r := range defs.Reversers {
		fmt.Fprintf(w, "reverser\t%s()\tundoes %s\n", r.Name, r.Undoes)
	}
	for _, s := range defs.Sinks {
		detail := string(s.Class)
		if len(s.Args) > 0 {
			detail += fmt.Sprintf(" (args %v)", s.Args)
		}
		fmt.Fprintf(w, "sink\t%s\t%s\n", s.Name, detail)
	}
	return w.Flush()
}
