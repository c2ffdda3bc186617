package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/spf13/cobra"

	"layerkit/internal/document"
	"layerkit/internal/operation"
	"layerkit/internal/script"
)

func newPrintPropertiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-properties <input>",
		Short: "List document properties",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			doc, err := a.pipeline().Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, pv := range doc.PropertyList() {
				a.console.Linef("%-22s %s", pv.Name, pv.Value)
			}
			return nil
		},
	}
}

func newPrintIssuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-issues <input>",
		Short: "Scan layers for empty layers, zero exposure and bad Z steps",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			p := a.pipeline()
			doc, err := p.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var issues []document.Issue
			err = p.Phase(cmd.Context(), "Detecting issues", func() error {
				var err error
				issues, err = document.DetectIssues(doc, p.Tracker())
				return err
			})
			if err != nil {
				return err
			}
			if len(issues) == 0 {
				a.console.InfoLine("No issues found")
				return nil
			}
			for _, is := range issues {
				a.console.WarningLine(is.String())
			}
			a.console.Linef("%d issue(s) in %d layer(s)", len(issues), doc.LayerCount())
			return nil
		},
	}
}

func newPrintMachinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-machines",
		Short: "List known printers",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := appFrom(cmd).console
			for _, m := range document.Machines() {
				c.Linef("%-28s %5dx%-5d %7.2fx%-7.2f mm  Z %.0f mm",
					m.FullName(), m.ResolutionX, m.ResolutionY, m.DisplayWidth, m.DisplayHeight, m.MachineZ)
			}
			return nil
		},
	}
}

func newPrintFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-formats",
		Short: "List supported document formats",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := appFrom(cmd).console
			for _, f := range document.Formats() {
				c.Linef("%-6s %-34s %s", f.Name, f.Description, strings.Join(f.Extensions, ", "))
			}
			return nil
		},
	}
}

func newPrintGCodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-gcode <input>",
		Short: "Print the embedded g-code, or one generated from the layer table",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			doc, err := a.pipeline().Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			code, generated := doc.GCodeOrBuild()
			if generated {
				a.console.InfoLine("; no g-code embedded, generated from the layer table")
			}
			if isTerminal(cmd.OutOrStdout()) {
				code = highlightGCode(code)
			}
			a.console.Write(code)
			if !strings.HasSuffix(code, "\n") {
				a.console.Line("")
			}
			return nil
		},
	}
}

// highlightGCode colors g-code for a terminal. ';' comments read the same as
// in ini files, which is the lexer used when none is registered for g-code.
func highlightGCode(code string) string {
	lexer := lexers.Get("gcode")
	if lexer == nil {
		lexer = lexers.Get("ini")
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}
	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := formatters.Get("terminal256").Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

func newPrintOperationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-operations",
		Short: "List built-in operations and scripts in the scripts directory",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			c := a.console
			c.InfoLine("Built-in:")
			for _, name := range operation.Builtins() {
				op, err := operation.NewBuiltin(name)
				if err != nil {
					return err
				}
				m := operation.Describe(op)
				c.Linef("  %-32s %s", operation.BuiltinPrefix+name, m.Description)
			}

			paths, err := script.List(a.flags.ScriptsDir)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return nil
			}
			c.InfoLine(fmt.Sprintf("Scripts in %s:", a.flags.ScriptsDir))
			for _, p := range paths {
				s, err := script.Load(p)
				if err != nil {
					c.WarningLine(fmt.Sprintf("  %s: %v", p, err))
					continue
				}
				m := operation.Describe(s)
				c.Linef("  %-32s %s", m.String(), m.Description)
			}
			return nil
		},
	}
}
