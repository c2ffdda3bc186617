package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"layerkit/internal/document"
	"layerkit/internal/pipeline"
)

func newCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <a> <b>",
		Short: "Show property and layer differences between two documents",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			ctx := cmd.Context()
			p := a.pipeline()
			left, err := p.Open(ctx, args[0])
			if err != nil {
				return err
			}
			var right *document.Document
			err = p.Phase(ctx, "Opening file "+filepath.Base(args[1]), func() error {
				var err error
				right, err = document.Open(ctx, args[1], p.Tracker())
				return err
			})
			if err != nil {
				return fmt.Errorf("%w: %w", pipeline.ErrOpen, err)
			}

			lines := diffListings(listing(left), listing(right))
			if len(lines) == 0 {
				a.console.InfoLine("Documents are identical")
				return nil
			}
			for _, l := range lines {
				if strings.HasPrefix(l, "-") {
					a.console.WarningLine(l)
				} else {
					a.console.InfoLine(l)
				}
			}
			a.console.Linef("%d difference(s)", len(lines))
			return nil
		},
	}
}

// listing renders everything compare looks at, one fact per line, so a line
// diff lines up properties and layers by name and index.
func listing(doc *document.Document) string {
	var b strings.Builder
	for _, pv := range doc.PropertyList() {
		fmt.Fprintf(&b, "%s = %s\n", pv.Name, pv.Value)
	}
	for i, l := range doc.Layers {
		fmt.Fprintf(&b, "layer %d: z=%.4f exposure=%.2f lift=%.2f@%.0f retract=%.0f pwm=%d pixels=%d\n",
			i, l.PositionZ, l.ExposureTime, l.LiftHeight, l.LiftSpeed, l.RetractSpeed, l.LightPWM, l.PixelCount)
	}
	for i, th := range doc.Thumbnails {
		fmt.Fprintf(&b, "thumbnail %d: %s\n", i, th.String())
	}
	return b.String()
}

// diffListings returns the changed lines prefixed with "- " or "+ ".
func diffListings(a, b string) []string {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffMain(ca, cb, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var out []string
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		default:
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			out = append(out, prefix+line)
		}
	}
	return out
}
