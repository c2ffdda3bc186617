package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"layerkit/internal/document"
	"layerkit/internal/model"
	"layerkit/internal/operation"
	"layerkit/internal/pipeline"
	"layerkit/internal/script"
	"layerkit/internal/util"
	"layerkit/internal/util/format"
)

func bindOutputFlag(fs *pflag.FlagSet) {
	fs.StringP("output", "o", "", "Write the result here instead of over the input")
}

func bindRangeFlags(fs *pflag.FlagSet) {
	fs.Int64("layer-start", 0, "First layer index to process")
	fs.Int64("layer-end", -1, "Last layer index to process (-1 for the last layer)")
}

func outputFlag(cmd *cobra.Command) (string, error) {
	out, _ := cmd.Flags().GetString("output")
	if out != "" && document.FindFormat(out) == nil {
		return "", usageError(fmt.Errorf("%w: %s", document.ErrUnknownFormat, filepath.Base(out)))
	}
	return out, nil
}

func rangeFlags(cmd *cobra.Command) (model.LayerRange, error) {
	start, _ := cmd.Flags().GetInt64("layer-start")
	end, _ := cmd.Flags().GetInt64("layer-end")
	if start < 0 || start > model.LastLayer-1 {
		return model.LayerRange{}, usageError(fmt.Errorf("--layer-start must be between 0 and %d", model.LastLayer-1))
	}
	if end < -1 || end >= model.LastLayer {
		return model.LayerRange{}, usageError(fmt.Errorf("--layer-end must be -1 or between 0 and %d", model.LastLayer-1))
	}
	r := model.LayerRange{Start: uint32(start), End: model.LastLayer}
	if end >= 0 {
		r.End = uint32(end)
	}
	return r, nil
}

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Re-encode a document in the format given by the output extension",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if document.FindFormat(args[1]) == nil {
				return usageError(fmt.Errorf("%w: %s", document.ErrUnknownFormat, filepath.Base(args[1])))
			}
			p := appFrom(cmd).pipeline()
			if _, err := p.Open(cmd.Context(), args[0]); err != nil {
				return err
			}
			return p.Save(cmd.Context(), args[1])
		},
	}
}

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <input> [dir]",
		Short: "Unpack properties, layers, thumbnails and g-code into a directory",
		Long: "extract writes properties.yaml, layers.yaml, one image per thumbnail and run.gcode " +
			"into dir, which defaults to the input name without its extension.",
		Args: usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			dir := filepath.Join(filepath.Dir(args[0]), util.SanitizeFilename(util.TrimExt(args[0], document.AllExtensions()...)))
			if len(args) == 2 {
				dir = args[1]
			}

			p := a.pipeline()
			doc, err := p.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var written []string
			err = p.Phase(cmd.Context(), "Extracting to "+dir, func() error {
				var err error
				written, err = document.Extract(doc, dir, p.Tracker())
				return err
			})
			for _, w := range written {
				if fi, err := os.Stat(w); err == nil {
					a.console.Linef("  %s (%s)", w, format.HumanizeBytes(fi.Size()))
				}
			}
			return err
		},
	}
}

func newCopyParametersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy-parameters <source> <target>",
		Short: "Copy exposure, lift, retract and PWM settings from one document to another",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := outputFlag(cmd)
			if err != nil {
				return err
			}
			r, err := rangeFlags(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			p := appFrom(cmd).pipeline()
			if _, err := p.Open(ctx, args[1]); err != nil {
				return err
			}
			var src *document.Document
			err = p.Phase(ctx, "Opening file "+filepath.Base(args[0]), func() error {
				var err error
				src, err = document.Open(ctx, args[0], p.Tracker())
				return err
			})
			if err != nil {
				return fmt.Errorf("%w: %w", pipeline.ErrOpen, err)
			}
			op := &operation.CopyParameters{Source: src}
			if err := p.Run(ctx, operation.Params{Range: r}, op); err != nil {
				return err
			}
			return p.Save(ctx, out)
		},
	}
	bindOutputFlag(cmd.Flags())
	bindRangeFlags(cmd.Flags())
	return cmd
}

func newSetThumbnailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-thumbnail <input> <image>",
		Short: "Replace document thumbnails with a PNG or JPEG image",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := outputFlag(cmd)
			if err != nil {
				return err
			}
			index, _ := cmd.Flags().GetInt("index")
			params := operation.Params{Values: map[string]string{
				"image": args[1],
				"index": fmt.Sprint(index),
			}}
			op, err := operation.NewBuiltin("set-thumbnail")
			if err != nil {
				return err
			}
			return appFrom(cmd).pipeline().Transform(cmd.Context(), args[0], out, params, op)
		},
	}
	bindOutputFlag(cmd.Flags())
	cmd.Flags().Int("index", -1, "Thumbnail to replace (-1 replaces all)")
	return cmd
}

func newSetPropertiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "set-properties <input> key=value...",
		Short:   "Set document properties",
		Example: "  layerkit set-properties part.layers.yaml exposure_time=2.8 light_pwm=220",
		Args:    usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := outputFlag(cmd)
			if err != nil {
				return err
			}
			values, err := operation.ParseValues(args[1:])
			if err != nil {
				return err
			}
			params := operation.Params{Values: values}
			return appFrom(cmd).pipeline().Transform(cmd.Context(), args[0], out, params, &operation.SetProperties{})
		},
	}
	bindOutputFlag(cmd.Flags())
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <input> <script|builtin:name>...",
		Short: "Run built-in operations or HCL scripts over a layer range",
		Long: "run applies each operation in order, then saves once. Scripts may be given as paths, " +
			"doublestar patterns (scripts/**/*.hcl) or bare names looked up in the scripts directory.",
		Example: "  layerkit run part.layers.yaml builtin:change-exposure --param exposure=2.5 --layer-start 5\n" +
			"  layerkit run part.layers.yaml ramp --param step=0.25 -o ramped.layers.yaml",
		Args: usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			out, err := outputFlag(cmd)
			if err != nil {
				return err
			}
			r, err := rangeFlags(cmd)
			if err != nil {
				return err
			}
			raw, _ := cmd.Flags().GetStringArray("param")
			values, err := operation.ParseValues(raw)
			if err != nil {
				return err
			}

			refs, err := script.Resolve(args[1:], a.flags.ScriptsDir)
			if err != nil {
				return err
			}
			ops := make([]operation.Script, 0, len(refs))
			for _, ref := range refs {
				op, err := script.Open(ref)
				if err != nil {
					return err
				}
				ops = append(ops, op)
			}
			return a.pipeline().Transform(cmd.Context(), args[0], out, operation.Params{Range: r, Values: values}, ops...)
		},
	}
	bindOutputFlag(cmd.Flags())
	bindRangeFlags(cmd.Flags())
	cmd.Flags().StringArray("param", nil, "Operation parameter as key=value (repeatable)")
	return cmd
}
