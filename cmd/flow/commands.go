package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ha1tch/flowdesigner/pkg/flow"
	"github.com/ha1tch/flowdesigner/pkg/flowfile"
	"github.com/ha1tch/flowdesigner/pkg/integrity"
	"github.com/ha1tch/flowdesigner/pkg/layout"
)

var errIssues = errors.New("flow has errors")

func (a *app) newCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "new <file>",
		Short: "Create a flow holding a single start node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			f := flow.New(name)
			if err := a.saveArg(path, f); err != nil {
				return err
			}
			good.Fprintf(cmd.OutOrStdout(), "  ✓ created %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "flow name")
	return cmd
}

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Show a summary of a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.loadArg(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			fmt.Fprintf(w, "  %s", brand.Sprint(f.Name))
			if f.ID != "" {
				subtle.Fprintf(w, " (%s)", f.ID)
			}
			fmt.Fprintln(w)
			if f.Description != "" {
				fmt.Fprintf(w, "  %s\n", f.Description)
			}
			fmt.Fprintf(w, "  %d nodes, %d connections\n", len(f.Nodes), len(f.Connections))
			if b, ok := f.Bounds(); ok {
				subtle.Fprintf(w, "  extent (%.0f,%.0f)-(%.0f,%.0f)\n", b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
			}
			fmt.Fprintln(w)

			var rows [][]string
			for _, k := range flow.Kinds {
				if n := len(f.OfKind(k)); n > 0 {
					rows = append(rows, []string{string(k.Glyph()), string(k), fmt.Sprint(n)})
				}
			}
			table(w, []string{"", "KIND", "COUNT"}, rows)
			fmt.Fprintln(w)
			printIssues(w, integrity.All(f))
			return nil
		},
	}
}

func (a *app) validateCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check flows for structural and integrity problems",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			failed := false
			for _, path := range args {
				f, err := flowfile.Load(path)
				if err != nil {
					bad.Fprintf(w, "  ✗ %s: %v\n", path, err)
					failed = true
					continue
				}
				issues := integrity.All(f)
				fmt.Fprintf(w, "%s\n", path)
				printIssues(w, issues)
				if integrity.HasErrors(issues) || (strict && len(issues) > 0) {
					failed = true
				}
			}
			if failed {
				return errIssues
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")
	return cmd
}

func (a *app) arrangeCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "arrange <file>",
		Short: "Lay nodes out in levels from the start nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.loadArg(args[0])
			if err != nil {
				return err
			}
			moved, err := layout.AutoArrange(f, a.cfg.LayoutOptions())
			if err != nil {
				return err
			}
			if output == "" {
				output = args[0]
			}
			if err := a.saveArg(output, f); err != nil {
				return err
			}
			a.log.Info("flow arranged", "path", output, "moved", moved)
			good.Fprintf(cmd.OutOrStdout(), "  ✓ arranged %d nodes\n", moved)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: overwrite input)")
	return cmd
}

func (a *app) connectCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "connect <file> <source> <target>",
		Short: "Connect two nodes if the connection rules allow it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.loadArg(args[0])
			if err != nil {
				return err
			}
			src, ok := f.FindNode(args[1])
			if !ok {
				return fmt.Errorf("%w: %s", flow.ErrNodeNotFound, args[1])
			}
			dst, ok := f.FindNode(args[2])
			if !ok {
				return fmt.Errorf("%w: %s", flow.ErrNodeNotFound, args[2])
			}
			out, ok := flow.OutputPoint(*src, port)
			if !ok {
				return fmt.Errorf("%s has no output %d", src.ID, port)
			}
			in, ok := flow.InputPoint(*dst)
			if !ok {
				return fmt.Errorf("%s has no input", dst.ID)
			}

			c := a.canvas(f)
			conn, err := c.Connect(out, in)
			if err != nil {
				return err
			}
			if err := a.saveArg(args[0], c.Flow()); err != nil {
				return err
			}
			good.Fprintf(cmd.OutOrStdout(), "  ✓ %s → %s (%s)\n", conn.SourceID, conn.TargetID, conn.Label)
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "output index of the source (0 = Yes/True/Valid)")
	return cmd
}

func (a *app) suggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <file> <node>",
		Short: "Rank the nodes a node could connect to next",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.loadArg(args[0])
			if err != nil {
				return err
			}
			if _, ok := f.FindNode(args[1]); !ok {
				return fmt.Errorf("%w: %s", flow.ErrNodeNotFound, args[1])
			}
			c := a.canvas(f)
			suggestions := c.Suggest(args[1])
			w := cmd.OutOrStdout()
			if len(suggestions) == 0 {
				subtle.Fprintln(w, "  no suggestions")
				return nil
			}
			var rows [][]string
			for _, s := range suggestions {
				n, _ := f.FindNode(s.TargetID)
				rows = append(rows, []string{
					s.TargetID, n.Label, fmt.Sprintf("%.0f%%", s.Confidence*100),
					fmt.Sprintf("%.0f", s.Distance), s.Reason,
				})
			}
			table(w, []string{"TARGET", "LABEL", "CONFIDENCE", "DISTANCE", "REASON"}, rows)
			return nil
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var (
		format string
		output string
		title  string
		width  int
		height int
	)
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export a flow as json, yaml, dot or png",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.loadArg(args[0])
			if err != nil {
				return err
			}
			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
			}

			var data []byte
			switch format {
			case "json", "":
				format = "json"
				data, err = flowfile.ToJSON(f)
				if err == nil {
					data = append(data, '\n')
				}
				if output == "" {
					output = flowfile.ExportFilename(f)
				}
			case "yaml", "yml":
				data, err = flowfile.ToYAML(f)
			case "dot", "gv":
				data = []byte(flowfile.GenerateDOT(f, title))
			case "png":
				if output == "" || output == "-" {
					return errors.New("png export needs an output file")
				}
				opts := flowfile.DefaultPNGOptions()
				opts.Title = title
				if width > 0 {
					opts.Width = width
				}
				if height > 0 {
					opts.Height = height
				}
				out, ferr := os.Create(output)
				if ferr != nil {
					return ferr
				}
				err = flowfile.RenderPNG(f, out, opts)
				if cerr := out.Close(); err == nil {
					err = cerr
				}
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			if err != nil {
				return err
			}

			if format != "png" {
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return err
				}
			}
			a.log.Info("flow exported", "format", format, "path", output)
			good.Fprintf(cmd.ErrOrStderr(), "  ✓ wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "json, yaml, dot or png (default: from output extension)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout")
	cmd.Flags().StringVar(&title, "title", "", "diagram title (dot, png)")
	cmd.Flags().IntVar(&width, "width", 0, "image width (png)")
	cmd.Flags().IntVar(&height, "height", 0, "image height (png)")
	return cmd
}
