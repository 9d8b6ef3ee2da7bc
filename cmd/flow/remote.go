package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ha1tch/flowdesigner/pkg/backend"
	"github.com/ha1tch/flowdesigner/pkg/flowfile"
)

func (a *app) pagesCmd() *cobra.Command {
	var (
		search string
		active bool
	)
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "List the pages offered by the forms backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if search != "" {
				params.Set("search", search)
			}
			if active {
				params.Set("active_ind", "true")
			}
			pages, err := a.client().Pages(cmd.Context(), params)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(pages) == 0 {
				subtle.Fprintln(w, "  no pages")
				return nil
			}
			rows := make([][]string, 0, len(pages))
			for _, p := range pages {
				rows = append(rows, []string{
					strconv.Itoa(p.ID), p.Name, p.ServiceName, activeMark(p.ActiveInd),
				})
			}
			table(w, []string{"ID", "NAME", "SERVICE", "ACTIVE"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "filter by name")
	cmd.Flags().BoolVar(&active, "active", false, "only active pages")
	return cmd
}

func activeMark(active bool) string {
	if active {
		return "yes"
	}
	return "no"
}

func (a *app) importPageCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "import-page <page-id>",
		Short: "Build a flow from a backend page and its fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid page id %q", args[0])
			}
			data, err := a.client().LoadDesigner(cmd.Context(), id)
			if err != nil {
				return err
			}
			f, err := flowfile.FromPage(data.Page, backend.FieldTypeNames(data.FieldTypes))
			if err != nil {
				return err
			}
			if output == "" {
				output = flowfile.ExportFilename(f)
			}
			if err := a.saveArg(output, f); err != nil {
				return err
			}
			a.log.Info("page imported", "page", id, "nodes", len(f.Nodes), "path", output)
			good.Fprintf(cmd.OutOrStdout(), "  ✓ page %d → %s (%d nodes)\n", id, output, len(f.Nodes))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: flow-<name>.json)")
	return cmd
}

func (a *app) pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push <file>",
		Short: "Upload a flow to the forms backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.loadArg(args[0])
			if err != nil {
				return err
			}
			if _, err := a.client().ImportForm(cmd.Context(), f); err != nil {
				return err
			}
			a.log.Info("flow pushed", "name", f.Name)
			good.Fprintf(cmd.OutOrStdout(), "  ✓ pushed %s\n", f.Name)
			return nil
		},
	}
}
