package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-semval/pkg/form"
	"github.com/goliatone/go-semval/pkg/render"
	"github.com/goliatone/go-semval/pkg/renderers/tui"
)

func newFormCmd(a *app) *cobra.Command {
	var (
		sets          []string
		visible       []string
		hidden        []string
		collapseDepth int
		html          bool
		action        string
		noInput       bool
		output        string
	)
	cmd := &cobra.Command{
		Use:   "form VALUE",
		Short: "Edit a tagged value field by field",
		Long: `Binds the tagged value in VALUE ("-" for stdin) to a form. --set applies
path=text edits first. The form is then edited interactively in the terminal,
rendered as an HTML form with --html, or printed as is with --no-input.
Fields equal to their default are dropped from the result.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			stack, err := a.stack(ctx)
			if err != nil {
				return err
			}
			v, err := a.readValue(args[0])
			if err != nil {
				return err
			}

			options := []form.Option{form.WithCollapseDepth(collapseDepth)}
			if len(visible) > 0 {
				options = append(options, form.WithVisibleFields(visible...))
			}
			if len(hidden) > 0 {
				options = append(options, form.WithHiddenFields(hidden...))
			}
			f, err := stack.NewForm(ctx, v, options...)
			if err != nil {
				return err
			}

			for _, set := range sets {
				path, text, ok := strings.Cut(set, "=")
				if !ok {
					return fmt.Errorf("invalid --set %q, want path=value", set)
				}
				if err := f.ApplyInput(strings.TrimSpace(path), text); err != nil {
					return err
				}
			}

			switch {
			case html:
				out, err := stack.RenderForm(ctx, f, render.FormOptions{Action: action})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.out, out)
				return err
			case noInput:
				return writeJSON(a.out, f.Value())
			}

			r := tui.New(tui.WithOutputFormat(tui.OutputFormat(output)))
			out, err := r.Render(ctx, f)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, string(out))
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringArrayVar(&sets, "set", nil, "apply path=value before editing (repeatable)")
	flags.StringSliceVar(&visible, "visible", nil, "only show these top-level fields")
	flags.StringSliceVar(&hidden, "hide", nil, "hide these top-level fields")
	flags.IntVar(&collapseDepth, "collapse-depth", 0, "collapse nested structs deeper than this level (0 disables)")
	flags.BoolVar(&html, "html", false, "render an HTML form instead of prompting")
	flags.StringVar(&action, "action", "", "form action URL used with --html")
	flags.BoolVar(&noInput, "no-input", false, "print the value after --set edits without prompting")
	flags.StringVarP(&output, "output", "o", string(tui.OutputFormatJSON), "result format after prompting: json or pretty")
	return cmd
}
