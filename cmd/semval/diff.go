package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-semval/pkg/diff"
	"github.com/goliatone/go-semval/pkg/render"
	"github.com/goliatone/go-semval/pkg/value"
)

func newDiffCmd(a *app) *cobra.Command {
	var html bool
	cmd := &cobra.Command{
		Use:   "diff ORIGINAL UPDATED",
		Short: "Show what changed between two tagged values",
		Long: `Annotates both values and prints one line per added, removed or changed
node. Changed strings also show a character diff. With --html the annotated
updated value is rendered instead, which needs a descriptor source.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			original, err := a.readValue(args[0])
			if err != nil {
				return err
			}
			updated, err := a.readValue(args[1])
			if err != nil {
				return err
			}
			diff.Annotate(original, updated)

			if html {
				stack, err := a.stack(cmd.Context())
				if err != nil {
					return err
				}
				out, err := stack.Render(cmd.Context(), updated, render.Options{})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.out, out)
				return err
			}
			return writeChanges(a.out, original, updated)
		},
	}
	cmd.Flags().BoolVar(&html, "html", false, "render the annotated updated value as HTML")
	return cmd
}

// writeChanges prints removals found in original followed by additions and
// changes found in updated.
func writeChanges(w io.Writer, original, updated *value.Value) error {
	for _, change := range diff.Changes(original) {
		if change.Mark != value.MarkRemoved {
			continue
		}
		if _, err := fmt.Fprintf(w, "- %s (%s)\n", change.Path, change.Type); err != nil {
			return err
		}
	}
	for _, change := range diff.Changes(updated) {
		switch change.Mark {
		case value.MarkAdded:
			if _, err := fmt.Fprintf(w, "+ %s (%s)\n", change.Path, change.Type); err != nil {
				return err
			}
		case value.MarkChanged:
			line := fmt.Sprintf("~ %s (%s)", change.Path, change.Type)
			before, _ := leafAt(original, change.Path).Value.(string)
			after, ok := leafAt(updated, change.Path).Value.(string)
			if ok && before != "" {
				line += " " + inlineDiff(diff.TextDiff(before, after))
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func inlineDiff(segments []diff.Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		switch seg.Op {
		case diff.OpInsert:
			b.WriteString("{+" + seg.Text + "+}")
		case diff.OpDelete:
			b.WriteString("[-" + seg.Text + "-]")
		default:
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}

// leafAt follows a change path ("a.b", "a[1].b") into v. Missing nodes
// resolve to an empty value.
func leafAt(v *value.Value, path string) *value.Value {
	current := v
	for _, segment := range strings.Split(path, ".") {
		name, rest, _ := strings.Cut(segment, "[")
		if name != "" {
			field, ok := current.Field(name)
			if !ok {
				return &value.Value{}
			}
			current = field
		}
		for rest != "" {
			raw, tail, _ := strings.Cut(rest, "]")
			idx, err := strconv.Atoi(raw)
			items := current.Items()
			if err != nil || idx < 0 || idx >= len(items) {
				return &value.Value{}
			}
			current = items[idx]
			rest = strings.TrimPrefix(tail, "[")
		}
	}
	if current == nil {
		return &value.Value{}
	}
	return current
}
