package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	semval "github.com/goliatone/go-semval"
	"github.com/goliatone/go-semval/pkg/events"
	"github.com/goliatone/go-semval/pkg/poll"
	"github.com/goliatone/go-semval/pkg/render"
	"github.com/goliatone/go-semval/pkg/value"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "render VALUE",
		Short: "Render a tagged value as HTML",
		Long: `Renders the tagged JSON value in VALUE ("-" for stdin) using the handle
registered for its type. With --watch the file is re-read on every interval
and each refresh is printed with the changes since the previous one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			stack, err := a.stack(ctx)
			if err != nil {
				return err
			}
			if !watch {
				v, err := a.readValue(args[0])
				if err != nil {
					return err
				}
				html, err := stack.Render(ctx, v, render.Options{})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.out, html)
				return err
			}
			return a.watch(ctx, stack, args[0], interval)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "poll VALUE and print every refresh")
	cmd.Flags().DurationVar(&interval, "interval", poll.DefaultInterval, "poll interval used with --watch")
	return cmd
}

func (a *app) watch(ctx context.Context, stack *semval.Stack, path string, interval time.Duration) error {
	unsubscribe := stack.Bus.Subscribe(events.TopicServerError, func(payload any) {
		if se, ok := payload.(events.ServerError); ok {
			a.logger.Warn("refresh failed", zap.String("source", se.Source), zap.String("error", se.Message))
		}
	})
	defer unsubscribe()

	fetch := func(context.Context) (*value.Value, error) {
		return a.readValue(path)
	}
	printed := false
	onUpdate := func(u semval.Update) {
		if u.Err != nil {
			a.logger.Warn("render failed", zap.Error(u.Err))
			return
		}
		if printed && len(u.Changes) == 0 {
			return
		}
		printed = true
		for _, change := range u.Changes {
			fmt.Fprintf(a.out, "# %s %s\n", change.Mark, change.Path)
		}
		fmt.Fprintln(a.out, u.HTML)
	}

	p, err := stack.Watch(ctx, fetch, onUpdate, poll.WithInterval(interval), poll.WithSource(path))
	if err != nil {
		return err
	}
	<-p.Done()
	p.Stop()
	return nil
}
