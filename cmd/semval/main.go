// Command semval renders, diffs and edits typed semantic values from the
// command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	semval "github.com/goliatone/go-semval"
	"github.com/goliatone/go-semval/pkg/descriptor"
	"github.com/goliatone/go-semval/pkg/value"
)

type app struct {
	in      io.Reader
	out     io.Writer
	verbose bool
	logger  *zap.Logger
	source  sourceFlags
}

type sourceFlags struct {
	catalog string
	openapi string
	server  string
	timeout time.Duration
	headers []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "semval:", err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: out, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "semval",
		Short:         "Render, diff and edit typed semantic values",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewProductionConfig()
			config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			if a.verbose {
				config = zap.NewDevelopmentConfig()
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&a.source.catalog, "catalog", "", "descriptor catalog file (json, yaml or toml)")
	flags.StringVar(&a.source.openapi, "openapi", "", "OpenAPI document whose component schemas provide descriptors")
	flags.StringVar(&a.source.server, "server", "", "base URL of the reflection endpoint")
	flags.DurationVar(&a.source.timeout, "timeout", 10*time.Second, "reflection request timeout")
	flags.StringArrayVar(&a.source.headers, "header", nil, "extra reflection request header (Key: Value)")

	root.AddCommand(
		newRenderCmd(a),
		newDiffCmd(a),
		newFormCmd(a),
		newSuggestCmd(a),
	)
	return root
}

// openSource picks the descriptor source named by the persistent flags.
func (a *app) openSource(ctx context.Context) (descriptor.Source, error) {
	switch {
	case a.source.catalog != "":
		return semval.LoadCatalog(ctx, a.source.catalog)
	case a.source.openapi != "":
		raw, err := os.ReadFile(a.source.openapi)
		if err != nil {
			return nil, err
		}
		return semval.ParseOpenAPI(ctx, raw)
	case a.source.server != "":
		options := []descriptor.LoaderOption{descriptor.WithRequestTimeout(a.source.timeout)}
		for _, header := range a.source.headers {
			key, val, ok := strings.Cut(header, ":")
			if !ok {
				return nil, fmt.Errorf("invalid header %q, want Key: Value", header)
			}
			options = append(options, descriptor.WithHeader(strings.TrimSpace(key), strings.TrimSpace(val)))
		}
		return semval.NewHTTPSource(a.source.server, options...)
	}
	return nil, errors.New("one of --catalog, --openapi or --server is required")
}

func (a *app) stack(ctx context.Context) (*semval.Stack, error) {
	source, err := a.openSource(ctx)
	if err != nil {
		return nil, err
	}
	return semval.New(source, semval.WithLogger(a.logger))
}

// readValue decodes a tagged value from path; "-" reads standard input.
func (a *app) readValue(path string) (*value.Value, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(a.in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	out := &value.Value{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
