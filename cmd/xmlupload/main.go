// cmd/xmlupload/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/percussion/percussioncms-sub111/internal/uploader"
)

const passwordEnv = "XMLUPLOAD_PASSWORD"

var errFilesFailed = errors.New("one or more files failed")

type options struct {
	server   string
	user     string
	password string
	dir      string
	pattern  string
	retries  uint
	rate     float64
	dryRun   bool
	verbose  bool
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "xmlupload",
		Short: "Upload XML item documents to the content import endpoint",
		Long: `Validates every matching XML file in a directory and uploads the valid
ones to a running server. Invalid documents are reported and skipped.`,
		Example: `  xmlupload --server http://localhost:9980 --user admin --dir ./export
  XMLUPLOAD_PASSWORD=secret xmlupload --server https://cms.example.com --user admin --dir ./export --rate 2
  xmlupload --dir ./export --dry-run`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.password == "" {
				opts.password = os.Getenv(passwordEnv)
			}
			return run(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.server, "server", "", "Base URL of the server, e.g. http://localhost:9980")
	flags.StringVar(&opts.user, "user", "", "User name to log in with")
	flags.StringVar(&opts.password, "password", "", "Password (defaults to $"+passwordEnv+")")
	flags.StringVar(&opts.dir, "dir", ".", "Directory containing the XML files")
	flags.StringVar(&opts.pattern, "pattern", "*.xml", "Glob pattern selecting files in --dir")
	flags.UintVar(&opts.retries, "retries", 3, "Retries per file on network errors and 5xx responses")
	flags.Float64Var(&opts.rate, "rate", 5, "Maximum requests per second")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Validate files without uploading")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

func setupLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(level).With().Timestamp().Logger()
}

func run(ctx context.Context, out io.Writer, opts options) error {
	logger := setupLogger(os.Stderr, opts.verbose)
	ctx = logger.WithContext(ctx)

	files, err := uploader.FindFiles(opts.dir, opts.pattern)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No files matching %s in %s\n", opts.pattern, opts.dir)
		return nil
	}

	var imp uploader.Importer
	if !opts.dryRun {
		if opts.server == "" || opts.user == "" {
			return errors.New("--server and --user are required unless --dry-run is set")
		}
		if opts.password == "" {
			return fmt.Errorf("a password is required via --password or $%s", passwordEnv)
		}
		client, err := uploader.New(uploader.Options{
			Server:   opts.server,
			User:     opts.user,
			Password: opts.password,
			Retries:  opts.retries,
			Rate:     opts.rate,
		})
		if err != nil {
			return err
		}
		if err := client.Login(ctx); err != nil {
			return err
		}
		logger.Debug().Str("server", opts.server).Str("user", opts.user).Msg("Logged in")
		imp = client
	}

	report := uploader.Run(ctx, imp, files, func(res uploader.FileResult) {
		printResult(out, res)
	})

	created, updated, failedItems := report.Totals()
	fmt.Fprintf(out, "\n%d files processed, %d failed; items created %d, updated %d, failed %d\n",
		len(report.Files), report.FailedFiles(), created, updated, failedItems)

	if report.FailedFiles() > 0 {
		return errFilesFailed
	}
	if len(report.Files) < len(files) {
		return ctx.Err()
	}
	return nil
}

func printResult(out io.Writer, res uploader.FileResult) {
	name := filepath.Base(res.Path)
	switch res.Status {
	case uploader.StatusUploaded:
		fmt.Fprintf(out, "%-8s %s: created %d, updated %d, failed %d\n",
			res.Status, name, res.Summary.Created, res.Summary.Updated, res.Summary.Failed)
		for _, item := range res.Summary.Results {
			if item.Message != "" {
				fmt.Fprintf(out, "         %s %s: %s\n", item.Status, item.Path, item.Message)
			}
		}
	case uploader.StatusValid:
		fmt.Fprintf(out, "%-8s %s: %d items\n", res.Status, name, res.Items)
	default:
		fmt.Fprintf(out, "%-8s %s: %v\n", res.Status, name, res.Err)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("xmlupload failed")
		stop()
		os.Exit(1)
	}
}
