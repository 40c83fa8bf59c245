// Command fleetimport runs or dry-runs one import file from disk.
//
//	fleetimport -kind maintenance -file windows.csv -policy best-effort
//	fleetimport -kind maintenance -file windows.csv -dry-run -refs vehicles.yaml
//
// Exit status: 0 when every row was imported, 1 on a terminal error,
// 2 on bad usage, 3 when a best-effort import or dry run found failing rows.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/fleetimport/internal/config"
	"github.com/JonMunkholm/fleetimport/internal/core"
	_ "github.com/JonMunkholm/fleetimport/internal/core/schemas" // Register import kinds
	"github.com/JonMunkholm/fleetimport/internal/fleet"
	"github.com/JonMunkholm/fleetimport/internal/logging"
	"github.com/joho/godotenv"
)

const (
	exitOK      = 0
	exitError   = 1
	exitUsage   = 2
	exitPartial = 3
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	kind          string
	file          string
	policy        string
	skipMalformed bool
	dryRun        bool
	refsFile      string
	apiURL        string
	token         string
	jsonOutput    bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("fleetimport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.kind, "kind", "", "import kind: "+strings.Join(core.Kinds(), ", "))
	fs.StringVar(&o.file, "file", "", `CSV file to import ("-" for stdin)`)
	fs.StringVar(&o.policy, "policy", "", "failure policy: fail-fast or best-effort (default from IMPORT_DEFAULT_POLICY)")
	fs.BoolVar(&o.skipMalformed, "skip-malformed", true, "drop rows with the wrong number of fields")
	fs.BoolVar(&o.dryRun, "dry-run", false, "validate only, submit nothing")
	fs.StringVar(&o.refsFile, "refs", "", "YAML file of known vehicle IDs (instead of asking the fleet service)")
	fs.StringVar(&o.apiURL, "api", "", "fleet service base URL (default from FLEET_API_BASE_URL)")
	fs.StringVar(&o.token, "token", "", "fleet service bearer token (default from FLEET_API_TOKEN)")
	fs.BoolVar(&o.jsonOutput, "json", false, "print the result as JSON")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.kind == "" || o.file == "" {
		fs.Usage()
		return o, errors.New("-kind and -file are required")
	}
	if _, ok := core.Get(o.kind); !ok {
		return o, fmt.Errorf("%w: %s", core.ErrUnknownKind, o.kind)
	}
	if o.refsFile != "" && !o.dryRun {
		return o, errors.New("-refs is only used with -dry-run")
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "fleetimport:", err)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "fleetimport:", err)
		return exitError
	}
	logging.SetupWriter(stderr, cfg.Logging.Level, cfg.Logging.Format)

	policy, err := core.ParsePolicy(opts.policy, cfg.Import.Policy())
	if err != nil {
		fmt.Fprintln(stderr, "fleetimport:", err)
		return exitUsage
	}

	data, err := readInput(opts.file, stdin)
	if err != nil {
		fmt.Fprintln(stderr, "fleetimport:", err)
		return exitError
	}

	client, err := newClient(cfg, opts)
	if err != nil {
		fmt.Fprintln(stderr, "fleetimport:", err)
		return exitError
	}

	var refs core.ReferenceSource = client
	if opts.refsFile != "" {
		set, err := fleet.LoadReferenceFile(opts.refsFile)
		if err != nil {
			fmt.Fprintln(stderr, "fleetimport:", err)
			return exitError
		}
		refs = set
	}

	service := core.NewService(refs, client.Submit, core.ServiceConfig{
		MaxConcurrent:     1,
		DefaultPolicy:     policy,
		SkipMalformedRows: opts.skipMalformed,
	})

	if opts.dryRun {
		return check(ctx, service, opts, data, stdout, stderr)
	}
	return submit(ctx, service, opts, policy, data, stdout, stderr)
}

func newClient(cfg *config.Config, opts options) (*fleet.Client, error) {
	fc := fleet.ClientConfig{
		BaseURL:      cfg.Fleet.BaseURL,
		Token:        cfg.Fleet.Token,
		Timeout:      cfg.Fleet.Timeout,
		RateLimitRPS: cfg.Fleet.RateLimitRPS,
	}
	if opts.apiURL != "" {
		fc.BaseURL = opts.apiURL
	}
	if opts.token != "" {
		fc.Token = opts.token
	}
	return fleet.NewClient(fc)
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return b, nil
}

func check(ctx context.Context, service *core.Service, opts options, data []byte, stdout, stderr io.Writer) int {
	skip := opts.skipMalformed
	result, err := service.Check(ctx, opts.kind, bytes.NewReader(data), &skip)
	if err != nil {
		fmt.Fprintln(stderr, "fleetimport:", core.FormatUserError(err))
		slog.Debug("dry run failed", "error", err)
		return exitError
	}

	if opts.jsonOutput {
		writeJSON(stdout, result)
	} else {
		fmt.Fprintf(stdout, "%s: %d rows, %d valid, %d invalid, %d skipped\n",
			result.Kind, result.Total, result.Valid, result.Invalid, result.SkippedRows)
		printOutcomes(stdout, result.Errors)
	}

	if result.Invalid > 0 {
		return exitPartial
	}
	return exitOK
}

func submit(ctx context.Context, service *core.Service, opts options, policy core.FailurePolicy, data []byte, stdout, stderr io.Writer) int {
	skip := opts.skipMalformed
	req := core.ImportRequest{
		Kind:              opts.kind,
		FileName:          opts.file,
		Data:              data,
		Policy:            policy,
		SkipMalformedRows: &skip,
	}

	last := -1
	summary, err := service.RunImport(ctx, req, func(pct int) {
		if !opts.jsonOutput && pct/10 != last/10 {
			fmt.Fprintf(stderr, "\rprogress: %3d%%", pct)
		}
		last = pct
	})
	if !opts.jsonOutput && last >= 0 {
		fmt.Fprintln(stderr)
	}

	if opts.jsonOutput {
		writeJSON(stdout, summary)
	} else {
		fmt.Fprintln(stdout, summary.Message)
		printOutcomes(stdout, summary.Failures)
	}

	switch {
	case err != nil:
		fmt.Fprintln(stderr, "fleetimport:", core.FormatUserError(err))
		return exitError
	case summary.Failed > 0:
		return exitPartial
	default:
		return exitOK
	}
}

func printOutcomes(w io.Writer, outcomes []core.ImportOutcome) {
	for _, o := range outcomes {
		if o.Key != "" {
			fmt.Fprintf(w, "  line %d [%s]: %s\n", o.Line, o.Key, o.Reason)
		} else {
			fmt.Fprintf(w, "  line %d: %s\n", o.Line, o.Reason)
		}
	}
}

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
