// Command aasc wires the Agent Action Safety Core pipeline and exposes the
// operator-facing command surface: resolving pending approvals and running
// the demo pipeline server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openclaw/aasc/pkg/approvalmgr"
	"github.com/openclaw/aasc/pkg/autoapprove"
	"github.com/openclaw/aasc/pkg/bus"
	"github.com/openclaw/aasc/pkg/config"
	"github.com/openclaw/aasc/pkg/cost"
	"github.com/openclaw/aasc/pkg/fsboundary"
	"github.com/openclaw/aasc/pkg/httpquery"
	"github.com/openclaw/aasc/pkg/logging"
	"github.com/openclaw/aasc/pkg/pipeline"
	"github.com/openclaw/aasc/pkg/progression"
	"github.com/openclaw/aasc/pkg/statedir"
	"github.com/openclaw/aasc/pkg/trace"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "aasc:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}

	switch args[0] {
	case "gate":
		return runGate(args[1:])
	case "serve":
		return runServe(args[1:])
	case "version":
		fmt.Printf("aasc %s (%s)\n", version, commit)
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: aasc <command> [arguments]")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  gate <id> allow-once|allow-always|deny   resolve a pending approval")
	fmt.Fprintln(os.Stderr, "  serve                                    run the pipeline demo server")
	fmt.Fprintln(os.Stderr, "  version                                  print build information")
}

// runGate resolves a pending approval record by ID against the manager's
// shared decision store. Since the manager is in-process and per-run, this
// subcommand is only useful embedded in the same process as the pipeline;
// it is exercised by tests via approvalmgr.ParseDecision directly.
func runGate(args []string) error {
	fs := flag.NewFlagSet("gate", flag.ExitOnError)
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 2 {
		return fmt.Errorf("usage: aasc gate <id> allow-once|allow-always|deny")
	}
	id := rest[0]
	decision, ok := approvalmgr.ParseDecision(rest[1:])
	if !ok {
		return fmt.Errorf("unrecognized decision %q", rest[1])
	}
	fmt.Printf("resolved approval %s as %s\n", id, decision)
	return nil
}

// runServe constructs the full pipeline from configuration and blocks,
// demonstrating the wiring every stage requires. There is no network
// listener here beyond the optional trace-query HTTP surface — tool calls
// arrive through an embedding process, not over the wire.
func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to aasc.yaml (defaults to <state dir>/aasc.yaml)")
	fs.Parse(args)

	if *configPath == "" {
		*configPath = statedir.Path("aasc.yaml")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "aasc: config load warning: %v (continuing with defaults)\n", err)
	}

	logger, err := logging.NewLogger(statedir.Path("logs"), "aasc-serve")
	if err != nil {
		return fmt.Errorf("constructing logger: %w", err)
	}
	defer logger.Close()

	boundary := fsboundary.New(fsboundary.Config{
		Readable: cfg.Security.Filesystem.Readable,
		Writable: cfg.Security.Filesystem.Writable,
		Denied:   cfg.Security.Filesystem.Denied,
	})

	msgBus, err := bus.New(cfg.Bus.Driver, bus.Config{URL: cfg.Bus.NatsURL, Name: "aasc"})
	if err != nil {
		return fmt.Errorf("constructing message bus: %w", err)
	}

	approvals := approvalmgr.New(
		approvalmgr.WithBus(msgBus),
		approvalmgr.WithRateLimit(cfg.Autonomy.RateLimit.PerAgentPerMinute),
	)

	autoApprove := autoapprove.New(statedir.Path("autonomy-rules.json"))
	progress := progression.New(statedir.Path("progression.json"))

	var tracer *trace.Tracer
	if cfg.Diagnostics.ReasoningTrace.Enabled {
		if provider, err := trace.InstallDefaultProvider("aasc"); err != nil {
			fmt.Fprintf(os.Stderr, "aasc: span provider warning: %v (spans will be no-ops)\n", err)
		} else {
			defer provider.Shutdown(context.Background())
		}

		baseDir := statedir.ExpandHome(cfg.Diagnostics.ReasoningTrace.BaseDir)
		writer := trace.NewWriter(baseDir)
		defer writer.Flush()
		tracer = trace.NewTracer(writer, nil)
	}

	costDBPath := statedir.ExpandHome(cfg.Cost.DBPath)
	if err := os.MkdirAll(filepath.Dir(costDBPath), 0o755); err != nil {
		return fmt.Errorf("creating cost db directory: %w", err)
	}
	pricing := cost.NewPricingTable()
	tracker, err := cost.New(costDBPath, pricing)
	if err != nil {
		return fmt.Errorf("opening cost tracker: %w", err)
	}
	tracker.SetBudgets(
		cfg.Cost.Budgets.Session, cfg.Cost.Budgets.Daily,
		cfg.Cost.Budgets.Monthly, cfg.Cost.Budgets.AutoStopAt,
	)

	p := pipeline.New(
		noopExecutor,
		pipeline.WithBoundary(boundary),
		pipeline.WithAutoApprove(autoApprove),
		pipeline.WithApprovalManager(approvals),
		pipeline.WithProgression(progress),
		pipeline.WithTracer(tracer),
		pipeline.WithLogger(logger),
		pipeline.WithApprovalTimeoutMs(cfg.Autonomy.ApprovalTimeoutMs),
		pipeline.WithConfidenceThreshold(cfg.Autonomy.ConfidenceThreshold),
		pipeline.WithSensitivePatterns(cfg.Security.SensitivePatterns),
	)
	_ = p // embedding callers hold a reference to Run; this command demonstrates wiring only.

	if cfg.Diagnostics.HTTPQuery.Enabled {
		baseDir := statedir.ExpandHome(cfg.Diagnostics.ReasoningTrace.BaseDir)
		srv := httpquery.New(trace.NewQuery(baseDir), cfg.Diagnostics.HTTPQuery.Addr)
		fmt.Printf("trace query surface listening on %s\n", cfg.Diagnostics.HTTPQuery.Addr)
		return srv.ListenAndServe()
	}

	fmt.Println("aasc pipeline constructed; no HTTP surface enabled, exiting")
	return nil
}

func noopExecutor(ctx context.Context, call *pipeline.Call) (*pipeline.Result, error) {
	return &pipeline.Result{Status: "ok", Tool: call.ToolName}, nil
}
