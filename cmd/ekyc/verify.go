package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ekyc/internal/kyc/models"
	"ekyc/internal/platform/config"
	"ekyc/internal/platform/logger"
)

// verifyJob is one entry of the input batch.
type verifyJob struct {
	Customer models.Customer            `json:"customer"`
	Request  models.VerificationRequest `json:"request"`
}

// verifyOutput is one entry of the output batch, in input order.
type verifyOutput struct {
	CustomerID string                 `json:"customer_id"`
	Result     *models.DecisionResult `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

type verifyOptions struct {
	input       string
	concurrency int
	metricsAddr string
}

func verifyCmd(configPath *string) *cobra.Command {
	opts := verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify [batch.json]",
		Short: "Run verification for a batch of customers",
		Long: `Run verification for a JSON array of {"customer": {...}, "request": {...}}
entries, read from the given file or stdin, and print one decision per entry.

Examples:
  ekyc verify customers.json
  ekyc verify --concurrency 8 --metrics-addr :9090 < customers.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.input = args[0]
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if opts.metricsAddr != "" {
				cfg.Metrics.Addr = opts.metricsAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runVerify(ctx, cfg, opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "n", runtime.NumCPU(), "customers verified at the same time")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address while running")
	return cmd
}

func runVerify(ctx context.Context, cfg config.Config, opts verifyOptions, stdin io.Reader, stdout, stderr io.Writer) error {
	log := logger.NewWithWriter(stderr, cfg.Logging)

	jobs, err := readJSON[[]verifyJob](opts.input, stdin)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.Metrics.Addr != "" {
		stopServer := a.serveObservability(ctx, cfg.Metrics.Addr)
		defer stopServer()
	}

	outputs := make([]verifyOutput, len(jobs))
	var g errgroup.Group
	g.SetLimit(max(opts.concurrency, 1))
	for i, job := range jobs {
		g.Go(func() error {
			out := verifyOutput{CustomerID: job.Customer.ID}
			result, err := a.service.PerformVerification(ctx, job.Customer, job.Request)
			if err != nil {
				out.Error = err.Error()
			} else {
				out.Result = result
			}
			outputs[i] = out
			return nil
		})
	}
	_ = g.Wait()

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outputs); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	var rejected int
	for _, out := range outputs {
		if out.Error != "" {
			rejected++
		}
	}
	if rejected > 0 {
		return fmt.Errorf("%d of %d requests rejected", rejected, len(outputs))
	}
	return nil
}

// readJSON decodes path, or stdin when path is empty or "-".
func readJSON[T any](path string, stdin io.Reader) (T, error) {
	var v T
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return v, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return v, errors.New("input is empty")
		}
		return v, fmt.Errorf("decode input: %w", err)
	}
	return v, nil
}
