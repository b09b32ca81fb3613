// Package liverequests reports the HTTP requests a Go test suite makes to
// hosts other than the local machine.
//
// After each test the requests it made are listed, and once the suite has run
// every hostname contacted is listed with a count. Requests are only observed,
// never blocked or altered. The usual setup is a single line in TestMain:
//
//	func TestMain(m *testing.M) {
//		os.Exit(liverequests.Run(m))
//	}
//
// Run observes every request sent through http.DefaultTransport. Clients with
// their own transport can be wrapped with Suite.Client or Suite.Transport, and
// tests can call Suite.Track to get a per test listing.
package liverequests

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime/debug"
	"testing"

	"github.com/circleci/liverequests/closer"
	o11yconfig "github.com/circleci/liverequests/config/o11y"
	"github.com/circleci/liverequests/lifecycle"
	"github.com/circleci/liverequests/recorder"
	"github.com/circleci/liverequests/report"
)

// Suite ties one recorder to one reporter for the lifetime of a test suite.
type Suite struct {
	disabled  bool
	ctx       context.Context
	closeO11y func(context.Context)
	file      *os.File
	rec       *recorder.Recorder
	reporter  *lifecycle.Reporter
}

// New builds a Suite from cfg. The o11y provider it sets up is carried by
// Context and is closed by Close.
func New(ctx context.Context, cfg Config) (*Suite, error) {
	s := &Suite{
		disabled: cfg.Disabled,
		ctx:      ctx,
	}
	if cfg.Disabled {
		s.rec = recorder.New()
		s.reporter = lifecycle.New(ctx, s.rec, report.Printer{W: io.Discard})
		return s, nil
	}

	var err error
	s.ctx, s.closeO11y, err = o11yconfig.Setup(ctx, o11yconfig.Config{
		Statsd:                  cfg.Statsd,
		HoneycombEnabled:        cfg.HoneycombDataset != "",
		HoneycombDataset:        cfg.HoneycombDataset,
		HoneycombKey:            cfg.HoneycombKey,
		HoneycombHost:           cfg.HoneycombHost,
		SampleTraces:            cfg.O11ySampleRate > 1,
		SampleRate:              cfg.O11ySampleRate,
		Format:                  cfg.O11yFormat,
		Writer:                  os.Stderr,
		Service:                 "liverequests",
		Version:                 version(),
		StatsNamespace:          "liverequests",
		StatsdTelemetryDisabled: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up o11y: %w", err)
	}

	w, err := s.openOutput(cfg.Output)
	if err != nil {
		s.closeO11y(s.ctx)
		return nil, err
	}
	s.rec = recorder.NewWithContext(s.ctx)
	s.reporter = lifecycle.New(s.ctx, s.rec, report.Printer{W: w, Colour: cfg.Colour})
	return s, nil
}

func (s *Suite) openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G302 G304 - a report file
	if err != nil {
		return nil, fmt.Errorf("failed to open report output: %w", err)
	}
	s.file = f
	return f, nil
}

func (s *Suite) Recorder() *recorder.Recorder {
	return s.rec
}

func (s *Suite) Reporter() *lifecycle.Reporter {
	return s.reporter
}

// Context returns a context carrying the suite's o11y provider.
func (s *Suite) Context() context.Context {
	return s.ctx
}

// Client returns a copy of c that records on the suite. A disabled suite
// returns c itself.
func (s *Suite) Client(c *http.Client) *http.Client {
	if s.disabled {
		if c == nil {
			return http.DefaultClient
		}
		return c
	}
	return recorder.WrapClient(s.rec, c)
}

// Transport wraps next so requests through it are recorded on the suite.
func (s *Suite) Transport(next http.RoundTripper) http.RoundTripper {
	if s.disabled {
		if next == nil {
			return http.DefaultTransport
		}
		return next
	}
	return recorder.Transport(s.rec, next)
}

// InstallDefault records every request through http.DefaultTransport until
// the returned func is called.
func (s *Suite) InstallDefault() (restore func()) {
	if s.disabled {
		return func() {}
	}
	return recorder.InstallDefault(s.rec)
}

// Track lists the requests t makes once t completes.
func (s *Suite) Track(t testing.TB) {
	t.Helper()
	if s.disabled {
		return
	}
	s.reporter.Track(t)
}

// Main runs m and then prints the hostname summary, returning m's exit code.
func (s *Suite) Main(m lifecycle.M) int {
	if s.disabled {
		return m.Run()
	}
	return s.reporter.Main(m)
}

// Close flushes the o11y provider and closes any report file.
func (s *Suite) Close() (err error) {
	if s.closeO11y != nil {
		s.closeO11y(s.ctx)
	}
	if s.file == nil {
		return nil
	}
	defer closer.ErrorHandler(s.file, &err)
	return s.file.Sync()
}

// Run is the whole of a TestMain: it configures a Suite from the environment,
// observes http.DefaultTransport while m runs, prints the reports and returns
// m's exit code. A configuration problem fails the run without running m.
func Run(m lifecycle.M) int {
	cfg, err := LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "liverequests: invalid configuration: %v\n", err)
		return 1
	}

	s, err := New(context.Background(), cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "liverequests: %v\n", err)
		return 1
	}

	defer func() {
		if err := s.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "liverequests: %v\n", err)
		}
	}()

	restore := s.InstallDefault()
	defer restore()

	return s.Main(m)
}

const modulePath = "github.com/circleci/liverequests"

// version reports the module version built into the test binary.
func version() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if bi.Main.Path == modulePath && bi.Main.Version != "" {
		return bi.Main.Version
	}
	for _, d := range bi.Deps {
		if d.Path == modulePath {
			return d.Version
		}
	}
	return "dev"
}
