// Package lifecycle reports recorded live requests at the end of each test and
// at the end of the suite.
//
// With the standard testing package the per test hook is t.Cleanup and the
// suite hook is TestMain:
//
//	func TestMain(m *testing.M) {
//		os.Exit(reporter.Main(m))
//	}
//
//	func TestSomething(t *testing.T) {
//		reporter.Track(t)
//		...
//	}
//
// Tests running with t.Parallel share the pending log, so a request made by one
// parallel test may be listed under another.
//
// Requests made while no tracked test is running, by an untracked test or by
// package setup, are counted in the suite report but never listed against a
// test. Track drops them from the pending log, logging how many there were.
package lifecycle

import (
	"context"
	"sync"
	"testing"

	"github.com/circleci/liverequests/o11y"
	"github.com/circleci/liverequests/recorder"
	"github.com/circleci/liverequests/report"
)

// M is a test suite that can be run, returning its exit code. *testing.M satisfies it.
type M interface {
	Run() int
}

// Reporter prints a Recorder's requests at test and suite boundaries.
type Reporter struct {
	ctx     context.Context
	rec     *recorder.Recorder
	printer report.Printer

	mu sync.Mutex
	// active counts tracked tests that have not yet completed.
	active int
}

// New returns a Reporter flushing rec to p. Problems writing reports are logged to
// the o11y provider in ctx.
func New(ctx context.Context, rec *recorder.Recorder, p report.Printer) *Reporter {
	return &Reporter{
		ctx:     ctx,
		rec:     rec,
		printer: p,
	}
}

// FlushTest prints the requests recorded since the last flush and empties the
// pending log. Nothing is printed if there were none.
func (r *Reporter) FlushTest() {
	hrefs := r.rec.TakePending()
	if len(hrefs) == 0 {
		return
	}
	if err := r.printer.PrintTestRequests(hrefs); err != nil {
		o11y.LogError(r.ctx, "liverequests: flush test", err, o11y.Field("requests", len(hrefs)))
	}
}

// FlushSuite prints the hostname tally for the whole suite.
func (r *Reporter) FlushSuite() {
	hosts := r.rec.Hostnames()
	total := 0
	for _, h := range hosts {
		total += h.Count
	}

	if err := r.printer.PrintHostnames(hosts); err != nil {
		o11y.LogError(r.ctx, "liverequests: flush suite", err)
	}
	r.dropUntracked()
	o11y.Log(r.ctx, "liverequests: suite",
		o11y.Field("hosts", len(hosts)),
		o11y.Field("requests", total),
	)
}

// Track flushes the requests made by t once t and its subtests complete,
// whether it passed, failed or panicked. Requests left over from before t
// started, when no other tracked test is running, are not listed under t.
func (r *Reporter) Track(t testing.TB) {
	t.Helper()

	r.mu.Lock()
	if r.active == 0 {
		r.dropUntracked()
	}
	r.active++
	r.mu.Unlock()

	t.Cleanup(func() {
		r.FlushTest()
		r.mu.Lock()
		r.active--
		r.mu.Unlock()
	})
}

func (r *Reporter) dropUntracked() {
	if n := len(r.rec.TakePending()); n > 0 {
		o11y.Log(r.ctx, "liverequests: untracked requests", o11y.Field("requests", n))
	}
}

// WrapTest returns fn with a test flush run after it. A panic from fn still
// flushes and then carries on unwinding.
func (r *Reporter) WrapTest(fn func()) func() {
	return func() {
		defer r.FlushTest()
		fn()
	}
}

// WrapSuite returns done with a suite flush run before it. The failure count
// is handed on unchanged.
func (r *Reporter) WrapSuite(done func(failures int)) func(failures int) {
	return func(failures int) {
		r.FlushSuite()
		done(failures)
	}
}

// Main runs the suite then prints the suite report, returning the suite's exit code.
func (r *Reporter) Main(m M) int {
	code := m.Run()
	r.FlushSuite()
	return code
}
