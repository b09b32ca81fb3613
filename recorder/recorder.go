package recorder

import (
	"context"
	"sync"

	"github.com/circleci/liverequests/o11y"
	"github.com/circleci/liverequests/request"
)

// HostCount is the number of requests recorded for a hostname.
type HostCount struct {
	Hostname string
	Count    int
}

// Recorder tallies live requests by hostname for the suite and keeps the hrefs
// made since the last test flush. It is safe for concurrent use.
type Recorder struct {
	mu sync.Mutex

	// hostnames preserves first seen order for reporting
	hostnames []string
	counts    map[string]int
	pending   []string

	ctx context.Context
}

// New returns an empty Recorder with no o11y provider of its own.
func New() *Recorder {
	return NewWithContext(context.Background())
}

// NewWithContext returns a Recorder that emits metrics through the o11y provider
// in ctx for requests whose own context carries none.
func NewWithContext(ctx context.Context) *Recorder {
	return &Recorder{
		counts: make(map[string]int),
		ctx:    ctx,
	}
}

// Record resolves the destination of o and, unless it is a loopback host,
// counts the hostname and appends the href to the pending log.
// It returns true if the request was recorded.
func (r *Recorder) Record(ctx context.Context, o request.Options) bool {
	d := request.Resolve(o)
	if d.IsLocal() {
		return false
	}

	r.mu.Lock()
	if _, ok := r.counts[d.Hostname]; !ok {
		r.hostnames = append(r.hostnames, d.Hostname)
	}
	r.counts[d.Hostname]++
	r.pending = append(r.pending, d.Href)
	r.mu.Unlock()

	if !o11y.HasProvider(ctx) {
		ctx = r.ctx
	}
	if m := o11y.FromContext(ctx).MetricsProvider(); m != nil {
		_ = m.Count("live_request", 1, []string{"host:" + d.Hostname}, 1)
	}
	return true
}

// Hostnames returns the hostname tally in the order hosts were first seen.
func (r *Recorder) Hostnames() []HostCount {
	r.mu.Lock()
	defer r.mu.Unlock()

	hcs := make([]HostCount, 0, len(r.hostnames))
	for _, h := range r.hostnames {
		hcs = append(hcs, HostCount{Hostname: h, Count: r.counts[h]})
	}
	return hcs
}

// Count returns the number of requests recorded for hostname.
func (r *Recorder) Count(hostname string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[hostname]
}

// Total returns the number of requests recorded across all hosts.
func (r *Recorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	for _, c := range r.counts {
		total += c
	}
	return total
}

// Pending returns a copy of the hrefs recorded since the last TakePending.
func (r *Recorder) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make([]string, len(r.pending))
	copy(pending, r.pending)
	return pending
}

// TakePending returns the pending hrefs and empties the pending log.
func (r *Recorder) TakePending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := r.pending
	r.pending = nil
	return pending
}

// Reset clears both the hostname tally and the pending log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hostnames = nil
	r.counts = make(map[string]int)
	r.pending = nil
}
