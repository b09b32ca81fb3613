package recorder

import (
	"net/http"
	"sync"

	"github.com/circleci/liverequests/request"
)

// Transport returns an http.RoundTripper that records every request on rec
// before handing it, unmodified, to next. If next is nil http.DefaultTransport
// is used. Responses and errors from next are returned untouched.
//
// Wrapping a transport that already records on rec returns it as is, so
// requests are never counted twice by the same recorder.
func Transport(rec *Recorder, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if t, ok := next.(*transport); ok && t.rec == rec {
		return t
	}
	return &transport{rec: rec, next: next}
}

type transport struct {
	rec  *Recorder
	next http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.rec.Record(req.Context(), request.FromHTTPRequest(req))
	return t.next.RoundTrip(req)
}

// CloseIdleConnections lets http.Client.CloseIdleConnections reach the wrapped transport.
func (t *transport) CloseIdleConnections() {
	type closeIdler interface {
		CloseIdleConnections()
	}
	if ci, ok := t.next.(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}

// WrapClient returns a copy of c whose transport records on rec. A nil c
// wraps http.DefaultClient. The original client is left unchanged.
func WrapClient(rec *Recorder, c *http.Client) *http.Client {
	if c == nil {
		c = http.DefaultClient
	}
	return &http.Client{
		Transport:     Transport(rec, c.Transport),
		CheckRedirect: c.CheckRedirect,
		Jar:           c.Jar,
		Timeout:       c.Timeout,
	}
}

var defaultMu sync.Mutex

// InstallDefault replaces http.DefaultTransport with one recording on rec, so
// that http.Get, http.DefaultClient and any client without its own transport
// are observed. Installing twice for the same recorder is a no-op.
// The returned func puts back the transport that was replaced.
func InstallDefault(rec *Recorder) (restore func()) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	prev := http.DefaultTransport
	http.DefaultTransport = Transport(rec, prev)
	return func() {
		defaultMu.Lock()
		defer defaultMu.Unlock()
		http.DefaultTransport = prev
	}
}
