package liverequests

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/env"
	"gotest.tools/v3/fs"
	"gotest.tools/v3/golden"
	"gotest.tools/v3/poll"

	"github.com/circleci/liverequests/o11y"
	"github.com/circleci/liverequests/testing/fakestatsd"
)

func TestSuite(t *testing.T) {
	dir := fs.NewDir(t, "liverequests")
	defer dir.Remove()
	out := dir.Join("report.txt")

	s, err := New(context.Background(), Config{Output: out, O11yFormat: "none"})
	assert.Assert(t, err)
	assert.Check(t, o11y.FromContext(s.Context()) != o11y.FromContext(context.Background()))

	client := s.Client(&http.Client{Transport: fakeTransport()})

	code := s.Main(fakeM(func() int {
		t.Run("first", func(t *testing.T) {
			s.Track(t)
			get(t, client, "https://a.com/1")
			get(t, client, "https://a.com/2")
		})
		t.Run("no requests", func(t *testing.T) {
			s.Track(t)
		})
		t.Run("second", func(t *testing.T) {
			s.Track(t)
			get(t, client, "https://b.com/3?q=1")
		})
		return 3
	}))
	assert.Check(t, cmp.Equal(code, 3))
	assert.Check(t, cmp.Equal(s.Recorder().Total(), 3))
	assert.Assert(t, s.Close())

	b, err := os.ReadFile(out)
	assert.Assert(t, err)
	assert.Check(t, golden.String(string(b), "suite-report.txt"))
}

func TestSuite_LocalRequestsIgnored(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	s, err := New(context.Background(), Config{Output: "stdout"})
	assert.Assert(t, err)
	defer func() { assert.Check(t, s.Close()) }()

	client := s.Client(server.Client())
	get(t, client, server.URL+"/health")

	assert.Check(t, cmp.Equal(s.Recorder().Total(), 0))
	assert.Check(t, cmp.Len(s.Recorder().Pending(), 0))
}

func TestSuite_Transport(t *testing.T) {
	s, err := New(context.Background(), Config{Output: "stderr"})
	assert.Assert(t, err)
	defer func() { assert.Check(t, s.Close()) }()

	rt := s.Transport(fakeTransport())
	assert.Check(t, s.Transport(rt) == rt, "wrapping twice records once")

	client := &http.Client{Transport: s.Transport(rt)}
	get(t, client, "https://api.example.com/v1")
	assert.Check(t, cmp.Equal(s.Recorder().Count("api.example.com"), 1))
}

func TestSuite_Disabled(t *testing.T) {
	dir := fs.NewDir(t, "liverequests")
	defer dir.Remove()
	out := dir.Join("report.txt")

	s, err := New(context.Background(), Config{Output: out, Disabled: true})
	assert.Assert(t, err)

	c := &http.Client{Transport: fakeTransport()}
	assert.Check(t, s.Client(c) == c)
	assert.Check(t, s.Client(nil) == http.DefaultClient)
	assert.Check(t, s.Transport(nil) == http.DefaultTransport)

	before := http.DefaultTransport
	restore := s.InstallDefault()
	assert.Check(t, http.DefaultTransport == before)
	restore()

	code := s.Main(fakeM(func() int {
		t.Run("test", func(t *testing.T) {
			s.Track(t)
			get(t, s.Client(c), "https://a.com/1")
		})
		return 0
	}))
	assert.Check(t, cmp.Equal(code, 0))
	assert.Check(t, cmp.Equal(s.Recorder().Total(), 0))
	assert.Check(t, s.Close())

	_, err = os.Stat(out)
	assert.Check(t, os.IsNotExist(err), "a disabled suite writes nothing")
}

func TestSuite_Statsd(t *testing.T) {
	stats := fakestatsd.New(t)

	s, err := New(context.Background(), Config{Output: "stderr", Statsd: stats.Addr()})
	assert.Assert(t, err)

	client := s.Client(&http.Client{Transport: fakeTransport()})
	get(t, client, "https://a.com/1")
	assert.Assert(t, s.Close())

	poll.WaitOn(t, func(t poll.LogT) poll.Result {
		if len(stats.Find("live_request")) == 0 {
			return poll.Continue("no live_request metric yet")
		}
		return poll.Success()
	})
	m := stats.Find("live_request")[0]
	assert.Check(t, cmp.Equal(m.Value, "1|c|"))
	assert.Check(t, cmp.Contains(m.Tags, "host:a.com"))
	assert.Check(t, cmp.Contains(m.Tags, "service:liverequests"))
}

func TestSuite_HoneycombNotRecorded(t *testing.T) {
	s, err := New(context.Background(), Config{
		Output:           "stderr",
		O11yFormat:       "none",
		HoneycombDataset: "test-suites",
		HoneycombKey:     "a-key",
		// Nothing listens here, the batch fails fast.
		HoneycombHost: "http://0.0.0.0:1",
	})
	assert.Assert(t, err)

	restore := s.InstallDefault()
	defer restore()

	_, span := o11y.StartSpan(s.Context(), "suite test")
	span.End()
	assert.Check(t, s.Close())

	assert.Check(t, cmp.Equal(s.Recorder().Total(), 0))
	assert.Check(t, cmp.Len(s.Recorder().Pending(), 0))
}

func TestNew_BadOutput(t *testing.T) {
	_, err := New(context.Background(), Config{Output: "/does/not/exist/report.txt"})
	assert.Check(t, cmp.ErrorContains(err, "failed to open report output"))
}

func TestRun(t *testing.T) {
	dir := fs.NewDir(t, "liverequests")
	defer dir.Remove()
	out := dir.Join("report.txt")

	defer env.PatchAll(t, map[string]string{
		"LIVEREQUESTS_OUTPUT": out,
		"LIVEREQUESTS_COLOUR": "false",
	})()

	prev := http.DefaultTransport
	http.DefaultTransport = fakeTransport()
	defer func() { http.DefaultTransport = prev }()

	var installed http.RoundTripper
	code := Run(fakeM(func() int {
		installed = http.DefaultTransport
		t.Run("uses the default client", func(t *testing.T) {
			get(t, http.DefaultClient, "https://a.com/1")
		})
		return 0
	}))
	assert.Check(t, cmp.Equal(code, 0))
	assert.Check(t, installed != http.DefaultTransport, "the default transport is restored")

	b, err := os.ReadFile(out)
	assert.Assert(t, err)
	assert.Check(t, cmp.Equal(string(b), "   Hostnames requested: \n    a.com: 1\n"))
}

func TestRun_Panic(t *testing.T) {
	defer env.Patch(t, "LIVEREQUESTS_OUTPUT", "stderr")()

	prev := http.DefaultTransport
	fake := fakeTransport()
	http.DefaultTransport = fake
	defer func() { http.DefaultTransport = prev }()

	func() {
		defer func() {
			assert.Check(t, cmp.Equal(recover(), "suite blew up"))
		}()
		Run(fakeM(func() int {
			panic("suite blew up")
		}))
	}()

	_, ok := http.DefaultTransport.(roundTripperFunc)
	assert.Check(t, ok, "the default transport is restored after a panic")
}

func TestRun_InvalidConfig(t *testing.T) {
	defer env.Patch(t, "LIVEREQUESTS_DISABLED", "perhaps")()

	ran := false
	code := Run(fakeM(func() int {
		ran = true
		return 0
	}))
	assert.Check(t, cmp.Equal(code, 1))
	assert.Check(t, !ran)
}

func get(t *testing.T, c *http.Client, url string) {
	t.Helper()
	res, err := c.Get(url)
	assert.Assert(t, err)
	_, _ = io.Copy(io.Discard, res.Body)
	assert.Check(t, res.Body.Close())
}

type fakeM func() int

func (f fakeM) Run() int {
	return f()
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// fakeTransport answers every request with an empty 200 so no test leaves the machine.
func fakeTransport() http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader("")),
			Request:    r,
		}, nil
	})
}
