// Package fakestatsd is a UDP statsd server for tests that need to see the
// metrics a real statsd client sends.
package fakestatsd

import (
	"bytes"
	"net"
	"strings"
	"sync"
	"testing"

	"gotest.tools/v3/assert"
)

type FakeStatsd struct {
	conn *net.UDPConn

	mu      sync.Mutex
	metrics []Metric
}

// New starts a server on a random local port, closed when t completes.
func New(t testing.TB) *FakeStatsd {
	t.Helper()

	addr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	assert.Assert(t, err)

	conn, err := net.ListenUDP("udp", addr)
	assert.Assert(t, err)

	s := &FakeStatsd{conn: conn}
	go s.listen()
	t.Cleanup(func() {
		_ = s.conn.Close()
	})
	return s
}

func (s *FakeStatsd) Addr() string {
	return s.conn.LocalAddr().String()
}

type Metric struct {
	Name string
	// Value holds the value and type, eg. 1|c|
	Value string
	Tags  []string
}

func (s *FakeStatsd) Metrics() []Metric {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics := make([]Metric, len(s.metrics))
	copy(metrics, s.metrics)
	return metrics
}

// Find returns the metrics whose name ends with name.
func (s *FakeStatsd) Find(name string) []Metric {
	var found []Metric
	for _, m := range s.Metrics() {
		if strings.HasSuffix(m.Name, name) {
			found = append(found, m)
		}
	}
	return found
}

func (s *FakeStatsd) listen() {
	buffer := make([]byte, 65536)
	for {
		n, err := s.conn.Read(buffer)
		if err != nil {
			return
		}
		for _, raw := range bytes.Split(buffer[:n], []byte("\n")) {
			raw = bytes.TrimSpace(raw)
			if len(raw) == 0 {
				continue
			}
			m, ok := parse(string(raw))
			if !ok {
				continue
			}
			s.mu.Lock()
			s.metrics = append(s.metrics, m)
			s.mu.Unlock()
		}
	}
}

// parse reads a dogstatsd line, eg. ns.live_request:1|c|#host:a.com
func parse(raw string) (Metric, bool) {
	name, rest, ok := strings.Cut(raw, ":")
	if !ok {
		return Metric{}, false
	}
	value, tags, _ := strings.Cut(rest, "#")
	m := Metric{Name: name, Value: value}
	if tags != "" {
		m.Tags = strings.Split(tags, ",")
	}
	return m, true
}
