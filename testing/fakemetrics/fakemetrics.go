// Package fakemetrics provides an in memory o11y.MetricsProvider that records
// every call so tests can assert on the metrics emitted.
package fakemetrics

import (
	"fmt"
	"sync"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type MetricCall struct {
	Metric   string
	Name     string
	Value    float64
	ValueInt int64
	Tags     []string
	Rate     float64
}

// CMPMetrics compares metric calls ignoring their order and small timing differences.
var CMPMetrics = gocmp.Options{
	cmpopts.EquateApprox(0, 10),
	cmpopts.SortSlices(func(x, y MetricCall) bool {
		const format = "%s|%s|%s"
		return fmt.Sprintf(format, x.Metric, x.Name, x.Tags) <
			fmt.Sprintf(format, y.Metric, y.Name, y.Tags)
	}),
}

type Provider struct {
	mu sync.RWMutex

	calls []MetricCall
}

func (f *Provider) Calls() []MetricCall {
	f.mu.RLock()
	defer f.mu.RUnlock()

	calls := make([]MetricCall, len(f.calls))
	copy(calls, f.calls)
	return calls
}

// CountTotal sums the values of all count calls made for the named metric.
func (f *Provider) CountTotal(name string) int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var total int64
	for _, c := range f.calls {
		if c.Metric == "count" && c.Name == name {
			total += c.ValueInt
		}
	}
	return total
}

func (f *Provider) TimeInMilliseconds(name string, value float64, tags []string, rate float64) error {
	return f.add(MetricCall{Metric: "timer", Name: name, Value: value, Tags: tags, Rate: rate})
}

func (f *Provider) Gauge(name string, value float64, tags []string, rate float64) error {
	return f.add(MetricCall{Metric: "gauge", Name: name, Value: value, Tags: tags, Rate: rate})
}

func (f *Provider) Count(name string, value int64, tags []string, rate float64) error {
	return f.add(MetricCall{Metric: "count", Name: name, ValueInt: value, Tags: tags, Rate: rate})
}

func (f *Provider) Close() error {
	return nil
}

func (f *Provider) add(c MetricCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, c)
	return nil
}
