// Package honeycomb implements o11y tracing on top of the honeycomb beeline.
package honeycomb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/honeycombio/beeline-go"
	"github.com/honeycombio/beeline-go/client"
	"github.com/honeycombio/beeline-go/propagation"
	"github.com/honeycombio/beeline-go/trace"
	"github.com/honeycombio/dynsampler-go"
	"github.com/honeycombio/libhoney-go"
	"github.com/honeycombio/libhoney-go/transmission"

	"github.com/circleci/liverequests/o11y"
)

type honeycomb struct {
	metricsProvider o11y.ClosableMetricsProvider
}

type Config struct {
	Host          string
	Dataset       string
	Key           string
	Format        string
	SendTraces    bool // Should we actually send the traces to the honeycomb server?
	Sender        transmission.Sender
	SampleTraces  bool
	SampleKeyFunc func(map[string]interface{}) string
	SampleRates   map[string]int
	// SampleDefault is the rate for events with no entry in SampleRates, 0 means keep all.
	SampleDefault int
	Writer      io.Writer
	Metrics     o11y.ClosableMetricsProvider
	ServiceName string
	// Transport sends batches to the honeycomb server, the default is a clone
	// of http.DefaultTransport taken when this package was initialised.
	Transport http.RoundTripper
}

// defaultTransport is captured before http.DefaultTransport can be replaced by a
// recording transport, so honeycomb batches are never seen as live requests.
var defaultTransport = cloneDefaultTransport()

func cloneDefaultTransport() http.RoundTripper {
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		return t.Clone()
	}
	return &http.Transport{Proxy: http.ProxyFromEnvironment}
}

func (c *Config) Validate() error {
	// The key is only needed when sending traces is on and when using the default Sender
	if c.SendTraces && c.Key == "" && c.Sender == nil {
		return errors.New("honeycomb_key key required for honeycomb")
	}
	return nil
}

// sender returns the transmission.Sender to handle events based on Format and SendTraces.
func (c *Config) sender() transmission.Sender {
	writer := c.Writer
	if writer == nil {
		writer = os.Stderr
	}

	s := &MultiSender{}

	if c.SendTraces {
		if c.Sender == nil {
			rt := c.Transport
			if rt == nil {
				rt = defaultTransport
			}
			s.Senders = append(s.Senders, &transmission.Honeycomb{
				Transport:            rt,
				MaxBatchSize:         libhoney.DefaultMaxBatchSize,
				BatchTimeout:         libhoney.DefaultBatchTimeout,
				MaxConcurrentBatches: libhoney.DefaultMaxConcurrentBatches,
				PendingWorkCapacity:  libhoney.DefaultPendingWorkCapacity,
				UserAgentAddition:    c.ServiceName,
			})
		} else {
			s.Senders = append(s.Senders, c.Sender)
		}
	}

	switch c.Format {
	case "text":
		s.Senders = append(s.Senders, &TextSender{w: writer})
	case "colour", "color":
		s.Senders = append(s.Senders, &TextSender{w: writer, colour: true})
	case "none":
	default:
		s.Senders = append(s.Senders, &transmission.WriterSender{W: writer})
	}

	return s
}

const metricKey = "__MAGIC_METRIC_KEY__"

// New creates a new honeycomb o11y provider, which writes events to the configured
// writer and optionally also sends them to a honeycomb server
func New(conf Config) o11y.Provider {
	// error is ignored in default constructor in beeline, so we do the same here.
	c, _ := libhoney.NewClient(libhoney.ClientConfig{
		APIKey:       conf.Key,
		Dataset:      conf.Dataset,
		APIHost:      conf.Host,
		Transmission: conf.sender(),
	})

	bc := beeline.Config{
		Client:      c,
		WriteKey:    conf.Key,
		ServiceName: conf.ServiceName,
	}

	sendMetrics := extractAndSendMetrics(conf.Metrics)
	if conf.SampleTraces {
		if conf.SampleRates == nil {
			conf.SampleRates = map[string]int{}
		}
		if conf.SampleKeyFunc == nil {
			conf.SampleKeyFunc = func(fields map[string]interface{}) string {
				return fmt.Sprintf("%v", fields["name"])
			}
		}
		sampleDefault := conf.SampleDefault
		if sampleDefault < 1 {
			sampleDefault = 1
		}
		sampler := &TraceSampler{
			KeyFunc: conf.SampleKeyFunc,
			Sampler: &dynsampler.Static{
				Default: sampleDefault,
				Rates:   conf.SampleRates,
			},
		}
		bc.SamplerHook = func(fields map[string]interface{}) (bool, int) {
			// Metrics are sent here since the PresendHook is skipped for dropped spans.
			sendMetrics(fields)
			return sampler.Hook(fields)
		}
	} else {
		bc.PresendHook = sendMetrics
	}

	beeline.Init(bc)

	return &honeycomb{
		metricsProvider: conf.Metrics,
	}
}

func extractAndSendMetrics(mp o11y.MetricsProvider) func(map[string]interface{}) {
	return func(fields map[string]interface{}) {
		metrics, ok := fields[metricKey].([]o11y.Metric)
		delete(fields, metricKey)
		if mp == nil {
			return
		}
		if _, ok := fields["error"]; ok {
			_ = mp.Count("error", 1, []string{"type:o11y"}, 1)
		}
		if !ok {
			return
		}
		for _, m := range metrics {
			tags := extractTagsFromFields(m.TagFields, fields)
			switch m.Type {
			case o11y.MetricTimer:
				val, ok := getField(m.Field, fields)
				if !ok {
					continue
				}
				ms, ok := toMilliSecond(val)
				if !ok {
					continue
				}
				_ = mp.TimeInMilliseconds(m.Name, ms, tags, 1)
			case o11y.MetricCount:
				_ = mp.Count(m.Name, 1, tags, 1)
			}
		}
	}
}

func extractTagsFromFields(tags []string, fields map[string]interface{}) []string {
	result := make([]string, 0, len(tags))
	for _, name := range tags {
		if val, ok := getField(name, fields); ok {
			result = append(result, fmt.Sprintf("%s:%v", name, val))
		}
	}
	return result
}

func getField(name string, fields map[string]interface{}) (interface{}, bool) {
	val, ok := fields[name]
	if !ok {
		// Also support the app. prefix, for interop with honeycomb's prefixed fields
		val, ok = fields["app."+name]
	}
	return val, ok
}

func toMilliSecond(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case time.Duration:
		return float64(v.Milliseconds()), true
	}
	return 0, false
}

func (h *honeycomb) AddGlobalField(key string, val interface{}) {
	mustValidateKey(key)
	client.AddField(key, val)
}

func (h *honeycomb) StartSpan(ctx context.Context, name string) (context.Context, o11y.Span) {
	span := trace.GetSpanFromContext(ctx)
	var newSpan *trace.Span
	if span != nil {
		ctx, newSpan = span.CreateAsyncChild(ctx)
	} else {
		// no active trace so use the new root span as the span
		ctx, _ = trace.NewTrace(ctx, nil)
		newSpan = trace.GetSpanFromContext(ctx)
	}
	newSpan.AddField("name", name)

	return ctx, WrapSpan(newSpan)
}

func (h *honeycomb) GetSpan(ctx context.Context) o11y.Span {
	return WrapSpan(trace.GetSpanFromContext(ctx))
}

func (h *honeycomb) AddField(ctx context.Context, key string, val interface{}) {
	mustValidateKey(key)
	beeline.AddField(ctx, key, val)
}

func (h *honeycomb) AddFieldToTrace(ctx context.Context, key string, val interface{}) {
	mustValidateKey(key)
	beeline.AddFieldToTrace(ctx, key, val)
}

func (h *honeycomb) Log(ctx context.Context, name string, fields ...o11y.Pair) {
	_, s := h.StartSpan(ctx, name)
	for _, field := range fields {
		s.AddField(field.Key, field.Value)
	}
	s.End()
}

func (h *honeycomb) Close(_ context.Context) {
	beeline.Close()
	if h.metricsProvider != nil {
		_ = h.metricsProvider.Close()
	}
}

func (h *honeycomb) MetricsProvider() o11y.MetricsProvider {
	return h.metricsProvider
}

func (h *honeycomb) Helpers() o11y.Helpers {
	return helpers{}
}

type helpers struct{}

func (h helpers) ExtractPropagation(ctx context.Context) o11y.PropagationContext {
	s := trace.GetSpanFromContext(ctx)
	if s == nil {
		return o11y.PropagationContext{}
	}
	parent := s.SerializeHeaders()
	return o11y.PropagationContext{
		Parent: parent,
		Headers: http.Header{
			propagation.TracePropagationHTTPHeader: []string{parent},
		},
	}
}

func (h helpers) TraceIDs(ctx context.Context) (traceID, parentID string) {
	t := trace.GetTraceFromContext(ctx)
	if t == nil {
		return "", ""
	}
	return t.GetTraceID(), t.GetParentID()
}

func WrapSpan(s *trace.Span) o11y.Span {
	if s == nil {
		return nil
	}
	return &span{span: s}
}

type span struct {
	span    *trace.Span
	metrics []o11y.Metric
}

func (s *span) AddField(key string, val interface{}) {
	s.AddRawField("app."+key, val)
}

func (s *span) AddRawField(key string, val interface{}) {
	mustValidateKey(key)
	if err, ok := val.(error); ok {
		val = err.Error()
	}
	s.span.AddField(key, val)
}

func (s *span) RecordMetric(metric o11y.Metric) {
	s.metrics = append(s.metrics, metric)
	// the presend hook fishes the metrics back out of this field
	s.span.AddField(metricKey, s.metrics)
}

func (s *span) End() {
	s.span.Send()
}

func mustValidateKey(key string) {
	if strings.Contains(key, "-") {
		panic(fmt.Errorf("key %q cannot contain '-'", key))
	}
}
