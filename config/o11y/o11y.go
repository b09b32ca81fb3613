// Package o11y builds the o11y provider used to log live request reports.
package o11y

import (
	"context"
	"io"
	"os"

	"github.com/DataDog/datadog-go/statsd"

	"github.com/circleci/liverequests/config/secret"
	"github.com/circleci/liverequests/o11y"
	"github.com/circleci/liverequests/o11y/honeycomb"
)

type Config struct {
	Statsd           string
	HoneycombEnabled bool
	HoneycombDataset string
	HoneycombKey     secret.String
	HoneycombHost    string
	// SampleTraces keeps one in SampleRate traces, the rest are dropped.
	SampleTraces bool
	SampleRate   int
	// Format is one of json, text, colour or none
	Format         string
	Writer         io.Writer
	Version        string
	Service        string
	StatsNamespace string

	StatsdTelemetryDisabled bool
}

// Setup returns a context holding a honeycomb backed o11y provider, and the
// func that flushes and closes it.
func Setup(ctx context.Context, o Config) (context.Context, func(context.Context), error) {
	honeyConfig, err := honeyComb(o)
	if err != nil {
		return nil, nil, err
	}

	if o.Statsd == "" {
		honeyConfig.Metrics = &statsd.NoOpClient{}
	} else {
		hostname, _ := os.Hostname()
		statsdOpts := []statsd.Option{
			statsd.WithNamespace(o.StatsNamespace),
			statsd.WithTags([]string{
				"service:" + o.Service,
				"version:" + o.Version,
				"hostname:" + hostname,
			}),
		}
		if o.StatsdTelemetryDisabled {
			statsdOpts = append(statsdOpts, statsd.WithoutTelemetry())
		}

		stats, err := statsd.New(o.Statsd, statsdOpts...)
		if err != nil {
			return nil, nil, err
		}
		honeyConfig.Metrics = stats
	}

	provider := honeycomb.New(honeyConfig)
	provider.AddGlobalField("service", o.Service)
	provider.AddGlobalField("version", o.Version)

	return o11y.WithProvider(ctx, provider), provider.Close, nil
}

func honeyComb(o Config) (honeycomb.Config, error) {
	conf := honeycomb.Config{
		Host:          o.HoneycombHost,
		Dataset:       o.HoneycombDataset,
		Key:           o.HoneycombKey.Raw(),
		Format:        o.Format,
		Writer:        o.Writer,
		SendTraces:    o.HoneycombEnabled,
		SampleTraces:  o.SampleTraces,
		SampleDefault: o.SampleRate,
		ServiceName:   o.Service,
	}
	return conf, conf.Validate()
}
