package liverequests

import (
	"github.com/circleci/liverequests/config/env"
	"github.com/circleci/liverequests/config/secret"
)

// Config controls where reports go and what else is observed about the suite.
type Config struct {
	// Output is stdout, stderr or the path of a file to append reports to.
	Output string
	Colour bool
	// Disabled turns every Suite operation into a pass through.
	Disabled bool

	// O11yFormat is the format of the o11y event log on stderr: json, text, colour or none.
	O11yFormat string
	// O11ySampleRate keeps one in every O11ySampleRate traces sent to honeycomb.
	O11ySampleRate   int
	HoneycombDataset string
	HoneycombKey     secret.String
	// HoneycombHost overrides the honeycomb API host.
	HoneycombHost string
	Statsd        string
}

func DefaultConfig() Config {
	return Config{
		Output:     "stdout",
		Colour:     true,
		O11yFormat:     "none",
		O11ySampleRate: 1,
	}
}

// LoadConfig reads the LIVEREQUESTS_ environment variables over DefaultConfig.
// Every invalid variable is reported in the returned error.
func LoadConfig() (Config, error) {
	cfg, l := load()
	return cfg, l.Err()
}

// EnvHelp lists the environment variables LoadConfig reads, with their defaults.
func EnvHelp() []string {
	_, l := load()
	vars := l.VarsUsed()
	help := make([]string, 0, len(vars))
	for _, v := range vars {
		help = append(help, v.String())
	}
	return help
}

func load() (Config, *env.Loader) {
	cfg := DefaultConfig()
	l := env.NewLoader()
	l.String(&cfg.Output, "LIVEREQUESTS_OUTPUT")
	l.Bool(&cfg.Colour, "LIVEREQUESTS_COLOUR")
	l.Bool(&cfg.Disabled, "LIVEREQUESTS_DISABLED")
	l.String(&cfg.O11yFormat, "LIVEREQUESTS_O11Y_FORMAT")
	l.Int(&cfg.O11ySampleRate, "LIVEREQUESTS_O11Y_SAMPLE_RATE")
	l.String(&cfg.HoneycombDataset, "LIVEREQUESTS_HONEYCOMB_DATASET")
	l.SecretFromFile(&cfg.HoneycombKey, "LIVEREQUESTS_HONEYCOMB_KEY_FILE")
	l.String(&cfg.HoneycombHost, "LIVEREQUESTS_HONEYCOMB_HOST")
	l.String(&cfg.Statsd, "LIVEREQUESTS_STATSD")
	return cfg, l
}
