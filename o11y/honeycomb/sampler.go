package honeycomb

import (
	"fmt"
	"hash/crc32"
	"math"

	dynsampler "github.com/honeycombio/dynsampler-go"
)

type TraceSampler struct {
	// KeyFunc takes the event's fields map and returns a single string key
	// which will be used as the lookup into the sampling strategy
	KeyFunc func(map[string]interface{}) string

	Sampler dynsampler.Sampler
}

// Hook implements beeline.Config.SamplerHook
func (s *TraceSampler) Hook(fields map[string]interface{}) (sample bool, rate int) {
	// errors are always kept
	if _, ok := fields["error"]; ok {
		return true, 1
	}

	rate = s.Sampler.GetSampleRate(s.KeyFunc(fields))
	if shouldSample(fmt.Sprintf("%v", fields["trace.trace_id"]), rate) {
		return true, rate
	}
	return false, 0
}

// shouldSample deterministically decides whether to sample, true means keep.
//
// See https://github.com/honeycombio/beeline-go/blob/master/sample/deterministic_sampler.go
func shouldSample(determinant string, rate int) bool {
	if rate <= 1 {
		return true
	}

	threshold := math.MaxUint32 / uint32(rate) //nolint:gosec
	return crc32.ChecksumIEEE([]byte(determinant)) < threshold
}
