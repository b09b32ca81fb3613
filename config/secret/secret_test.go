package secret

import (
	"encoding/json"
	"fmt"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestString(t *testing.T) {
	s := String("honeycomb-write-key")
	assert.Check(t, cmp.Equal(s.Raw(), "honeycomb-write-key"))
	assert.Check(t, cmp.Equal(fmt.Sprintf("%v", s), "REDACTED"))
	assert.Check(t, cmp.Equal(fmt.Sprintf("%#v", s), "REDACTED"))
	assert.Check(t, cmp.Equal(s.String(), "REDACTED"))

	b, err := json.Marshal(struct{ Key String }{Key: s})
	assert.Assert(t, err)
	assert.Check(t, cmp.Equal(string(b), `{"Key":"REDACTED"}`))
}
