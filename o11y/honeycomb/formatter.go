package honeycomb

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/honeycombio/libhoney-go/transmission"

	"github.com/circleci/liverequests/colourise"
)

// TextSender implements the transmission.Sender interface by writing events as
// single human-readable lines to w, with optional colour.
type TextSender struct {
	mu sync.Mutex

	w      io.Writer
	colour bool

	responses chan transmission.Response
}

func (t *TextSender) Start() error {
	t.responses = make(chan transmission.Response, 100)
	return nil
}

func (t *TextSender) Stop() error { return nil }

func (t *TextSender) Flush() error { return nil }

func (t *TextSender) Add(ev *transmission.Event) {
	line := t.format(ev)

	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = t.w.Write(line)
	t.SendResponse(transmission.Response{Metadata: ev.Metadata})
}

func (t *TextSender) TxResponses() chan transmission.Response {
	return t.responses
}

func (t *TextSender) SendResponse(r transmission.Response) bool {
	select {
	case t.responses <- r:
	default:
		return true
	}
	return false
}

func (t *TextSender) format(ev *transmission.Event) []byte {
	buf := new(bytes.Buffer)
	_, _ = fmt.Fprintf(buf, "%s %s %.3fms %s",
		ev.Timestamp.Format("15:04:05"),
		t.applyColour(shortTraceID(ev.Data["trace.trace_id"])),
		ev.Data["duration_ms"],
		t.applyColour(fmt.Sprintf("%s", ev.Data["name"])),
	)

	keys := make([]string, 0, len(ev.Data))
	for k := range ev.Data {
		if !t.exclude(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		label := k
		if k == "error" && t.colour {
			label = colourise.ErrorHighlight(k)
		}
		_, _ = fmt.Fprintf(buf, " %s=%v", label, ev.Data[k])
	}
	buf.WriteString("\n")
	return buf.Bytes()
}

func (t *TextSender) exclude(k string) bool {
	switch k {
	case "name", "version", "service", "duration_ms":
		return true
	}
	return strings.HasPrefix(k, "trace.") || strings.HasPrefix(k, "meta.")
}

func (t *TextSender) applyColour(value string) string {
	if !t.colour {
		return value
	}
	return colourise.ApplyColour(value)
}

func shortTraceID(raw interface{}) string {
	traceID, ok := raw.(string)
	if !ok || len(traceID) < 5 {
		return "unkwn"
	}
	return traceID[len(traceID)-5:]
}
