// Package report formats recorded live requests as human-readable text.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/circleci/liverequests/colourise"
	"github.com/circleci/liverequests/recorder"
)

// Indent returns n spaces.
func Indent(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}

// TestRequests formats the hrefs recorded during a single test. No hrefs gives
// the empty string.
func TestRequests(hrefs []string) string {
	return join(testRequestLines(hrefs), noColour, noColour)
}

// Hostnames formats the suite's hostname tally, with a none line when nothing
// was recorded.
func Hostnames(hosts []recorder.HostCount) string {
	return join(hostnameLines(hosts), noColour, noColour)
}

// Printer writes reports to W, coloured when Colour is set.
type Printer struct {
	W      io.Writer
	Colour bool
}

// PrintTestRequests writes the live requests block for one test.
func (p Printer) PrintTestRequests(hrefs []string) error {
	return p.print(join(testRequestLines(hrefs), p.colour(colourise.Warn), p.colour(colourise.Warn)))
}

// PrintHostnames writes the suite's hostname tally, or none if it is empty.
func (p Printer) PrintHostnames(hosts []recorder.HostCount) error {
	return p.print(join(hostnameLines(hosts), p.colour(colourise.WarnBold), p.colour(colourise.Warn)))
}

func (p Printer) print(s string) error {
	if s == "" {
		return nil
	}
	_, err := io.WriteString(p.W, s)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func (p Printer) colour(f func(string) string) func(string) string {
	if !p.Colour {
		return noColour
	}
	return f
}

func testRequestLines(hrefs []string) []string {
	if len(hrefs) == 0 {
		return nil
	}
	lines := make([]string, 0, len(hrefs)+1)
	lines = append(lines, Indent(6)+" Live requests: ")
	for _, href := range hrefs {
		lines = append(lines, Indent(8)+" * "+href)
	}
	return lines
}

func hostnameLines(hosts []recorder.HostCount) []string {
	lines := make([]string, 0, len(hosts)+1)
	lines = append(lines, Indent(2)+" Hostnames requested: ")
	if len(hosts) == 0 {
		return append(lines, Indent(4)+"none")
	}
	for _, h := range hosts {
		lines = append(lines, fmt.Sprintf("%s%s: %d", Indent(4), h.Hostname, h.Count))
	}
	return lines
}

func join(lines []string, header, body func(string) string) string {
	if len(lines) == 0 {
		return ""
	}
	sb := strings.Builder{}
	for i, l := range lines {
		if i == 0 {
			l = header(l)
		} else {
			l = body(l)
		}
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	return sb.String()
}

func noColour(s string) string {
	return s
}
