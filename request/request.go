// Package request resolves the destination of an outbound HTTP request into a
// hostname and a full URL (href), the two values live request reporting is keyed on.
package request

import (
	"net/http"
	"net/url"
	"strings"
)

// Unknown is used for the hostname or href when no recognised field is set.
const Unknown = "Unknown"

// Options describes where a request is going. Any combination of fields may be
// set, URI takes precedence over the flat fields.
type Options struct {
	// URI is the parsed request URL.
	URI *url.URL
	// Hostname is the bare hostname, without port.
	Hostname string
	// Host is the host, possibly with port.
	Host string
	// Path is appended to Hostname or Host to build the href.
	Path string
}

// Descriptor is the resolved destination of a request.
type Descriptor struct {
	Hostname string
	Href     string
}

// IsLocal reports whether the descriptor points at a loopback host.
func (d Descriptor) IsLocal() bool {
	return IsLocal(d.Hostname)
}

// Resolve derives the Descriptor for o.
//
// The hostname is taken from the URI, then Hostname, then Host.
// The href is taken from the URI, then Hostname+Path, then Host+Path.
// Either falls back to Unknown.
func Resolve(o Options) Descriptor {
	return Descriptor{
		Hostname: o.hostname(),
		Href:     o.href(),
	}
}

func (o Options) hostname() string {
	switch {
	case o.URI != nil && o.URI.Hostname() != "":
		return o.URI.Hostname()
	case o.Hostname != "":
		return o.Hostname
	case o.Host != "":
		return o.Host
	}
	return Unknown
}

func (o Options) href() string {
	if o.URI != nil {
		// passwords in userinfo must not reach a report
		if s := o.URI.Redacted(); s != "" {
			return s
		}
	}
	switch {
	case o.Hostname != "" && o.Path != "":
		return o.Hostname + o.Path
	case o.Host != "" && o.Path != "":
		return o.Host + o.Path
	}
	return Unknown
}

// FromHTTPRequest builds the Options for an outgoing request. The URL is
// copied so later changes to the request do not leak into recordings.
func FromHTTPRequest(r *http.Request) Options {
	if r == nil {
		return Options{}
	}
	o := Options{Host: r.Host}
	if r.URL != nil {
		u := *r.URL
		o.URI = &u
		o.Path = r.URL.Path
	}
	return o
}

// IsLocal reports whether hostname names a loopback destination.
func IsLocal(hostname string) bool {
	return strings.Contains(hostname, "127.0.0.1") || strings.Contains(hostname, "localhost")
}
