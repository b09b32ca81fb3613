/*
Package recorder observes outbound HTTP requests and accumulates which
external hosts were contacted.

A Recorder keeps two accumulators: the count of requests per hostname for the
life of the suite, and the list of request URLs seen since the last per test
flush. Requests to loopback hosts are never recorded.

Requests are observed by wrapping an http.RoundTripper:

	rec := recorder.New()
	client := recorder.WrapClient(rec, http.DefaultClient)

or, to catch code that uses the default client directly:

	restore := recorder.InstallDefault(rec)
	defer restore()
*/
package recorder
