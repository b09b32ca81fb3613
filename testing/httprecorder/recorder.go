package httprecorder

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

type RequestRecorder struct {
	mu       sync.Mutex
	requests []Request
}

func New() *RequestRecorder {
	return &RequestRecorder{}
}

// Record stores a copy of r, leaving its body readable for the caller.
func (rr *RequestRecorder) Record(r *http.Request) (err error) {
	req := Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
	}

	req.Body, err = io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	r.Body = io.NopCloser(bytes.NewReader(req.Body))

	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.requests = append(rr.requests, req)
	return nil
}

// Handler records every request before passing it to next.
func (rr *RequestRecorder) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := rr.Record(r); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rr *RequestRecorder) AllRequests() []Request {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	requests := make([]Request, len(rr.requests))
	copy(requests, rr.requests)
	return requests
}

func (rr *RequestRecorder) LastRequest() *Request {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if len(rr.requests) == 0 {
		return nil
	}
	req := rr.requests[len(rr.requests)-1]
	return &req
}
