package server

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/kevinms/leakybucket-go"
	"golang.org/x/sync/semaphore"
)

// concurrencyMiddleware sheds load once max requests are in flight.
func concurrencyMiddleware(next http.Handler, max int64) http.Handler {
	sem := semaphore.NewWeighted(max)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sem.TryAcquire(1) {
			writeError(w, http.StatusServiceUnavailable, "server is overloaded")
			return
		}
		defer sem.Release(1)
		next.ServeHTTP(w, r)
	})
}

// timeoutMiddleware bounds one request end to end. A handler that outlives
// the deadline has its response discarded and the client sees 408; the
// handler itself keeps running until its context-aware calls notice.
func timeoutMiddleware(next http.Handler, timeout time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		r = r.WithContext(ctx)

		buf := newBufferedResponse()
		done := make(chan struct{})
		go func() {
			defer close(done)
			next.ServeHTTP(buf, r)
		}()
		select {
		case <-done:
			buf.copyTo(w)
		case <-ctx.Done():
			writeError(w, http.StatusRequestTimeout, "request timed out")
		}
	})
}

// dispenseGate caps dispenses past admission at the mempool chain depth and
// bounds how many requests may queue behind the cap.
type dispenseGate struct {
	sem      *semaphore.Weighted
	waiting  int64
	maxQueue int64
}

func newDispenseGate(depth, maxQueue int64) *dispenseGate {
	return &dispenseGate{
		sem:      semaphore.NewWeighted(depth),
		maxQueue: maxQueue,
	}
}

func (g *dispenseGate) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&g.waiting, 1) > g.maxQueue {
			atomic.AddInt64(&g.waiting, -1)
			writeError(w, http.StatusServiceUnavailable, "dispense queue is full")
			return
		}
		defer atomic.AddInt64(&g.waiting, -1)

		if err := g.sem.Acquire(r.Context(), 1); err != nil {
			writeError(w, http.StatusRequestTimeout, "request timed out")
			return
		}
		defer g.sem.Release(1)
		next.ServeHTTP(w, r)
	})
}

// ipRateLimiter throttles an endpoint per client IP with a leaky bucket.
type ipRateLimiter struct {
	buckets *leakybucket.Collector
}

func newIPRateLimiter(ratePerSecond float64, burst int64) *ipRateLimiter {
	return &ipRateLimiter{
		buckets: leakybucket.NewCollector(ratePerSecond, burst, true /* deleteEmptyBuckets */),
	}
}

func (l *ipRateLimiter) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.buckets.Add(clientIP(r), 1) == 0 {
			writeError(w, http.StatusTooManyRequests, "too many session requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// bufferedResponse captures a handler's output so the timeout middleware
// can discard it after the deadline.
type bufferedResponse struct {
	status int
	header http.Header
	body   []byte
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{status: http.StatusOK, header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) { b.status = status }

func (b *bufferedResponse) Write(p []byte) (int, error) {
	b.body = append(b.body, p...)
	return len(p), nil
}

func (b *bufferedResponse) copyTo(w http.ResponseWriter) {
	for k, vs := range b.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(b.status)
	if _, err := w.Write(b.body); err != nil {
		log.WithError(err).Debug("Could not write response")
	}
}
