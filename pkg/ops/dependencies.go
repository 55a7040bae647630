package ops

import (
	"context"
	"net/http"
	"time"
)

// DependencyStatus reports the live reachability of one external
// dependency this agent calls out to during normal operation.
type DependencyStatus struct {
	Name      string `json:"name"`
	Reachable bool   `json:"reachable"`
	Detail    string `json:"detail,omitempty"`
}

// DependencyChecker probes external dependencies on demand. It never
// caches — /ops/dependencies is meant to answer "right now".
type DependencyChecker interface {
	Check(ctx context.Context) []DependencyStatus
}

// HTTPDependencyChecker pings a fixed set of named base URLs with a
// short-timeout GET and reports whether each responded at all.
type HTTPDependencyChecker struct {
	Client    *http.Client
	Endpoints map[string]string
}

// NewHTTPDependencyChecker builds a checker with a conservative
// per-probe timeout, independent of any caller-supplied client.
func NewHTTPDependencyChecker(endpoints map[string]string) *HTTPDependencyChecker {
	return &HTTPDependencyChecker{
		Client:    &http.Client{Timeout: 5 * time.Second},
		Endpoints: endpoints,
	}
}

// Check probes every configured endpoint concurrently and returns one
// status per dependency, in no particular order.
func (c *HTTPDependencyChecker) Check(ctx context.Context) []DependencyStatus {
	results := make([]DependencyStatus, len(c.Endpoints))
	done := make(chan struct{})
	i := 0
	for name, url := range c.Endpoints {
		idx := i
		i++
		go func(name, url string) {
			results[idx] = c.probe(ctx, name, url)
			done <- struct{}{}
		}(name, url)
	}
	for range c.Endpoints {
		<-done
	}
	return results
}

func (c *HTTPDependencyChecker) probe(ctx context.Context, name, url string) DependencyStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return DependencyStatus{Name: name, Reachable: false, Detail: err.Error()}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return DependencyStatus{Name: name, Reachable: false, Detail: err.Error()}
	}
	defer resp.Body.Close()
	return DependencyStatus{Name: name, Reachable: true, Detail: resp.Status}
}
