package umbrella

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yuriy-kovalchuk/yk-blocklist-sync/internal/dns"
)

// instrumentedTransport paces outgoing requests and reports each one to the
// observer, if any.
type instrumentedTransport struct {
	next     http.RoundTripper
	limiter  *rate.Limiter
	observer dns.RequestObserver
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if t.observer != nil {
		code := 0
		if resp != nil {
			code = resp.StatusCode
		}
		t.observer.ObserveRequest(endpointOf(req.URL.Path), req.Method, code, time.Since(start))
	}
	return resp, err
}

// endpointOf maps a request path to a low-cardinality endpoint label.
func endpointOf(path string) string {
	switch {
	case strings.HasSuffix(path, "/"+tokenPath):
		return "token"
	case strings.HasSuffix(path, "/destinations"):
		return "destinations"
	case strings.Contains(path, "/"+destinationListsPath):
		return "destinationlists"
	default:
		return "other"
	}
}
