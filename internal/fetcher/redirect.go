package fetcher

import "net/http"

// redirectRecorder follows up to maxHops redirects while recording each
// redirect target. Once the cap is reached the last 3xx response is returned
// as is.
type redirectRecorder struct {
	maxHops int
	chain   []string
}

// via holds every request made so far, so len(via) redirects have been seen
// when asked to follow the next one.
func (r *redirectRecorder) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > r.maxHops {
		return http.ErrUseLastResponse
	}
	r.chain = append(r.chain, req.URL.String())
	return nil
}

// redirects returns the recorded chain, never nil.
func (r *redirectRecorder) redirects() []string {
	if r.chain == nil {
		return []string{}
	}
	return r.chain
}
