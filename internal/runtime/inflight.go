package runtime

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// requestGrace is how long canceled requests get to return before the
// store is left open behind them.
var requestGrace = 5 * time.Second

// inflight counts requests that are still being served.
type inflight struct {
	wg sync.WaitGroup
}

func (f *inflight) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		f.wg.Add(1)
		defer f.wg.Done()
		next.ServeHTTP(w, req)
	})
}

// wait blocks until every tracked request has returned or ctx ends, and
// reports whether they all returned.
func (f *inflight) wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
