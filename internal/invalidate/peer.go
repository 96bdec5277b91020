package invalidate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Header marks a HEAD request on the round feed as an invalidation.
const Header = "X-Broadcast-Invalidate"

// PeerNotifier relays invalidations to the other instances serving the feed,
// so their in-process state is marked stale too.
type PeerNotifier struct {
	peers   []string
	token   string
	http    *fasthttp.Client
	timeout time.Duration
	retry   int
}

type PeerOption func(*PeerNotifier)

func WithPeerTimeout(d time.Duration) PeerOption {
	return func(p *PeerNotifier) { p.timeout = d }
}

func WithPeerRetry(n int) PeerOption {
	return func(p *PeerNotifier) { p.retry = n }
}

// WithPeerToken sets the bearer token presented to peers.
func WithPeerToken(token string) PeerOption {
	return func(p *PeerNotifier) { p.token = strings.TrimSpace(token) }
}

func NewPeerNotifier(peers []string, opts ...PeerOption) *PeerNotifier {
	p := &PeerNotifier{
		http:    &fasthttp.Client{ReadTimeout: 2 * time.Second, WriteTimeout: 2 * time.Second, MaxConnsPerHost: 16},
		timeout: 2 * time.Second,
		retry:   3,
	}
	for _, peer := range peers {
		if s := strings.TrimRight(strings.TrimSpace(peer), "/"); s != "" {
			p.peers = append(p.peers, s)
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PeerNotifier) Peers() []string { return append([]string(nil), p.peers...) }

// Notify sends the invalidation to every peer and returns the first error.
func (p *PeerNotifier) Notify(ctx context.Context, roundID int64) error {
	var first error
	for _, peer := range p.peers {
		if err := p.notifyPeer(ctx, peer, roundID); err != nil && first == nil {
			first = fmt.Errorf("peer %s: %w", peer, err)
		}
	}
	return first
}

func (p *PeerNotifier) notifyPeer(ctx context.Context, peer string, roundID int64) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodHead)
	req.SetRequestURI(peer + "/broadcast/round/" + strconv.FormatInt(roundID, 10))
	req.Header.Set(Header, "1")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	// HEAD 응답에는 바디가 없음
	resp.SkipBody = true

	attempts := p.retry
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := p.http.DoDeadline(req, resp, p.deadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				return nil
			}
			lastErr = fmt.Errorf("status=%d", status)
			if !shouldRetryStatus(status) {
				return lastErr
			}
		} else {
			lastErr = err
		}
		if attempt == attempts {
			break
		}
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return lastErr
		}
	}
	return lastErr
}

func (p *PeerNotifier) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(p.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 5 {
		attempt = 5
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
