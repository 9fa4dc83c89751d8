package fetch

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// HostPacer はホストごとのリクエストレートを律速する。
// 同一ストアへのチェックが集中しても一定レートを超えないよう、
// ホスト単位でトークンバケットを保持する。
type HostPacer struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewHostPacer はHostPacerを生成する。
// rpsが0以下の場合は律速なし（すべて即時通過）となる。
func NewHostPacer(rps float64) *HostPacer {
	return &HostPacer{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    1,
	}
}

// Wait は指定ホストのトークンが利用可能になるまでブロックする。
// コンテキストがキャンセルされた場合はそのエラーを返す。
func (p *HostPacer) Wait(ctx context.Context, host string) error {
	if p.rps <= 0 {
		return nil
	}
	return p.limiter(host).Wait(ctx)
}

func (p *HostPacer) limiter(host string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[host]
	if !ok {
		l = rate.NewLimiter(p.rps, p.burst)
		p.limiters[host] = l
	}
	return l
}
