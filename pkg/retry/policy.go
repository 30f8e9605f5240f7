package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

const (
	// DefaultMaxAttempts はデフォルトの最大試行回数
	DefaultMaxAttempts = 4
	// DefaultBaseDelay はExponential Backoffの基底時間
	DefaultBaseDelay = 2 * time.Second
	// DefaultMaxDelay はExponential Backoffの最大待機時間
	DefaultMaxDelay = 32 * time.Second
	// DefaultJitter は待機時間に加えるジッターの割合（0.0〜1.0）
	DefaultJitter = 0.2
)

// Policy は外部プロバイダ呼び出しのリトライポリシーを表す
// 一時的な失敗（レート制限・タイムアウト）をExponential Backoffで再試行する
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64

	// sleep と randFloat はテスト用に差し替え可能
	sleep     func(ctx context.Context, d time.Duration) error
	randFloat func() float64
}

// PolicyOption は Policy のオプション設定
type PolicyOption func(*Policy)

// WithSleep は待機関数を差し替える（フェイククロックでのテスト用）
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) PolicyOption {
	return func(p *Policy) {
		p.sleep = sleep
	}
}

// WithRand はジッター用の乱数生成を差し替える
func WithRand(randFloat func() float64) PolicyOption {
	return func(p *Policy) {
		p.randFloat = randFloat
	}
}

// NewPolicy は新しい Policy を作成する
func NewPolicy(maxAttempts int, baseDelay, maxDelay time.Duration, jitter float64, opts ...PolicyOption) *Policy {
	p := &Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		Jitter:      jitter,
		sleep:       sleepContext,
		randFloat:   rand.Float64,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultPolicy はデフォルト設定の Policy を返す
func DefaultPolicy(opts ...PolicyOption) *Policy {
	return NewPolicy(DefaultMaxAttempts, DefaultBaseDelay, DefaultMaxDelay, DefaultJitter, opts...)
}

// Do は op をポリシーに従って実行する
// retryable が false を返すエラーは即座に返す
// リトライ回数を使い切った場合は最後のエラーをラップして返す
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error, retryable func(error) bool) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := p.sleep(ctx, p.backoff(attempt-1)); err != nil {
				return err
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("retry budget exhausted after %d attempts: %w", p.MaxAttempts, lastErr)
}

// backoff はn回目の失敗後の待機時間を計算する
func (p *Policy) backoff(failures int) time.Duration {
	d := time.Duration(math.Pow(2, float64(failures-1))) * p.BaseDelay
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		// ±Jitter/2 の範囲で揺らす
		factor := 1 + p.Jitter*(p.randFloat()-0.5)
		d = time.Duration(float64(d) * factor)
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
