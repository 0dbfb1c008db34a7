// Package adapter provides illustrative Stage wrappers over external,
// blocking, or rate-limited collaborators: a streaming WebSocket source and
// a token-bucket rate limiter decorator. Both translate a foreign calling
// convention into the lazy Seq/Emission vocabulary the rest of the engine
// speaks, and wrap failures as pipelineerr.AdapterError so callers can
// recover them uniformly regardless of which external system raised them.
package adapter

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/rogeriochaves/langstream/asyncseq"
	"github.com/rogeriochaves/langstream/emission"
	"github.com/rogeriochaves/langstream/engineconfig"
	"github.com/rogeriochaves/langstream/logger"
	"github.com/rogeriochaves/langstream/metrics"
	"github.com/rogeriochaves/langstream/pipelineerr"
	"github.com/rogeriochaves/langstream/stage"
)

// FromBlockingProducer adapts a blocking, one-shot-connect/many-reads
// collaborator (connect returns a receive func yielding (value, done, err))
// into a leaf Stage. The connect and receive calls run on a dedicated
// goroutine so a slow or blocked external call never stalls the caller's
// context-cancellation path. When ctx is cancelled, closeFn (if non-nil) is
// called at most once, so a receive blocked on the collaborator returns.
func FromBlockingProducer[T, V any](name string, connect func(T) (receive func() (V, bool, error), closeFn func() error, err error)) *stage.Stage[T, V] {
	produce := func(input T) asyncseq.Seq[V] {
		return func(ctx context.Context) <-chan asyncseq.Item[V] {
			out := make(chan asyncseq.Item[V])
			go func() {
				defer close(out)

				logger.AdapterCall(name, "blocking_producer")
				receive, closeFn, err := connect(input)
				if err != nil {
					select {
					case out <- asyncseq.Item[V]{Err: pipelineerr.NewAdapterError(name, err)}:
					case <-ctx.Done():
					}
					return
				}
				if closeFn != nil {
					var closeOnce sync.Once
					closeConn := func() { closeOnce.Do(func() { closeFn() }) }
					stopWatch := make(chan struct{})
					defer close(stopWatch)
					defer closeConn()
					go func() {
						select {
						case <-ctx.Done():
							closeConn()
						case <-stopWatch:
						}
					}()
				}

				count := 0
				for {
					value, done, err := receive()
					if err != nil {
						logger.AdapterResponse(name, count, err)
						select {
						case out <- asyncseq.Item[V]{Err: pipelineerr.NewAdapterError(name, err)}:
						case <-ctx.Done():
						}
						return
					}
					if done {
						logger.AdapterResponse(name, count, nil)
						return
					}
					count++
					select {
					case out <- asyncseq.Item[V]{Value: value}:
					case <-ctx.Done():
						return
					}
				}
			}()
			return out
		}
	}
	return metrics.Observe(engineconfig.DefaultConfig(), stage.FromSeq[T, V](name, produce))
}

// WebSocketMessage is one inbound text or binary frame from a WebSocketStage.
type WebSocketMessage struct {
	Data        []byte
	MessageType int
}

// WebSocketStage opens a WebSocket connection to url for every invocation
// and streams each received frame as a final Emission, closing the
// connection when the remote side closes or ctx is cancelled. It is
// illustrative of how a long-lived duplex transport is folded into the
// Stage vocabulary, not a general-purpose WebSocket client.
func WebSocketStage(name, url string) *stage.Stage[string, WebSocketMessage] {
	connect := func(payload string) (func() (WebSocketMessage, bool, error), func() error, error) {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return nil, nil, err
		}
		if payload != "" {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				conn.Close()
				return nil, nil, err
			}
		}
		receive := func() (WebSocketMessage, bool, error) {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return WebSocketMessage{}, true, nil
				}
				return WebSocketMessage{}, false, err
			}
			return WebSocketMessage{Data: data, MessageType: msgType}, false, nil
		}
		return receive, conn.Close, nil
	}
	return FromBlockingProducer[string, WebSocketMessage](name, connect)
}

// RateLimited decorates s with a token-bucket limiter at the given burst,
// using the default Config for everything else.
func RateLimited[T, U any](s *stage.Stage[T, U], limit rate.Limit, burst int) *stage.Stage[T, U] {
	cfg := engineconfig.DefaultConfig()
	cfg.RateLimiterBurst = burst
	return RateLimitedWithConfig(cfg, s, limit)
}

// RateLimitedWithConfig decorates s so that each downstream Invoke call
// first waits on a shared token-bucket limiter allowing limit events per
// second with burst cfg.RateLimiterBurst. A single RateLimitedWithConfig
// wrapper shares one limiter across every invocation of the returned
// Stage, so concurrent callers (as under Gather) contend for the same
// budget.
func RateLimitedWithConfig[T, U any](cfg *engineconfig.Config, s *stage.Stage[T, U], limit rate.Limit) *stage.Stage[T, U] {
	limiter := rate.NewLimiter(limit, cfg.RateLimiterBurst)
	run := func(input T) asyncseq.Seq[emission.Emission] {
		return func(ctx context.Context) <-chan asyncseq.Item[emission.Emission] {
			out := make(chan asyncseq.Item[emission.Emission])
			go func() {
				defer close(out)
				if err := limiter.Wait(ctx); err != nil {
					select {
					case out <- asyncseq.Item[emission.Emission]{Err: pipelineerr.NewAdapterError(s.Name(), err)}:
					case <-ctx.Done():
					}
					return
				}
				for item := range s.Invoke(input)(ctx) {
					select {
					case out <- item:
					case <-ctx.Done():
						return
					}
					if item.Err != nil {
						return
					}
				}
			}()
			return out
		}
	}
	return stage.New[T, U](s.Name(), run)
}
