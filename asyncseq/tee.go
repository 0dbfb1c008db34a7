package asyncseq

import (
	"context"
	"sync"

	"github.com/rogeriochaves/langstream/engineconfig"
)

// teeConsumer is one of Tee's independent output queues. It buffers items
// the shared producer goroutine has pulled but this consumer hasn't yet
// read, so a lagging consumer never blocks its siblings.
type teeConsumer[V any] struct {
	mu        sync.Mutex
	cond      *sync.Cond
	queue     []Item[V]
	closed    bool
	cancelled bool
}

func newTeeConsumer[V any]() *teeConsumer[V] {
	c := &teeConsumer[V]{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *teeConsumer[V]) push(item Item[V]) {
	c.mu.Lock()
	c.queue = append(c.queue, item)
	c.cond.Broadcast()
	c.mu.Unlock()
}

func (c *teeConsumer[V]) close() {
	c.mu.Lock()
	c.closed = true
	c.cond.Broadcast()
	c.mu.Unlock()
}

// cancel is called by a ctx-watcher goroutine to unblock a consumer that is
// parked in pop waiting for items that will now never come.
func (c *teeConsumer[V]) cancel() {
	c.mu.Lock()
	c.cancelled = true
	c.cond.Broadcast()
	c.mu.Unlock()
}

func (c *teeConsumer[V]) pop() (Item[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.queue) == 0 && !c.closed && !c.cancelled {
		c.cond.Wait()
	}
	if len(c.queue) == 0 {
		return Item[V]{}, false
	}
	item := c.queue[0]
	c.queue = c.queue[1:]
	return item, true
}

// Tee splits one sequence into n independent consumers using the default
// Config's TeeBufferPolicy.
func Tee[V any](seq Seq[V], n int) []Seq[V] {
	return TeeWithConfig(engineconfig.DefaultConfig(), seq, n)
}

// TeeWithConfig splits one sequence into n independent consumers, each
// seeing the full sequence with its own position. A single producer
// goroutine guards the underlying pull; cfg.TeeBufferPolicy selects how a
// lagging consumer's queue is managed. The only policy implemented today,
// TeeBufferUnbounded, lets the queue grow without limit, trading memory for
// never stalling a sibling branch (required by pipe, which keeps both
// tee'd branches live concurrently).
func TeeWithConfig[V any](cfg *engineconfig.Config, seq Seq[V], n int) []Seq[V] {
	switch cfg.TeeBufferPolicy {
	case engineconfig.TeeBufferUnbounded:
	default:
		// Unrecognized policies fall back to the only implemented behavior
		// rather than failing a Tee call over a cosmetic config mismatch.
	}
	return teeUnbounded(seq, n)
}

func teeUnbounded[V any](seq Seq[V], n int) []Seq[V] {
	consumers := make([]*teeConsumer[V], n)
	for i := range consumers {
		consumers[i] = newTeeConsumer[V]()
	}

	var startOnce sync.Once
	seqs := make([]Seq[V], n)
	for idx := range consumers {
		c := consumers[idx]
		seqs[idx] = func(ctx context.Context) <-chan Item[V] {
			startOnce.Do(func() {
				go func() {
					ch := seq(ctx)
					for item := range ch {
						for _, sink := range consumers {
							sink.push(item)
						}
						if item.Err != nil {
							break
						}
					}
					for _, sink := range consumers {
						sink.close()
					}
				}()
			})

			stopWatch := make(chan struct{})
			go func() {
				select {
				case <-ctx.Done():
					c.cancel()
				case <-stopWatch:
				}
			}()

			out := make(chan Item[V])
			go func() {
				defer close(out)
				defer close(stopWatch)
				for {
					if ctx.Err() != nil {
						return
					}
					item, ok := c.pop()
					if !ok {
						return
					}
					if !send(ctx, out, item) {
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
	return seqs
}
