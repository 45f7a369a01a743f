package repository

import (
	"context"
	"sync"
	"time"

	"github.com/eerriikk-pro/sius-parse/pkg/metrics"
)

// countPublisher periodically exports store row counts as gauges.
type countPublisher struct {
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func startCountPublisher(interval time.Duration, count func(context.Context) (Counts, error)) *countPublisher {
	p := &countPublisher{stop: make(chan struct{})}
	if interval <= 0 {
		return p
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				c, err := count(context.Background())
				if err != nil {
					metrics.RecordStoreError("count")
					continue
				}
				metrics.UpdateStoreCounts(c.Shots, c.Athletes)
			}
		}
	}()
	return p
}

func (p *countPublisher) close() {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// observe records the latency of op and counts a failure when err is set.
func observe(op string, start time.Time, err error) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordStoreError(op)
	}
}
