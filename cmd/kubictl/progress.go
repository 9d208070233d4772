package main

import (
	"fmt"
	"sync"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter shows a single-line countdown while a scan window is open.
//
// A ProgressPrinter is single-use: Start at most once, Stop exactly once.
// Stop is safe to call from multiple goroutines.
type ProgressPrinter struct {
	prefix   string
	duration time.Duration

	startTime time.Time
	ticker    *time.Ticker
	stopOnce  sync.Once
	stopChan  chan struct{}
	done      chan struct{}
}

// NewProgressPrinter creates a countdown printer for the given window.
func NewProgressPrinter(prefix string, duration time.Duration) *ProgressPrinter {
	return &ProgressPrinter{
		prefix:   prefix,
		duration: duration,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressPrinter) Start() {
	p.startTime = time.Now()
	p.ticker = time.NewTicker(progressUpdateInterval)

	fmt.Printf("\r%s...   ", p.prefix)

	go func() {
		defer close(p.done)
		for {
			select {
			case <-p.stopChan:
				return
			case <-p.ticker.C:
				remaining := p.duration - time.Since(p.startTime)
				if remaining < 0 {
					remaining = 0
				}
				// Round to the nearest second for a steady countdown.
				fmt.Printf("\r%s (%ds)   ", p.prefix, int(remaining.Seconds()+0.5))
			}
		}
	}()
}

// Stop stops the display, waits for the goroutine, and clears the line.
func (p *ProgressPrinter) Stop() {
	p.stopOnce.Do(func() {
		p.ticker.Stop()
		close(p.stopChan)
		<-p.done
		fmt.Print(clearLineSequence)
	})
}
