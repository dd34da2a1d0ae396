package co

import (
	"sync"

	"github.com/inconshreveable/log15"
)

var log = log15.New("pkg", "co")

// Goes manages a group of goroutines, recovering and logging any panic
// instead of letting it take the process down, and lets the caller wait
// for every member to return (mirroring the teacher's use of recover()
// around long-running per-engine background work, e.g.
// bft.findCheckpointByQuality).
type Goes struct {
	wg sync.WaitGroup
}

// Go starts f in a new goroutine tracked by g.
func (g *Goes) Go(f func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error("goroutine panic recovered", "panic", r)
			}
		}()
		f()
	}()
}

// Wait blocks until every goroutine started via Go has returned.
func (g *Goes) Wait() {
	g.wg.Wait()
}
