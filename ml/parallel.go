// parallel.go - Verteilung unabhaengiger Kernel-Arbeit auf Worker
package ml

import (
	"golang.org/x/sync/errgroup"

	"github.com/7blacky7/stylegan/envconfig"
)

// parallelFor ruft fn(i) fuer i in [0, n) auf, begrenzt auf STYLEGAN_NUM_THREADS Worker.
// fn darf nur disjunkte Bereiche des Ausgabepuffers beschreiben.
func parallelFor(n int, fn func(i int)) {
	if n == 1 {
		fn(0)
		return
	}

	var g errgroup.Group
	g.SetLimit(envconfig.NumThreads())
	for i := range n {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	g.Wait() //nolint:errcheck
}
