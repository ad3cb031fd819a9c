// Package worker runs the query engine on a dedicated goroutine.
//
// A Worker owns one engine.Engine. Requests travel to it as envelopes on a
// buffered channel and each carries its own buffered reply channel, so the
// worker never blocks on a caller that has gone away:
//
//	w := worker.New(eng, worker.Config{Source: cfg.Catalog.Source})
//	go w.Run(ctx)
//
//	client := w.Client()
//	res, err := client.Query(ctx, engine.QueryInput{Q: "plug", PageSize: 20})
//
// Loads build the complete snapshot before it is published, so a query
// queued behind a load sees the new catalogue and a query ahead of it sees
// the old one. Load and request observers run on the worker goroutine.
package worker
