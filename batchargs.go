// Copyright (C) The Cellvote Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellvote

import (
	"context"
	"flag"
	"runtime"
	"sync"
)

// batchArgs splits a table's rows into batches that are processed
// concurrently.
type batchArgs struct {
	batches int
}

func (b *batchArgs) Flags(flags *flag.FlagSet) {
	flags.IntVar(&b.batches, "batches", runtime.NumCPU(), "number of concurrent `batches`")
}

// Bounds returns the half-open row range [lo,hi) assigned to the given
// batch when n rows are split evenly across all batches.
func (b *batchArgs) Bounds(batch, n int) (int, int) {
	batchsize := (n + b.batches - 1) / b.batches
	lo := batchsize * batch
	if lo > n {
		lo = n
	}
	hi := lo + batchsize
	if hi > n {
		hi = n
	}
	return lo, hi
}

// RunBatches calls runFunc once per batch, concurrently, and returns
// the first returned error, if any. The context passed to runFunc is
// cancelled as soon as any batch fails.
func (b *batchArgs) RunBatches(ctx context.Context, runFunc func(context.Context, int) error) error {
	if b.batches < 1 {
		b.batches = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg WaitGroup
	for batch := 0; batch < b.batches; batch++ {
		batch := batch
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := runFunc(ctx, batch)
			if err != nil {
				wg.Error(err)
				cancel()
			}
		}()
	}
	return wg.Wait()
}

// WaitGroup is a sync.WaitGroup that also collects the first error
// reported by its goroutines.
type WaitGroup struct {
	sync.WaitGroup
	err     error
	errOnce sync.Once
}

func (wg *WaitGroup) Error(err error) {
	if err != nil {
		wg.errOnce.Do(func() { wg.err = err })
	}
}

func (wg *WaitGroup) Wait() error {
	wg.WaitGroup.Wait()
	return wg.err
}
