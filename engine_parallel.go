package moonlens

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/jward/moonlens/internal/observability"
	"github.com/jward/moonlens/internal/store"
)

// workItem holds everything an indexing worker needs.
type workItem struct {
	path  string
	src   []byte
	file  *store.File // ID is 0 for a file not yet in the index
	batch *store.BatchedStore
}

// IndexFilesParallel indexes files using a three-phase parallel pipeline:
//
//	Phase A (serial):   Read, hash check, look up existing file records.
//	Phase B (parallel): Parse, analyze and run rules via a worker pool.
//	Phase C (serial):   Commit each batch to SQLite in its own transaction.
//
// Each document gets its own traversal and buffer, so workers share no
// analysis state.
func (e *Engine) IndexFilesParallel(ctx context.Context, paths []string) error {
	var errs []error

	// ---- Phase A: Serial file preparation ----
	var items []workItem
	for _, path := range paths {
		item, skip, err := e.prepareFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if skip {
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return indexErrors(errs)
	}

	// ---- Phase B: Parallel analysis ----
	numWorkers := min(runtime.NumCPU(), len(items))
	if numWorkers < 1 {
		numWorkers = 1
	}

	workCh := make(chan workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type result struct {
		item workItem
		err  error
	}
	resultCh := make(chan result, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workCh {
				err := e.analyzeFile(ctx, &item)
				resultCh <- result{item: item, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: Serial commit ----
	for res := range resultCh {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("analyze %s: %w", res.item.path, res.err))
			continue
		}
		if err := e.commitFile(res.item); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", res.item.path, err))
		}
	}

	return indexErrors(errs)
}

// prepareFile does Phase A work for a single file. Returns (item, skip,
// error); skip=true means the file is not Lua, is unchanged, or was gone
// and has been dropped from the index.
func (e *Engine) prepareFile(path string) (workItem, bool, error) {
	if !isLua(path) {
		return workItem{}, true, nil
	}

	src, ok, err := readSource(path)
	if err != nil {
		return workItem{}, false, err
	}
	if !ok {
		e.logger.Debug("file removed", "path", path)
		return workItem{}, true, e.Remove(path)
	}
	hash := store.ContentHash(src)

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		return workItem{}, true, nil // unchanged
	}

	f := &store.File{Path: path, Hash: hash, LineCount: lineCount(src)}
	if existing != nil {
		f.ID = existing.ID
	}
	return workItem{
		path:  path,
		src:   src,
		file:  f,
		batch: store.NewBatchedStore(),
	}, false, nil
}

// analyzeFile runs Phase B for one item, filling its batch.
func (e *Engine) analyzeFile(ctx context.Context, item *workItem) error {
	rep, err := e.Analyze(ctx, item.path, item.src)
	if rep == nil {
		return err
	}
	if err != nil {
		e.logger.Warn("rule failed", "path", item.path, "err", err)
	}
	return record(item.batch, rep, item.file.LineCount)
}

func (e *Engine) commitFile(item workItem) error {
	item.file.LastIndexed = time.Now()
	if err := e.store.CommitBatch(item.file, item.batch); err != nil {
		return err
	}
	observability.DocumentsIndexed.Inc()
	for _, d := range item.batch.Diagnostics {
		observability.CountDiagnostic(severityName(d.Severity))
	}
	e.logger.Debug("indexed", "path", item.path, "rows", item.batch.Len())
	return nil
}
