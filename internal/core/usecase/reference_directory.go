package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/vinuni-assistant/internal/core/ports"
)

const (
	directoryLoadKey   = "reference-directory"
	directoryReloadKey = "reference-directory-reload"
)

type ReferenceDirectoryOptions struct {
	LoadTimeout time.Duration
	Observer    ports.ResolutionObserver
	Logger      *slog.Logger
}

// ReferenceDirectory maps document filenames to reference URLs. The table is
// fetched lazily on first lookup and kept for the process lifetime; a failed
// fetch leaves an empty directory until Reload is called.
type ReferenceDirectory struct {
	source   ports.ReferenceSource
	timeout  time.Duration
	observer ports.ResolutionObserver
	logger   *slog.Logger

	loads singleflight.Group

	mu      sync.RWMutex
	current *referenceSnapshot
}

type referenceSnapshot struct {
	entries map[string]string
	// memo caches lookups by the caller's raw filename.
	memo sync.Map
}

type referenceHit struct {
	url string
	ok  bool
}

type directoryLoad struct {
	snapshot *referenceSnapshot
	err      error
}

func NewReferenceDirectory(source ports.ReferenceSource, opts ReferenceDirectoryOptions) *ReferenceDirectory {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 20 * time.Second
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ReferenceDirectory{
		source:   source,
		timeout:  opts.LoadTimeout,
		observer: opts.Observer,
		logger:   opts.Logger,
	}
}

// Resolve returns the reference URL for filename, if any.
func (d *ReferenceDirectory) Resolve(ctx context.Context, filename string) (string, bool) {
	snapshot := d.snapshot(ctx)
	if snapshot == nil {
		return "", false
	}
	if cached, ok := snapshot.memo.Load(filename); ok {
		hit := cached.(referenceHit)
		return hit.url, hit.ok
	}

	url, ok := snapshot.entries[strings.TrimSpace(filename)]
	snapshot.memo.Store(filename, referenceHit{url: url, ok: ok})
	return url, ok
}

// Reload rebuilds the directory from the source and drops memoized lookups.
func (d *ReferenceDirectory) Reload(ctx context.Context) (int, error) {
	result, err := d.load(ctx, true)
	if err != nil {
		return 0, err
	}
	return len(result.snapshot.entries), result.err
}

// Len reports the number of entries, loading the directory if needed.
func (d *ReferenceDirectory) Len(ctx context.Context) int {
	snapshot := d.snapshot(ctx)
	if snapshot == nil {
		return 0
	}
	return len(snapshot.entries)
}

func (d *ReferenceDirectory) snapshot(ctx context.Context) *referenceSnapshot {
	if current := d.loaded(); current != nil {
		return current
	}

	result, err := d.load(ctx, false)
	if err != nil {
		return nil
	}
	return result.snapshot
}

// load runs at most one lazy fetch and at most one forced fetch at a time;
// concurrent callers of the same kind share its result. A forced fetch never
// joins a lazy one, so Reload always reads the source again. The returned
// error is only the caller's own context error.
func (d *ReferenceDirectory) load(ctx context.Context, force bool) (directoryLoad, error) {
	key := directoryLoadKey
	if force {
		key = directoryReloadKey
	}
	ch := d.loads.DoChan(key, func() (any, error) {
		if !force {
			if current := d.loaded(); current != nil {
				return directoryLoad{snapshot: current}, nil
			}
		}

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		snapshot, err := d.fetch(loadCtx)

		d.mu.Lock()
		defer d.mu.Unlock()
		// A lazy load that lost the race to a reload keeps the reloaded table.
		if !force && d.current != nil {
			return directoryLoad{snapshot: d.current}, nil
		}
		d.current = snapshot
		return directoryLoad{snapshot: snapshot, err: err}, nil
	})

	select {
	case <-ctx.Done():
		return directoryLoad{}, ctx.Err()
	case res := <-ch:
		return res.Val.(directoryLoad), nil
	}
}

func (d *ReferenceDirectory) loaded() *referenceSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

func (d *ReferenceDirectory) fetch(ctx context.Context) (*referenceSnapshot, error) {
	start := time.Now()
	rows, err := d.fetchRows(ctx)
	if err != nil {
		d.logger.Warn("reference_directory_load_failed",
			"error", err,
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
		)
		d.observer.ObserveDirectoryLoad(0, err)
		return &referenceSnapshot{entries: map[string]string{}}, err
	}

	entries := parseReferenceRows(rows)
	d.logger.Info("reference_directory_loaded",
		"rows", len(rows),
		"entries", len(entries),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	d.observer.ObserveDirectoryLoad(len(entries), nil)
	return &referenceSnapshot{entries: entries}, nil
}

func (d *ReferenceDirectory) fetchRows(ctx context.Context) (rows [][]string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			rows, err = nil, fmt.Errorf("reference source panic: %v", recovered)
		}
	}()
	return d.source.FetchRows(ctx)
}

// parseReferenceRows skips the header row, trims cells and drops incomplete
// rows. The first row for a filename wins.
func parseReferenceRows(rows [][]string) map[string]string {
	entries := make(map[string]string, len(rows))
	for idx, row := range rows {
		if idx == 0 || len(row) < 2 {
			continue
		}
		name := strings.TrimSpace(row[0])
		url := strings.TrimSpace(row[1])
		if name == "" || url == "" {
			continue
		}
		if _, exists := entries[name]; exists {
			continue
		}
		entries[name] = url
	}
	return entries
}
