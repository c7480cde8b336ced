package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/habitat-api/internal/dataset"
)

// Watcher ingests files dropped into per-profile subdirectories of a root
// directory, e.g. <root>/heat/temps.csv and <root>/air/owid.csv.
type Watcher struct {
	ing    *Ingester
	reg    *dataset.Registry
	root   string
	settle time.Duration

	// OnOutcome, if set, is called after each ingestion attempt.
	OnOutcome func(path string, out Outcome, err error)
}

// NewWatcher creates a Watcher. settle is how long a file must stay
// unmodified before it is ingested.
func NewWatcher(ing *Ingester, reg *dataset.Registry, root string, settle time.Duration) *Watcher {
	if settle <= 0 {
		settle = 2 * time.Second
	}
	return &Watcher{ing: ing, reg: reg, root: root, settle: settle}
}

// Run watches until ctx is cancelled. Files already present at start are
// ingested too; the ledger skips any seen before.
func (w *Watcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "watch: create watcher")
	}
	defer fw.Close() //nolint:errcheck

	log := zap.L().With(zap.String("component", "watch"), zap.String("root", w.root))

	for _, name := range w.reg.Names() {
		dir := filepath.Join(w.root, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "watch: create %s", dir)
		}
		if err := fw.Add(dir); err != nil {
			return eris.Wrapf(err, "watch: add %s", dir)
		}
	}

	work := make(chan string, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case path := <-work:
				w.ingest(ctx, path, log)
			}
		}
	}()

	var mu sync.Mutex
	pending := make(map[string]*time.Timer)
	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[path]; ok {
			t.Reset(w.settle)
			return
		}
		pending[path] = time.AfterFunc(w.settle, func() {
			mu.Lock()
			delete(pending, path)
			mu.Unlock()
			select {
			case work <- path:
			case <-ctx.Done():
			}
		})
	}

	for _, name := range w.reg.Names() {
		entries, err := os.ReadDir(filepath.Join(w.root, name))
		if err != nil {
			return eris.Wrap(err, "watch: list existing files")
		}
		for _, e := range entries {
			if e.Type().IsRegular() && !ignored(e.Name()) {
				schedule(filepath.Join(w.root, name, e.Name()))
			}
		}
	}

	log.Info("watch: started", zap.Strings("profiles", w.reg.Names()))

	defer func() {
		mu.Lock()
		for _, t := range pending {
			t.Stop()
		}
		mu.Unlock()
		cancel()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("watch: stopping")
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if ignored(filepath.Base(ev.Name)) {
				continue
			}
			if info, err := os.Stat(ev.Name); err != nil || !info.Mode().IsRegular() {
				continue
			}
			schedule(ev.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch: fsnotify error", zap.Error(err))
		}
	}
}

func (w *Watcher) ingest(ctx context.Context, path string, log *zap.Logger) {
	if ctx.Err() != nil {
		return
	}
	profileName := filepath.Base(filepath.Dir(path))
	p, err := w.reg.Get(profileName)
	if err != nil {
		log.Warn("watch: no profile for directory", zap.String("path", path), zap.Error(err))
		return
	}

	out, err := w.ing.Ingest(ctx, path, p)
	if err != nil {
		log.Error("watch: ingest failed", zap.String("path", path), zap.Error(err))
	}
	if w.OnOutcome != nil {
		w.OnOutcome(path, out, err)
	}
}

// ignored skips hidden and partially written files.
func ignored(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, ".tmp") ||
		strings.HasSuffix(name, ".part")
}
