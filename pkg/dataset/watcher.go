package dataset

import (
	"maps"
	"path/filepath"
	"slices"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/fsnotify.v1"

	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/logging"
	"github.com/coolbeans/quarry/pkg/rdf"
	"github.com/coolbeans/quarry/pkg/store"
)

// Change summarizes one reload.
type Change struct {
	Path      string
	Asserted  int
	Retracted int
	Err       error
}

// tracked is one watched document.
type tracked struct {
	src   Source
	scope string
	quads []rdf.Quad
}

// Watcher keeps a store in sync with a set of documents. When a file
// changes, quads no longer present are retracted and new ones asserted, so
// store listeners see only the difference. A quad loaded by several files
// stays until the last of them drops it.
type Watcher struct {
	w   store.Writer
	log *zap.SugaredLogger

	mu    sync.Mutex
	files map[string]*tracked
	refs  map[rdf.Quad]int

	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	done     chan struct{}
	onChange func(Change)
}

// NewWatcher creates a watcher writing into w. A nil logger discards output.
func NewWatcher(w store.Writer, log *zap.SugaredLogger) *Watcher {
	if log == nil {
		log = logging.Nop()
	}
	return &Watcher{
		w:     w,
		log:   log,
		files: make(map[string]*tracked),
		refs:  make(map[rdf.Quad]int),
	}
}

// OnChange registers fn to be called after every reload triggered by the
// file system. It must be set before Start.
func (wt *Watcher) OnChange(fn func(Change)) {
	wt.onChange = fn
}

// Track loads src and remembers it for reloads.
func (wt *Watcher) Track(src Source) (int, error) {
	path, err := filepath.Abs(src.Path)
	if err != nil {
		return 0, errors.Wrapf(err, "resolve %s", src.Path)
	}
	src.Path = path

	wt.mu.Lock()
	defer wt.mu.Unlock()

	if _, ok := wt.files[path]; ok {
		return 0, errors.InvalidConfigurationf("%s is already tracked", path)
	}
	t := &tracked{src: src, scope: NewScope()}
	wt.files[path] = t

	asserted, _, err := wt.reloadLocked(t)
	return asserted, err
}

// Reload re-reads a tracked file and applies the difference to the store.
func (wt *Watcher) Reload(path string) (asserted, retracted int, err error) {
	if path, err = filepath.Abs(path); err != nil {
		return 0, 0, err
	}

	wt.mu.Lock()
	defer wt.mu.Unlock()

	t, ok := wt.files[path]
	if !ok {
		return 0, 0, errors.Newf("%s is not tracked", path)
	}
	return wt.reloadLocked(t)
}

// Drop retracts every quad a tracked file contributed, keeping the file
// tracked so that it is picked up again if it reappears.
func (wt *Watcher) Drop(path string) (int, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}

	wt.mu.Lock()
	defer wt.mu.Unlock()

	t, ok := wt.files[path]
	if !ok {
		return 0, errors.Newf("%s is not tracked", path)
	}
	retracted, err := wt.applyLocked(t, nil)
	return retracted, err
}

func (wt *Watcher) reloadLocked(t *tracked) (asserted, retracted int, err error) {
	quads, err := ParseFile(t.src, t.scope)
	if err != nil {
		return 0, 0, err
	}

	before := make(map[rdf.Quad]struct{}, len(t.quads))
	for _, q := range t.quads {
		before[q] = struct{}{}
	}
	for _, q := range quads {
		if _, ok := before[q]; !ok {
			asserted++
		}
	}
	retracted, err = wt.applyLocked(t, quads)
	return asserted, retracted, err
}

// applyLocked replaces t's quads with next, asserting and retracting only
// quads whose reference count crosses zero. Reference counts and t's quads
// change only once the store accepted the change, so a failed call leaves
// them matching what the store holds.
func (wt *Watcher) applyLocked(t *tracked, next []rdf.Quad) (retracted int, err error) {
	keep := make(map[rdf.Quad]struct{}, len(next))
	for _, q := range next {
		keep[q] = struct{}{}
	}
	owned := make(map[rdf.Quad]struct{}, len(t.quads))
	for _, q := range t.quads {
		owned[q] = struct{}{}
	}
	old := maps.Clone(owned)
	defer func() {
		t.quads = slices.Collect(maps.Keys(owned))
	}()

	for q := range keep {
		if _, ok := old[q]; ok {
			continue
		}
		if wt.refs[q] == 0 {
			if err := wt.w.Assert(q); err != nil {
				return retracted, errors.Wrapf(err, "assert from %s", t.src.Path)
			}
		}
		wt.refs[q]++
		owned[q] = struct{}{}
	}
	for q := range old {
		if _, ok := keep[q]; ok {
			continue
		}
		if wt.refs[q] <= 1 {
			if err := wt.w.Retract(q); err != nil {
				return retracted, errors.Wrapf(err, "retract from %s", t.src.Path)
			}
			delete(wt.refs, q)
		} else {
			wt.refs[q]--
		}
		delete(owned, q)
		retracted++
	}
	return retracted, nil
}

// Start watches the directories of all tracked files.
func (wt *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating watcher")
	}

	wt.mu.Lock()
	dirs := make(map[string]struct{})
	for path := range wt.files {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	wt.mu.Unlock()

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return errors.Wrapf(err, "watching directory %s", dir)
		}
	}

	wt.watcher = watcher
	wt.stopChan = make(chan struct{})
	wt.done = make(chan struct{})
	go wt.watchLoop()
	return nil
}

// watchLoop handles file system events.
func (wt *Watcher) watchLoop() {
	defer close(wt.done)
	for {
		select {
		case <-wt.stopChan:
			return

		case event, ok := <-wt.watcher.Events:
			if !ok {
				return
			}

			wt.mu.Lock()
			_, isTracked := wt.files[event.Name]
			wt.mu.Unlock()
			if !isTracked {
				continue
			}

			switch {
			case event.Op&fsnotify.Create == fsnotify.Create,
				event.Op&fsnotify.Write == fsnotify.Write:
				wt.handleFileChange(event.Name)

			case event.Op&fsnotify.Remove == fsnotify.Remove,
				event.Op&fsnotify.Rename == fsnotify.Rename:
				wt.handleFileRemove(event.Name)
			}

		case err, ok := <-wt.watcher.Errors:
			if !ok {
				return
			}
			wt.log.Warnw("watch error", logging.FieldError, err)
		}
	}
}

func (wt *Watcher) handleFileChange(path string) {
	asserted, retracted, err := wt.Reload(path)
	if err != nil {
		wt.log.Warnw("reload failed", logging.FieldFile, path, logging.FieldError, err)
	} else {
		wt.log.Infow("reloaded", logging.FieldFile, path, "asserted", asserted, "retracted", retracted)
	}
	wt.notify(Change{Path: path, Asserted: asserted, Retracted: retracted, Err: err})
}

func (wt *Watcher) handleFileRemove(path string) {
	retracted, err := wt.Drop(path)
	if err != nil {
		wt.log.Warnw("drop failed", logging.FieldFile, path, logging.FieldError, err)
	} else {
		wt.log.Infow("removed", logging.FieldFile, path, "retracted", retracted)
	}
	wt.notify(Change{Path: path, Retracted: retracted, Err: err})
}

func (wt *Watcher) notify(c Change) {
	if wt.onChange != nil {
		wt.onChange(c)
	}
}

// Stop stops watching and waits for the event loop to exit.
func (wt *Watcher) Stop() {
	if wt.stopChan != nil {
		close(wt.stopChan)
		<-wt.done
		wt.stopChan = nil
	}
	if wt.watcher != nil {
		wt.watcher.Close()
		wt.watcher = nil
	}
}
