// Package persist owns the canonical in-memory collections of one store
// instance and is the sole writer of the backing files.
//
// Every collection is persisted as its own file containing the JSON array of
// its documents. Writes replace the file atomically (write to a temp file in
// the same directory, fsync, rename), so a crash mid-write leaves either the
// previous or the new version, never a torn mix.
//
// All durable writes of one engine are funneled through a single writer
// goroutine. Flush captures and encodes the dirty collections synchronously
// and enqueues the encoded batch, so the order of durable writes always
// matches the call order of the operations that produced them.
package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/docgo/codec"
	"github.com/hupe1980/docgo/document"
	ifs "github.com/hupe1980/docgo/internal/fs"
)

// ErrClosed is returned by operations on a closed engine.
var ErrClosed = errors.New("persist: engine is closed")

const fileSuffix = ".json"

// Options configures an Engine.
type Options struct {
	// Codec encodes collection files. Defaults to codec.Default.
	Codec codec.Codec
	// Compression selects transparent file compression.
	Compression Compression
	// Logger receives structured engine events. Defaults to a discard logger.
	Logger *slog.Logger
}

type fileOp struct {
	name   string // file name relative to the data directory
	data   []byte // nil means remove
	remove bool
}

type writeRequest struct {
	ops  []fileOp
	done chan error
}

// Engine is the persistence engine of one store instance.
type Engine struct {
	dir         string
	codec       codec.Codec
	compression Compression
	logger      *slog.Logger
	fsys        ifs.FileSystem

	mu          sync.Mutex
	collections map[string][]document.Document
	dirty       map[string]bool
	legacyFiles []string
	queue       []writeRequest
	closed      bool

	wake   chan struct{}
	stop   chan struct{}
	exited chan struct{}

	tmpSeq uint64
}

// Open loads the data directory into memory and starts the writer.
//
// Any per-collection file in the directory is read; a legacy single-file
// layout is migrated into per-collection files as a one-time step. Read
// errors other than "file does not exist" are fatal.
func Open(dir string, opts Options) (*Engine, error) {
	return open(dir, opts, ifs.Default)
}

// open exists so tests can inject a fault-injecting file system.
func open(dir string, opts Options, fsys ifs.FileSystem) (*Engine, error) {
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("persist: create data directory %q: %w", dir, err)
	}

	e := &Engine{
		dir:         dir,
		codec:       opts.Codec,
		compression: opts.Compression,
		logger:      opts.Logger,
		fsys:        fsys,
		collections: make(map[string][]document.Document),
		dirty:       make(map[string]bool),
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
		exited:      make(chan struct{}),
	}

	if err := e.load(); err != nil {
		return nil, err
	}

	go e.writer()

	// Persist anything the load marked dirty (legacy migration). The
	// legacy files themselves are removed in the same batch, after the
	// migrated per-collection files are durable.
	if err := e.FlushIfDirty(); err != nil {
		close(e.stop)
		<-e.exited
		return nil, err
	}
	return e, nil
}

// Docs returns the document list of a collection and whether it exists.
//
// The returned slice is the engine's own array; the document store adapter
// is its only caller and owns the mutation discipline.
func (e *Engine) Docs(name string) ([]document.Document, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	docs, ok := e.collections[name]
	return docs, ok
}

// SetDocs replaces a collection's document list and marks it dirty.
func (e *Engine) SetDocs(name string, docs []document.Document) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.collections[name] = docs
	e.dirty[name] = true
}

// MarkDirty flags a collection as needing a write.
func (e *Engine) MarkDirty(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty[name] = true
}

// HasCollection reports whether the collection exists.
func (e *Engine) HasCollection(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.collections[name]
	return ok
}

// ListCollections returns all collection names in sorted order.
func (e *Engine) ListCollections() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.collections))
	for name := range e.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateCollection registers an empty collection and persists it immediately
// so the next load sees a real (even if empty) file. Creating an existing
// collection is a no-op.
func (e *Engine) CreateCollection(name string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if _, ok := e.collections[name]; ok {
		e.mu.Unlock()
		return nil
	}
	e.collections[name] = []document.Document{}
	e.dirty[name] = true
	e.mu.Unlock()

	return e.Flush()
}

// DropCollection discards a collection and removes its backing file.
// Dropping an unknown collection is a no-op.
func (e *Engine) DropCollection(name string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if _, ok := e.collections[name]; !ok {
		e.mu.Unlock()
		return nil
	}
	delete(e.collections, name)
	delete(e.dirty, name)
	req := e.enqueueLocked(removalOps(name))
	e.mu.Unlock()

	return <-req.done
}

// ExportFiles encodes every collection as it would appear on disk and
// returns the encoded files by name. The snapshot is consistent: it is
// taken in one critical section.
func (e *Engine) ExportFiles() (map[string][]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	files := make(map[string][]byte, len(e.collections))
	for name, docs := range e.collections {
		data, err := e.encode(docs)
		if err != nil {
			return nil, fmt.Errorf("persist: encode collection %q: %w", name, err)
		}
		files[e.fileName(name)] = data
	}
	return files, nil
}

// Flush serializes every currently dirty collection and waits until the
// resulting writes (and all writes queued ahead of them) are durable.
func (e *Engine) Flush() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if len(e.dirty) == 0 && len(e.legacyFiles) == 0 {
		e.mu.Unlock()
		return nil
	}

	flushed := make([]string, 0, len(e.dirty))
	ops := make([]fileOp, 0, len(e.dirty))
	for name := range e.dirty {
		data, err := e.encode(e.collections[name])
		if err != nil {
			e.mu.Unlock()
			return fmt.Errorf("persist: encode collection %q: %w", name, err)
		}
		ops = append(ops, fileOp{name: e.fileName(name), data: data})
		// Stale variants with a different compression suffix must not
		// shadow the fresh file on the next load.
		for _, stale := range e.staleVariants(name) {
			ops = append(ops, fileOp{name: stale, remove: true})
		}
		flushed = append(flushed, name)
		delete(e.dirty, name)
	}
	// Migrated legacy files are removed last in the batch, after every
	// per-collection write has landed. A failed write aborts the batch
	// before the only prior copy of the data disappears.
	legacy := e.legacyFiles
	for _, file := range legacy {
		ops = append(ops, fileOp{name: file, remove: true})
	}
	e.legacyFiles = nil
	req := e.enqueueLocked(ops)
	e.mu.Unlock()

	if err := <-req.done; err != nil {
		// In-memory state is still newer than disk; keep it flushable.
		e.mu.Lock()
		for _, name := range flushed {
			e.dirty[name] = true
		}
		e.legacyFiles = append(e.legacyFiles, legacy...)
		e.mu.Unlock()
		return err
	}
	return nil
}

// FlushIfDirty is Flush that short-circuits when nothing changed. Used on
// shutdown.
func (e *Engine) FlushIfDirty() error {
	e.mu.Lock()
	dirty := len(e.dirty) > 0 || len(e.legacyFiles) > 0
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !dirty {
		return nil
	}
	return e.Flush()
}

// Close flushes pending changes and stops the writer. The engine must not
// be used afterwards.
func (e *Engine) Close() error {
	flushErr := e.FlushIfDirty()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return flushErr
	}
	e.closed = true
	e.mu.Unlock()

	close(e.stop)
	<-e.exited
	return flushErr
}

// enqueueLocked appends a write request to the queue. Callers hold e.mu, so
// queue order matches the order in which snapshots were taken.
func (e *Engine) enqueueLocked(ops []fileOp) writeRequest {
	req := writeRequest{ops: ops, done: make(chan error, 1)}
	e.queue = append(e.queue, req)
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return req
}

// writer is the single goroutine that owns the backing files.
func (e *Engine) writer() {
	defer close(e.exited)
	for {
		select {
		case <-e.wake:
			e.drainQueue()
		case <-e.stop:
			e.drainQueue()
			return
		}
	}
}

func (e *Engine) drainQueue() {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		req := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		req.done <- e.apply(req.ops)
	}
}

// apply performs one queued batch: atomic replaces and removals.
func (e *Engine) apply(ops []fileOp) error {
	for _, op := range ops {
		path := filepath.Join(e.dir, op.name)
		if op.remove {
			if err := e.fsys.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("persist: remove %q: %w", op.name, err)
			}
			continue
		}
		if err := e.writeAtomic(path, op.data); err != nil {
			return err
		}
		e.logger.Debug("collection flushed", "file", op.name, "bytes", len(op.data))
	}
	// Best-effort: make the renames durable.
	_ = ifs.SyncDir(e.fsys, e.dir)
	return nil
}

// writeAtomic writes data to a temp file in the same directory, fsyncs it
// and renames it over the target.
func (e *Engine) writeAtomic(path string, data []byte) error {
	e.tmpSeq++
	tmp := fmt.Sprintf("%s.tmp-%d", path, e.tmpSeq)

	f, err := e.fsys.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("persist: create temp file for %q: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = e.fsys.Remove(tmp)
		return fmt.Errorf("persist: write %q: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = e.fsys.Remove(tmp)
		return fmt.Errorf("persist: sync %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = e.fsys.Remove(tmp)
		return fmt.Errorf("persist: close %q: %w", path, err)
	}
	if err := e.fsys.Rename(tmp, path); err != nil {
		_ = e.fsys.Remove(tmp)
		return fmt.Errorf("persist: replace %q: %w", path, err)
	}
	return nil
}

func (e *Engine) encode(docs []document.Document) ([]byte, error) {
	if docs == nil {
		docs = []document.Document{}
	}
	data, err := e.codec.Marshal(docs)
	if err != nil {
		return nil, err
	}
	return compress(data, e.compression)
}

// fileName returns the backing file name for a collection under the
// configured compression.
func (e *Engine) fileName(name string) string {
	return name + fileSuffix + e.compression.suffix()
}

// staleVariants lists the collection's file names under every other
// compression setting.
func (e *Engine) staleVariants(name string) []string {
	var out []string
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		if c != e.compression {
			out = append(out, name+fileSuffix+c.suffix())
		}
	}
	return out
}

// removalOps produces remove operations for every file variant a
// collection may have been written as.
func removalOps(name string) []fileOp {
	ops := make([]fileOp, 0, 3)
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		ops = append(ops, fileOp{name: name + fileSuffix + c.suffix(), remove: true})
	}
	return ops
}

// collectionFromFileName reverses fileName, returning the collection name
// and the compression the file was written with.
func collectionFromFileName(file string) (string, Compression, bool) {
	name := file
	compression := CompressionNone
	switch {
	case strings.HasSuffix(name, ".lz4"):
		compression = CompressionLZ4
		name = strings.TrimSuffix(name, ".lz4")
	case strings.HasSuffix(name, ".zst"):
		compression = CompressionZSTD
		name = strings.TrimSuffix(name, ".zst")
	}
	if !strings.HasSuffix(name, fileSuffix) {
		return "", 0, false
	}
	return strings.TrimSuffix(name, fileSuffix), compression, true
}
