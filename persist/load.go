package persist

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/hupe1980/docgo/document"
)

// load reads every collection file in the data directory into memory.
//
// Two on-disk shapes exist: the current layout persists one file per
// collection holding a JSON array, while the legacy layout kept all
// collections in a single JSON object mapping name to document array. A
// legacy file is migrated into the per-collection layout once; Open removes
// it in the same flush that makes the migrated files durable.
func (e *Engine) load() error {
	entries, err := e.fsys.ReadDir(e.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("persist: read data directory %q: %w", e.dir, err)
	}

	fromLegacy := make(map[string]string)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, compression, ok := collectionFromFileName(entry.Name())
		if !ok {
			continue
		}

		raw, err := e.fsys.ReadFile(filepath.Join(e.dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("persist: read collection file %q: %w", entry.Name(), err)
		}
		data, err := decompress(raw, compression)
		if err != nil {
			return fmt.Errorf("persist: decompress collection file %q: %w", entry.Name(), err)
		}

		switch jsonShape(data) {
		case '[':
			if legacy, ok := fromLegacy[name]; ok {
				return fmt.Errorf("persist: collection %q exists both in legacy file %q and as its own file %q", name, legacy, entry.Name())
			}
			var docs []document.Document
			if err := e.codec.Unmarshal(data, &docs); err != nil {
				return fmt.Errorf("persist: decode collection file %q: %w", entry.Name(), err)
			}
			e.collections[name] = docs
		case '{':
			var legacy map[string][]document.Document
			if err := e.codec.Unmarshal(data, &legacy); err != nil {
				return fmt.Errorf("persist: decode legacy file %q: %w", entry.Name(), err)
			}
			for coll, docs := range legacy {
				if _, exists := e.collections[coll]; exists {
					return fmt.Errorf("persist: legacy file %q contains collection %q which already has its own file", entry.Name(), coll)
				}
				e.collections[coll] = docs
				e.dirty[coll] = true
				fromLegacy[coll] = entry.Name()
			}
			e.legacyFiles = append(e.legacyFiles, entry.Name())
			e.logger.Info("migrated legacy data file", "file", entry.Name(), "collections", len(legacy))
		default:
			return fmt.Errorf("persist: collection file %q is neither a document array nor a legacy object", entry.Name())
		}
	}

	return nil
}

// jsonShape returns the first non-whitespace byte of data, or 0 when empty.
func jsonShape(data []byte) byte {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
