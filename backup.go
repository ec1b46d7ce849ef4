package docgo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/docgo/blobstore"
	"github.com/hupe1980/docgo/codec"
	"github.com/hupe1980/docgo/document"
)

// ManifestName is the blob holding the backup manifest. It is uploaded
// last, so a backup with a readable manifest is always complete.
const ManifestName = "manifest.json"

// Manifest describes one backup.
type Manifest struct {
	Version   int      `json:"version"`
	CreatedAt string   `json:"createdAt"`
	Files     []string `json:"files"`
}

const manifestVersion = 1

type backupOptions struct {
	parallelism int
	bytesPerSec int
}

// BackupOption configures Backup behavior.
type BackupOption func(*backupOptions)

// WithBackupParallelism limits the number of concurrent uploads.
// Defaults to 4.
func WithBackupParallelism(n int) BackupOption {
	return func(o *backupOptions) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithBackupRateLimit throttles the aggregate upload rate in bytes per
// second. Zero means unlimited.
func WithBackupRateLimit(bytesPerSec int) BackupOption {
	return func(o *backupOptions) {
		o.bytesPerSec = bytesPerSec
	}
}

// Backup uploads a consistent snapshot of every collection to the target
// blob store, followed by a manifest naming the uploaded files. Collection
// files are uploaded in parallel; the manifest goes last, so an interrupted
// backup never presents itself as complete.
func (db *DB) Backup(ctx context.Context, target blobstore.BlobStore, optFns ...BackupOption) error {
	o := backupOptions{parallelism: 4}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	files, err := db.store.ExportFiles()
	if err != nil {
		return err
	}

	var limiter *rate.Limiter
	if o.bytesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(o.bytesPerSec), o.bytesPerSec)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		data := files[name]
		g.Go(func() error {
			if err := waitQuota(ctx, limiter, len(data)); err != nil {
				return err
			}
			err := target.Put(ctx, name, data)
			db.logger.LogBackup(name, len(data), err)
			if err != nil {
				return fmt.Errorf("upload %q: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	manifest, err := codec.Default.Marshal(Manifest{
		Version:   manifestVersion,
		CreatedAt: document.Now(),
		Files:     names,
	})
	if err != nil {
		return err
	}
	if err := target.Put(ctx, ManifestName, manifest); err != nil {
		return fmt.Errorf("upload %q: %w", ManifestName, err)
	}
	return nil
}

// Restore downloads a backup into the given data directory. The directory
// must be empty or absent; restoring over live data is refused. Open the
// restored directory afterwards.
func Restore(ctx context.Context, dir string, source blobstore.BlobStore) error {
	if err := ensureEmptyDir(dir); err != nil {
		return err
	}

	rc, err := source.Open(ctx, ManifestName)
	if err != nil {
		return fmt.Errorf("read backup manifest: %w", err)
	}
	raw, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return fmt.Errorf("read backup manifest: %w", err)
	}

	var manifest Manifest
	if err := codec.Default.Unmarshal(raw, &manifest); err != nil {
		return fmt.Errorf("decode backup manifest: %w", err)
	}
	if manifest.Version != manifestVersion {
		return fmt.Errorf("unsupported backup manifest version %d", manifest.Version)
	}

	for _, name := range manifest.Files {
		if name != filepath.Base(name) {
			return fmt.Errorf("manifest names file %q outside the data directory", name)
		}
		rc, err := source.Open(ctx, name)
		if err != nil {
			return fmt.Errorf("download %q: %w", name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return fmt.Errorf("download %q: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func ensureEmptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("restore target %q is not empty", dir)
	}
	return nil
}

// waitQuota blocks until the limiter grants n bytes, in burst-sized steps
// so single large files still pass.
func waitQuota(ctx context.Context, limiter *rate.Limiter, n int) error {
	if limiter == nil {
		return nil
	}
	for n > 0 {
		chunk := n
		if burst := limiter.Burst(); chunk > burst {
			chunk = burst
		}
		if err := limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
