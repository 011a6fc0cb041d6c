// Package shardwriter implements the bucketed shuffled writer shared by the
// shuffle, group, and partition stages: a concurrent map keyed by bucket id
// (or category name) to an append-only compressed shard file, with
// size-triggered rotation and a final flush. It unifies what the original
// implementation duplicated near-identically across three modules.
package shardwriter

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/kestrel-data/datamap/internal/shardio"
)

// DefaultMaxFileSize is the default shard rotation threshold in bytes.
const DefaultMaxFileSize = 256_000_000

// writerInfo holds the mutable state for a single bucket: its current
// encoder, bytes written since the last rotation, and rotation index. At
// most one write may be in flight at a time (the caller holds mu while
// touching this struct).
type writerInfo struct {
	mu      sync.Mutex
	w       *shardio.Writer
	fileIdx int
}

// NameFunc builds the shard path for a given key and file index. Implementors
// follow the naming conventions in the data model: chunk_{bucket:08}.{idx:08}.{subext}.jsonl.zst
// for bucketed writers, chunk_{category}.{idx:08}.jsonl.zst for the category
// writer, bucket_{id:04}/shard_{idx:08}.jsonl.zst for percentile partitions.
type NameFunc func(root string, key string, fileIdx int) string

// Writer is the bucketed shuffled writer. Keys are strings so the same type
// serves numeric bucket ids (formatted by the caller's NameFunc) and named
// categories.
type Writer struct {
	root       string
	maxBytes   int64
	nameFn     NameFunc
	preallocMu sync.Mutex
	infos      sync.Map // string -> *writerInfo
}

// New constructs a bucketed writer rooted at root. If keys is non-nil, an
// encoder is opened eagerly for each key (the "preallocated" mode used by
// the group shuffle, where bucket ids are known up front); otherwise
// encoders are created lazily on first write to a given key (the "lazy"
// mode used by category/bucket writers).
func New(root string, maxBytes int64, nameFn NameFunc, keys []string) (*Writer, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileSize
	}
	w := &Writer{root: root, maxBytes: maxBytes, nameFn: nameFn}
	for _, k := range keys {
		wi, err := w.newWriterInfo(k, 0)
		if err != nil {
			return nil, fmt.Errorf("shardwriter: open bucket %q: %w", k, err)
		}
		w.infos.Store(k, wi)
	}
	return w, nil
}

func (w *Writer) newWriterInfo(key string, fileIdx int) (*writerInfo, error) {
	path := w.nameFn(w.root, key, fileIdx)
	enc, err := shardio.CreateWriter(path)
	if err != nil {
		return nil, err
	}
	return &writerInfo{w: enc, fileIdx: fileIdx}, nil
}

// infoFor returns the writerInfo for key, creating it lazily (with proper
// double-checked locking so concurrent first-writers don't race) if it does
// not yet exist.
func (w *Writer) infoFor(key string) (*writerInfo, error) {
	if v, ok := w.infos.Load(key); ok {
		return v.(*writerInfo), nil
	}
	w.preallocMu.Lock()
	defer w.preallocMu.Unlock()
	if v, ok := w.infos.Load(key); ok {
		return v.(*writerInfo), nil
	}
	wi, err := w.newWriterInfo(key, 0)
	if err != nil {
		return nil, err
	}
	w.infos.Store(key, wi)
	return wi, nil
}

// WriteLine appends a single record's raw bytes (including the trailing
// newline) to the shard for key, rotating to a new file index if the
// rotation threshold is crossed after this append. Rotation is eventual: the
// size check happens after the append, so a single large batch may exceed
// the target before rotating.
func (w *Writer) WriteLine(key string, line []byte) error {
	wi, err := w.infoFor(key)
	if err != nil {
		return err
	}
	wi.mu.Lock()
	defer wi.mu.Unlock()

	if _, err := wi.w.Write(line); err != nil {
		return fmt.Errorf("shardwriter: write bucket %q: %w", key, err)
	}
	if wi.w.BytesWritten() >= w.maxBytes {
		if err := wi.w.Close(); err != nil {
			return fmt.Errorf("shardwriter: rotate close bucket %q: %w", key, err)
		}
		wi.fileIdx++
		newEnc, err := shardio.CreateWriter(w.nameFn(w.root, key, wi.fileIdx))
		if err != nil {
			return fmt.Errorf("shardwriter: rotate open bucket %q: %w", key, err)
		}
		wi.w = newEnc
	}
	return nil
}

// Finish flushes and finalizes every open encoder. It must be called exactly
// once after all writers have quiesced.
func (w *Writer) Finish() error {
	var firstErr error
	w.infos.Range(func(_, v any) bool {
		wi := v.(*writerInfo)
		wi.mu.Lock()
		defer wi.mu.Unlock()
		if err := wi.w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("shardwriter: finish: %w", err)
		}
		return true
	})
	return firstErr
}

// BucketShuffleName is the NameFunc for the preallocated group/unkeyed
// shuffle writer: chunk_{bucket:08}.{file_idx:08}.{subext}.jsonl.zst. key
// must already be the zero-padded 8-digit bucket id (see BucketKey).
func BucketShuffleName(subext string) NameFunc {
	return func(root, key string, fileIdx int) string {
		return filepath.Join(root, fmt.Sprintf("chunk_%s.%08d.%s.jsonl.zst", key, fileIdx, subext))
	}
}

// CategoryName is the NameFunc for the category writer variant:
// chunk_{category}.{file_idx:08}.jsonl.zst, or no_category.{idx:08}.jsonl.zst
// when key is empty.
func CategoryName() NameFunc {
	return func(root, key string, fileIdx int) string {
		name := key
		if name == "" {
			name = "no_category"
		} else {
			name = "chunk_" + name
		}
		return filepath.Join(root, fmt.Sprintf("%s.%08d.jsonl.zst", name, fileIdx))
	}
}

// PercentileBucketName is the NameFunc for the percentile partition writer:
// {bucket_name}_{id:04}/shard_{file_idx:08}.jsonl.zst. key must already be
// the zero-padded 4-digit bucket id (see PercentileBucketKey).
func PercentileBucketName(bucketName string) NameFunc {
	return func(root, key string, fileIdx int) string {
		return filepath.Join(root, fmt.Sprintf("%s_%s", bucketName, key), fmt.Sprintf("shard_%08d.jsonl.zst", fileIdx))
	}
}

// FlatShardName is the NameFunc for a flat (non-bucketed) writer used by
// the groupsort sort/filter pass's per-chunk output:
// shard_{key}.{file_idx:08}.jsonl.zst, or shard_{file_idx:08}.jsonl.zst
// when key is empty (the single-stream case). The rotation index is always
// part of the name so successive rotations do not overwrite one another.
func FlatShardName() NameFunc {
	return func(root, key string, fileIdx int) string {
		if key == "" {
			return filepath.Join(root, fmt.Sprintf("shard_%08d.jsonl.zst", fileIdx))
		}
		return filepath.Join(root, fmt.Sprintf("shard_%s.%08d.jsonl.zst", key, fileIdx))
	}
}

// BucketKey zero-pads a bucket index to 8 digits for use as a Writer key.
func BucketKey(bucket int) string { return fmt.Sprintf("%08d", bucket) }

// PercentileBucketKey zero-pads a percentile bucket index to 4 digits for
// use as a Writer key.
func PercentileBucketKey(bucket int) string { return fmt.Sprintf("%04d", bucket) }
