// Package shardio wraps the on-disk shard format: UTF-8 JSONL streams
// compressed with zstd, one JSON value per line, a single "\n" terminator,
// empty lines skipped. Decode/encode of individual documents goes through
// json-iterator's encoding/json-compatible API for speed on the hot
// per-line path.
package shardio

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zstd"

	"github.com/kestrel-data/datamap/internal/document"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DecodeLine parses a single JSONL line into a document.Doc.
func DecodeLine(line []byte) (document.Doc, error) {
	var d document.Doc
	if err := json.Unmarshal(line, &d); err != nil {
		return nil, err
	}
	return d, nil
}

// EncodeLine renders a document.Doc as a single JSON line with a trailing
// newline.
func EncodeLine(d document.Doc) ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Reader decompresses a .jsonl.zst (or .jsonl.zstd) shard and exposes its
// lines. Next skips empty lines.
type Reader struct {
	f   *os.File
	zr  *zstd.Decoder
	sc  *bufio.Scanner
	raw bool // true when the source was plain .jsonl (no compression)
}

// OpenReader opens path for reading, transparently decompressing zstd-wrapped
// shards. Plain ".jsonl" files (no .zst/.zstd suffix) are read as-is, which
// is convenient for tests and small fixtures.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	ext := filepath.Ext(path)
	if ext != ".zst" && ext != ".zstd" {
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
		return &Reader{f: f, sc: sc, raw: true}, nil
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	return &Reader{f: f, zr: zr, sc: sc}, nil
}

// Next returns the next non-empty line, or (nil, io.EOF) when exhausted.
func (r *Reader) Next() ([]byte, error) {
	for r.sc.Scan() {
		line := r.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Close releases the underlying decoder and file handle.
func (r *Reader) Close() error {
	if r.zr != nil {
		r.zr.Close()
	}
	return r.f.Close()
}

// Writer is a single append-only compressed shard file. It is not safe for
// concurrent use; callers serialize access (e.g. per-bucket mutex in
// shardwriter).
type Writer struct {
	f    *os.File
	zw   *zstd.Encoder
	size int64
}

// CreateWriter opens (creating parent directories as needed) a new shard
// file at path for append, wrapped in a streaming zstd encoder.
func CreateWriter(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Writer{f: f, zw: zw}, nil
}

// Write appends raw bytes (expected to already include the trailing "\n")
// to the shard and tracks the logical byte count written.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.zw.Write(p)
	w.size += int64(n)
	return n, err
}

// BytesWritten returns the number of uncompressed bytes appended so far.
func (w *Writer) BytesWritten() int64 { return w.size }

// Close flushes and finalizes the zstd stream and closes the file.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
