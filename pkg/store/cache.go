package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"time"
)

var gzipMagic = []byte{0x1f, 0x8b}

func (s *SQLiteStore) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	if err := s.db.QueryRowContext(ctx, "SELECT value FROM cache WHERE key = ?", key).Scan(&val); err != nil {
		return nil, false
	}
	if bytes.HasPrefix(val, gzipMagic) {
		if plain, err := gunzip(val); err == nil {
			return plain, true
		}
	}
	return val, true
}

// SetCache stores val, gzipped when that saves at least a tenth. Encoded
// audio rarely shrinks, PCM usually does.
func (s *SQLiteStore) SetCache(ctx context.Context, key string, val []byte) error {
	if packed, err := gzipBytes(val); err == nil && len(packed) < len(val)*9/10 {
		val = packed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache (key, value, created_at) VALUES (?, ?, ?)`,
		key, val, formatTime(time.Now()))
	return err
}

func (s *SQLiteStore) CountCache(ctx context.Context, prefix string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM cache WHERE substr(key, 1, ?) = ?", len(prefix), prefix).Scan(&n)
	return n, err
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
