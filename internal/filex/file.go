// Package filex holds filesystem helpers that never load whole files into
// memory: chunk spooling, appends and streaming digests.
package filex

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// EnsureDir creates dir (and parents) if missing and returns its absolute path.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}
	return abs, nil
}

// Digest is the content hash and byte size of a stream.
type Digest struct {
	MD5  string
	Size int64
}

// MD5Reader hashes r to EOF.
func MD5Reader(r io.Reader) (Digest, error) {
	h := md5.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return Digest{}, err
	}
	return Digest{MD5: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}

// MD5File hashes the file at path by streaming it.
func MD5File(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return MD5Reader(f)
}

// Spool copies r into a new temp file in dir and returns its path together
// with the digest of what was written.
func Spool(dir string, r io.Reader) (string, Digest, error) {
	f, err := os.CreateTemp(dir, "blob-*")
	if err != nil {
		return "", Digest{}, fmt.Errorf("create temp: %w", err)
	}

	h := md5.New()
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", Digest{}, fmt.Errorf("spool: %w", err)
	}

	return f.Name(), Digest{MD5: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}

// Append copies the contents of src to the end of dst, creating dst when
// needed, and returns the resulting size of dst.
func Append(dst, src string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o660)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return 0, fmt.Errorf("append: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, err
	}

	return Size(dst)
}

// Size returns the size of path; a missing file has size 0.
func Size(path string) (int64, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// RemoveIfExists deletes path, ignoring a missing file.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Place puts the contents of src at dst without altering src: a hard link
// when the filesystem allows it, a streaming copy otherwise. An existing dst
// is left untouched.
func Place(dst, src string) error {
	if Exists(dst) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o770); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.Link(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".place-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// Truncate shrinks path back to size. Used to undo an append whose
// bookkeeping could not be persisted.
func Truncate(path string, size int64) error {
	return os.Truncate(path, size)
}
