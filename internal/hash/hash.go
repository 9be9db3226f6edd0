// Package hash provides the pure fingerprint functions the catalog relies on:
// a cheap partial hash, a streamed full hash of the same digest family, and a
// perceptual image hash for photo deduplication. None of these functions carry
// state or side effects beyond reading the file at the given path.
package hash

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/corona10/goimagehash"
	"github.com/zeebo/blake3"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

const (
	// PartialHashBytes is the number of leading bytes used for the partial hash
	// of any file whose size is at least this many bytes.
	PartialHashBytes = 1024

	// DefaultBufferSize is the buffer size used when streaming a file for the
	// full hash.
	DefaultBufferSize = 1024 * 1024

	// DefaultMaxReaders bounds the number of FullHash calls that may read
	// files at the same time, to avoid IO thrashing. PartialHash and
	// ImageHash are not bounded by it.
	DefaultMaxReaders = 8
)

// imageExtensions is the case-insensitive set of suffixes treated as images
// for perceptual hashing, per spec.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".tiff": true,
	".bmp":  true,
}

// UnsupportedImageFormatError is returned by ImageHash when the path's
// extension is not one of the supported image formats.
type UnsupportedImageFormatError struct {
	Path string
}

func (e *UnsupportedImageFormatError) Error() string {
	return fmt.Sprintf("unsupported image format: %q", e.Path)
}

var bufferPool = &sync.Pool{
	New: func() any {
		buf := make([]byte, DefaultBufferSize)
		return &buf
	},
}

var readSem = make(chan struct{}, DefaultMaxReaders)

// IsImagePath reports whether path's extension (case-insensitive) is one of
// the supported perceptual-hash image formats.
func IsImagePath(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// PartialHash returns a stable digest of the first PartialHashBytes bytes of
// the file at path, or of the whole file if it is smaller. size is the
// caller-supplied file size (avoids a redundant stat).
func PartialHash(path string, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %q: %w", path, err)
	}
	defer f.Close()

	n := int64(PartialHashBytes)
	if size < n {
		n = size
	}
	chunk := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(f, chunk); err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return "", fmt.Errorf("failed to read file %q: %w", path, err)
		}
	}

	h := blake3.New()
	h.Write(chunk)
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// FullHash streams the entire file at path through the same digest family as
// PartialHash, in fixed-size blocks, so that for files smaller than
// PartialHashBytes the two agree exactly.
func FullHash(path string) (string, error) {
	readSem <- struct{}{}
	defer func() { <-readSem }()

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %q: %w", path, err)
	}
	defer f.Close()

	bufPtr, _ := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufPtr)
	buf := *bufPtr

	h := blake3.New()
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read file %q: %w", path, err)
		}
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// HashBytes digests an arbitrary byte slice with the same digest family as
// PartialHash and FullHash. compute_dir_hash uses this to fold a directory's
// children's hashes into one digest, keeping the codec uniform across file
// and directory fingerprints.
func HashBytes(data []byte) string {
	h := blake3.New()
	h.Write(data)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// ImageHash returns a perceptual fingerprint for the image at path. It fails
// with *UnsupportedImageFormatError if path's extension is not a supported
// image format.
func ImageHash(path string) (string, error) {
	if !IsImagePath(path) {
		return "", &UnsupportedImageFormatError{Path: path}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open image %q: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("failed to decode image %q: %w", path, err)
	}

	phash, err := goimagehash.AverageHash(img)
	if err != nil {
		return "", fmt.Errorf("failed to compute perceptual hash for %q: %w", path, err)
	}

	return fmt.Sprintf("%016x", phash.GetHash()), nil
}
