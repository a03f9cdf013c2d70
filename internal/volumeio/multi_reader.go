package volumeio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"sevenz-forensic/internal/errz"
)

// MultiReader is the reverse of SplitWriter: a random-access byte view over
// an ordered set of volume files, or a single unsuffixed file if no
// numbered siblings exist. A MultiReader is pull-based and thread-compatible
// but not thread-safe; concurrent readers must each open their own
// MultiReader.
type MultiReader struct {
	basePath string
	// volumeSizes[i] is the size of 1-based volume i; volumeSizes[0] is
	// unused so indices line up with on-disk numbering.
	volumeSizes []int64
	volumeBase  []int64 // cumulative byte offset at which volume i begins
	total       int64
	single      bool
}

// Open discovers every volume matching basePath + ".NNN" and orders them by
// index; if none exist, it treats basePath itself as the sole volume.
func Open(basePath string) (*MultiReader, error) {
	matches, err := filepath.Glob(basePath + ".[0-9][0-9][0-9]")
	if err != nil {
		return nil, errz.NewIOError("glob", basePath, err)
	}
	sort.Strings(matches)

	mr := &MultiReader{basePath: basePath}

	if len(matches) == 0 {
		info, err := os.Stat(basePath)
		if err != nil {
			return nil, errz.NewIOError("stat", basePath, err)
		}
		mr.single = true
		mr.volumeSizes = []int64{0, info.Size()}
		mr.volumeBase = []int64{0, 0}
		mr.total = info.Size()
		return mr, nil
	}

	mr.volumeSizes = make([]int64, 1, len(matches)+1)
	mr.volumeBase = make([]int64, 1, len(matches)+1)
	var offset int64
	for idx, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			return nil, errz.NewIOError("stat", path, err)
		}
		wantIndex := idx + 1
		if filepath.Base(path) != filepath.Base(fmt.Sprintf("%s.%03d", basePath, wantIndex)) {
			return nil, errz.NewMissingVolumeError(wantIndex)
		}
		mr.volumeBase = append(mr.volumeBase, offset)
		mr.volumeSizes = append(mr.volumeSizes, info.Size())
		offset += info.Size()
	}
	mr.total = offset
	return mr, nil
}

// Len returns the total logical length: the sum of all volume sizes.
func (mr *MultiReader) Len() int64 { return mr.total }

func (mr *MultiReader) volumePath(i int64) string {
	if mr.single {
		return mr.basePath
	}
	return fmt.Sprintf("%s.%03d", mr.basePath, i)
}

// volumeForOffset returns the 1-based volume index containing absolute
// offset O, and the offset within that volume.
func (mr *MultiReader) volumeForOffset(o int64) (int64, int64, error) {
	if mr.single {
		return 1, o, nil
	}
	for i := 1; i < len(mr.volumeBase); i++ {
		start := mr.volumeBase[i]
		end := start + mr.volumeSizes[i]
		if o >= start && o < end {
			return int64(i), o - start, nil
		}
	}
	// Offset exactly at the end of the last volume is valid (zero-length
	// read at EOF); anything further is out of range.
	if o == mr.total {
		return int64(len(mr.volumeSizes) - 1), mr.volumeSizes[len(mr.volumeSizes)-1], nil
	}
	return 0, 0, errz.ErrOffsetOutOfRange
}

// ReadAt decomposes a read of length len(p) starting at absolute offset off
// into one or more per-volume reads, honouring the same boundary arithmetic
// as SplitWriter.
func (mr *MultiReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > mr.total {
		return 0, errz.ErrOffsetOutOfRange
	}
	if off+int64(len(p)) > mr.total {
		return 0, errz.ErrOffsetOutOfRange
	}

	var totalRead int
	for len(p) > 0 {
		volIndex, volOff, err := mr.volumeForOffset(off)
		if err != nil {
			return totalRead, err
		}

		path := mr.volumePath(volIndex)
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				return totalRead, errz.NewMissingVolumeError(int(volIndex))
			}
			return totalRead, errz.NewIOError("open", path, err)
		}

		volSize := mr.volumeSizes[volIndex]
		remaining := volSize - volOff
		want := int64(len(p))
		if want > remaining {
			want = remaining
		}

		n, err := f.ReadAt(p[:want], volOff)
		f.Close()
		totalRead += n
		off += int64(n)
		p = p[n:]
		if err != nil && n < int(want) {
			return totalRead, errz.NewIOError("readat", path, err)
		}
		if want == 0 {
			break
		}
	}
	return totalRead, nil
}

// Close is a no-op; MultiReader opens and closes each volume handle
// per-call so it never holds a descriptor between reads.
func (mr *MultiReader) Close() error { return nil }
