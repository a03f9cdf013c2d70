// Package codec drives the LZMA2 encoder across an ordered list of files in
// one pass, keeping per-file size and CRC accounting alongside a single
// streaming write to the sink.
package codec

import (
	"io"

	"github.com/ulikunitz/xz/lzma"

	"sevenz-forensic/internal/chunkio"
	"sevenz-forensic/internal/errz"
	"sevenz-forensic/internal/sevenzio"
)

// ThreadPlan selects (block threads, lzma threads per block) from total
// input size, per the spec's indicative threading table. blockThreads is
// wired directly to lzma.Writer2Config.Workers; lzmaThreads is advisory and
// currently unused by the single-coder solid-block design, but is reported
// for callers that want to log the plan.
func ThreadPlan(totalSize int64) (blockThreads, lzmaThreads int) {
	const (
		mib = 1 << 20
	)
	switch {
	case totalSize < mib:
		return 1, 1
	case totalSize < 10*mib:
		return 2, 1
	case totalSize < 50*mib:
		return 4, 1
	case totalSize < 500*mib:
		return 8, 2
	default:
		return 16, 2
	}
}

// FileSpec is one input to a solid block: its chunked reader and logical
// name (used only for progress taps).
type FileSpec struct {
	Reader *chunkio.Reader
	Name   string
}

// Result is the accounting the driver hands back to the container writer:
// everything §4.I needs to build UnpackInfo and SubStreamsInfo, and nothing
// it has to recompute.
type Result struct {
	FolderUnpackTotal int64
	FolderUnpackCRC   uint32
	PackStreamSize    int64
	PerFileSizes      []int64
	PerFileCRCs       []uint32
	LZMA2PropByte     byte
}

// countingWriter tracks bytes written so the driver can report
// pack_stream_size without relying on the sink to expose its own counter.
type countingWriter struct {
	w     io.Writer
	count int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.count += int64(n)
	return n, err
}

// Encode streams files through one LZMA2 encoder into sink, in order,
// without framing between files, and returns the accounting the container
// writer needs. level 0 bypasses the codec: bytes are still run through the
// same CRC/size bookkeeping loop but copied unmodified, and the property
// byte reported corresponds to the smallest (empty) LZMA2 dictionary.
func Encode(files []FileSpec, level int, sink io.Writer) (Result, error) {
	var totalSize int64
	for _, f := range files {
		totalSize += f.Reader.Size()
	}
	blockThreads, _ := ThreadPlan(totalSize)

	cw := &countingWriter{w: sink}

	dictSize := DictSizeForLevel(level)
	propByte := PropertyByte(dictSize)

	var enc lzma.WriteFlusher
	var err error
	store := level <= 0
	if !store {
		cfg := lzma.Writer2Config{
			Properties:            lzma.Properties{LC: 3, LP: 0, PB: 2},
			PropertiesInitialized: true,
			DictSize:              int(dictSize),
			Workers:               blockThreads,
		}
		enc, err = lzma.NewWriter2Config(cw, cfg)
		if err != nil {
			return Result{}, errz.NewCompressionError("init lzma2 encoder", err)
		}
	}

	folderCRC := sevenzio.NewCRC()
	var folderTotal int64
	perFileSizes := make([]int64, 0, len(files))
	perFileCRCs := make([]uint32, 0, len(files))

	var dest io.Writer = cw
	if !store {
		dest = enc
	}

	buf := make([]byte, 1<<20)
	for _, fs := range files {
		fileCRC := sevenzio.NewCRC()
		var fileSize int64

		for {
			n, rerr := fs.Reader.Read(buf)
			if n > 0 {
				fileCRC.Write(buf[:n])
				folderCRC.Write(buf[:n])
				fileSize += int64(n)
				folderTotal += int64(n)

				if _, werr := dest.Write(buf[:n]); werr != nil {
					return Result{}, errz.NewCompressionError("write to encoder", werr)
				}
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				return Result{}, errz.NewCompressionError("read input file", rerr)
			}
		}

		perFileSizes = append(perFileSizes, fileSize)
		perFileCRCs = append(perFileCRCs, fileCRC.Sum32())
	}

	if !store {
		if err := enc.Close(); err != nil {
			return Result{}, errz.NewCompressionError("finalize lzma2 encoder", err)
		}
	}

	return Result{
		FolderUnpackTotal: folderTotal,
		FolderUnpackCRC:   folderCRC.Sum32(),
		PackStreamSize:    cw.count,
		PerFileSizes:      perFileSizes,
		PerFileCRCs:       perFileCRCs,
		LZMA2PropByte:     propByte,
	}, nil
}

// Decode drives LZMA2 decompression of a pack stream of exactly
// packStreamSize compressed bytes read from src, writing decompressed bytes
// to dest. level 0 (Store) sinks are decoded by straight copy.
func Decode(src io.Reader, packStreamSize int64, store bool, dest io.Writer) error {
	limited := io.LimitReader(src, packStreamSize)

	if store {
		if _, err := io.Copy(dest, limited); err != nil {
			return errz.NewDecompressionError("store copy", err)
		}
		return nil
	}

	r, err := lzma.NewReader2(limited)
	if err != nil {
		return errz.NewDecompressionError("init lzma2 decoder", err)
	}
	if _, err := io.Copy(dest, r); err != nil {
		return errz.NewDecompressionError("lzma2 decode", err)
	}
	return nil
}
