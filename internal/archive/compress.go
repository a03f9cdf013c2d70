package archive

import (
	"crypto/rand"
	"io"

	"github.com/sourcegraph/conc/pool"

	"sevenz-forensic/internal/checkpoint"
	"sevenz-forensic/internal/chunkio"
	"sevenz-forensic/internal/codec"
	"sevenz-forensic/internal/container"
	"sevenz-forensic/internal/cryptoz"
	"sevenz-forensic/internal/entropy"
	"sevenz-forensic/internal/errz"
	"sevenz-forensic/internal/log"
	"sevenz-forensic/internal/volumeio"
)

// countingWriter tracks the exact number of bytes that reach the underlying
// sink, regardless of what sits above it (an LZMA2 encoder, an AES encrypt
// writer, or nothing). The container writer needs this count, not an
// estimate, to satisfy its InconsistentAccounting invariant.
type countingWriter struct {
	w     io.Writer
	count int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.count += int64(n)
	return n, err
}

// Compress builds a 7z archive from req.Inputs at req.OutputPath. This is
// the "Control" half of §4.I: it owns the container writer's state machine
// and drives the compression driver (§4.G) directly, the way the teacher's
// Encrypt owns its own eight-phase pipeline.
func Compress(req *CompressRequest) error {
	if req.OutputPath == "" || len(req.Inputs) == 0 {
		return errz.ErrInvalidParameter
	}

	ckptPath := checkpoint.PathFor(req.OutputPath)
	ctx := newOperationContext(req.Reporter, ckptPath)
	defer ctx.close()

	ctx.setStatus("Discovering inputs...")
	files, err := discoverInputs(req.Inputs)
	if err != nil {
		return err
	}
	for _, f := range files {
		if !f.IsDir {
			ctx.total += f.Size
		}
	}

	if req.Resume && ctx.checkpoints.Exists() {
		rec, err := ctx.checkpoints.Load()
		if err != nil {
			return errz.Wrap(err, "archive: load checkpoint")
		}
		log.Info("resuming compression", log.Int("files_completed", rec.FilesCompleted))
	}

	// A solid block compresses as one coherent LZMA2 stream, so there is no
	// byte offset mid-block safe to resume from; the checkpoint here records
	// run identity for crash detection, and Resume re-runs the whole
	// compression rather than splicing into a partial folder.
	runID := checkpoint.NewRunID()
	if err := ctx.checkpoints.Save(checkpoint.Record{RunID: runID}); err != nil {
		return err
	}

	level := req.Level
	if level < 0 {
		level = planLevel(files)
	}
	store := level <= 0

	chunkCeiling := req.ChunkSize
	if chunkCeiling <= 0 {
		chunkCeiling = chunkio.DefaultCeiling
	}

	sink, err := volumeio.NewSplitWriter(req.OutputPath, req.SplitSize)
	if err != nil {
		return errz.Wrap(err, "archive: open output")
	}

	w := container.NewWriter(sink)
	if err := w.WriteSignaturePlaceholder(); err != nil {
		sink.Abort()
		return err
	}

	var aesProps *container.AESCoderProps
	encrypted := req.Password != ""
	if encrypted {
		salt := make([]byte, cryptoz.SaltLen)
		iv := make([]byte, cryptoz.IVLen)
		if _, err := rand.Read(salt); err != nil {
			sink.Abort()
			return errz.Wrap(err, "archive: generate salt")
		}
		if _, err := rand.Read(iv); err != nil {
			sink.Abort()
			return errz.Wrap(err, "archive: generate iv")
		}
		key := cryptoz.DeriveKey([]byte(req.Password), salt)
		ctx.key = key
		aesProps = &container.AESCoderProps{Salt: salt, IV: iv, Iterations: cryptoz.Iterations}
	}

	var specs []codec.FileSpec
	var fileEntries []container.FileEntry
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	nonEmptyCount := 0
	for _, f := range files {
		entry := container.FileEntry{
			Name:       f.ArchiveName,
			Mode:       f.Mode,
			ModTime:    f.ModTime,
			HasModTime: true,
		}
		if f.IsDir {
			entry.IsEmptyStream = true
			fileEntries = append(fileEntries, entry)
			continue
		}
		if f.Size == 0 {
			entry.IsEmptyStream = true
			entry.IsEmptyFile = true
			fileEntries = append(fileEntries, entry)
			continue
		}

		tap := func(cur, total int64, name string) { ctx.advance(0, name) }
		r, err := chunkio.Open(f.AbsPath, chunkCeiling, tap)
		if err != nil {
			sink.Abort()
			return err
		}
		closers = append(closers, r)
		specs = append(specs, codec.FileSpec{Reader: r, Name: f.ArchiveName})
		fileEntries = append(fileEntries, entry)
		nonEmptyCount++
	}

	ctx.setStatus("Compressing...")

	cw := &countingWriter{w: sink}
	var packSink io.Writer = cw
	var encWriter *cryptoz.EncryptWriter
	var aesCompressedSize int64
	if encrypted {
		encWriter, err = cryptoz.NewEncryptWriter(cw, ctx.key.Bytes(), aesProps.IV)
		if err != nil {
			sink.Abort()
			return err
		}
		packSink = encWriter
	}

	result, err := codec.Encode(specs, level, packSink)
	if err != nil {
		sink.Abort()
		return err
	}

	if encrypted {
		aesCompressedSize = result.PackStreamSize
		if err := encWriter.Finish(); err != nil {
			sink.Abort()
			return err
		}
	}

	w.FinishPackedData(cw.count)

	spec := container.EndHeaderSpec{
		PackStreamSize:    cw.count,
		FolderUnpackTotal: result.FolderUnpackTotal,
		FolderUnpackCRC:   result.FolderUnpackCRC,
		Store:             store,
		LZMA2PropByte:     result.LZMA2PropByte,
		PerFileSizes:      result.PerFileSizes,
		PerFileCRCs:       result.PerFileCRCs,
		Files:             fileEntries,
		AES:               aesProps,
		AESCompressedSize: aesCompressedSize,
	}

	if err := w.WriteEndHeader(spec); err != nil {
		sink.Abort()
		return err
	}

	if err := sink.Close(); err != nil {
		return err
	}

	ctx.checkpoints.Delete()
	log.Info("compression complete",
		log.String("output", req.OutputPath),
		log.Int("files", nonEmptyCount),
		log.Int64("folder_unpack_total", result.FolderUnpackTotal))
	return nil
}

// planLevel probes every discovered file in parallel and recommends the
// level implied by whichever entropy bucket the most files fall into,
// consistent with this being a single solid block: the block as a whole is
// compressed at one level, so the majority's recommendation governs.
func planLevel(files []discoveredFile) int {
	p := pool.NewWithResults[entropy.Level]()
	for _, f := range files {
		f := f
		if f.IsDir || f.Size == 0 {
			continue
		}
		p.Go(func() entropy.Level {
			res, err := entropy.ProbeFile(f.AbsPath)
			if err != nil {
				return entropy.Normal
			}
			return res.Recommendation
		})
	}
	samples := p.Wait()
	if len(samples) == 0 {
		return 5
	}

	counts := make(map[entropy.Level]int)
	for _, lvl := range samples {
		counts[lvl]++
	}

	best := entropy.Normal
	bestCount := -1
	for lvl, n := range counts {
		if n > bestCount {
			best, bestCount = lvl, n
		}
	}
	return codec.LevelForRecommendation(best)
}
