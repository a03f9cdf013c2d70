package archive

import (
	"io"
	"os"
	"path/filepath"

	"sevenz-forensic/internal/checkpoint"
	"sevenz-forensic/internal/codec"
	"sevenz-forensic/internal/container"
	"sevenz-forensic/internal/cryptoz"
	"sevenz-forensic/internal/errz"
	"sevenz-forensic/internal/log"
	"sevenz-forensic/internal/sevenzio"
	"sevenz-forensic/internal/volumeio"
)

// sourceReader adapts a container.Source into a sequential io.Reader over
// [off, end), the mirror of compress.go's countingWriter on the decode path.
type sourceReader struct {
	src container.Source
	off int64
	end int64
}

func (r *sourceReader) Read(p []byte) (int, error) {
	if r.off >= r.end {
		return 0, io.EOF
	}
	if remaining := r.end - r.off; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := r.src.ReadAt(p, r.off)
	r.off += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// Extract decodes the archive at req.ArchivePath into req.OutputDir,
// following §4.J: read the plan, recreate directories, stream the folder's
// single decompressed byte sequence back out across its constituent files,
// verify each file's CRC, then restore timestamps and permissions.
func Extract(req *ExtractRequest) error {
	if req.ArchivePath == "" || req.OutputDir == "" {
		return errz.ErrInvalidParameter
	}

	ckptPath := checkpoint.PathFor(req.ArchivePath)
	ctx := newOperationContext(req.Reporter, ckptPath)
	defer ctx.close()

	ctx.setStatus("Reading archive header...")
	mr, err := volumeio.Open(req.ArchivePath)
	if err != nil {
		return err
	}
	defer mr.Close()

	plan, err := container.ReadPlan(mr)
	if err != nil {
		return err
	}
	for _, sz := range plan.PerFileSizes {
		ctx.total += sz
	}

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return errz.NewIOError("mkdir", req.OutputDir, err)
	}

	// Pass 1: recreate every directory first so nested files always have
	// somewhere to land, independent of FilesInfo order.
	for _, f := range plan.Files {
		if f.IsEmptyStream && f.Mode.IsDir() {
			path := filepath.Join(req.OutputDir, filepath.FromSlash(f.Name))
			if err := os.MkdirAll(path, 0o755); err != nil {
				return errz.NewIOError("mkdir", path, err)
			}
		}
	}

	ctx.setStatus("Extracting...")

	raw := &sourceReader{src: mr, off: plan.PackedDataStart, end: plan.PackedDataStart + plan.PackStreamSize}

	var src io.Reader = raw
	packStreamSize := plan.PackStreamSize
	if plan.AES != nil {
		if req.Password == "" {
			return errz.ErrWrongPassword
		}
		key := cryptoz.DeriveKey([]byte(req.Password), plan.AES.Salt)
		ctx.key = key
		dr, err := cryptoz.NewDecryptReader(raw, key.Bytes(), plan.AES.IV)
		if err != nil {
			return err
		}
		src = dr
		packStreamSize = plan.AESCompressedSize
	}

	dw := &demuxWriter{
		outputDir:  req.OutputDir,
		files:      plan.Files,
		sizes:      plan.PerFileSizes,
		crcs:       plan.PerFileCRCs,
		onProgress: func(n int64, name string) { ctx.advance(n, name) },
	}
	defer dw.closeCurrentOnError()

	if err := codec.Decode(src, packStreamSize, plan.Store, dw); err != nil {
		return err
	}
	if err := dw.finish(); err != nil {
		return err
	}

	// Pass 3: directory attributes and timestamps are restored last, after
	// every file underneath has been written, so a child write can't touch
	// the parent's already-restored mtime.
	for _, f := range plan.Files {
		if f.IsEmptyStream && f.Mode.IsDir() {
			path := filepath.Join(req.OutputDir, filepath.FromSlash(f.Name))
			os.Chmod(path, f.Mode.Perm())
			if f.HasModTime {
				os.Chtimes(path, f.ModTime, f.ModTime)
			}
		}
	}

	ctx.checkpoints.Delete()
	log.Info("extraction complete",
		log.String("archive", req.ArchivePath),
		log.Int("files", len(plan.Files)))
	return nil
}

// demuxWriter fans a folder's single decompressed byte stream back out
// across its constituent files, in FilesInfo order, verifying each file's
// CRC the moment its last byte lands.
type demuxWriter struct {
	outputDir string
	files     []container.FileEntry
	sizes     []int64
	crcs      []uint32

	onProgress func(n int64, name string)

	streamIdx int // index into sizes/crcs
	fileIdx   int // index into files, advanced past every entry including empty ones

	cur       *os.File
	curEntry  container.FileEntry
	curCRC    *sevenzio.CRC
	remaining int64
}

func (d *demuxWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if d.cur == nil {
			if err := d.openNext(); err != nil {
				return total, err
			}
		}
		n := len(p)
		if int64(n) > d.remaining {
			n = int(d.remaining)
		}
		if n > 0 {
			if _, err := d.cur.Write(p[:n]); err != nil {
				return total, errz.NewIOError("write", d.curEntry.Name, err)
			}
			d.curCRC.Write(p[:n])
			d.remaining -= int64(n)
			total += n
			p = p[n:]
			if d.onProgress != nil {
				d.onProgress(int64(n), d.curEntry.Name)
			}
		}
		if d.remaining == 0 {
			if err := d.closeCurrent(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// openNext skips past every empty entry (directories, zero-length files;
// neither carries packed bytes) until it reaches the next real file,
// creates it on disk, and arms the writer with streamIdx's byte count.
func (d *demuxWriter) openNext() error {
	for d.fileIdx < len(d.files) && d.files[d.fileIdx].IsEmptyStream {
		d.fileIdx++
	}
	if d.fileIdx >= len(d.files) || d.streamIdx >= len(d.sizes) {
		return errz.ErrInconsistentAccounting
	}

	entry := d.files[d.fileIdx]
	path := filepath.Join(d.outputDir, filepath.FromSlash(entry.Name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errz.NewIOError("mkdir", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errz.NewIOError("create", path, err)
	}

	d.cur = f
	d.curEntry = entry
	d.curCRC = sevenzio.NewCRC()
	d.remaining = d.sizes[d.streamIdx]
	if d.remaining == 0 {
		return d.closeCurrent()
	}
	return nil
}

func (d *demuxWriter) closeCurrent() error {
	path := filepath.Join(d.outputDir, filepath.FromSlash(d.curEntry.Name))
	if err := d.cur.Close(); err != nil {
		return errz.NewIOError("close", path, err)
	}
	if got := d.curCRC.Sum32(); got != d.crcs[d.streamIdx] {
		return errz.NewArchiveError("per-file crc mismatch: "+d.curEntry.Name, errz.ErrBadPerFileCRC)
	}
	os.Chmod(path, d.curEntry.Mode.Perm())
	if d.curEntry.HasModTime {
		os.Chtimes(path, d.curEntry.ModTime, d.curEntry.ModTime)
	}
	d.cur = nil
	d.streamIdx++
	d.fileIdx++
	return nil
}

// finish confirms every real file was consumed. A mismatch here means the
// folder's decompressed byte count disagreed with the sum of per-file
// sizes, which the container writer's own accounting should never produce.
func (d *demuxWriter) finish() error {
	if d.cur != nil || d.streamIdx != len(d.sizes) {
		return errz.ErrInconsistentAccounting
	}
	return nil
}

// closeCurrentOnError best-effort closes a dangling file handle if Extract
// returns early with an error mid-stream.
func (d *demuxWriter) closeCurrentOnError() {
	if d.cur != nil {
		d.cur.Close()
	}
}
