package archive

import (
	"io"

	"github.com/bodgit/sevenzip"

	"sevenz-forensic/internal/codec"
	"sevenz-forensic/internal/container"
	"sevenz-forensic/internal/cryptoz"
	"sevenz-forensic/internal/errz"
	"sevenz-forensic/internal/sevenzio"
	"sevenz-forensic/internal/volumeio"
)

// Entry is one line of a List result.
type Entry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime string
}

// List parses an archive's end header without touching its packed data,
// per the container reader's own contract: FilesInfo is never encrypted,
// so names, sizes, and directory structure are visible without a password.
func List(req *ListRequest) ([]Entry, error) {
	if req.ArchivePath == "" {
		return nil, errz.ErrInvalidParameter
	}

	mr, err := volumeio.Open(req.ArchivePath)
	if err != nil {
		return nil, err
	}
	defer mr.Close()

	plan, err := container.ReadPlan(mr)
	if err != nil {
		return nil, err
	}

	streamIdx := 0
	entries := make([]Entry, 0, len(plan.Files))
	for _, f := range plan.Files {
		e := Entry{Name: f.Name, IsDir: f.Mode.IsDir()}
		if f.HasModTime {
			e.ModTime = f.ModTime.Format("2006-01-02 15:04:05")
		}
		if !f.IsEmptyStream {
			e.Size = plan.PerFileSizes[streamIdx]
			streamIdx++
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// discardCRCWriter runs the same per-file CRC bookkeeping as demuxWriter's
// Write loop but never touches disk, for Test's read-only verification
// pass.
type discardCRCWriter struct {
	files []container.FileEntry
	sizes []int64
	crcs  []uint32

	streamIdx int
	fileIdx   int
	curCRC    *sevenzio.CRC
	remaining int64
	started   bool
}

func (d *discardCRCWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if !d.started {
			if err := d.openNext(); err != nil {
				return total, err
			}
		}
		n := len(p)
		if int64(n) > d.remaining {
			n = int(d.remaining)
		}
		if n > 0 {
			d.curCRC.Write(p[:n])
			d.remaining -= int64(n)
			total += n
			p = p[n:]
		}
		if d.remaining == 0 && d.started {
			if err := d.closeCurrent(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

func (d *discardCRCWriter) openNext() error {
	for d.fileIdx < len(d.files) && d.files[d.fileIdx].IsEmptyStream {
		d.fileIdx++
	}
	if d.fileIdx >= len(d.files) || d.streamIdx >= len(d.sizes) {
		return errz.ErrInconsistentAccounting
	}
	d.curCRC = sevenzio.NewCRC()
	d.remaining = d.sizes[d.streamIdx]
	d.started = true
	if d.remaining == 0 {
		return d.closeCurrent()
	}
	return nil
}

func (d *discardCRCWriter) closeCurrent() error {
	name := d.files[d.fileIdx].Name
	if got := d.curCRC.Sum32(); got != d.crcs[d.streamIdx] {
		return errz.NewArchiveError("per-file crc mismatch: "+name, errz.ErrBadPerFileCRC)
	}
	d.started = false
	d.streamIdx++
	d.fileIdx++
	return nil
}

func (d *discardCRCWriter) finish() error {
	if d.started || d.streamIdx != len(d.sizes) {
		return errz.ErrInconsistentAccounting
	}
	return nil
}

// Test fully decodes an archive, verifying every per-file CRC without
// writing any output, then cross-checks the result against an independent
// parse by the canonical reader library: agreement between two separate
// implementations of the same format is a stronger correctness signal than
// either parser's self-consistency alone.
func Test(req *TestRequest) error {
	if req.ArchivePath == "" {
		return errz.ErrInvalidParameter
	}

	mr, err := volumeio.Open(req.ArchivePath)
	if err != nil {
		return err
	}
	defer mr.Close()

	plan, err := container.ReadPlan(mr)
	if err != nil {
		return err
	}

	raw := &sourceReader{src: mr, off: plan.PackedDataStart, end: plan.PackedDataStart + plan.PackStreamSize}

	var src io.Reader = raw
	packStreamSize := plan.PackStreamSize
	var key *cryptoz.KeyMaterial
	if plan.AES != nil {
		if req.Password == "" {
			return errz.ErrWrongPassword
		}
		key = cryptoz.DeriveKey([]byte(req.Password), plan.AES.Salt)
		defer key.Close()
		dr, err := cryptoz.NewDecryptReader(raw, key.Bytes(), plan.AES.IV)
		if err != nil {
			return err
		}
		src = dr
		packStreamSize = plan.AESCompressedSize
	}

	dw := &discardCRCWriter{files: plan.Files, sizes: plan.PerFileSizes, crcs: plan.PerFileCRCs}
	if err := codec.Decode(src, packStreamSize, plan.Store, dw); err != nil {
		return err
	}
	if err := dw.finish(); err != nil {
		return err
	}

	return crossCheckWithCanonicalReader(req)
}

// crossCheckWithCanonicalReader re-parses the archive with github.com/
// bodgit/sevenzip and confirms its file count and names agree with this
// package's own parse. The archive is opened with the password when one is
// given and without it otherwise; any open error from that library is
// returned wrapped, not mapped onto this module's own error kinds.
func crossCheckWithCanonicalReader(req *TestRequest) error {
	var rc *sevenzip.ReadCloser
	var err error
	if req.Password != "" {
		rc, err = sevenzip.OpenReaderWithPassword(req.ArchivePath, req.Password)
	} else {
		rc, err = sevenzip.OpenReader(req.ArchivePath)
	}
	if err != nil {
		return errz.Wrap(err, "archive: cross-check with canonical reader")
	}
	defer rc.Close()

	mr, err := volumeio.Open(req.ArchivePath)
	if err != nil {
		return err
	}
	defer mr.Close()
	plan, err := container.ReadPlan(mr)
	if err != nil {
		return err
	}

	if len(rc.File) != len(plan.Files) {
		return errz.NewArchiveError("canonical reader disagrees on file count", nil)
	}
	for i, f := range rc.File {
		if f.Name != plan.Files[i].Name {
			return errz.NewArchiveError("canonical reader disagrees on file name: "+f.Name, nil)
		}
	}
	return nil
}
