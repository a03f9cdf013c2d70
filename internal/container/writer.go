package container

import (
	"bytes"
	"encoding/binary"
	"io/fs"
	"time"

	"golang.org/x/text/encoding/unicode"

	"sevenz-forensic/internal/errz"
	"sevenz-forensic/internal/sevenzio"
)

// State is the container writer's linear progress through a compression run.
type State int

const (
	StateInit State = iota
	StateWritingSignaturePlaceholder
	StateWritingPackedData
	StateWritingEndHeader
	StateRewritingSignature
	StateDone
	StateFailed
)

// Sink is what the container writer needs from its output: sequential
// writes for the forward cursor, plus WriteAt for the signature-header
// backpatch. volumeio.SplitWriter implements this.
type Sink interface {
	Write(p []byte) (int, error)
	WriteAt(p []byte, off int64) (int, error)
}

// AESCoderProps carries the metadata recorded alongside the AES coder when
// a folder is encrypted.
type AESCoderProps struct {
	Salt       []byte
	IV         []byte
	Iterations uint32
}

// FileEntry is one FilesInfo record.
type FileEntry struct {
	Name          string
	IsEmptyStream bool // directory, or a zero-length regular file
	IsEmptyFile   bool // zero-length regular file specifically
	Mode          fs.FileMode
	ModTime       time.Time
	HasModTime    bool
}

// EndHeaderSpec carries everything WriteEndHeader needs; every field here
// must come directly from the compression driver's accounting, never from
// separate recomputation, per the container writer's InconsistentAccounting
// invariant.
type EndHeaderSpec struct {
	PackStreamSize    int64
	FolderUnpackTotal int64
	FolderUnpackCRC   uint32
	Store             bool // true when the folder's coder is Copy (level 0), not LZMA2
	LZMA2PropByte     byte
	PerFileSizes      []int64
	PerFileCRCs       []uint32
	Files             []FileEntry
	AES               *AESCoderProps // nil when the archive is not encrypted
	AESCompressedSize int64          // LZMA2 output size before AES padding; required when AES != nil
}

// Writer builds and emits a 7z archive in the strict order the format
// requires: signature placeholder, packed data, end header, then a
// seek-back rewrite of the signature header.
type Writer struct {
	sink            Sink
	state           State
	packedDataStart int64
	packedDataEnd   int64
}

// NewWriter wraps sink. The caller is responsible for driving packed-data
// writes directly into sink between WriteSignaturePlaceholder and
// WriteEndHeader.
func NewWriter(sink Sink) *Writer {
	return &Writer{sink: sink, state: StateInit}
}

// WriteSignaturePlaceholder emits 32 zero bytes and records the offset at
// which packed data begins.
func (w *Writer) WriteSignaturePlaceholder() error {
	if w.state != StateInit {
		return errz.ErrInconsistentAccounting
	}
	if _, err := w.sink.Write(make([]byte, SignatureHeaderSize)); err != nil {
		return errz.Wrap(err, "container: write signature placeholder")
	}
	w.packedDataStart = SignatureHeaderSize
	w.state = StateWritingPackedData
	return nil
}

// BeginPackedData returns the sink packed data should be streamed into. The
// caller (the compression driver) writes pack_stream_size bytes here.
func (w *Writer) BeginPackedData() Sink {
	return w.sink
}

// FinishPackedData records how many bytes of packed data were written.
func (w *Writer) FinishPackedData(packStreamSize int64) {
	w.packedDataEnd = w.packedDataStart + packStreamSize
	w.state = StateWritingEndHeader
}

// WriteEndHeader builds the end header in memory, writes it, then seeks
// back and rewrites the signature header with the now-known next-header
// offset, size, and CRC.
func (w *Writer) WriteEndHeader(spec EndHeaderSpec) error {
	if w.state != StateWritingEndHeader {
		return errz.ErrInconsistentAccounting
	}

	header, err := buildEndHeader(spec)
	if err != nil {
		return err
	}

	if _, err := w.sink.Write(header); err != nil {
		return errz.Wrap(err, "container: write end header")
	}

	w.state = StateRewritingSignature
	headerCRC := sevenzio.Checksum(header)
	nextHeaderOffset := uint64(w.packedDataEnd - w.packedDataStart)
	nextHeaderSize := uint64(len(header))

	sigHeader, err := buildSignatureHeader(nextHeaderOffset, nextHeaderSize, headerCRC)
	if err != nil {
		return err
	}
	if _, err := w.sink.WriteAt(sigHeader, 0); err != nil {
		return errz.Wrap(err, "container: rewrite signature header")
	}

	w.state = StateDone
	return nil
}

// State reports the writer's current state.
func (w *Writer) State() State { return w.state }

// Fail marks the writer failed; no further writes are attempted.
func (w *Writer) Fail() { w.state = StateFailed }

func buildSignatureHeader(nextHeaderOffset, nextHeaderSize uint64, nextHeaderCRC uint32) ([]byte, error) {
	start := make([]byte, StartHeaderSize)
	binary.LittleEndian.PutUint64(start[0:8], nextHeaderOffset)
	binary.LittleEndian.PutUint64(start[8:16], nextHeaderSize)
	binary.LittleEndian.PutUint32(start[16:20], nextHeaderCRC)

	startCRC := sevenzio.Checksum(start)

	buf := make([]byte, 0, SignatureHeaderSize)
	buf = append(buf, Signature[:]...)
	buf = append(buf, FormatVersionMajor, FormatVersionMinor)
	crcBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(crcBytes, startCRC)
	buf = append(buf, crcBytes...)
	buf = append(buf, start...)

	if len(buf) != SignatureHeaderSize {
		return nil, errz.ErrInconsistentAccounting
	}
	return buf, nil
}

func buildEndHeader(spec EndHeaderSpec) ([]byte, error) {
	var b bytes.Buffer

	writeNumber(&b, idHeader)
	writeNumber(&b, idMainStreamsInfo)

	writePackInfo(&b, spec.PackStreamSize)
	if err := writeUnpackInfo(&b, spec); err != nil {
		return nil, err
	}
	writeSubStreamsInfo(&b, spec.PerFileSizes, spec.PerFileCRCs)

	writeNumber(&b, idEnd) // end of MainStreamsInfo

	if err := writeFilesInfo(&b, spec.Files); err != nil {
		return nil, err
	}

	writeNumber(&b, idEnd) // end of Header

	return b.Bytes(), nil
}

func writeNumber(b *bytes.Buffer, v uint64) {
	b.Write(sevenzio.EncodeNumber(v))
}

func writePackInfo(b *bytes.Buffer, packStreamSize int64) {
	writeNumber(b, idPackInfo)
	writeNumber(b, 0) // pack-data start offset, relative to end of signature header
	writeNumber(b, 1) // number of pack streams
	writeNumber(b, idSize)
	writeNumber(b, uint64(packStreamSize))
	writeNumber(b, idEnd)
}

func writeUnpackInfo(b *bytes.Buffer, spec EndHeaderSpec) error {
	writeNumber(b, idUnpackInfo)
	writeNumber(b, idFolder)
	writeNumber(b, 1) // number of folders
	b.WriteByte(0)    // external = 0 (folder data is inline, not a separate stream)

	if spec.AES == nil {
		writeSingleCoderFolder(b, spec.Store, spec.LZMA2PropByte)
	} else {
		if err := writeEncryptedFolder(b, spec); err != nil {
			return err
		}
	}

	writeNumber(b, idCodersUnpackSize)
	if spec.AES == nil {
		writeNumber(b, uint64(spec.FolderUnpackTotal))
	} else {
		// One unpack size per coder output stream, in coder order: the AES
		// coder's decrypted (pre-LZMA2) byte count, then LZMA2's final
		// plaintext byte count.
		writeNumber(b, uint64(spec.AESCompressedSize))
		writeNumber(b, uint64(spec.FolderUnpackTotal))
	}

	writeNumber(b, idCRC)
	b.WriteByte(1) // all-defined
	crcBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(crcBytes, spec.FolderUnpackCRC)
	b.Write(crcBytes)

	writeNumber(b, idEnd)
	return nil
}

func writeSingleCoderFolder(b *bytes.Buffer, store bool, lzma2PropByte byte) {
	writeNumber(b, 1) // number of coders
	if store {
		// Copy coder: 1-byte id, no attributes.
		b.WriteByte(0x01)
		b.WriteByte(coderIDCopy)
		return
	}
	b.WriteByte(coderFlagsHasAttrs)
	b.WriteByte(coderIDLZMA2)
	writeNumber(b, 1) // attribute length
	b.WriteByte(lzma2PropByte)
}

func writeEncryptedFolder(b *bytes.Buffer, spec EndHeaderSpec) error {
	writeNumber(b, 2) // number of coders

	// coder0: AES decrypt, unbound input (the pack stream is ciphertext).
	// Flags: low nibble 4 (four-byte coder id) | 0x20 (has attributes).
	aesProps := encodeAESProps(spec.AES)
	b.WriteByte(0x24)
	writeCoderID(b, coderIDAES256SHA256)
	writeNumber(b, uint64(len(aesProps)))
	b.Write(aesProps)

	// coder1: LZMA2, bound to coder0's output, unbound output is the final
	// plaintext.
	b.WriteByte(coderFlagsHasAttrs)
	b.WriteByte(coderIDLZMA2)
	writeNumber(b, 1)
	b.WriteByte(spec.LZMA2PropByte)

	// one bind pair: LZMA2's input (global in-stream index 1) bound to
	// AES's output (global out-stream index 0).
	writeNumber(b, 1)
	writeNumber(b, 0)
	return nil
}

func writeCoderID(b *bytes.Buffer, id uint32) {
	// AES coder id is a 4-byte codec id; coderFlagsHasAttrs as used here
	// assumes a 1-byte id for LZMA2, so the AES branch writes its id length
	// explicitly rather than reusing the shared flags constant's low nibble.
	b.WriteByte(byte(id >> 24))
	b.WriteByte(byte(id >> 16))
	b.WriteByte(byte(id >> 8))
	b.WriteByte(byte(id))
}

func encodeAESProps(aes *AESCoderProps) []byte {
	// salt length byte, salt, iv length byte, iv, 4-byte little-endian
	// iteration count.
	var buf bytes.Buffer
	buf.WriteByte(byte(len(aes.Salt)))
	buf.Write(aes.Salt)
	buf.WriteByte(byte(len(aes.IV)))
	buf.Write(aes.IV)
	iters := make([]byte, 4)
	binary.LittleEndian.PutUint32(iters, aes.Iterations)
	buf.Write(iters)
	return buf.Bytes()
}

func writeSubStreamsInfo(b *bytes.Buffer, sizes []int64, crcs []uint32) {
	writeNumber(b, idSubStreamsInfo)
	writeNumber(b, idNumUnpackStream)
	writeNumber(b, uint64(len(sizes)))

	// A folder with exactly one substream needs no per-substream size: it's
	// the folder's own unpack size, already written in UnpackInfo.
	if len(sizes) > 1 {
		writeNumber(b, idSize)
		// Omit the last size; it's implied by folder_unpack_total minus the
		// sum of the preceding sizes.
		for i := 0; i < len(sizes)-1; i++ {
			writeNumber(b, uint64(sizes[i]))
		}
	}

	// A folder with exactly one substream needs no digest either: its CRC
	// is already the folder CRC UnpackInfo defined. A canonical reader
	// (bodgit/sevenzip included) counts that substream's digest as already
	// known and omits the whole CRC record when every substream is in that
	// state, so writing one here would desync the reader.
	if len(sizes) > 1 {
		writeNumber(b, idCRC)
		b.WriteByte(1) // all-defined
		for _, crc := range crcs {
			crcBytes := make([]byte, 4)
			binary.LittleEndian.PutUint32(crcBytes, crc)
			b.Write(crcBytes)
		}
	}

	writeNumber(b, idEnd)
}

func writeFilesInfo(b *bytes.Buffer, files []FileEntry) error {
	writeNumber(b, idFilesInfo)
	writeNumber(b, uint64(len(files)))

	// ID_EmptyStream: bit vector over all files.
	emptyStreamBits := packBits(len(files), func(i int) bool { return files[i].IsEmptyStream })
	writeProperty(b, idEmptyStream, emptyStreamBits)

	// ID_EmptyFile: bit vector indexed only over files where IsEmptyStream
	// is set, in that subset's order.
	var emptyStreamIndices []int
	for i, f := range files {
		if f.IsEmptyStream {
			emptyStreamIndices = append(emptyStreamIndices, i)
		}
	}
	if len(emptyStreamIndices) > 0 {
		emptyFileBits := packBits(len(emptyStreamIndices), func(j int) bool {
			return files[emptyStreamIndices[j]].IsEmptyFile
		})
		writeProperty(b, idEmptyFile, emptyFileBits)
	}

	nameBytes, err := encodeNames(files)
	if err != nil {
		return err
	}
	writeProperty(b, idName, nameBytes)

	mtimeBytes := encodeTimes(files)
	if mtimeBytes != nil {
		writeProperty(b, idMTime, mtimeBytes)
	}

	attribBytes := encodeAttribs(files)
	if attribBytes != nil {
		writeProperty(b, idAttrib, attribBytes)
	}

	writeNumber(b, idEnd)
	return nil
}

func writeProperty(b *bytes.Buffer, id uint64, payload []byte) {
	writeNumber(b, id)
	writeNumber(b, uint64(len(payload)))
	b.Write(payload)
}

func packBits(n int, set func(i int) bool) []byte {
	out := make([]byte, (n+7)/8)
	for i := 0; i < n; i++ {
		if set(i) {
			out[i/8] |= 0x80 >> uint(i%8)
		}
	}
	return out
}

func encodeNames(files []FileEntry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(0) // external = 0

	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	for _, f := range files {
		encoded, err := enc.Bytes([]byte(f.Name))
		if err != nil {
			return nil, errz.Wrap(err, "container: encode file name")
		}
		buf.Write(encoded)
		buf.Write([]byte{0, 0}) // UTF-16LE null terminator
	}
	return buf.Bytes(), nil
}

func encodeTimes(files []FileEntry) []byte {
	any := false
	allDefined := true
	for _, f := range files {
		if f.HasModTime {
			any = true
		} else {
			allDefined = false
		}
	}
	if !any {
		return nil
	}

	var buf bytes.Buffer
	if allDefined {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
		buf.Write(packBits(len(files), func(i int) bool { return files[i].HasModTime }))
	}
	buf.WriteByte(0) // external = 0

	for _, f := range files {
		if !f.HasModTime {
			continue
		}
		ft := windowsFileTime(f.ModTime)
		b8 := make([]byte, 8)
		binary.LittleEndian.PutUint64(b8, ft)
		buf.Write(b8)
	}
	return buf.Bytes()
}

func encodeAttribs(files []FileEntry) []byte {
	var buf bytes.Buffer
	buf.WriteByte(1) // all-defined: every file carries an attribute value
	buf.WriteByte(0) // external = 0

	for _, f := range files {
		attr := AttributesForMode(f.Mode)
		b4 := make([]byte, 4)
		binary.LittleEndian.PutUint32(b4, attr)
		buf.Write(b4)
	}
	return buf.Bytes()
}

// windowsEpochDelta100ns is the number of 100ns ticks between the Windows
// FILETIME epoch (1601-01-01) and the Unix epoch (1970-01-01).
const windowsEpochDelta100ns = 116444736000000000

func windowsFileTime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano()/100) + windowsEpochDelta100ns
}
