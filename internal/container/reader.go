package container

import (
	"bytes"
	"encoding/binary"
	"time"

	"golang.org/x/text/encoding/unicode"

	"sevenz-forensic/internal/errz"
	"sevenz-forensic/internal/sevenzio"
)

// Source is what the container reader needs: a random-access byte view over
// the archive stream. volumeio.MultiReader implements this.
type Source interface {
	ReadAt(p []byte, off int64) (int, error)
	Len() int64
}

// Plan is the in-memory result of parsing an archive's end header: enough
// to drive extraction without re-reading the header.
type Plan struct {
	PackedDataStart   int64
	PackStreamSize    int64
	FolderUnpackTotal int64
	FolderUnpackCRC   uint32
	Store             bool
	LZMA2PropByte     byte
	PerFileSizes      []int64
	PerFileCRCs       []uint32
	Files             []FileEntry
	AES               *AESCoderProps
	AESCompressedSize int64
}

// ReadPlan reads the signature header, verifies it, then parses the end
// header into a Plan.
func ReadPlan(src Source) (*Plan, error) {
	sigBuf := make([]byte, SignatureHeaderSize)
	if _, err := src.ReadAt(sigBuf, 0); err != nil {
		return nil, errz.NewArchiveError("read signature header", err)
	}

	if !bytes.Equal(sigBuf[0:6], Signature[:]) {
		return nil, errz.ErrBadSignature
	}

	start := sigBuf[12:32]
	wantCRC := binary.LittleEndian.Uint32(sigBuf[8:12])
	if sevenzio.Checksum(start) != wantCRC {
		return nil, errz.ErrBadHeaderCRC
	}

	nextHeaderOffset := binary.LittleEndian.Uint64(start[0:8])
	nextHeaderSize := binary.LittleEndian.Uint64(start[8:16])
	nextHeaderCRC := binary.LittleEndian.Uint32(start[16:20])

	headerStart := int64(SignatureHeaderSize) + int64(nextHeaderOffset)
	if headerStart+int64(nextHeaderSize) > src.Len() {
		return nil, errz.ErrTruncatedArchive
	}

	headerBuf := make([]byte, nextHeaderSize)
	if _, err := src.ReadAt(headerBuf, headerStart); err != nil {
		return nil, errz.NewArchiveError("read end header", err)
	}
	if sevenzio.Checksum(headerBuf) != nextHeaderCRC {
		return nil, errz.ErrBadHeaderCRC
	}

	plan, err := parseEndHeader(headerBuf)
	if err != nil {
		return nil, err
	}
	plan.PackedDataStart = SignatureHeaderSize
	return plan, nil
}

func parseEndHeader(header []byte) (*Plan, error) {
	r := bytes.NewReader(header)
	plan := &Plan{}

	id, err := sevenzio.DecodeNumber(r)
	if err != nil || id != idHeader {
		return nil, errz.NewArchiveError("expected ID_Header", err)
	}

	id, err = sevenzio.DecodeNumber(r)
	if err != nil {
		return nil, errz.NewArchiveError("read header id", err)
	}

	if id == idMainStreamsInfo {
		if err := parseMainStreamsInfo(r, plan); err != nil {
			return nil, err
		}
		id, err = sevenzio.DecodeNumber(r)
		if err != nil {
			return nil, errz.NewArchiveError("read post-streams id", err)
		}
	}

	if id == idFilesInfo {
		if err := parseFilesInfo(r, plan); err != nil {
			return nil, err
		}
		id, err = sevenzio.DecodeNumber(r)
		if err != nil {
			return nil, errz.NewArchiveError("read trailing id", err)
		}
	}

	if id != idEnd {
		return nil, errz.NewArchiveError("expected ID_End for Header", nil)
	}

	return plan, nil
}

func parseMainStreamsInfo(r *bytes.Reader, plan *Plan) error {
	for {
		id, err := sevenzio.DecodeNumber(r)
		if err != nil {
			return errz.NewArchiveError("read MainStreamsInfo id", err)
		}
		switch id {
		case idPackInfo:
			if err := parsePackInfo(r, plan); err != nil {
				return err
			}
		case idUnpackInfo:
			if err := parseUnpackInfo(r, plan); err != nil {
				return err
			}
		case idSubStreamsInfo:
			if err := parseSubStreamsInfo(r, plan); err != nil {
				return err
			}
		case idEnd:
			return nil
		default:
			return errz.NewArchiveError("unexpected id in MainStreamsInfo", nil)
		}
	}
}

func parsePackInfo(r *bytes.Reader, plan *Plan) error {
	if _, err := sevenzio.DecodeNumber(r); err != nil { // pack-data start offset
		return errz.NewArchiveError("read pack info offset", err)
	}
	numStreams, err := sevenzio.DecodeNumber(r)
	if err != nil {
		return errz.NewArchiveError("read num pack streams", err)
	}

	for {
		id, err := sevenzio.DecodeNumber(r)
		if err != nil {
			return errz.NewArchiveError("read pack info property id", err)
		}
		switch id {
		case idSize:
			var total int64
			for i := uint64(0); i < numStreams; i++ {
				size, err := sevenzio.DecodeNumber(r)
				if err != nil {
					return errz.NewArchiveError("read pack stream size", err)
				}
				total += int64(size)
			}
			plan.PackStreamSize = total
		case idEnd:
			return nil
		default:
			return errz.NewArchiveError("unexpected id in PackInfo", nil)
		}
	}
}

func parseUnpackInfo(r *bytes.Reader, plan *Plan) error {
	id, err := sevenzio.DecodeNumber(r)
	if err != nil || id != idFolder {
		return errz.NewArchiveError("expected ID_Folder", err)
	}
	if _, err := sevenzio.DecodeNumber(r); err != nil { // number of folders
		return errz.NewArchiveError("read num folders", err)
	}
	external, err := r.ReadByte()
	if err != nil || external != 0 {
		return errz.NewArchiveError("external folder data not supported", err)
	}

	numCoders, err := sevenzio.DecodeNumber(r)
	if err != nil {
		return errz.NewArchiveError("read num coders", err)
	}

	if numCoders == 1 {
		if err := parseSingleCoder(r, plan); err != nil {
			return err
		}
	} else if numCoders == 2 {
		if err := parseEncryptedCoders(r, plan); err != nil {
			return err
		}
		// one bind pair
		if _, err := sevenzio.DecodeNumber(r); err != nil {
			return errz.NewArchiveError("read bind pair in-index", err)
		}
		if _, err := sevenzio.DecodeNumber(r); err != nil {
			return errz.NewArchiveError("read bind pair out-index", err)
		}
	} else {
		return errz.NewArchiveError("unsupported folder coder count", nil)
	}

	id, err = sevenzio.DecodeNumber(r)
	if err != nil || id != idCodersUnpackSize {
		return errz.NewArchiveError("expected ID_CodersUnpackSize", err)
	}
	if plan.AES == nil {
		total, err := sevenzio.DecodeNumber(r)
		if err != nil {
			return errz.NewArchiveError("read folder unpack size", err)
		}
		plan.FolderUnpackTotal = int64(total)
	} else {
		aesSize, err := sevenzio.DecodeNumber(r)
		if err != nil {
			return errz.NewArchiveError("read aes coder unpack size", err)
		}
		plan.AESCompressedSize = int64(aesSize)
		total, err := sevenzio.DecodeNumber(r)
		if err != nil {
			return errz.NewArchiveError("read folder unpack size", err)
		}
		plan.FolderUnpackTotal = int64(total)
	}

	id, err = sevenzio.DecodeNumber(r)
	if err != nil || id != idCRC {
		return errz.NewArchiveError("expected ID_CRC", err)
	}
	allDefined, err := r.ReadByte()
	if err != nil || allDefined != 1 {
		return errz.NewArchiveError("folder crc not marked defined", err)
	}
	var crcBytes [4]byte
	if _, err := r.Read(crcBytes[:]); err != nil {
		return errz.NewArchiveError("read folder crc", err)
	}
	plan.FolderUnpackCRC = binary.LittleEndian.Uint32(crcBytes[:])

	id, err = sevenzio.DecodeNumber(r)
	if err != nil || id != idEnd {
		return errz.NewArchiveError("expected ID_End for UnpackInfo", err)
	}
	return nil
}

func parseSingleCoder(r *bytes.Reader, plan *Plan) error {
	flags, err := r.ReadByte()
	if err != nil {
		return errz.NewArchiveError("read coder flags", err)
	}
	idLen := int(flags & 0x0F)
	idBytes := make([]byte, idLen)
	if _, err := r.Read(idBytes); err != nil {
		return errz.NewArchiveError("read coder id", err)
	}
	if idLen == 1 && idBytes[0] == coderIDCopy {
		plan.Store = true
		return nil
	}
	if idLen != 1 || idBytes[0] != coderIDLZMA2 {
		return errz.NewArchiveError("expected LZMA2 or Copy coder", nil)
	}
	if flags&0x20 != 0 {
		attrLen, err := sevenzio.DecodeNumber(r)
		if err != nil {
			return errz.NewArchiveError("read coder attr length", err)
		}
		attrs := make([]byte, attrLen)
		if _, err := r.Read(attrs); err != nil {
			return errz.NewArchiveError("read coder attrs", err)
		}
		if len(attrs) != 1 {
			return errz.NewArchiveError("unexpected LZMA2 attr length", nil)
		}
		plan.LZMA2PropByte = attrs[0]
	}
	return nil
}

func parseEncryptedCoders(r *bytes.Reader, plan *Plan) error {
	// coder0: AES
	flags, err := r.ReadByte()
	if err != nil {
		return errz.NewArchiveError("read aes coder flags", err)
	}
	idLen := int(flags & 0x0F)
	idBytes := make([]byte, idLen)
	if _, err := r.Read(idBytes); err != nil {
		return errz.NewArchiveError("read aes coder id", err)
	}
	attrLen, err := sevenzio.DecodeNumber(r)
	if err != nil {
		return errz.NewArchiveError("read aes attr length", err)
	}
	attrs := make([]byte, attrLen)
	if _, err := r.Read(attrs); err != nil {
		return errz.NewArchiveError("read aes attrs", err)
	}
	aes, err := decodeAESProps(attrs)
	if err != nil {
		return err
	}
	plan.AES = aes

	// coder1: LZMA2
	flags, err = r.ReadByte()
	if err != nil {
		return errz.NewArchiveError("read lzma2 coder flags", err)
	}
	idLen = int(flags & 0x0F)
	idBytes = make([]byte, idLen)
	if _, err := r.Read(idBytes); err != nil {
		return errz.NewArchiveError("read lzma2 coder id", err)
	}
	attrLen, err = sevenzio.DecodeNumber(r)
	if err != nil {
		return errz.NewArchiveError("read lzma2 attr length", err)
	}
	attrs = make([]byte, attrLen)
	if _, err := r.Read(attrs); err != nil {
		return errz.NewArchiveError("read lzma2 attrs", err)
	}
	if len(attrs) != 1 {
		return errz.NewArchiveError("unexpected LZMA2 attr length", nil)
	}
	plan.LZMA2PropByte = attrs[0]
	return nil
}

func decodeAESProps(attrs []byte) (*AESCoderProps, error) {
	if len(attrs) < 1 {
		return nil, errz.NewArchiveError("truncated aes props", nil)
	}
	pos := 0
	saltLen := int(attrs[pos])
	pos++
	if pos+saltLen > len(attrs) {
		return nil, errz.NewArchiveError("truncated aes salt", nil)
	}
	salt := attrs[pos : pos+saltLen]
	pos += saltLen

	if pos >= len(attrs) {
		return nil, errz.NewArchiveError("truncated aes props", nil)
	}
	ivLen := int(attrs[pos])
	pos++
	if pos+ivLen > len(attrs) {
		return nil, errz.NewArchiveError("truncated aes iv", nil)
	}
	iv := attrs[pos : pos+ivLen]
	pos += ivLen

	if pos+4 > len(attrs) {
		return nil, errz.NewArchiveError("truncated aes iteration count", nil)
	}
	iterations := binary.LittleEndian.Uint32(attrs[pos : pos+4])

	return &AESCoderProps{Salt: append([]byte{}, salt...), IV: append([]byte{}, iv...), Iterations: iterations}, nil
}

func parseSubStreamsInfo(r *bytes.Reader, plan *Plan) error {
	var numStreams uint64 = 1
	var sizes []int64

	for {
		id, err := sevenzio.DecodeNumber(r)
		if err != nil {
			return errz.NewArchiveError("read substreamsinfo id", err)
		}
		switch id {
		case idNumUnpackStream:
			numStreams, err = sevenzio.DecodeNumber(r)
			if err != nil {
				return errz.NewArchiveError("read num unpack streams", err)
			}
		case idSize:
			sizes = make([]int64, 0, numStreams)
			var sum int64
			for i := uint64(0); i+1 < numStreams; i++ {
				size, err := sevenzio.DecodeNumber(r)
				if err != nil {
					return errz.NewArchiveError("read substream size", err)
				}
				sizes = append(sizes, int64(size))
				sum += int64(size)
			}
			if numStreams > 0 {
				sizes = append(sizes, plan.FolderUnpackTotal-sum)
			}
		case idCRC:
			allDefined, err := r.ReadByte()
			if err != nil || allDefined != 1 {
				return errz.NewArchiveError("substream crc not marked defined", err)
			}
			crcs := make([]uint32, numStreams)
			for i := range crcs {
				var b [4]byte
				if _, err := r.Read(b[:]); err != nil {
					return errz.NewArchiveError("read substream crc", err)
				}
				crcs[i] = binary.LittleEndian.Uint32(b[:])
			}
			plan.PerFileCRCs = crcs
		case idEnd:
			if sizes == nil && numStreams == 1 {
				sizes = []int64{plan.FolderUnpackTotal}
			}
			plan.PerFileSizes = sizes
			if plan.PerFileCRCs == nil && numStreams == 1 {
				// A single-substream folder's CRC record is omitted on
				// write: its digest is already the folder CRC UnpackInfo
				// defined.
				plan.PerFileCRCs = []uint32{plan.FolderUnpackCRC}
			}
			return nil
		default:
			return errz.NewArchiveError("unexpected id in SubStreamsInfo", nil)
		}
	}
}

func parseFilesInfo(r *bytes.Reader, plan *Plan) error {
	numFiles64, err := sevenzio.DecodeNumber(r)
	if err != nil {
		return errz.NewArchiveError("read num files", err)
	}
	numFiles := int(numFiles64)

	files := make([]FileEntry, numFiles)
	var emptyStreamBits []byte
	var emptyFileBits []byte
	var names []string
	var mtimes []time.Time
	var hasMTime []bool
	var attribs []uint32

	for {
		id, err := sevenzio.DecodeNumber(r)
		if err != nil {
			return errz.NewArchiveError("read FilesInfo property id", err)
		}
		if id == idEnd {
			break
		}

		size, err := sevenzio.DecodeNumber(r)
		if err != nil {
			return errz.NewArchiveError("read FilesInfo property size", err)
		}
		payload := make([]byte, size)
		if _, err := r.Read(payload); err != nil {
			return errz.NewArchiveError("read FilesInfo property payload", err)
		}

		switch id {
		case idEmptyStream:
			emptyStreamBits = payload
		case idEmptyFile:
			emptyFileBits = payload
		case idName:
			names, err = decodeNames(payload, numFiles)
			if err != nil {
				return err
			}
		case idMTime:
			mtimes, hasMTime, err = decodeTimes(payload, numFiles)
			if err != nil {
				return err
			}
		case idAttrib:
			attribs, err = decodeAttribs(payload, numFiles)
			if err != nil {
				return err
			}
		}
	}

	emptyStreamIdx := 0
	for i := 0; i < numFiles; i++ {
		isEmptyStream := bitSet(emptyStreamBits, i)
		files[i].IsEmptyStream = isEmptyStream
		if isEmptyStream {
			files[i].IsEmptyFile = bitSet(emptyFileBits, emptyStreamIdx)
			emptyStreamIdx++
		}
		if names != nil {
			files[i].Name = names[i]
		}
		if attribs != nil {
			files[i].Mode = ModeForAttributes(attribs[i])
		}
		if hasMTime != nil {
			files[i].HasModTime = hasMTime[i]
			files[i].ModTime = mtimes[i]
		}
	}

	plan.Files = files
	return nil
}

func bitSet(bits []byte, i int) bool {
	if bits == nil {
		return false
	}
	byteIdx := i / 8
	if byteIdx >= len(bits) {
		return false
	}
	return bits[byteIdx]&(0x80>>uint(i%8)) != 0
}

func decodeNames(payload []byte, numFiles int) ([]string, error) {
	if len(payload) < 1 {
		return nil, errz.NewArchiveError("empty names payload", nil)
	}
	data := payload[1:] // skip external byte

	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	names := make([]string, 0, numFiles)
	start := 0
	for i := 0; i+1 < len(data); i += 2 {
		if data[i] == 0 && data[i+1] == 0 {
			raw := data[start:i]
			decoded, err := dec.Bytes(raw)
			if err != nil {
				return nil, errz.NewArchiveError("decode utf-16le name", err)
			}
			names = append(names, string(decoded))
			start = i + 2
		}
	}
	return names, nil
}

func decodeTimes(payload []byte, numFiles int) ([]time.Time, []bool, error) {
	if len(payload) < 2 {
		return nil, nil, errz.NewArchiveError("truncated mtime property", nil)
	}
	allDefined := payload[0]
	pos := 1

	defined := make([]bool, numFiles)
	if allDefined == 1 {
		for i := range defined {
			defined[i] = true
		}
	} else {
		nbytes := (numFiles + 7) / 8
		if pos+nbytes > len(payload) {
			return nil, nil, errz.NewArchiveError("truncated mtime definedness bits", nil)
		}
		bits := payload[pos : pos+nbytes]
		pos += nbytes
		for i := range defined {
			defined[i] = bitSet(bits, i)
		}
	}

	pos++ // external byte

	times := make([]time.Time, numFiles)
	for i := 0; i < numFiles; i++ {
		if !defined[i] {
			continue
		}
		if pos+8 > len(payload) {
			return nil, nil, errz.NewArchiveError("truncated mtime value", nil)
		}
		ft := binary.LittleEndian.Uint64(payload[pos : pos+8])
		pos += 8
		times[i] = fileTimeToTime(ft)
	}

	return times, defined, nil
}

func decodeAttribs(payload []byte, numFiles int) ([]uint32, error) {
	if len(payload) < 2 {
		return nil, errz.NewArchiveError("truncated attrib property", nil)
	}
	pos := 2 // allDefined(1) + external(1); attribs are always written all-defined/non-external

	attribs := make([]uint32, numFiles)
	for i := 0; i < numFiles; i++ {
		if pos+4 > len(payload) {
			return nil, errz.NewArchiveError("truncated attrib value", nil)
		}
		attribs[i] = binary.LittleEndian.Uint32(payload[pos : pos+4])
		pos += 4
	}
	return attribs, nil
}

func fileTimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	unixNano := (int64(ft) - windowsEpochDelta100ns) * 100
	return time.Unix(0, unixNano).UTC()
}
