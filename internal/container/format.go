// Package container implements the 7z on-disk layout: signature header,
// packed data region, and the nested end header (StreamsInfo/FilesInfo)
// described in the canonical format. Struct shapes and the attribute
// encoding convention are grounded on the canonical reader's own internal
// representation of those same structures.
package container

import "io/fs"

// Signature is the fixed 6-byte magic that opens every 7z file.
var Signature = [6]byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}

// FormatVersion is the (major, minor) pair this writer emits.
const (
	FormatVersionMajor = 0
	FormatVersionMinor = 4
)

// SignatureHeaderSize is the fixed 32-byte size of the signature header:
// 6 (magic) + 2 (version) + 4 (start-header CRC) + 20 (start header).
const SignatureHeaderSize = 32

// StartHeaderSize is the 20-byte block inside the signature header carrying
// the next-header offset, size, and CRC.
const StartHeaderSize = 20

// End header structural IDs.
const (
	idEnd              = 0x00
	idHeader           = 0x01
	idMainStreamsInfo  = 0x04
	idFilesInfo        = 0x05
	idPackInfo         = 0x06
	idUnpackInfo       = 0x07
	idSubStreamsInfo   = 0x08
	idSize             = 0x09
	idCRC              = 0x0A
	idFolder           = 0x0B
	idCodersUnpackSize = 0x0C
	idNumUnpackStream  = 0x0D
	idEmptyStream      = 0x0E
	idEmptyFile        = 0x0F
	idName             = 0x11
	idMTime            = 0x14
	idAttrib           = 0x15
)

// Coder IDs.
const (
	coderIDCopy         = 0x00 // identity coder, used for Store-level (0) folders
	coderIDLZMA2        = 0x21
	coderIDAES256SHA256 = 0x06F10701 // AES-256-CBC + SHA256 KDF, canonical id
)

// coderFlags for a single-byte codec id with an attribute block attached.
const coderFlagsHasAttrs = 0x21 // low nibble = id length (1), bit 0x20 = has attrs

// Unix and MS-DOS attribute encoding, matching the convention observed in
// the canonical reader: the high bit 0xf0000000 set means the upper 16 bits
// carry a Unix mode; otherwise the low bits are MS-DOS attributes.
const (
	unixAttrFlag = 0xf0000000

	sIFDIR = 0x4000
	sIFREG = 0x8000

	msdosDir      = 0x10
	msdosReadOnly = 0x01
)

// AttributesForMode encodes a fs.FileMode as the Unix-convention attribute
// field this writer uses for every file record.
func AttributesForMode(mode fs.FileMode) uint32 {
	var unixMode uint32
	if mode.IsDir() {
		unixMode = sIFDIR
	} else {
		unixMode = sIFREG
	}
	unixMode |= uint32(mode.Perm())
	// S_IFREG/S_IFDIR already set bits under unixAttrFlag once shifted.
	return unixMode << 16
}

// ModeForAttributes inverts AttributesForMode, matching the canonical
// reader's decoding convention exactly (Unix attributes preferred when the
// high bit is set, MS-DOS attributes otherwise).
func ModeForAttributes(attr uint32) fs.FileMode {
	if attr&unixAttrFlag != 0 {
		return unixModeToFileMode(attr >> 16)
	}
	return msdosModeToFileMode(attr)
}

func unixModeToFileMode(m uint32) fs.FileMode {
	mode := fs.FileMode(m & 0o777)
	if m&0xf000 == sIFDIR {
		mode |= fs.ModeDir
	}
	return mode
}

func msdosModeToFileMode(m uint32) fs.FileMode {
	var mode fs.FileMode
	if m&msdosDir != 0 {
		mode = fs.ModeDir | 0o777
	} else {
		mode = 0o666
	}
	if m&msdosReadOnly != 0 {
		mode &^= 0o222
	}
	return mode
}
