package cryptoz

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"io"

	"sevenz-forensic/internal/errz"
)

const blockSize = aes.BlockSize // 16

// Pad applies PKCS#7 padding so data becomes a multiple of blockSize,
// always appending at least one byte of padding.
func Pad(data []byte) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(data, padding...)
}

// Unpad strips PKCS#7 padding from a blockSize-aligned buffer. Returns an
// error if the trailing byte does not describe valid padding, which is one
// of the two ways a wrong password surfaces (the other being a per-file CRC
// mismatch after decryption).
func Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errz.ErrWrongPassword
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, errz.ErrWrongPassword
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errz.ErrWrongPassword
		}
	}
	return data[:len(data)-padLen], nil
}

// EncryptWriter wraps a sink with AES-256-CBC encryption. Writes pass
// through a 16-byte-aligned internal buffer: complete blocks are encrypted
// and flushed immediately, and any leftover bytes wait for Finish, which
// applies PKCS#7 padding and emits the final ciphertext block(s).
type EncryptWriter struct {
	sink    io.Writer
	block   cipher.Block
	mode    cipher.BlockMode
	pending []byte
}

// NewEncryptWriter constructs an encrypting sink from a derived key and a
// random IV. Both key and iv must be 32 and 16 bytes respectively.
func NewEncryptWriter(sink io.Writer, key, iv []byte) (*EncryptWriter, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errz.Wrap(err, "aes: new cipher")
	}
	return &EncryptWriter{
		sink: sink,
		block: block,
		mode:  cipher.NewCBCEncrypter(block, iv),
	}, nil
}

// Write buffers input and encrypts it one block at a time as full blocks
// become available.
func (w *EncryptWriter) Write(p []byte) (int, error) {
	total := len(p)
	w.pending = append(w.pending, p...)

	full := len(w.pending) - len(w.pending)%blockSize
	if full > 0 {
		ct := make([]byte, full)
		w.mode.CryptBlocks(ct, w.pending[:full])
		if _, err := w.sink.Write(ct); err != nil {
			return 0, errz.Wrap(err, "aes: write ciphertext")
		}
		w.pending = w.pending[full:]
	}

	return total, nil
}

// Finish pads the remaining buffered bytes and emits the final block(s).
func (w *EncryptWriter) Finish() error {
	padded := Pad(w.pending)
	ct := make([]byte, len(padded))
	w.mode.CryptBlocks(ct, padded)
	w.pending = nil
	if _, err := w.sink.Write(ct); err != nil {
		return errz.Wrap(err, "aes: write final ciphertext")
	}
	return nil
}

// DecryptReader wraps a source with AES-256-CBC decryption. Because PKCS#7
// padding can only be validated once the final block is known, DecryptReader
// buffers one block behind the read cursor and only releases it once a
// further block (or EOF) confirms it isn't the last.
type DecryptReader struct {
	src     io.Reader
	block   cipher.Block
	mode    cipher.BlockMode
	lookahead []byte // one ciphertext block, decrypted, held back
	out     []byte   // decoded bytes ready to hand to the caller
	eof     bool
}

// NewDecryptReader constructs a decrypting source from a derived key and IV.
func NewDecryptReader(src io.Reader, key, iv []byte) (*DecryptReader, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errz.Wrap(err, "aes: new cipher")
	}
	return &DecryptReader{
		src:   src,
		block: block,
		mode:  cipher.NewCBCDecrypter(block, iv),
	}, nil
}

func (r *DecryptReader) fillOneBlock() ([]byte, error) {
	buf := make([]byte, blockSize)
	n, err := io.ReadFull(r.src, buf)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err == io.ErrUnexpectedEOF || (err == nil && n != blockSize) {
		return nil, errz.NewDecompressionError("aes: truncated ciphertext block", err)
	}
	if err != nil {
		return nil, errz.Wrap(err, "aes: read ciphertext")
	}

	pt := make([]byte, blockSize)
	r.mode.CryptBlocks(pt, buf)
	return pt, nil
}

// Read returns decrypted plaintext bytes, stripping PKCS#7 padding
// transparently once the final block is identified.
func (r *DecryptReader) Read(p []byte) (int, error) {
	for len(r.out) == 0 {
		if r.eof {
			return 0, io.EOF
		}

		if r.lookahead == nil {
			block, err := r.fillOneBlock()
			if err == io.EOF {
				return 0, errz.ErrWrongPassword // no blocks at all
			}
			if err != nil {
				return 0, err
			}
			r.lookahead = block
		}

		next, err := r.fillOneBlock()
		if err == io.EOF {
			unpadded, uerr := Unpad(r.lookahead)
			if uerr != nil {
				return 0, uerr
			}
			r.out = unpadded
			r.lookahead = nil
			r.eof = true
			continue
		}
		if err != nil {
			return 0, err
		}

		r.out = append(r.out, r.lookahead...)
		r.lookahead = next
	}

	n := copy(p, r.out)
	r.out = r.out[n:]
	return n, nil
}
