// Package compress is the codec collaborator used to load and store
// compressed containers. Codecs are opaque transforms: the caller supplies the
// exact decompressed length, as archive tables do.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
)

// Kind selects a codec.
type Kind uint8

const (
	None Kind = iota
	Zstd
	Deflate
)

var ErrUnknownKind = errors.New("compress: unknown codec")

// ErrSizeMismatch is returned when decompressed output differs from the
// declared length.
var ErrSizeMismatch = errors.New("compress: decompressed size mismatch")

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case Deflate:
		return "deflate"
	default:
		return fmt.Sprintf("codec(%d)", uint8(k))
	}
}

// ParseKind maps a codec name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "none":
		return None, nil
	case "zstd":
		return Zstd, nil
	case "deflate", "zlib":
		return Deflate, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

var decoders = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil
		}
		return dec
	},
}

var encoders = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil
		}
		return enc
	},
}

// Decompress decodes src into exactly dstLen bytes.
func Decompress(kind Kind, src []byte, dstLen int) ([]byte, error) {
	if dstLen < 0 {
		return nil, fmt.Errorf("compress: negative length %d", dstLen)
	}
	var (
		out []byte
		err error
	)
	switch kind {
	case None:
		out = bytes.Clone(src)
	case Zstd:
		out, err = decodeZstd(src, dstLen)
	case Deflate:
		out, err = decodeDeflate(src, dstLen)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("compress: %s decode: %w", kind, err)
	}
	if len(out) != dstLen {
		return nil, fmt.Errorf("%w: %s produced %d bytes, want %d", ErrSizeMismatch, kind, len(out), dstLen)
	}
	return out, nil
}

// Compress encodes src with kind.
func Compress(kind Kind, src []byte) ([]byte, error) {
	switch kind {
	case None:
		return bytes.Clone(src), nil
	case Zstd:
		enc, ok := encoders.Get().(*zstd.Encoder)
		if !ok {
			return nil, errors.New("compress: zstd encoder unavailable")
		}
		defer encoders.Put(enc)
		return enc.EncodeAll(src, make([]byte, 0, len(src)/2)), nil
	case Deflate:
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(src); err != nil {
			return nil, fmt.Errorf("compress: deflate encode: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("compress: deflate encode: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

func decodeZstd(src []byte, dstLen int) ([]byte, error) {
	dec, ok := decoders.Get().(*zstd.Decoder)
	if !ok {
		return nil, errors.New("zstd decoder unavailable")
	}
	defer decoders.Put(dec)
	return dec.DecodeAll(src, make([]byte, 0, dstLen))
}

func decodeDeflate(src []byte, dstLen int) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(src))
	defer r.Close()
	out := make([]byte, dstLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	// Anything past dstLen is a mismatch, not silently dropped.
	var extra [1]byte
	if n, _ := r.Read(extra[:]); n > 0 {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrSizeMismatch, dstLen)
	}
	return out, nil
}
