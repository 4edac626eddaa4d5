package mirage

import (
	"encoding/binary"
	"fmt"
)

// Kind identifies a container header variant.
type Kind uint8

const (
	KindStandard Kind = iota
	KindSampleChunkV1
	KindSampleChunkV2
)

func (k Kind) String() string {
	switch k {
	case KindStandard:
		return "standard"
	case KindSampleChunkV1:
		return "sample-chunk-v1"
	case KindSampleChunkV2:
		return "sample-chunk-v2"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind maps a name ("standard", "v1", "v2" or a String form) to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "standard", "std":
		return KindStandard, true
	case "v1", "sample-chunk-v1":
		return KindSampleChunkV1, true
	case "v2", "sample-chunk-v2":
		return KindSampleChunkV2, true
	default:
		return 0, false
	}
}

// StandardHeader is the 0x18-byte header of a standard container. Offsets are
// relative to the header start.
type StandardHeader struct {
	FileSize          uint32
	Version           uint32
	DataSize          uint32
	DataOffset        uint32
	OffsetTableOffset uint32
	EOFOffset         uint32
}

// SampleChunkHeader is the 16-byte header shared by both sample-chunk variants.
// Tag holds the magic for v2 and the data version for v1.
type SampleChunkHeader struct {
	Flags             NodeFlags
	FileSize          uint32
	Tag               uint32
	OffsetTableOffset uint32
	OffsetCount       uint32
}

func decodeStandardHeader(b []byte, o binary.ByteOrder) (StandardHeader, bool) {
	if len(b) < StandardHeaderSize {
		return StandardHeader{}, false
	}
	return StandardHeader{
		FileSize:          o.Uint32(b[0:]),
		Version:           o.Uint32(b[4:]),
		DataSize:          o.Uint32(b[8:]),
		DataOffset:        o.Uint32(b[12:]),
		OffsetTableOffset: o.Uint32(b[16:]),
		EOFOffset:         o.Uint32(b[20:]),
	}, true
}

func encodeStandardHeader(b []byte, o binary.ByteOrder, h StandardHeader) bool {
	if len(b) < StandardHeaderSize {
		return false
	}
	o.PutUint32(b[0:], h.FileSize)
	o.PutUint32(b[4:], h.Version)
	o.PutUint32(b[8:], h.DataSize)
	o.PutUint32(b[12:], h.DataOffset)
	o.PutUint32(b[16:], h.OffsetTableOffset)
	o.PutUint32(b[20:], h.EOFOffset)
	return true
}

func decodeSampleChunkHeader(b []byte, o binary.ByteOrder) (SampleChunkHeader, bool) {
	if len(b) < SampleChunkHeaderSize {
		return SampleChunkHeader{}, false
	}
	flags, size := splitWord(o.Uint32(b[0:]))
	return SampleChunkHeader{
		Flags:             flags,
		FileSize:          size,
		Tag:               o.Uint32(b[4:]),
		OffsetTableOffset: o.Uint32(b[8:]),
		OffsetCount:       o.Uint32(b[12:]),
	}, true
}

func encodeSampleChunkHeader(b []byte, o binary.ByteOrder, h SampleChunkHeader) bool {
	if len(b) < SampleChunkHeaderSize {
		return false
	}
	o.PutUint32(b[0:], joinWord(h.Flags, h.FileSize))
	o.PutUint32(b[4:], h.Tag)
	o.PutUint32(b[8:], h.OffsetTableOffset)
	o.PutUint32(b[12:], h.OffsetCount)
	return true
}

// Detect identifies the header variant and byte order of an unfixed container.
//
// The variant is not tagged explicitly; it is read from the top bits of the
// first word. Since the byte order is unknown until the variant is known, each
// order is tried in turn (big-endian first) and accepted only if the whole
// header validates against the data.
func Detect(data []byte) (Kind, binary.ByteOrder, error) {
	if len(data) < SampleChunkHeaderSize {
		return 0, nil, fmt.Errorf("%w: %d bytes is smaller than any header", ErrCorruptContainer, len(data))
	}
	for _, o := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		if k, ok := detectOrder(data, o); ok {
			return k, o, nil
		}
	}
	return 0, nil, fmt.Errorf("%w: unrecognized header", ErrCorruptContainer)
}

func detectOrder(data []byte, o binary.ByteOrder) (Kind, bool) {
	flags, _ := splitWord(o.Uint32(data))
	if flags&FlagRoot == 0 {
		h, ok := decodeStandardHeader(data, o)
		return KindStandard, ok && h.validate(len(data)) == nil
	}
	kind := KindSampleChunkV2
	if flags&FlagLeaf != 0 {
		kind = KindSampleChunkV1
	}
	h, ok := decodeSampleChunkHeader(data, o)
	return kind, ok && h.validate(kind, len(data)) == nil
}

// validate checks header fields against the n bytes of the container.
func (h StandardHeader) validate(n int) error {
	size := uint64(h.FileSize)
	if size < StandardHeaderSize || size > uint64(n) {
		return fmt.Errorf("%w: file size %d for %d bytes", ErrCorruptContainer, h.FileSize, n)
	}
	dataEnd := uint64(h.DataOffset) + uint64(h.DataSize)
	if h.DataOffset < StandardHeaderSize || dataEnd > size {
		return fmt.Errorf("%w: data [%d,+%d) outside file", ErrCorruptContainer, h.DataOffset, h.DataSize)
	}
	if h.OffsetTableOffset < StandardHeaderSize || uint64(h.OffsetTableOffset)+4 > size {
		return fmt.Errorf("%w: offset table at %d outside file", ErrCorruptContainer, h.OffsetTableOffset)
	}
	if uint64(h.EOFOffset) > size {
		return fmt.Errorf("%w: eof offset %d outside file", ErrCorruptContainer, h.EOFOffset)
	}
	return nil
}

func (h SampleChunkHeader) validate(kind Kind, n int) error {
	size := uint64(h.FileSize)
	if size < SampleChunkHeaderSize || size > uint64(n) {
		return fmt.Errorf("%w: file size %d for %d bytes", ErrCorruptContainer, h.FileSize, n)
	}
	if h.Flags&FlagRoot == 0 {
		return fmt.Errorf("%w: sample chunk without root flag", ErrCorruptContainer)
	}
	if kind == KindSampleChunkV2 && h.Tag != SampleChunkMagic {
		return fmt.Errorf("%w: magic %#08x", ErrCorruptContainer, h.Tag)
	}
	tableEnd := uint64(h.OffsetTableOffset) + 4*uint64(h.OffsetCount)
	if h.OffsetTableOffset < SampleChunkHeaderSize || tableEnd > size {
		return fmt.Errorf("%w: offset table [%d,+%d entries) outside file", ErrCorruptContainer, h.OffsetTableOffset, h.OffsetCount)
	}
	return nil
}

// StandardHeaderWriter is the save-time half of a standard header: Start
// reserves the header, FinishWrite emits the offset table and patches it.
type StandardHeaderWriter struct {
	pos int64
}

// StartStandardHeader reserves a standard header at the current position.
func StartStandardHeader(s *Stream) (*StandardHeaderWriter, error) {
	w := &StandardHeaderWriter{pos: s.Tell()}
	if err := s.WriteNulls(StandardHeaderSize); err != nil {
		return nil, err
	}
	return w, nil
}

// DataBase returns the position standard-container offsets are relative to.
func (w *StandardHeaderWriter) DataBase() int64 { return w.pos + StandardHeaderSize }

// FinishWrite writes the offset table and optional file name after the data,
// then patches the header.
func (w *StandardHeaderWriter) FinishWrite(s *Stream, version uint32, ot *OffsetTable, name string) error {
	if err := s.SeekEnd(); err != nil {
		return err
	}
	if err := s.Pad(4); err != nil {
		return err
	}
	dataPos := w.DataBase()
	tablePos := s.Tell()
	if err := ot.write(s, dataPos, true); err != nil {
		return err
	}
	eofPos := s.Tell()
	if name != "" {
		if err := s.WriteString(name); err != nil {
			return err
		}
		if err := s.Pad(4); err != nil {
			return err
		}
	}
	end := s.Tell()
	if end-w.pos > MaxContainerSize {
		return fmt.Errorf("%w: container of %d bytes", ErrUnsupportedData, end-w.pos)
	}

	h := StandardHeader{
		FileSize:          uint32(end - w.pos),
		Version:           version,
		DataSize:          uint32(tablePos - dataPos),
		DataOffset:        StandardHeaderSize,
		OffsetTableOffset: uint32(tablePos - w.pos),
		EOFOffset:         uint32(eofPos - w.pos),
	}
	var raw [StandardHeaderSize]byte
	if !encodeStandardHeader(raw[:], s.Order(), h) {
		return fmt.Errorf("mirage: encode standard header failed")
	}
	return s.patch(w.pos, raw[:])
}

// SampleChunkWriter is the save-time half of both sample-chunk headers.
type SampleChunkWriter struct {
	kind Kind
	pos  int64
}

// StartSampleChunk reserves a sample-chunk header at the current position.
func StartSampleChunk(s *Stream, kind Kind) (*SampleChunkWriter, error) {
	if kind != KindSampleChunkV1 && kind != KindSampleChunkV2 {
		return nil, fmt.Errorf("mirage: %s is not a sample-chunk kind", kind)
	}
	w := &SampleChunkWriter{kind: kind, pos: s.Tell()}
	if err := s.WriteNulls(SampleChunkHeaderSize); err != nil {
		return nil, err
	}
	return w, nil
}

// Base returns the position sample-chunk offsets are relative to.
func (w *SampleChunkWriter) Base() int64 { return w.pos }

// FinishWrite writes the offset table after the body and patches the header.
// For v1 the tag is the data version; v2 always carries the magic.
func (w *SampleChunkWriter) FinishWrite(s *Stream, version uint32, ot *OffsetTable) error {
	if err := s.SeekEnd(); err != nil {
		return err
	}
	if err := s.Pad(4); err != nil {
		return err
	}
	tablePos := s.Tell()
	if err := ot.write(s, w.pos, false); err != nil {
		return err
	}
	end := s.Tell()
	if end-w.pos > MaxContainerSize {
		return fmt.Errorf("%w: container of %d bytes", ErrUnsupportedData, end-w.pos)
	}

	h := SampleChunkHeader{
		Flags:             FlagRoot,
		FileSize:          uint32(end - w.pos),
		Tag:               SampleChunkMagic,
		OffsetTableOffset: uint32(tablePos - w.pos),
		OffsetCount:       uint32(ot.Len()),
	}
	if w.kind == KindSampleChunkV1 {
		h.Flags |= FlagLeaf
		h.Tag = version
	}
	var raw [SampleChunkHeaderSize]byte
	if !encodeSampleChunkHeader(raw[:], s.Order(), h) {
		return fmt.Errorf("mirage: encode sample chunk header failed")
	}
	return s.patch(w.pos, raw[:])
}

// patch overwrites bytes at pos and returns to the end of the stream.
func (s *Stream) patch(pos int64, p []byte) error {
	if err := s.Seek(pos); err != nil {
		return err
	}
	if _, err := s.Write(p); err != nil {
		return err
	}
	return s.SeekEnd()
}
