package wal

import (
	"encoding/binary"
	"io"
)

// Header layout and framing constants.
const (
	HeaderSize = 24 // fixed header size in bytes
	WALVersion = 1  // current on-disk format version

	// WALMagic is checked first on every read to fail fast on a foreign file.
	WALMagic = 0xDEADBEEF
)

// Entry types this log frames. The catalog log only ever writes
// EntryCatalogBatch records; EntryCheckpointMarker is reserved for a future
// compaction point but unused today.
const (
	EntryCatalogBatch      uint8 = iota + 1 // 1: a published CatalogBatch
	EntryCheckpointMarker                   // 2: reserved
)

// WALHeader is the fixed 24-byte header prefixing every entry.
type WALHeader struct {
	Magic      uint32 // 4 bytes
	Version    uint8  // 1 byte
	EntryType  uint8  // 1 byte
	Reserved   uint16 // 2 bytes (alignment padding)
	LSN        uint64 // 8 bytes (Log Sequence Number)
	PayloadLen uint32 // 4 bytes
	CRC32      uint32 // 4 bytes
}

// WALEntry is one complete framed record: header plus payload.
type WALEntry struct {
	Header  WALHeader
	Payload []byte
}

// Encode serializes the header into buf.
func (h *WALHeader) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.EntryType
	binary.LittleEndian.PutUint16(buf[6:8], h.Reserved)
	binary.LittleEndian.PutUint64(buf[8:16], h.LSN)
	binary.LittleEndian.PutUint32(buf[16:20], h.PayloadLen)
	binary.LittleEndian.PutUint32(buf[20:24], h.CRC32)
}

// Decode deserializes buf into the header.
func (h *WALHeader) Decode(buf []byte) {
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.Version = buf[4]
	h.EntryType = buf[5]
	h.Reserved = binary.LittleEndian.Uint16(buf[6:8])
	h.LSN = binary.LittleEndian.Uint64(buf[8:16])
	h.PayloadLen = binary.LittleEndian.Uint32(buf[16:20])
	h.CRC32 = binary.LittleEndian.Uint32(buf[20:24])
}

// WriteTo writes the entry (header then payload) to w.
func (e *WALEntry) WriteTo(w io.Writer) (int64, error) {
	var headerBuf [HeaderSize]byte
	e.Header.Encode(headerBuf[:])

	n, err := w.Write(headerBuf[:])
	if err != nil {
		return int64(n), err
	}

	m, err := w.Write(e.Payload)
	return int64(n + m), err
}
