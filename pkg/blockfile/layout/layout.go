// Package layout defines the on-disk encoding of a block file.
//
// File Format:
//
//	Storage header (4 bytes):
//	  - BlockLen: uint32, little endian
//
//	Blocks (4 + BlockLen bytes each, repeated):
//	  - DataLength: uint32, little endian (0 means the block is free)
//	  - Payload: BlockLen bytes, only the first DataLength are meaningful
//
// The block at index i starts at HeaderSize + i*(BlockHeaderSize+BlockLen).
// BlockLen is written once when the file is created and never changes.
package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the size of the storage header in bytes.
	HeaderSize = 4

	// BlockHeaderSize is the size of the per-block length prefix in bytes.
	BlockHeaderSize = 4

	// MaxBlockLen bounds the payload capacity of a block (1 GiB).
	MaxBlockLen = 1 << 30
)

// ErrCorruptHeader indicates a missing or invalid storage header, a block
// header holding an impossible length, or a file size that does not match
// the header.
var ErrCorruptHeader = errors.New("corrupt header")

// Geometry describes the fixed block shape of one storage file.
type Geometry struct {
	BlockLen uint32
}

// NewGeometry validates blockLen and returns the matching Geometry.
func NewGeometry(blockLen uint32) (Geometry, error) {
	if blockLen == 0 || blockLen > MaxBlockLen {
		return Geometry{}, fmt.Errorf("%w: block length %d out of range (1..%d)", ErrCorruptHeader, blockLen, MaxBlockLen)
	}
	return Geometry{BlockLen: blockLen}, nil
}

// FrameSize is the physical size of one block: length prefix plus payload.
func (g Geometry) FrameSize() int64 {
	return BlockHeaderSize + int64(g.BlockLen)
}

// Offset returns the file offset of the block at index.
func (g Geometry) Offset(index uint32) int64 {
	return HeaderSize + int64(index)*g.FrameSize()
}

// FileSize returns the file size holding exactly blockCount blocks.
func (g Geometry) FileSize(blockCount uint32) int64 {
	return g.Offset(blockCount)
}

// ChunkCount returns how many blocks a payload of n bytes occupies.
func (g Geometry) ChunkCount(n int) int {
	bl := int(g.BlockLen)
	return (n + bl - 1) / bl
}

// Validate checks that fileSize is a header followed by a whole number of
// blocks and returns that number.
func (g Geometry) Validate(fileSize int64) (uint32, error) {
	if fileSize < HeaderSize {
		return 0, fmt.Errorf("%w: file is %d bytes, shorter than the header", ErrCorruptHeader, fileSize)
	}
	body := fileSize - HeaderSize
	if body%g.FrameSize() != 0 {
		return 0, fmt.Errorf("%w: %d bytes after header is not a multiple of block size %d",
			ErrCorruptHeader, body, g.FrameSize())
	}
	count := body / g.FrameSize()
	if count > int64(^uint32(0)) {
		return 0, fmt.Errorf("%w: %d blocks exceed the index space", ErrCorruptHeader, count)
	}
	return uint32(count), nil
}

// EncodeHeader returns the storage header bytes for g.
func EncodeHeader(g Geometry) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf, g.BlockLen)
	return buf
}

// DecodeHeader parses the storage header.
func DecodeHeader(buf []byte) (Geometry, error) {
	if len(buf) < HeaderSize {
		return Geometry{}, fmt.Errorf("%w: header needs %d bytes, got %d", ErrCorruptHeader, HeaderSize, len(buf))
	}
	return NewGeometry(binary.LittleEndian.Uint32(buf))
}

// PutBlockHeader writes dataLength into the first BlockHeaderSize bytes of buf.
func PutBlockHeader(buf []byte, dataLength uint32) {
	binary.LittleEndian.PutUint32(buf, dataLength)
}

// DecodeBlockHeader parses a block length prefix and checks it against g.
func (g Geometry) DecodeBlockHeader(buf []byte) (uint32, error) {
	if len(buf) < BlockHeaderSize {
		return 0, fmt.Errorf("%w: block header needs %d bytes, got %d", ErrCorruptHeader, BlockHeaderSize, len(buf))
	}
	n := binary.LittleEndian.Uint32(buf)
	if n > g.BlockLen {
		return 0, fmt.Errorf("%w: block data length %d exceeds block length %d", ErrCorruptHeader, n, g.BlockLen)
	}
	return n, nil
}

// EncodeFrame fills frame (at least FrameSize bytes) with the block header
// and payload. Bytes after the payload are left untouched unless zeroTail
// is set.
func (g Geometry) EncodeFrame(frame, payload []byte, zeroTail bool) ([]byte, error) {
	if len(payload) > int(g.BlockLen) {
		return nil, fmt.Errorf("payload of %d bytes exceeds block length %d", len(payload), g.BlockLen)
	}
	end := BlockHeaderSize + len(payload)
	if zeroTail {
		end = int(g.FrameSize())
	}
	frame = frame[:end]
	PutBlockHeader(frame, uint32(len(payload)))
	n := copy(frame[BlockHeaderSize:], payload)
	if zeroTail {
		clear(frame[BlockHeaderSize+n:])
	}
	return frame, nil
}
