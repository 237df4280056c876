package blockfile

import (
	"context"

	"github.com/marmos91/blockfile/pkg/blockfile/layout"
)

// BlockInfo describes one block as stored on disk.
type BlockInfo struct {
	Index      uint32 `json:"index" yaml:"index"`
	Offset     int64  `json:"offset" yaml:"offset"`
	DataLength uint32 `json:"data_length" yaml:"data_length"`

	// Free is the registry's view of the block. It disagrees with
	// DataLength == 0 only if the file was modified behind the engine.
	Free bool `json:"free" yaml:"free"`
}

// Inspect reads the length prefix of every block in ascending order.
func (e *Engine) Inspect(ctx context.Context) (blocks []BlockInfo, err error) {
	if err := e.acquireGate(); err != nil {
		return nil, e.opError(OpInspect, err)
	}
	defer e.gate.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, e.opError(OpInspect, err)
	}

	count := e.blockCount.Load()
	blocks = make([]BlockInfo, 0, count)

	var hdr [layout.BlockHeaderSize]byte
	for index := uint32(0); index < count; index++ {
		off := e.geo.Offset(index)
		if err := readFull(e.dev, hdr[:], off); err != nil {
			return nil, e.blockError(OpInspect, index, err)
		}
		n, err := e.geo.DecodeBlockHeader(hdr[:])
		if err != nil {
			return nil, e.blockError(OpInspect, index, err)
		}
		blocks = append(blocks, BlockInfo{
			Index:      index,
			Offset:     off,
			DataLength: n,
			Free:       e.free.Contains(index),
		})
	}
	return blocks, nil
}
