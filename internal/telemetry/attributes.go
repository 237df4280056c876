package telemetry

import "go.opentelemetry.io/otel/attribute"

// Attribute keys recorded on block engine spans.
const (
	AttrPath       = "blockfile.path"
	AttrBlockLen   = "blockfile.block_len"
	AttrBlocks     = "blockfile.blocks"
	AttrBytes      = "blockfile.bytes"
	AttrGrowBlocks = "blockfile.grow_blocks"
	AttrRequestID  = "blockfile.request_id"
	AttrBucket     = "storage.bucket"
	AttrKey        = "storage.key"
)

// Span names, <component>.<operation>.
const (
	SpanEngineOpen     = "engine.open"
	SpanEngineRead     = "engine.read"
	SpanEngineWrite    = "engine.write"
	SpanEngineDelete   = "engine.delete"
	SpanEngineGrow     = "engine.grow"
	SpanEngineSnapshot = "engine.snapshot"
	SpanBatchCycle     = "batch.cycle"
	SpanBackupUpload   = "backup.upload"
)

func Path(p string) attribute.KeyValue { return attribute.String(AttrPath, p) }

func BlockLen(n uint32) attribute.KeyValue { return attribute.Int64(AttrBlockLen, int64(n)) }

func Blocks(n int) attribute.KeyValue { return attribute.Int(AttrBlocks, n) }

func Bytes(n int64) attribute.KeyValue { return attribute.Int64(AttrBytes, n) }

func GrowBlocks(n int) attribute.KeyValue { return attribute.Int(AttrGrowBlocks, n) }

func RequestID(id string) attribute.KeyValue { return attribute.String(AttrRequestID, id) }

func Bucket(b string) attribute.KeyValue { return attribute.String(AttrBucket, b) }

func Key(k string) attribute.KeyValue { return attribute.String(AttrKey, k) }
