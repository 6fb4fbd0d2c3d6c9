package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// NewGOBCodec creates a new codec using Go's binary gob format
func NewGOBCodec() ISnapshotCodec {
	return &gobCodecImpl{}
}

// gobCodecImpl implements the ISnapshotCodec interface using gob encoding
type gobCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ISnapshotCodec)
// --------------------------------------------------------------------------

func (g gobCodecImpl) Serialize(batch Batch) ([]byte, error) {
	if batch == nil {
		batch = Batch{}
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(batch); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobCodecImpl) Deserialize(b []byte, batch *Batch) error {
	if len(b) == 0 {
		return fmt.Errorf("empty blob")
	}
	buf := bytes.NewBuffer(b)
	dec := gob.NewDecoder(buf)
	return dec.Decode(batch)
}
