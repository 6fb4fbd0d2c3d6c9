package codec

import (
	"encoding/json"
	"fmt"
)

// NewJSONCodec creates a new codec using json encoding
func NewJSONCodec() ISnapshotCodec {
	return &jsonCodecImpl{}
}

// jsonCodecImpl implements the ISnapshotCodec interface using json encoding
type jsonCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ISnapshotCodec)
// --------------------------------------------------------------------------

func (j jsonCodecImpl) Serialize(batch Batch) ([]byte, error) {
	if batch == nil {
		batch = Batch{}
	}
	return json.Marshal(batch)
}

func (j jsonCodecImpl) Deserialize(b []byte, batch *Batch) error {
	if len(b) == 0 {
		return fmt.Errorf("empty blob")
	}
	return json.Unmarshal(b, batch)
}
