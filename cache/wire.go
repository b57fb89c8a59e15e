package cache

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/bfqbe/compiler"
)

// Artifact is one cached compilation: the emitted IR plus the statistics
// gathered while producing it.
type Artifact struct {
	Hash    [32]byte       `cbor:"1,keyasint"`
	IR      string         `cbor:"2,keyasint"`
	Stats   compiler.Stats `cbor:"3,keyasint"`
	Created int64          `cbor:"4,keyasint,omitempty"` // unix seconds
}

// cborEncMode is canonical so equal artifacts encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cache: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalArtifact serializes an Artifact to CBOR bytes.
func MarshalArtifact(a *Artifact) ([]byte, error) {
	return cborEncMode.Marshal(a)
}

// UnmarshalArtifact deserializes an Artifact from CBOR bytes.
func UnmarshalArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := cbor.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("cache: unmarshal artifact: %w", err)
	}
	return &a, nil
}
