package model

import (
	"errors"
	"fmt"
	"math"
)

// LastLayer is the End sentinel meaning "the document's last layer".
const LastLayer = math.MaxUint32

// ErrInvalidRange is wrapped by every range resolution failure.
var ErrInvalidRange = errors.New("invalid layer range")

// LayerRange selects layers Start..End, both inclusive.
type LayerRange struct {
	Start uint32
	End   uint32
}

// WholeDocument is the range every command uses unless told otherwise.
func WholeDocument() LayerRange {
	return LayerRange{Start: 0, End: LastLayer}
}

// Count is End-Start+1, or 0 for an inverted range.
func (r LayerRange) Count() uint32 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether index i falls inside the range.
func (r LayerRange) Contains(i uint32) bool {
	return i >= r.Start && i <= r.End
}

// Resolve replaces the LastLayer sentinel with layerCount-1 and checks the
// bounds against a document holding layerCount layers.
func (r LayerRange) Resolve(layerCount uint32) (LayerRange, error) {
	if layerCount == 0 {
		return LayerRange{}, fmt.Errorf("%w: document has no layers", ErrInvalidRange)
	}
	if r.End == LastLayer {
		r.End = layerCount - 1
	}
	if r.End >= layerCount {
		return LayerRange{}, fmt.Errorf("%w: layer end %d is past the last layer %d", ErrInvalidRange, r.End, layerCount-1)
	}
	if r.Start > r.End {
		return LayerRange{}, fmt.Errorf("%w: layer start %d is after layer end %d", ErrInvalidRange, r.Start, r.End)
	}
	return r, nil
}

func (r LayerRange) String() string {
	if r.End == LastLayer {
		return fmt.Sprintf("[%d..last]", r.Start)
	}
	return fmt.Sprintf("[%d..%d]", r.Start, r.End)
}
