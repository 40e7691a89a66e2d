package maprasterer

import (
	"fmt"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-image/mapview"
)

// ErrorKind identifies which step of an export failed without a fallback
type ErrorKind int

const (
	ErrorKindDynamicImageFetch ErrorKind = iota + 1
	ErrorKindMarkerIconLoad
	ErrorKindCancelled
)

var errorKindNames = map[ErrorKind]string{
	ErrorKindDynamicImageFetch: "dynamic image fetch failed",
	ErrorKindMarkerIconLoad:    "marker icon load failed",
	ErrorKindCancelled:         "export cancelled",
}

func (k ErrorKind) String() string {
	name, ok := errorKindNames[k]
	if !ok {
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
	return name
}

// overlayRootLayerIndex is the LayerIndex reported for the overlay root, which is not part of the layer list
const overlayRootLayerIndex = -1

// LayerError is the cause of an export failure. Use errorsx.Cause on the error returned from Export to get it.
type LayerError struct {
	Kind       ErrorKind
	LayerIndex int
	LayerKind  mapview.LayerKind
	Err        error
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("%s (layer index %d, %s layer): %s", e.Kind, e.LayerIndex, e.LayerKind, e.Err)
}

func (e *LayerError) Unwrap() error {
	return e.Err
}

func newLayerError(kind ErrorKind, err error) errorsx.Error {
	return errorsx.Wrap(&LayerError{Kind: kind, Err: err})
}

// AsLayerError returns the LayerError behind an error returned from Export, if there is one
func AsLayerError(err error) (*LayerError, bool) {
	layerErr, ok := errorsx.Cause(err).(*LayerError)
	return layerErr, ok
}
