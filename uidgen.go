package dicom

import (
	"math/big"

	"github.com/google/uuid"
)

// NewDerivedUID synthesizes a DICOM UID from a freshly generated UUID,
// using the PS3.5 Annex B "2.25." root reserved for UUID-derived UIDs:
// the UUID's 128 bits, read as an unsigned big-endian integer, becomes
// the UID's final decimal component. This is how WriteFileHeader fills in
// MediaStorageSOPInstanceUID when a caller builds a data set from scratch
// and doesn't supply one; SOPInstanceUID is not filled in.
func NewDerivedUID() string {
	id := uuid.New()
	n := new(big.Int).SetBytes(id[:])
	return "2.25." + n.String()
}
