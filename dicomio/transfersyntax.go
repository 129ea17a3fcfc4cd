package dicomio

import (
	"encoding/binary"
	"fmt"
	"github.com/medicore/dcmcore/dicomuid"
)

// StandardTransferSyntaxes is the list of standard transfer syntaxes
var StandardTransferSyntaxes = []string{
	dicomuid.ImplicitVRLittleEndian,
	dicomuid.ExplicitVRLittleEndian,
	dicomuid.ExplicitVRBigEndian,
	dicomuid.DeflatedExplicitVRLittleEndian,
}

// CanonicalTransferSyntaxUID return the canonical transfer syntax UID
// (e.g. uid.ExplicitVRLittleEndian or uid.ImplicitVrLittleEndian),
// given an UID that represents any transfer syntax.
//
// An UID outside the closed table of recognised transfer syntaxes is not
// an error (TransferSyntaxUnknown is a recoverable error kind): it
// defaults to ExplicitVRLittleEndian, per spec 4.7 / 7.
func CanonicalTransferSyntaxUID(uid string) (string, error) {

	// defaults are explicit VR, little endian
	switch uid {
	case dicomuid.ImplicitVRLittleEndian,
		dicomuid.ExplicitVRLittleEndian,
		dicomuid.ExplicitVRBigEndian,
		dicomuid.DeflatedExplicitVRLittleEndian:
		return uid, nil
	default:
		e, err := dicomuid.Lookup(uid)
		if err != nil {
			// Unrecognised UID: fall back to (little, explicit) rather than
			// erroring, per the TransferSyntaxUnknown policy.
			return dicomuid.ExplicitVRLittleEndian, nil
		}

		if e.Type != dicomuid.TypeTransferSyntax {
			return "", fmt.Errorf("dicom.CanonicalTransferSyntaxUID: '%s' is not a transfer syntax (is %s)", uid, e.Type)
		}

		// the default is ExplicitVRLittleEndian
		return dicomuid.ExplicitVRLittleEndian, nil
	}
}

// ParseTransferSyntaxUID parses a transfer syntax uid and returns its byteorder
// and implicitVR/explicitVR type. TransferSyntaxUID can be any UID that refers to
// a transfer syntax. It can be, e.g.
// 1.2.840.10008.1.2(it will return (LittleEndian, ImplicitVR))
// or 1.2.840.10008.1.2.4.54(it will return (LittleEndian, ExplicitVR))
func ParseTransferSyntaxUID(uid string) (byteorder binary.ByteOrder, implicit IsImplicitVR, err error) {

	canonical, err := CanonicalTransferSyntaxUID(uid)
	if err != nil {
		return nil, UnknownVR, err
	}

	switch canonical {
	case dicomuid.ImplicitVRLittleEndian:
		return binary.LittleEndian, ImplicitVR, nil
	case dicomuid.DeflatedExplicitVRLittleEndian:
		fallthrough
	case dicomuid.ExplicitVRLittleEndian:
		return binary.LittleEndian, ExplicitVR, nil
	case dicomuid.ExplicitVRBigEndian:
		return binary.BigEndian, ExplicitVR, nil
	default:
		panic(fmt.Sprintf("Invalid transfer syntax: %v, %v", canonical, uid))
	}
}
