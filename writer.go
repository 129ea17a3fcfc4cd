package dicom

import (
	"encoding/binary"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/medicore/dcmcore/dicomio"
	"github.com/medicore/dcmcore/dicomtag"
	"github.com/medicore/dcmcore/dicomuid"

	"github.com/sirupsen/logrus"
)

// WriteOptions controls how WriteDataSet encodes a data set.
type WriteOptions struct {
	// AuxVR is a per-tag VR override used the same way ReadOptions.AuxVR
	// is on the read side: it lets a caller force the wire VR for a tag
	// the dictionary doesn't know, which matters most when round-tripping
	// a data set parsed with ReadOptions.ReturnVR set.
	AuxVR map[dicomtag.Tag]string
}

// WriteFileHeader produces a Dicom file header. metaElements[] is be a list of
// elements to be embedded in the header part. Every element in metaElements[]
// must have Tag.Group==2. It must contain at least the following two elements:
// TransferSyntaxUID, MediaStorageSOPClassUID.
// The list may contain other meta elements as long as their Tag.Group==2;
// they are added to the header
//
// MediaStorageSOPInstanceUID is synthesized via NewDerivedUID if missing,
// rather than treated as a hard requirement, since a caller building a
// data set from scratch often has no natural UID to supply.
//
// Errors are reported via e.Error().
//
// Consult the following page for the Dicom file header format
// http://dicom.nema.org/dicom/2013/output/chtml/part10/chapter_7.html
func WriteFileHeader(e *dicomio.Encoder, metaElements []*Element) {
	e.PushTransferSyntax(binary.LittleEndian, dicomio.ExplicitVR)
	defer e.PopTransferSyntax()

	subEncoder := dicomio.NewBytesEncoder(binary.LittleEndian, dicomio.ExplicitVR)

	tagsUsed := make(map[dicomtag.Tag]bool)
	tagsUsed[dicomtag.FileMetaInformationGroupLength] = true

	writeRequiredMetaElement := func(tag dicomtag.Tag, synthesize func() interface{}) {
		if elem, err := FindElementByTag(metaElements, tag); err == nil {
			WriteElement(subEncoder, elem)
		} else if synthesize != nil {
			WriteElement(subEncoder, MustNewElement(tag, synthesize()))
		} else {
			subEncoder.SetErrorf("%v not found in metaElements: %v", dicomtag.DebugString(tag), err)
		}
		tagsUsed[tag] = true
	}

	writeOptionalMetaElement := func(tag dicomtag.Tag, defaultValue interface{}) {
		if elem, err := FindElementByTag(metaElements, tag); err == nil {
			WriteElement(subEncoder, elem)
		} else {
			WriteElement(subEncoder, MustNewElement(tag, defaultValue))
		}
		tagsUsed[tag] = true
	}

	writeOptionalMetaElement(dicomtag.FileMetaInformationVersion, []byte("0 1"))
	writeRequiredMetaElement(dicomtag.MediaStorageSOPClassUID, nil)
	writeRequiredMetaElement(dicomtag.MediaStorageSOPInstanceUID, func() interface{} { return NewDerivedUID() })
	writeRequiredMetaElement(dicomtag.TransferSyntaxUID, nil)
	writeOptionalMetaElement(dicomtag.ImplementationClassUID, dicomuid.ImplementationClassUID)
	writeOptionalMetaElement(dicomtag.ImplementationVersionName, dicomuid.ImplementationVersionName)

	for _, elem := range metaElements {
		if elem.Tag.Group == dicomtag.MetadataGroup {
			if _, ok := tagsUsed[elem.Tag]; !ok {
				WriteElement(subEncoder, elem)
			}
		}
	}

	if subEncoder.Error() != nil {
		e.SetError(subEncoder.Error())
		return
	}

	metaBytes := subEncoder.Bytes()

	e.WriteZeros(128)
	e.WriteString("DICM")

	WriteElement(e, MustNewElement(dicomtag.FileMetaInformationGroupLength, uint32(len(metaBytes))))

	e.WriteBytes(metaBytes)
}

func writeRawItem(e *dicomio.Encoder, data []byte) {
	encodeElementHeader(e, dicomtag.Item, "NA", uint32(len(data)))
	e.WriteBytes(data)
}

func writeBasicOffsetTable(e *dicomio.Encoder, offsets []uint32) {
	byteOrder, _ := e.TransferSyntax()

	subEncoder := dicomio.NewBytesEncoder(byteOrder, dicomio.ImplicitVR)
	for _, offset := range offsets {
		subEncoder.WriteUInt32(offset)
	}

	writeRawItem(e, subEncoder.Bytes())
}

func encodeElementHeader(e *dicomio.Encoder, tag dicomtag.Tag, vr string, vl uint32) {
	dicomio.DoAssert(vl == UndefinedLength || vl%2 == 0, vl)

	e.WriteUInt16(tag.Group)
	e.WriteUInt16(tag.Element)

	_, implicit := e.TransferSyntax()
	if tag.Group == ItemSeqGroup {
		implicit = dicomio.ImplicitVR
	}

	if implicit == dicomio.ExplicitVR {
		dicomio.DoAssert(len(vr) == 2, vr)
		e.WriteString(vr)

		switch vr {
		case "NA", "OB", "OD", "OF", "OL", "OW", "SQ", "UN", "UC", "UR", "UT":
			e.WriteZeros(2) // 2 bytes reserved for future use (0000H)
			e.WriteUInt32(vl)
		default:
			e.WriteUInt16(uint16(vl))
		}
	} else {
		dicomio.DoAssert(implicit == dicomio.ImplicitVR, implicit)
		e.WriteUInt32(vl)
	}
}

// WriteElement encodes one data element, Errors are reported through e.Error().
//
// Requires: Each value in values[] must match the VR of the tag.
// e.g. if tag is for UL, then each value must be uint32
func WriteElement(e *dicomio.Encoder, elem *Element) {
	vr := elem.VR

	entry, err := dicomtag.Find(elem.Tag)

	if vr == "" {
		if err == nil {
			vr = entry.VR
		} else if fv, ok := privateGroupFallbackVR(elem.Tag); ok {
			vr = fv
		} else {
			vr = "UN"
		}
	} else {
		if err == nil && entry.VR != vr {
			if dicomtag.GetVRKind(elem.Tag, entry.VR) != dicomtag.GetVRKind(elem.Tag, vr) {
				e.SetErrorf("dicom.WriteElement: VR value mismatch for tag %s. Element.VR=%v, but DICOM standard defines VR to be %v",
					dicomtag.DebugString(elem.Tag), vr, entry.VR)
				return
			}
			logrus.Warnf("dicom.WriteElement: VR value mismatch for tag %s. Element.VR=%v, but DICOM standard defines VR to be %v (continuing)",
				dicomtag.DebugString(elem.Tag), vr, entry.VR)
		}
	}

	dicomio.DoAssert(vr != "", vr)

	if elem.Tag == dicomtag.PixelData {
		writePixelDataElement(e, elem, vr)
		return
	}

	if vr == "SQ" {
		if elem.UndefinedLength {
			encodeElementHeader(e, elem.Tag, vr, UndefinedLength)

			for _, value := range elem.Value {
				subelem, ok := value.(*Element)
				if !ok || subelem.Tag != dicomtag.Item {
					e.SetErrorf("SQ element must be an Item, not %v", value)
					return
				}
				WriteElement(e, subelem)
			}

			encodeElementHeader(e, dicomtag.SequenceDelimitationItem, "" /* unused */, 0)
		} else {
			sube := dicomio.NewBytesEncoder(e.TransferSyntax())

			for _, value := range elem.Value {
				subelem, ok := value.(*Element)
				if !ok || subelem.Tag != dicomtag.Item {
					e.SetErrorf("SQ element must be an Item, not %v", value)
					return
				}
				WriteElement(sube, subelem)
			}

			if sube.Error() != nil {
				e.SetError(sube.Error())
				return
			}

			data := sube.Bytes()
			encodeElementHeader(e, elem.Tag, vr, uint32(len(data)))
			e.WriteBytes(data)
		}
	} else if vr == "NA" { // item
		if elem.UndefinedLength {
			encodeElementHeader(e, elem.Tag, vr, UndefinedLength)

			for _, value := range elem.Value {
				subelem, ok := value.(*Element)
				if !ok {
					e.SetErrorf("Item values must be a dicom.Element, not %v", value)
					return
				}
				WriteElement(e, subelem)
			}

			encodeElementHeader(e, dicomtag.ItemDelimitationItem, "" /* unused */, 0)
		} else {
			sube := dicomio.NewBytesEncoder(e.TransferSyntax())

			for _, value := range elem.Value {
				subelem, ok := value.(*Element)
				if !ok {
					e.SetErrorf("Item values must be a dicom.Element, not %v", value)
					return
				}
				WriteElement(sube, subelem)
			}

			if sube.Error() != nil {
				e.SetError(sube.Error())
				return
			}

			data := sube.Bytes()
			encodeElementHeader(e, elem.Tag, vr, uint32(len(data)))
			e.WriteBytes(data)
		}
	} else {
		if elem.UndefinedLength {
			e.SetErrorf("dicom.WriteElement: undefined-length encoding is not supported for VR %v: %v", vr, elem)
			return
		}

		sube := dicomio.NewBytesEncoder(e.TransferSyntax())

		switch vr {
		case "US":
			for _, value := range elem.Value {
				v, ok := value.(uint16)
				if !ok {
					e.SetErrorf("%v: expected uint16, got %v", dicomtag.DebugString(elem.Tag), value)
					continue
				}
				sube.WriteUInt16(v)
			}
		case "UL":
			for _, value := range elem.Value {
				v, ok := value.(uint32)
				if !ok {
					e.SetErrorf("%v: expected uint32, got %v", dicomtag.DebugString(elem.Tag), value)
					continue
				}
				sube.WriteUInt32(v)
			}
		case "SL":
			for _, value := range elem.Value {
				v, ok := value.(int32)
				if !ok {
					e.SetErrorf("%v: expected int32, got %v", dicomtag.DebugString(elem.Tag), value)
					continue
				}
				sube.WriteInt32(v)
			}
		case "SS":
			for _, value := range elem.Value {
				v, ok := value.(int16)
				if !ok {
					e.SetErrorf("%v: expected int16, got %v", dicomtag.DebugString(elem.Tag), value)
					continue
				}
				sube.WriteInt16(v)
			}
		case "FL", "OF":
			for _, value := range elem.Value {
				v, ok := value.(float32)
				if !ok {
					e.SetErrorf("%v: expected float32, got %v", dicomtag.DebugString(elem.Tag), value)
					continue
				}
				sube.WriteFloat32(v)
			}
		case "FD", "OD":
			for _, value := range elem.Value {
				v, ok := value.(float64)
				if !ok {
					e.SetErrorf("%v: expected float64, got %v", dicomtag.DebugString(elem.Tag), value)
					continue
				}
				sube.WriteFloat64(v)
			}
		case "AT":
			for _, value := range elem.Value {
				t, ok := value.(dicomtag.Tag)
				if !ok {
					e.SetErrorf("%v: expected dicomtag.Tag, got %v", dicomtag.DebugString(elem.Tag), value)
					continue
				}
				sube.WriteUInt16(t.Group)
				sube.WriteUInt16(t.Element)
			}
		case "OW", "OB", "UN":
			if len(elem.Value) != 1 {
				e.SetErrorf("%v: expected a single value, got %v", dicomtag.DebugString(elem.Tag), elem.Value)
				break
			}
			data, ok := elem.Value[0].([]byte)
			if !ok {
				e.SetErrorf("%v: expected a byte string, got %v", dicomtag.DebugString(elem.Tag), elem.Value[0])
				break
			}
			if vr == "OW" {
				if len(data)%2 != 0 {
					e.SetErrorf("%v: OW requires an even-length byte string, got length %v", dicomtag.DebugString(elem.Tag), len(data))
					break
				}
				d := dicomio.NewBytesDecoder(data, dicomio.NativeByteOrder, dicomio.UnknownVR)
				sube.WriteUInt16Array(d.ReadUInt16Array(len(data) / 2))
				dicomio.DoAssert(d.Finish() == nil, d.Error())
			} else {
				sube.WriteBytes(data)
				if len(data)%2 == 1 {
					sube.WriteByte(0)
				}
			}
		case "DS":
			s := ""
			for i, value := range elem.Value {
				v, ok := value.(float64)
				if !ok {
					e.SetErrorf("%v: expected float64, got %v", dicomtag.DebugString(elem.Tag), value)
					continue
				}
				if i > 0 {
					s += "\\"
				}
				s += strconv.FormatFloat(v, 'g', -1, 64)
			}
			sube.WriteString(s)
			if len(s)%2 == 1 {
				sube.WriteByte(' ')
			}
		case "IS":
			s := ""
			for i, value := range elem.Value {
				v, ok := value.(int32)
				if !ok {
					e.SetErrorf("%v: expected int32, got %v", dicomtag.DebugString(elem.Tag), value)
					continue
				}
				if i > 0 {
					s += "\\"
				}
				s += strconv.FormatInt(int64(v), 10)
			}
			sube.WriteString(s)
			if len(s)%2 == 1 {
				sube.WriteByte(' ')
			}
		case "UI":
			s := ""
			for i, value := range elem.Value {
				substr, ok := value.(string)
				if !ok {
					e.SetErrorf("%v: non-string value", dicomtag.DebugString(elem.Tag))
					continue
				}
				if i > 0 {
					s += "\\"
				}
				s += substr
			}
			sube.WriteString(s)
			if len(s)%2 == 1 {
				sube.WriteByte(0)
			}
		default:
			s := ""
			for i, value := range elem.Value {
				substr, ok := value.(string)
				if !ok {
					e.SetErrorf("%v: non-string value", dicomtag.DebugString(elem.Tag))
					continue
				}
				if i > 0 {
					s += "\\"
				}
				s += substr
			}
			sube.WriteString(s)
			if len(s)%2 == 1 {
				sube.WriteByte(' ')
			}
		}

		if sube.Error() != nil {
			e.SetError(sube.Error())
			return
		}

		data := sube.Bytes()
		encodeElementHeader(e, elem.Tag, vr, uint32(len(data)))
		e.WriteBytes(data)
	}
}

// writePixelDataElement encodes PixelData in either its encapsulated
// (compressed fragments behind a Basic Offset Table) or native (dense,
// uncompressed sample array) form, mirroring the two shapes readPixelData
// decodes.
func writePixelDataElement(e *dicomio.Encoder, elem *Element, vr string) {
	if len(elem.Value) != 1 {
		e.SetErrorf("PixelData element must have exactly one value of type PixelDataInfo")
		return
	}

	image, ok := elem.Value[0].(PixelDataInfo)
	if !ok {
		e.SetErrorf("PixelData element's value must be a PixelDataInfo")
		return
	}

	if _, implicit := e.TransferSyntax(); implicit == dicomio.ImplicitVR && vr != "OW" {
		e.SetErrorf("dicom.WriteElement: implicit-VR PixelData must use VR OW, got %v", vr)
		return
	}

	if !image.Encapsulated && image.Native.BitsAllocated != 8 && image.Native.BitsAllocated != 16 {
		e.SetErrorf("dicom.WriteElement: unsupported pixel format: BitsAllocated=%d (only 8 and 16 are supported)", image.Native.BitsAllocated)
		return
	}

	if image.Encapsulated {
		encodeElementHeader(e, elem.Tag, vr, UndefinedLength)
		writeBasicOffsetTable(e, image.Offsets)
		for _, frame := range image.Frames {
			writeRawItem(e, frame)
		}
		encodeElementHeader(e, dicomtag.SequenceDelimitationItem, "" /* unused */, 0)
		return
	}

	data := flattenNative(image.Native)
	if len(data)%2 == 1 {
		data = append(data, 0)
	}
	encodeElementHeader(e, elem.Tag, vr, uint32(len(data)))
	e.WriteBytes(data)
}

// WriteDataSet writes the dataset into the stream in DICOM file format,
// complete with the magic header and metadata elements.
//
// The transfer syntax (byte order, etc) of the file is determined by the
// TransferSyntax element in "ds". If ds is missing that or a few other
// essential elements, this function returns an error.
//
//	ds := ... read or create dicom.Dataset ...
//	out, err := os.Create("test.dcm")
//	err := dicom.WriteDataSet(out, ds)
func WriteDataSet(out io.Writer, ds *DataSet) error {
	e := dicomio.NewEncoder(out, nil, dicomio.UnknownVR)
	var metaElems []*Element
	for _, elem := range ds.Elements {
		if elem.Tag.Group == dicomtag.MetadataGroup {
			metaElems = append(metaElems, elem)
		}
	}
	WriteFileHeader(e, metaElems)
	if e.Error() != nil {
		return e.Error()
	}
	endian, implicit, err := getTransferSyntax(ds)
	if err != nil {
		return err
	}
	e.PushTransferSyntax(endian, implicit)
	var body []*Element
	for _, elem := range ds.Elements {
		if elem.Tag.Group != dicomtag.MetadataGroup {
			body = append(body, elem)
		}
	}
	// spec.md 4.7 Write step 3: body elements are emitted in ascending tag
	// order regardless of the order they were inserted/parsed in.
	sort.SliceStable(body, func(i, j int) bool {
		return body[i].Tag.Compare(body[j].Tag) < 0
	})
	for _, elem := range body {
		WriteElement(e, elem)
	}
	e.PopTransferSyntax()
	return e.Error()
}

// WriteDataSetWithOptions is WriteDataSet with a VR override map applied
// to each element before encoding, mirroring ReadOptions.AuxVR on the
// write side -- chiefly useful to round-trip a data set that was parsed
// with ReadOptions.ReturnVR against a non-conformant dictionary.
func WriteDataSetWithOptions(out io.Writer, ds *DataSet, options WriteOptions) error {
	if len(options.AuxVR) == 0 {
		return WriteDataSet(out, ds)
	}
	overridden := &DataSet{Elements: make([]*Element, len(ds.Elements))}
	for i, elem := range ds.Elements {
		if ov, ok := options.AuxVR[elem.Tag]; ok && ov != "" {
			copied := *elem
			copied.VR = ov
			overridden.Elements[i] = &copied
		} else {
			overridden.Elements[i] = elem
		}
	}
	return WriteDataSet(out, overridden)
}

// WriteDataSetToFile writes "ds" to the given file. If the file already exists,
// existing contents are clobbered. Else, the file is newly created.
func WriteDataSetToFile(path string, ds *DataSet) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteDataSet(out, ds); err != nil {
		out.Close() // nolint: errcheck
		return err
	}
	return out.Close()
}

