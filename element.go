package dicom

import (
	"fmt"
	"strings"

	"github.com/medicore/dcmcore/dicomio"
	"github.com/medicore/dcmcore/dicomtag"
)

// Element represents a single DICOM element. Use NewElement() to create a
// element denovo. Avoid creating a struct manually, because setting the VR
// field is a bit tricky.
type Element struct {
	// Tag is a pair of <group, element>. See dicomtag for well-known values.
	Tag dicomtag.Tag

	// List of values in the element. Their types depends on value
	// representation (VR) of the Tag.
	//
	// If Tag==PixelData, len(Value)==1, and Value[0] is PixelDataInfo.
	// Else if Tag==Item, each Value[i] is a *Element.
	// Else if VR=="SQ", Value[i] is a *Element, with Tag=dicomtag.Item.
	// Else if VR=="LT", or "UT", then len(Value)==1, and Value[0] is string
	// Else if VR=="DA", len(Value)==1, and Value[0] is string.
	// Else if VR=="US", Value[] is a list of uint16s
	// Else if VR=="UL", Value[] is a list of uint32s
	// Else if VR=="SS", Value[] is a list of int16s
	// Else if VR=="SL", Value[] is a list of int32s
	// Else if VR=="FL", Value[] is a list of float32s
	// Else if VR=="FD", Value[] is a list of float64s
	// Else if VR=="DS", Value[] is a list of float64s
	// Else if VR=="IS", Value[] is a list of int32s
	// Else if VR=="AT", Value[] is a list of dicomtag.Tag
	// Else if VR=="OW" or "OB", len(Value)==1, and Value[0] is []byte.
	// Else, Value[] is a list of strings.
	//
	// A one-element Value is the collapsed scalar form; callers normally
	// reach it through Get*() below rather than indexing Value directly.
	Value []interface{}

	// VR holds the two-letter code used to encode Value[] (e.g. "AE",
	// "UL"). Filled by ReadElement with either the VR read from an
	// explicit-VR stream, or the dictionary VR for implicit-VR streams.
	// Not required to be set before WriteElement; WriteElement falls back
	// to the dictionary VR for the tag when it's empty.
	VR string

	// UndefinedLength is true if, in the DICOM file, the element is encoded
	// as having undefined length, and is delimited by an end-sequence or
	// end-item element. Meaningful only if VR=="SQ" or Tag==Item/PixelData.
	UndefinedLength bool
}

// DataSet is an ordered collection of DICOM elements, including the meta
// group (Tag.Group==2), as read from or destined for a Part 10 stream.
type DataSet struct {
	Elements []*Element
}

// ReadOptions controls how ReadDataSet/ParseDataSet decode a stream.
type ReadOptions struct {
	// DropPixelData makes the parser skip PixelData (bulk image) entirely.
	DropPixelData bool

	// ReturnTags, if non-nil, restricts the returned body elements to
	// this whitelist. Meta-group elements are always returned, whether
	// or not they are listed here.
	ReturnTags []dicomtag.Tag

	// StopAtTag halts parsing as soon as a tag at or beyond this position
	// is encountered; useful to read only the header of a large file.
	StopAtTag *dicomtag.Tag

	// MaxGroup, if non-nil, halts parsing as soon as a tag's group number
	// exceeds *MaxGroup.
	MaxGroup *uint16

	// AuxVR is a per-tag VR override. A tag mapped to the empty string is
	// skipped entirely (its declared bytes are consumed and parsing moves
	// to the next element). The key dicomtag.Tag{0,0} is a wildcard used
	// to fill in the VR for tags the dictionary doesn't know at all.
	AuxVR map[dicomtag.Tag]string

	// ReturnVR asks ParseDataSet to also return the observed per-tag VR
	// map.
	ReturnVR bool

	// SkipPreamble, if true, starts parsing at byte 0 without requiring
	// the 128-byte preamble + "DICM" magic.
	SkipPreamble bool
}

const UndefinedLength uint32 = 0xffffffff

// ItemSeqGroup is the reserved group (0xFFFE) used by item and sequence
// delimiters; elements in this group are always implicit-VR.
const ItemSeqGroup = 0xFFFE

// NewElement creates a new Element from tag and values. Each value must
// match the VR of the tag; see dicomtag.GetVRKind.
func NewElement(tag dicomtag.Tag, values ...interface{}) (*Element, error) {
	ti, err := dicomtag.Find(tag)
	if err != nil {
		return nil, err
	}

	e := Element{
		Tag:   tag,
		VR:    ti.VR,
		Value: make([]interface{}, len(values)),
	}

	vrKind := dicomtag.GetVRKind(tag, ti.VR)

	for i, v := range values {
		var ok bool

		switch vrKind {
		case dicomtag.VRStringList, dicomtag.VRDate:
			_, ok = v.(string)
		case dicomtag.VRBytes:
			_, ok = v.([]byte)
		case dicomtag.VRUInt16List:
			_, ok = v.(uint16)
		case dicomtag.VRUInt32List:
			_, ok = v.(uint32)
		case dicomtag.VRInt16List:
			_, ok = v.(int16)
		case dicomtag.VRInt32List:
			_, ok = v.(int32)
		case dicomtag.VRFloat32List:
			_, ok = v.(float32)
		case dicomtag.VRFloat64List:
			_, ok = v.(float64)
		case dicomtag.VRPixelData:
			_, ok = v.(PixelDataInfo)
		case dicomtag.VRTagList:
			_, ok = v.(dicomtag.Tag)
		case dicomtag.VRSequence:
			var subelement *Element
			subelement, ok = v.(*Element)
			if ok {
				ok = (subelement.Tag == dicomtag.Item)
			}
		case dicomtag.VRItem:
			_, ok = v.(*Element)
		}

		if !ok {
			return nil, fmt.Errorf("%v: wrong payload type for NewElement: expect %v, but found %v",
				dicomtag.DebugString(tag), vrKind, v)
		}

		e.Value[i] = v
	}

	return &e, nil
}

// MustNewElement is similar to NewElement, but it crashes the process on any error
func MustNewElement(tag dicomtag.Tag, values ...interface{}) *Element {
	elem, err := NewElement(tag, values...)
	if err != nil {
		panic(fmt.Sprintf("Failed to create element with tag %v: %v", tag, err))
	}
	return elem
}

// GetUInt32 gets a uint32 value from an element. It returns an error if the
// element contains zero or >1 values, or the value is not a uint32.
func (e *Element) GetUInt32() (uint32, error) {
	if len(e.Value) != 1 {
		return 0, fmt.Errorf("Found %d value(s) in getuint32 (expect 1): %v", len(e.Value), e)
	}
	v, ok := e.Value[0].(uint32)
	if !ok {
		return 0, fmt.Errorf("Uint32 value not found in %v", e)
	}
	return v, nil
}

// MustGetUInt32 is similar to GetUInt32, but panics on error.
func (e *Element) MustGetUInt32() uint32 {
	v, err := e.GetUInt32()
	if err != nil {
		panic(err)
	}
	return v
}

// GetUInt16 gets a uint16 value from an element.
func (e *Element) GetUInt16() (uint16, error) {
	if len(e.Value) != 1 {
		return 0, fmt.Errorf("Found %d value(s) in getuint16 (expect 1): %v", len(e.Value), e)
	}
	v, ok := e.Value[0].(uint16)
	if !ok {
		return 0, fmt.Errorf("Uint16 value not found in %v", e)
	}
	return v, nil
}

// MustGetUInt16 is similar to GetUInt16, but panics on error.
func (e *Element) MustGetUInt16() uint16 {
	v, err := e.GetUInt16()
	if err != nil {
		panic(err)
	}
	return v
}

// GetFloat64 gets a float64 value from an element (the decoded form of a
// DS-VR numeric-text element; spec.md 4.3).
func (e *Element) GetFloat64() (float64, error) {
	if len(e.Value) != 1 {
		return 0, fmt.Errorf("Found %d value(s) in getfloat64 (expect 1): %v", len(e.Value), e)
	}
	v, ok := e.Value[0].(float64)
	if !ok {
		return 0, fmt.Errorf("float64 value not found in %v", e)
	}
	return v, nil
}

// MustGetFloat64 is similar to GetFloat64, but panics on error.
func (e *Element) MustGetFloat64() float64 {
	v, err := e.GetFloat64()
	if err != nil {
		panic(err)
	}
	return v
}

// GetInt32 gets an int32 value from an element (the decoded form of an
// IS-VR numeric-text element; spec.md 4.3).
func (e *Element) GetInt32() (int32, error) {
	if len(e.Value) != 1 {
		return 0, fmt.Errorf("Found %d value(s) in getint32 (expect 1): %v", len(e.Value), e)
	}
	v, ok := e.Value[0].(int32)
	if !ok {
		return 0, fmt.Errorf("int32 value not found in %v", e)
	}
	return v, nil
}

// MustGetInt32 is similar to GetInt32, but panics on error.
func (e *Element) MustGetInt32() int32 {
	v, err := e.GetInt32()
	if err != nil {
		panic(err)
	}
	return v
}

// GetString gets a string value from an element.
func (e *Element) GetString() (string, error) {
	if len(e.Value) != 1 {
		return "", fmt.Errorf("Found %d value(s) in getstring (expect 1): %v", len(e.Value), e.String())
	}
	v, ok := e.Value[0].(string)
	if !ok {
		return "", fmt.Errorf("string value not found in %v", e)
	}
	return v, nil
}

// MustGetString is similar to GetString(), but panics on error.
func (e *Element) MustGetString() string {
	v, err := e.GetString()
	if err != nil {
		panic(err)
	}
	return v
}

// GetStrings returns every string value stored in the element.
func (e *Element) GetStrings() ([]string, error) {
	values := make([]string, 0, len(e.Value))
	for _, v := range e.Value {
		v, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("string value not found in %v", e.String())
		}
		values = append(values, v)
	}
	return values, nil
}

// GetUint32s returns the list of uint32 values stored in the element.
func (e *Element) GetUint32s() ([]uint32, error) {
	values := make([]uint32, 0, len(e.Value))
	for _, v := range e.Value {
		v, ok := v.(uint32)
		if !ok {
			return nil, fmt.Errorf("uint32 value not found in %v", e.String())
		}
		values = append(values, v)
	}
	return values, nil
}

// MustGetUint32s is similar to GetUint32s, but crashes the process on error.
func (e *Element) MustGetUint32s() []uint32 {
	values, err := e.GetUint32s()
	if err != nil {
		panic(err)
	}
	return values
}

// GetUint16s returns the list of uint16 values stored in the element.
func (e *Element) GetUint16s() ([]uint16, error) {
	values := make([]uint16, 0, len(e.Value))
	for _, v := range e.Value {
		v, ok := v.(uint16)
		if !ok {
			return nil, fmt.Errorf("uint16 value not found in %v", e.String())
		}
		values = append(values, v)
	}
	return values, nil
}

// MustGetUint16s is similar to GetUint16s, but crashes the process on error.
func (e *Element) MustGetUint16s() []uint16 {
	values, err := e.GetUint16s()
	if err != nil {
		panic(err)
	}
	return values
}

func elementString(e *Element, nestLevel int) string {
	dicomio.DoAssert(nestLevel < 10)
	indent := strings.Repeat(" ", nestLevel)
	s := indent
	sVl := ""
	if e.UndefinedLength {
		sVl = "u"
	}
	s = fmt.Sprintf("%s %s %s %s ", s, dicomtag.DebugString(e.Tag), e.VR, sVl)
	if e.VR == "SQ" || e.Tag == dicomtag.Item {
		s += fmt.Sprintf(" (#%d)[\n", len(e.Value))
		for _, v := range e.Value {
			s += elementString(v.(*Element), nestLevel+1) + "\n"
		}
		s += indent + " ]"
	} else {
		var sv string
		if len(e.Value) == 1 {
			sv = fmt.Sprintf("%v", e.Value)
		} else {
			sv = fmt.Sprintf("(%d)%v", len(e.Value), e.Value)
		}
		if len(sv) > 1024 {
			sv = sv[1:1024] + "(...)"
		}
		s += sv
	}
	return s
}

// String implements fmt.Stringer.
func (e *Element) String() string {
	return elementString(e, 0)
}

func tagInList(tag dicomtag.Tag, tags []dicomtag.Tag) bool {
	for _, t := range tags {
		if tag == t {
			return true
		}
	}
	return false
}

// FindElementByName finds an element given its keyword, e.g. "PatientName".
func (f *DataSet) FindElementByName(name string) (*Element, error) {
	return FindElementByName(f.Elements, name)
}

// FindElementByTag finds an element from the dataset given its tag.
func (f *DataSet) FindElementByTag(tag dicomtag.Tag) (*Element, error) {
	return FindElementByTag(f.Elements, tag)
}

// FindElementByName finds an element with the given Element.Name in
// "elems". If not found, returns an error.
func FindElementByName(elems []*Element, name string) (*Element, error) {
	t, err := dicomtag.FindByName(name)
	if err != nil {
		return nil, err
	}
	for _, elem := range elems {
		if elem.Tag == t.Tag {
			return elem, nil
		}
	}
	return nil, fmt.Errorf("could not find element named '%s' in dicom file", name)
}

// FindElementByTag finds an element with the given Element.Tag in
// "elems". If not found, returns an error.
func FindElementByTag(elems []*Element, tag dicomtag.Tag) (*Element, error) {
	for _, elem := range elems {
		if elem.Tag == tag {
			return elem, nil
		}
	}
	return nil, fmt.Errorf("%s: element not found", dicomtag.DebugString(tag))
}
