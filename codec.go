package dicom

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/medicore/dcmcore/dicomio"
	"github.com/medicore/dcmcore/dicomtag"

	"github.com/sirupsen/logrus"
)

// endOfDataElement is a sentinel element that tells the caller to stop
// reading: either options.DropPixelData hit PixelData, or options.StopAtTag
// / options.MaxGroup was reached.
var endOfDataElement = &Element{Tag: dicomtag.Tag{Group: 0x7fff, Element: 0x7fff}}

// elementParser bundles a decoder with the options governing one pass over
// a data set, plus the VR map accumulated along the way (when
// options.ReturnVR is set). Recursing through sequences and items is done
// via its readElement method rather than free functions, so every level of
// nesting shares the same accumulator without extra parameters threaded
// through every call.
type elementParser struct {
	d       *dicomio.Decoder
	options ReadOptions
	vrMap   map[dicomtag.Tag]string

	// seen remembers every scalar element decoded so far in this data
	// set, so the pixel-data engine can look up the Rows/Columns/
	// SamplesPerPixel/etc geometry elements that precede PixelData on
	// the wire without the caller having to pass a whole *DataSet down.
	seen map[dicomtag.Tag]*Element
}

func newElementParser(d *dicomio.Decoder, options ReadOptions) *elementParser {
	p := &elementParser{d: d, options: options, seen: make(map[dicomtag.Tag]*Element)}
	if options.ReturnVR {
		p.vrMap = make(map[dicomtag.Tag]string)
	}
	return p
}

func readTag(buffer *dicomio.Decoder) dicomtag.Tag {
	group := buffer.ReadUInt16()
	element := buffer.ReadUInt16()
	return dicomtag.Tag{Group: group, Element: element}
}

// readImplicit reads a tag's VR from the dictionary (implicit-VR streams
// carry no VR on the wire) and its 4-byte length. It leaves vr=="" when the
// dictionary has no entry, so the caller can apply override/fallback rules
// before giving up.
func readImplicit(buffer *dicomio.Decoder, tag dicomtag.Tag) (string, uint32) {
	var vr string
	if tag.Element == 0x0000 {
		vr = "UL" // group-length pseudo-element, any group parity
	} else if entry, err := dicomtag.Find(tag); err == nil {
		vr = entry.VR
	}
	vl := buffer.ReadUInt32()
	return vr, vl
}

// readExplicit reads the two-letter VR straight off the wire, then a length
// field whose width depends on the VR family (PS3.5 7.1.2).
func readExplicit(buffer *dicomio.Decoder, tag dicomtag.Tag) (string, uint32) {
	vr := buffer.ReadString(2)
	var vl uint32

	switch vr {
	case "NA", "OB", "OD", "OF", "OL", "OW", "SQ", "UN", "UC", "UR", "UT":
		buffer.Skip(2) // reserved two bytes
		vl = buffer.ReadUInt32()
		if vl == UndefinedLength && (vr == "UC" || vr == "UR" || vr == "UT") {
			buffer.SetErrorf("dicom: VR %s may not have an undefined length for tag %s", vr, dicomtag.DebugString(tag))
			vl = 0
		}
	default:
		vl = uint32(buffer.ReadUInt16())
		if vl == 0xffff {
			vl = UndefinedLength
		}
	}

	return vr, vl
}

// privateGroupFallbackVR implements the private-tag VR heuristic: an odd
// group above the reserved command-set range (0x0008) whose element falls
// in the private-creator-identification block (0x0010 through 0x00FF
// inclusive) is a private creator, VR LO; any other element in such a
// group defaults to UN. The inclusive upper bound resolves spec's
// documented ambiguity over whether the bound is inclusive or exclusive:
// the private-creator block is PS3.5 7.8.1's (gggg,0010-00FF), a closed
// range, so both ends are included here.
func privateGroupFallbackVR(tag dicomtag.Tag) (string, bool) {
	if tag.Group%2 == 1 && tag.Group > 0x0008 {
		if tag.Element >= 0x0010 && tag.Element <= 0x00FF {
			return "LO", true
		}
		return "UN", true
	}
	return "", false
}

// resolveVR applies the override map, then the private-group fallback, to
// a VR determined by the normal (dictionary or wire) path. The second
// return value is true if this element should be skipped outright (an
// override mapped it to the empty VR).
func (p *elementParser) resolveVR(tag dicomtag.Tag, vr string) (resolved string, skip bool) {
	if p.options.AuxVR != nil {
		if ov, ok := p.options.AuxVR[tag]; ok {
			if ov == "" {
				return "", true
			}
			return ov, false
		}
	}
	if vr == "" && p.options.AuxVR != nil {
		if ov, ok := p.options.AuxVR[dicomtag.Tag{}]; ok {
			if ov == "" {
				return "", true
			}
			return ov, false
		}
	}
	if vr == "" {
		if fv, ok := privateGroupFallbackVR(tag); ok {
			vr = fv
		}
	}
	return vr, false
}

// skipElement consumes a declared-length value (plus its odd-byte pad) for
// an element resolveVR decided to drop, then parses whatever follows in
// its place.
func (p *elementParser) skipElement(vl uint32) *Element {
	if vl == UndefinedLength {
		p.d.SetErrorf("dicom: cannot skip an override-dropped element with undefined length")
		return nil
	}
	p.d.Skip(int(vl))
	if vl%2 == 1 {
		p.d.Skip(1)
	}
	if p.d.Error() != nil {
		return nil
	}
	return p.readElement()
}

// readRawItem reads an Item object's header without decoding its payload
// into Element.Value. Used for reading raw pixel-data fragments.
func (p *elementParser) readRawItem() ([]byte, bool) {
	d := p.d
	tag := readTag(d)

	// Items are always implicit VR, PS3.6 7.5.
	vr, vl := readImplicit(d, tag)

	if d.Error() != nil {
		return nil, true
	}

	if tag == dicomtag.SequenceDelimitationItem {
		if vl != 0 {
			d.SetErrorf("SequenceDelimitationItem's VL != 0: %v", vl)
		}
		return nil, true
	}

	if tag != dicomtag.Item {
		d.SetErrorf("Expect Item in pixelData but found tag %v", dicomtag.DebugString(tag))
		return nil, false
	}

	if vl == UndefinedLength {
		d.SetErrorf("Expect defined-length item in pixelData")
		return nil, false
	}

	_ = vr // items carry no meaningful VR; kept for symmetry with readImplicit's signature

	return d.ReadBytes(int(vl)), false
}

// ParseFileHeader reads the preamble (unless skipped), the "DICM" magic,
// and the meta-information group (Tag.Group==2), which is always
// explicit-VR little-endian regardless of the body's transfer syntax.
// Errors are reported through d.Error().
func ParseFileHeader(d *dicomio.Decoder, options ReadOptions) []*Element {
	d.PushTransferSyntax(binary.LittleEndian, dicomio.ExplicitVR)
	defer d.PopTransferSyntax()

	if !options.SkipPreamble {
		d.Skip(128)
		if s := d.ReadString(4); s != "DICM" {
			d.SetErrorf("dicom: 'DICM' magic not found in the header")
			return nil
		}
	}

	p := newElementParser(d, ReadOptions{})
	metaElement := p.readElement()

	if d.Error() != nil {
		return nil
	}
	if metaElement.Tag != dicomtag.FileMetaInformationGroupLength {
		d.SetErrorf("dicom: MetaElementGroupLength not found; instead found %s", metaElement.Tag.String())
		return nil
	}
	metaLength, err := metaElement.GetUInt32()
	if err != nil {
		d.SetErrorf("dicom: failed to read uint32 in MetaElementGroupLength: %v", err)
		return nil
	}
	if d.EOF() {
		d.SetErrorf("dicom: no data element found")
		return nil
	}
	metaElems := []*Element{metaElement}

	d.PushLimit(int64(metaLength))
	defer d.PopLimit()
	for !d.EOF() {
		elem := p.readElement()
		if d.Error() != nil {
			break
		}
		metaElems = append(metaElems, elem)
		logrus.Debugf("dicom.ParseFileHeader: meta element %v, pos %v", elem.String(), d.BytesRead())
	}
	return metaElems
}

// readElement reads one DICOM data element, recursing into sequences and
// items as needed, and returns one of:
//
//   - nil, with the failure recorded in p.d.Error()
//   - endOfDataElement, if options.DropPixelData hit PixelData, or
//     options.StopAtTag/options.MaxGroup was reached
//   - a normally decoded, non-nil element otherwise
func (p *elementParser) readElement() *Element {
	d := p.d
	tag := readTag(d)

	if tag == dicomtag.PixelData && p.options.DropPixelData {
		return endOfDataElement
	}
	if p.options.StopAtTag != nil && tag.Compare(*p.options.StopAtTag) >= 0 {
		return endOfDataElement
	}
	if p.options.MaxGroup != nil && tag.Group > *p.options.MaxGroup {
		return endOfDataElement
	}

	// Item/sequence-delimiter elements are always implicit VR regardless
	// of the file's transfer syntax (PS3.6 7.5 "Nesting of Data Sets").
	_, implicit := d.TransferSyntax()
	if tag.Group == ItemSeqGroup {
		implicit = dicomio.ImplicitVR
	}

	var rawVR string
	var vl uint32
	if implicit == dicomio.ImplicitVR {
		rawVR, vl = readImplicit(d, tag)
	} else {
		dicomio.DoAssert(implicit == dicomio.ExplicitVR, implicit)
		rawVR, vl = readExplicit(d, tag)
	}

	vr, skip := p.resolveVR(tag, rawVR)
	if skip {
		return p.skipElement(vl)
	}
	if vr == "" {
		d.SetErrorf("dicom: unknown tag %s: no VR from dictionary, override map, or private-group fallback", dicomtag.DebugString(tag))
		return nil
	}

	elem := &Element{
		Tag:             tag,
		VR:              vr,
		UndefinedLength: (vl == UndefinedLength),
	}

	if vr == "UN" && vl == UndefinedLength {
		// PS3.5 6.2.2: <UN, undefined length> is used for sequences whose
		// VR could not be established at encode time. Treat it as SQ.
		vr = "SQ"
		elem.VR = vr
	}

	if p.vrMap != nil {
		p.vrMap[tag] = vr
	}

	var data []interface{}

	switch {
	case tag == dicomtag.PixelData:
		data = append(data, p.readPixelData(vl))
	case vr == "SQ":
		data = p.readSequenceItems(vl)
	case tag == dicomtag.Item:
		data = p.readItemElements(vl)
	default:
		data = p.readScalarValue(d, tag, vr, vl)
		if d.Error() != nil && data == nil {
			return nil
		}
	}

	elem.Value = data
	if p.seen != nil {
		p.seen[tag] = elem
	}
	return elem
}

// readSequenceItems decodes the Item* body of a VR==SQ element, whether
// framed by a defined length or terminated by a sequence delimiter.
func (p *elementParser) readSequenceItems(vl uint32) []interface{} {
	d := p.d
	var data []interface{}
	if vl == UndefinedLength {
		for {
			item := p.readElement()
			if d.Error() != nil {
				break
			}
			if item.Tag == dicomtag.SequenceDelimitationItem {
				break
			}
			if item.Tag != dicomtag.Item {
				d.SetErrorf("dicom: found non-Item element in sequence with undefined length: %v", dicomtag.DebugString(item.Tag))
				break
			}
			data = append(data, item)
		}
	} else {
		d.PushLimit(int64(vl))
		for !d.EOF() {
			item := p.readElement()
			if d.Error() != nil {
				break
			}
			if item.Tag != dicomtag.Item {
				d.SetErrorf("dicom: found non-Item element in sequence with defined length: %v", dicomtag.DebugString(item.Tag))
				break
			}
			data = append(data, item)
		}
		d.PopLimit()
	}
	if vl != UndefinedLength && vl%2 == 1 {
		d.Skip(1)
	}
	return data
}

// readItemElements decodes the body of a single Item inside a sequence.
func (p *elementParser) readItemElements(vl uint32) []interface{} {
	d := p.d
	var data []interface{}
	if vl == UndefinedLength {
		for {
			subelem := p.readElement()
			if d.Error() != nil {
				break
			}
			if subelem.Tag == dicomtag.ItemDelimitationItem {
				break
			}
			data = append(data, subelem)
		}
	} else {
		d.PushLimit(int64(vl))
		for !d.EOF() {
			subelem := p.readElement()
			if d.Error() != nil {
				break
			}
			data = append(data, subelem)
		}
		d.PopLimit()
	}
	if vl != UndefinedLength && vl%2 == 1 {
		d.Skip(1)
	}
	return data
}

// readScalarValue decodes a leaf VR's payload into Value tokens. The
// declared length vl is exact; a trailing pad byte beyond vl is consumed
// afterwards if vl is odd (a non-conformant but tolerated encoding -- the
// writer side always pads the payload to make vl itself even instead).
func (p *elementParser) readScalarValue(d *dicomio.Decoder, tag dicomtag.Tag, vr string, vl uint32) []interface{} {
	if vl == UndefinedLength {
		d.SetErrorf("dicom: undefined length disallowed for VR=%s, tag %s", vr, dicomtag.DebugString(tag))
		return nil
	}

	var data []interface{}
	d.PushLimit(int64(vl))
	switch vr {
	case "DA", "TM", "DT", "AS":
		date := strings.Trim(d.ReadString(int(vl)), " \000")
		data = []interface{}{date}
	case "AT":
		for !d.EOF() {
			t := dicomtag.Tag{Group: d.ReadUInt16(), Element: d.ReadUInt16()}
			data = append(data, t)
		}
	case "OW":
		if vl%2 != 0 {
			d.SetErrorf("dicom: tag %v: OW requires even length, but found %v", dicomtag.DebugString(tag), vl)
		} else {
			e := dicomio.NewBytesEncoder(dicomio.NativeByteOrder, dicomio.UnknownVR)
			e.WriteUInt16Array(d.ReadUInt16Array(int(vl / 2)))
			dicomio.DoAssert(e.Error() == nil, e.Error())
			data = append(data, e.Bytes())
		}
	case "OB", "UN":
		data = append(data, d.ReadBytes(int(vl)))
	case "LT", "UT", "ST":
		str := d.ReadString(int(vl))
		data = append(data, str)
	case "UL":
		for !d.EOF() {
			data = append(data, d.ReadUInt32())
		}
	case "SL":
		for !d.EOF() {
			data = append(data, d.ReadInt32())
		}
	case "US":
		for !d.EOF() {
			data = append(data, d.ReadUInt16())
		}
	case "SS":
		for !d.EOF() {
			data = append(data, d.ReadInt16())
		}
	case "FL", "OF":
		for !d.EOF() {
			data = append(data, d.ReadFloat32())
		}
	case "FD", "OD":
		for !d.EOF() {
			data = append(data, d.ReadFloat64())
		}
	case "DS":
		// Numeric text (spec.md 4.3): a backslash-list parsed to float64,
		// with an empty token decoding to 0 by policy and any other
		// unparsable token raising MalformedNumericText (spec.md 7).
		v := d.ReadString(int(vl))
		str := strings.Trim(v, " \000")
		if len(str) > 0 {
			for _, tok := range strings.Split(str, "\\") {
				tok = strings.TrimSpace(tok)
				if tok == "" {
					data = append(data, float64(0))
					continue
				}
				f, err := strconv.ParseFloat(tok, 64)
				if err != nil {
					d.SetErrorf("dicom: malformed numeric text (DS) in tag %s: %v", dicomtag.DebugString(tag), err)
					break
				}
				data = append(data, f)
			}
		}
	case "IS":
		// Numeric text (spec.md 4.3): a backslash-list parsed to int32,
		// with the same empty-token-is-0 / fatal-otherwise policy as DS.
		v := d.ReadString(int(vl))
		str := strings.Trim(v, " \000")
		if len(str) > 0 {
			for _, tok := range strings.Split(str, "\\") {
				tok = strings.TrimSpace(tok)
				if tok == "" {
					data = append(data, int32(0))
					continue
				}
				n, err := strconv.ParseInt(tok, 10, 32)
				if err != nil {
					d.SetErrorf("dicom: malformed numeric text (IS) in tag %s: %v", dicomtag.DebugString(tag), err)
					break
				}
				data = append(data, int32(n))
			}
		}
	default:
		// Short/long text VRs: a backslash-delimited string list.
		v := d.ReadString(int(vl))
		str := strings.Trim(v, " \000")
		if len(str) > 0 {
			for _, s := range strings.Split(str, "\\") {
				data = append(data, s)
			}
		}
	}
	d.PopLimit()
	if vl%2 == 1 {
		d.Skip(1)
	}
	return data
}
