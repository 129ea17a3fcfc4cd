package dicomtag

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag 是一个定义了dicom文件中element 的类型的 <group, element> 元组
// 列表中的标准tags定义在dictionary.go, 也可以参考：
// ftp://medical.nema.org/medical/dicom/2011/11_06pu.pdf
type Tag struct {
	// Group 和 Element 是读取16进制对的结果 如 (1000,10008)
	Group   uint16
	Element uint16
}

// Compare 返回 -1/0/1 如果t<other | t==other | t>other，
// tag先由group排序，再由element排序
func (t Tag) Compare(other Tag) int {
	if t.Group < other.Group {
		return -1
	}

	if t.Group > other.Group {
		return 1
	}

	if t.Element < other.Element {
		return -1
	}

	if t.Element > other.Element {
		return 1
	}

	return 0
}

func IsPrivate(group uint16) bool {
	return group%2 == 1
}

// String 返回一个如"(0008, 1234)"格式的string
// 0x0008 是 t.Group 0x1234是t.Element
func (t Tag) String() string {
	return fmt.Sprintf("(%04x, %04x)", t.Group, t.Element)
}

// TagInfo 保存了Tag在标准DICOM标准中的detail information
type TagInfo struct {
	Tag Tag
	// Data 编码 如 "UL" "CS"
	VR string
	// 人类可读的Tag名称 如 "CommandDataSetType"
	Name string
	// 基数(Cardinality) (element中期望的值 #)
	VM string
}

// MetadataGroup 是 Tag.Group 中 metadata tags的值.
const MetadataGroup = 2

// VRKind 定义了golang 编码的VR
type VRKind int

const (
	// VRStringList means the element stores a list of strings
	VRStringList VRKind = iota
	// VRBytes means the element stores a []byte
	VRBytes
	// VRString means the element stores a string
	VRString
	// VRUInt16List means the element stores a list of uint16s
	VRUInt16List
	// VRUInt32List means the element stores a list of uint32s
	VRUInt32List
	// VRInt16List means the element stores a list of int16s
	VRInt16List
	// VRInt32List element stores a list of int32s
	VRInt32List
	// VRFloat32List element stores a list of float32s
	VRFloat32List
	// VRFloat64List element stores a list of float64s
	VRFloat64List
	// VRSequence means the element stores a list of *Elements, w/ TagItem
	VRSequence
	// VRItem means the element stores a list of *Elements
	VRItem
	// VRTagList element stores a list of Tags
	VRTagList
	// VRDate means the element stores a date string.
	VRDate
	// VRPixelData means the element stores a PixelDataInfo
	VRPixelData
)

// GetVRKind 返回 go语言的 value encoding of an element with <tag, vr>.
func GetVRKind(tag Tag, vr string) VRKind {
	if tag == Item {
		return VRItem
	} else if tag == PixelData {
		return VRPixelData
	}
	switch vr {
	case "DA":
		return VRDate
	case "AT":
		return VRTagList
	case "OW", "OB":
		return VRBytes
	case "LT", "UT":
		return VRString
	case "UL":
		return VRUInt32List
	case "SL":
		return VRInt32List
	case "US":
		return VRUInt16List
	case "SS":
		return VRInt16List
	case "FL":
		return VRFloat32List
	case "FD":
		return VRFloat64List
	case "DS":
		return VRFloat64List
	case "IS":
		return VRInt32List
	case "SQ":
		return VRSequence
	default:
		return VRStringList
	}
}

// canonicalTag applies the repeating-group rule (spec.md 4.1/4.2): tags
// whose group high byte is 0x50 or 0x60 (the overlay/curve repeating
// groups) are canonicalised to (0x5000,elt)/(0x6000,elt) before
// dictionary lookup, so every repeat of the group shares one VR entry.
func canonicalTag(tag Tag) Tag {
	hi := tag.Group & 0xFF00
	if hi == 0x5000 {
		return Tag{0x5000, tag.Element}
	}
	if hi == 0x6000 {
		return Tag{0x6000, tag.Element}
	}
	return tag
}

// 找到给与的tag中的信息
// 如果tag不是dicom standard的一部分或已经不再在dicom standard中 会返回错误
func Find(tag Tag) (TagInfo, error) {
	maybeInitTagDict()
	lookupTag := canonicalTag(tag)
	entry, ok := tagDict[lookupTag]
	if !ok {
		// (0000-u-ffff,0000)	UL	GenericGroupLength	1	GENERIC
		if tag.Group%2 == 0 && tag.Element == 0x0000 {
			entry = TagInfo{tag, "UL", "GenericGroupLength", "1"}
		} else {
			return TagInfo{}, fmt.Errorf("Could not find tag (0x%x, 0x%x) in dictionary", tag.Group, tag.Element)
		}
	} else if lookupTag != tag {
		entry.Tag = tag
	}
	return entry, nil
}

// VROf is a convenience wrapper used by the element/VR codec: it returns
// just the VR string for tag, or "" if the tag is unknown. Unlike Find,
// it never returns an error -- callers that need to distinguish
// "unknown" from "known but VR-less" should use Find directly.
func VROf(tag Tag) string {
	info, err := Find(tag)
	if err != nil {
		return ""
	}
	return info.VR
}

// MustFind与Find相似, 但报错会panic停止程序
func MustFind(tag Tag) TagInfo {
	e, err := Find(tag)
	if err != nil {
		panic(fmt.Sprintf("tag %v not found: %s", tag, err))
	}
	return e
}

// canonicalKeyword normalises a keyword for whitespace-insensitive
// matching (spec.md 4.1 tag_of): strips all whitespace and lower-cases
// the result, so "Patient Name", "patientname" and "PatientName" all
// resolve to the same dictionary entry.
func canonicalKeyword(name string) string {
	b := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b = append(b, c)
	}
	return string(b)
}

// FindByName将传入的name寻找到information。
// 如果tag不是dicom standard中的一个或者不再在dicom standard中，将会返回一个错误
// 例: FindByName("TransferSyntaxUID")
func FindByName(name string) (TagInfo, error) {
	maybeInitTagDict()
	if tag, ok := keywordDict[canonicalKeyword(name)]; ok {
		return tagDict[tag], nil
	}
	return TagInfo{}, fmt.Errorf("could not find tag with name %s", name)
}

// TagForKeyword resolves a keyword to its Tag. It is the run-time half of
// spec.md's tag_of/tag_for_keyword! query: Go has no macro system to
// reject an unknown keyword literal at compile time, so
// MustTagForKeyword below is the panic-on-failure stand-in a generated
// `tag"Keyword"` literal would compile down to.
func TagForKeyword(keyword string) (Tag, error) {
	info, err := FindByName(keyword)
	if err != nil {
		return Tag{}, err
	}
	return info.Tag, nil
}

// MustTagForKeyword is the compile-time-literal analogue described in
// spec.md 4.1/9: callers that pass a keyword they know to be valid (a
// literal in their own source, not user input) can use this instead of
// threading an error return through code that can't otherwise fail.
// Panics if keyword is not in the dictionary.
func MustTagForKeyword(keyword string) Tag {
	tag, err := TagForKeyword(keyword)
	if err != nil {
		panic(err)
	}
	return tag
}

// DebugString 返回一个人类可读的tag的诊断字符串，格式如 "(group, element)[name]"
func DebugString(tag Tag) string {
	e, err := Find(tag)
	if err != nil {
		if IsPrivate(tag.Group) {
			return fmt.Sprintf("(%04x,%04x)[private]", tag.Group, tag.Element)
		} else {
			return fmt.Sprintf("(%04x,%04x)[??]", tag.Group, tag.Element)
		}
	}
	return fmt.Sprintf("(%04x,%04x)[%s]", tag.Group, tag.Element, e.Name)
}

// 将tag分成 group和element 由16进制数表示
// TODO: support group ranges (6000-60FF,0803)
func parseTag(tag string) (Tag, error) {
	parts := strings.Split(strings.Trim(tag, "()"), ",")
	group, err := strconv.ParseInt(parts[0], 16, 0)
	if err != nil {
		return Tag{}, err
	}
	elem, err := strconv.ParseInt(parts[1], 16, 0)
	if err != nil {
		return Tag{}, err
	}
	return Tag{Group: uint16(group), Element: uint16(elem)}, nil
}
