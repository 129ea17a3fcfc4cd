package dicomtag

import "sync"

// The generation of the full PS3.6 data dictionary (several thousand
// rows) is treated as compile-time data out of scope for this core
// (spec.md 1, "OUT OF SCOPE ... the generation of the static tag
// dictionary"). What follows is a representative, hand-maintained subset
// covering file-meta, patient/study/series, image-pixel and a few
// commonly probed attributes -- enough for the decoder to resolve VRs
// for every element exercised by this package's tests and by the
// standard test corpus referenced in spec.md 8.
//
// A production deployment would swap tagDict/keywordDict for
// machine-generated tables sourced from the NEMA PS3.6 XML; the lookup
// API (Find/FindByName/MustFind) is stable across that swap.

var (
	tagDictOnce sync.Once
	tagDict     map[Tag]TagInfo
	keywordDict map[string]Tag
)

// Well-known tags referenced directly by the element/writer/file-header
// logic. These mirror the constants the teacher's element.go and
// writer.go reference as dicomtag.XXX package variables.
var (
	Item                          = Tag{0xFFFE, 0xE000}
	ItemDelimitationItem          = Tag{0xFFFE, 0xE00D}
	SequenceDelimitationItem      = Tag{0xFFFE, 0xE0DD}
	PixelData                     = Tag{0x7FE0, 0x0010}
	PixelDataProviderURL          = Tag{0x7FE0, 0x0003}
	FileMetaInformationGroupLength = Tag{0x0002, 0x0000}
	FileMetaInformationVersion    = Tag{0x0002, 0x0001}
	MediaStorageSOPClassUID       = Tag{0x0002, 0x0002}
	MediaStorageSOPInstanceUID    = Tag{0x0002, 0x0003}
	TransferSyntaxUID             = Tag{0x0002, 0x0010}
	ImplementationClassUID        = Tag{0x0002, 0x0012}
	ImplementationVersionName     = Tag{0x0002, 0x0013}

	SpecificCharacterSet = Tag{0x0008, 0x0005}
	QueryRetrieveLevel   = Tag{0x0008, 0x0052}
	Modality             = Tag{0x0008, 0x0060}
	InstitutionName      = Tag{0x0008, 0x0080}
	SOPInstanceUID       = Tag{0x0008, 0x0018}

	PatientName      = Tag{0x0010, 0x0010}
	PatientID        = Tag{0x0010, 0x0020}
	PatientBirthDate = Tag{0x0010, 0x0030}

	StudyInstanceUID  = Tag{0x0020, 0x000D}
	SeriesInstanceUID = Tag{0x0020, 0x000E}
	InstanceNumber    = Tag{0x0020, 0x0013}

	SamplesPerPixel       = Tag{0x0028, 0x0002}
	PhotometricInterpretation = Tag{0x0028, 0x0004}
	PlanarConfiguration   = Tag{0x0028, 0x0006}
	NumberOfFrames        = Tag{0x0028, 0x0008}
	Rows                  = Tag{0x0028, 0x0010}
	Columns               = Tag{0x0028, 0x0011}
	Planes                = Tag{0x0028, 0x0012}
	BitsAllocated         = Tag{0x0028, 0x0100}
	BitsStored            = Tag{0x0028, 0x0101}
	HighBit               = Tag{0x0028, 0x0102}
	PixelRepresentation   = Tag{0x0028, 0x0103}
	RescaleIntercept      = Tag{0x0028, 0x1052}
	RescaleSlope          = Tag{0x0028, 0x1053}
)

func seedTagDict() map[Tag]TagInfo {
	rows := []TagInfo{
		{FileMetaInformationGroupLength, "UL", "FileMetaInformationGroupLength", "1"},
		{FileMetaInformationVersion, "OB", "FileMetaInformationVersion", "1"},
		{MediaStorageSOPClassUID, "UI", "MediaStorageSOPClassUID", "1"},
		{MediaStorageSOPInstanceUID, "UI", "MediaStorageSOPInstanceUID", "1"},
		{TransferSyntaxUID, "UI", "TransferSyntaxUID", "1"},
		{ImplementationClassUID, "UI", "ImplementationClassUID", "1"},
		{ImplementationVersionName, "SH", "ImplementationVersionName", "1"},

		{SpecificCharacterSet, "CS", "SpecificCharacterSet", "1-n"},
		{QueryRetrieveLevel, "CS", "QueryRetrieveLevel", "1"},
		{Modality, "CS", "Modality", "1"},
		{InstitutionName, "LO", "InstitutionName", "1"},
		{SOPInstanceUID, "UI", "SOPInstanceUID", "1"},
		{Tag{0x0008, 0x0016}, "UI", "SOPClassUID", "1"},
		{Tag{0x0008, 0x0020}, "DA", "StudyDate", "1"},
		{Tag{0x0008, 0x0030}, "TM", "StudyTime", "1"},
		{Tag{0x0008, 0x0050}, "SH", "AccessionNumber", "1"},
		{Tag{0x0008, 0x0070}, "LO", "Manufacturer", "1"},
		{Tag{0x0008, 0x0090}, "PN", "ReferringPhysicianName", "1"},
		{Tag{0x0008, 0x1030}, "LO", "StudyDescription", "1"},
		{Tag{0x0008, 0x103E}, "LO", "SeriesDescription", "1"},

		{PatientName, "PN", "PatientName", "1"},
		{PatientID, "LO", "PatientID", "1"},
		{PatientBirthDate, "DA", "PatientBirthDate", "1"},
		{Tag{0x0010, 0x0040}, "CS", "PatientSex", "1"},
		{Tag{0x0010, 0x1010}, "AS", "PatientAge", "1"},
		{Tag{0x0010, 0x1030}, "DS", "PatientWeight", "1"},

		{StudyInstanceUID, "UI", "StudyInstanceUID", "1"},
		{SeriesInstanceUID, "UI", "SeriesInstanceUID", "1"},
		{InstanceNumber, "IS", "InstanceNumber", "1"},
		{Tag{0x0020, 0x0010}, "SH", "StudyID", "1"},
		{Tag{0x0020, 0x0011}, "IS", "SeriesNumber", "1"},
		{Tag{0x0020, 0x0032}, "DS", "ImagePositionPatient", "3"},
		{Tag{0x0020, 0x0037}, "DS", "ImageOrientationPatient", "6"},
		{Tag{0x0020, 0x4000}, "LT", "ImageComments", "1"},

		{SamplesPerPixel, "US", "SamplesPerPixel", "1"},
		{PhotometricInterpretation, "CS", "PhotometricInterpretation", "1"},
		{PlanarConfiguration, "US", "PlanarConfiguration", "1"},
		{NumberOfFrames, "IS", "NumberOfFrames", "1"},
		{Rows, "US", "Rows", "1"},
		{Columns, "US", "Columns", "1"},
		{Planes, "US", "Planes", "1"},
		{BitsAllocated, "US", "BitsAllocated", "1"},
		{BitsStored, "US", "BitsStored", "1"},
		{HighBit, "US", "HighBit", "1"},
		{PixelRepresentation, "US", "PixelRepresentation", "1"},
		{Tag{0x0028, 0x0030}, "DS", "PixelSpacing", "2"},
		{Tag{0x0028, 0x0106}, "US", "SmallestImagePixelValue", "1"},
		{Tag{0x0028, 0x0107}, "US", "LargestImagePixelValue", "1"},
		{Tag{0x0028, 0x1050}, "DS", "WindowCenter", "1-n"},
		{Tag{0x0028, 0x1051}, "DS", "WindowWidth", "1-n"},
		{RescaleIntercept, "DS", "RescaleIntercept", "1"},
		{RescaleSlope, "DS", "RescaleSlope", "1"},
		{Tag{0x0028, 0x1054}, "LO", "RescaleType", "1"},

		{PixelData, "OW", "PixelData", "1"},
		{PixelDataProviderURL, "UR", "PixelDataProviderURL", "1"},

		// 0018 group (acquisition device)
		{Tag{0x0018, 0x0010}, "LO", "ContrastBolusAgent", "1"},
		{Tag{0x0018, 0x0050}, "DS", "SliceThickness", "1"},
		{Tag{0x0018, 0x1170}, "IS", "GeneratorPower", "1"},

		{Tag{0x0002, 0x0100}, "UI", "PrivateInformationCreatorUID", "1"},

		// Repeating groups: every 0x50xx/0x60xx tag is looked up under
		// its 0x5000/0x6000 base (see canonicalTag).
		{Tag{0x5000, 0x0010}, "US", "NumberOfPoints", "1"},
		{Tag{0x6000, 0x0010}, "US", "OverlayRows", "1"},

		// Item and delimiters (always implicit VR on the wire).
		{Item, "NA", "Item", "1"},
		{ItemDelimitationItem, "NA", "ItemDelimitationItem", "1"},
		{SequenceDelimitationItem, "NA", "SequenceDelimitationItem", "1"},
	}
	m := make(map[Tag]TagInfo, len(rows))
	for _, r := range rows {
		m[r.Tag] = r
	}
	return m
}

func maybeInitTagDict() {
	tagDictOnce.Do(func() {
		tagDict = seedTagDict()
		keywordDict = make(map[string]Tag, len(tagDict))
		for tag, info := range tagDict {
			keywordDict[canonicalKeyword(info.Name)] = tag
		}
	})
}

// AddTagDictEntry lets a caller register private or vendor-specific tags
// into the process-wide dictionary without forking this package. Not
// meant to be called concurrently with lookups mid-parse.
func AddTagDictEntry(info TagInfo) {
	maybeInitTagDict()
	tagDict[info.Tag] = info
	keywordDict[canonicalKeyword(info.Name)] = info.Tag
}
