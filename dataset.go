package dicom

import (
	"fmt"

	"github.com/medicore/dcmcore/dicomtag"
)

// Contains reports whether the data set holds an element for tag.
func (f *DataSet) Contains(tag dicomtag.Tag) bool {
	_, err := f.FindElementByTag(tag)
	return err == nil
}

// Keys returns every tag present in the data set, in encounter order
// (meta-group elements first, as ParseDataSet leaves them).
func (f *DataSet) Keys() []dicomtag.Tag {
	keys := make([]dicomtag.Tag, len(f.Elements))
	for i, elem := range f.Elements {
		keys[i] = elem.Tag
	}
	return keys
}

// Get looks up an element by tag, returning ok==false instead of an error
// when absent -- the indexed-access counterpart to FindElementByTag for
// callers that just want a presence check.
func (f *DataSet) Get(tag dicomtag.Tag) (elem *Element, ok bool) {
	e, err := f.FindElementByTag(tag)
	return e, err == nil
}

// Lookup resolves a keyword (e.g. "PatientName") against ds, the
// keyword-indexed counterpart to FindElementByTag.
func Lookup(ds *DataSet, keyword string) (*Element, error) {
	tag, err := dicomtag.TagForKeyword(keyword)
	if err != nil {
		return nil, err
	}
	return ds.FindElementByTag(tag)
}

// Set assigns elem into the data set by its Tag (spec.md 4.8 "assignment
// by the same keys" -- Tag, keyword string, keyword symbol): if an element
// with elem.Tag is already present it is replaced in place, otherwise elem
// is appended. Unlike mutating a *Element returned by FindElementByTag,
// Set works whether or not the tag already exists.
func (f *DataSet) Set(elem *Element) {
	for i, e := range f.Elements {
		if e.Tag == elem.Tag {
			f.Elements[i] = elem
			return
		}
	}
	f.Elements = append(f.Elements, elem)
}

// SetByName is the keyword-indexed counterpart to Set: it resolves name
// (e.g. "PatientName") to a Tag, builds an Element from values the way
// NewElement does, and inserts-or-updates it in the data set.
func (f *DataSet) SetByName(name string, values ...interface{}) error {
	tag, err := dicomtag.TagForKeyword(name)
	if err != nil {
		return err
	}
	elem, err := NewElement(tag, values...)
	if err != nil {
		return err
	}
	f.Set(elem)
	return nil
}

// VRFor returns the VR this data set actually used to decode tag, which
// may differ from the dictionary's VR for a non-conformant file.
func (f *DataSet) VRFor(tag dicomtag.Tag) (string, bool) {
	e, err := f.FindElementByTag(tag)
	if err != nil {
		return "", false
	}
	return e.VR, true
}

// FindMatching reports whether ds matches every filter element (the
// Query/Retrieve-style glob filtering in queryretrieve.go), scoped to an
// in-memory DataSet rather than the DIMSE C-FIND wire protocol: all
// filters must match for the data set as a whole to match. It is the
// building block ParseDirectoryMatching uses to pull one study's files
// out of a directory holding several.
func (f *DataSet) FindMatching(filters []*Element) (bool, error) {
	for _, filter := range filters {
		match, _, err := Query(f, filter)
		if err != nil {
			return false, err
		}
		if !match {
			return false, nil
		}
	}
	return true, nil
}

// RescalePixelData applies this data set's RescaleSlope/RescaleIntercept
// (defaulting to the identity transform if absent) to its PixelData
// element's native samples, returning the rescaled (real-world) values.
// It is an error to call this on an encapsulated (compressed) PixelData,
// since compressed pixel data has no per-sample values to rescale.
func (f *DataSet) RescalePixelData() ([][][][]float64, error) {
	elem, err := f.FindElementByTag(dicomtag.PixelData)
	if err != nil {
		return nil, err
	}
	if len(elem.Value) != 1 {
		return nil, fmt.Errorf("dicom: PixelData element has no value to rescale")
	}
	info, ok := elem.Value[0].(PixelDataInfo)
	if !ok {
		return nil, fmt.Errorf("dicom: PixelData element's value is not PixelDataInfo")
	}
	if info.Encapsulated {
		return nil, fmt.Errorf("dicom: cannot rescale encapsulated (compressed) PixelData")
	}
	slope, intercept := RescaleSlopeIntercept(f)
	return Rescale(info.Native, slope, intercept), nil
}

// UnrescalePixelData inverts RescalePixelData: given real-world values
// previously produced by RescalePixelData, it recovers the stored integer
// samples using this data set's RescaleSlope/RescaleIntercept (identity if
// absent).
func (f *DataSet) UnrescalePixelData(rescaled [][][][]float64) [][][][]int64 {
	slope, intercept := RescaleSlopeIntercept(f)
	return Unrescale(rescaled, slope, intercept)
}
