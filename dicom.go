// Package dicom implements a DICOM Part 10 file reader and writer: the
// preamble/meta-group/transfer-syntax handshake, the element and VR
// codec, the sequence/item and pixel-data engines, and a small data-set
// model for keyword- and tag-indexed access.
package dicom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/medicore/dcmcore/dicomio"
	"github.com/medicore/dcmcore/dicomtag"
)

// ParseDataSet reads a full Part 10 stream: the preamble and meta group
// (always explicit-VR little-endian), then the body decoded under
// whatever transfer syntax the meta group's TransferSyntaxUID names. When
// options.ReturnVR is set, the second return value holds the VR actually
// used for every tag seen while parsing the body (spec's return_vr
// option); otherwise it is nil.
//
// On a parse error in the body, the returned data set holds everything
// successfully decoded before the failure and err is non-nil. An error in
// the preamble, the meta group or its transfer syntax returns a nil data
// set.
func ParseDataSet(in io.Reader, options ReadOptions) (*DataSet, map[dicomtag.Tag]string, error) {
	buffer := dicomio.NewDecoder(in, binary.LittleEndian, dicomio.ExplicitVR)

	metaElements := ParseFileHeader(buffer, options)
	if buffer.Error() != nil {
		return nil, nil, buffer.Error()
	}

	file := &DataSet{Elements: metaElements}

	endian, implicit, err := getTransferSyntax(file)
	if err != nil {
		return nil, nil, err
	}

	buffer.PushTransferSyntax(endian, implicit)
	defer buffer.PopTransferSyntax()

	p := newElementParser(buffer, options)
	for !buffer.EOF() {
		startLen := buffer.BytesRead()

		elem := p.readElement()

		if buffer.BytesRead() <= startLen {
			panic(fmt.Sprintf("dicom: readElement made no progress at offset %d: %v", startLen, buffer.Error()))
		}

		if elem == endOfDataElement {
			break
		}
		if elem == nil {
			continue
		}

		if elem.Tag == dicomtag.SpecificCharacterSet {
			// SpecificCharacterSet isn't part of the meta group, but it
			// must take effect before the rest of the data set is decoded
			// as text, so apply it the moment it's seen.
			encodingNames, err := elem.GetStrings()
			if err != nil {
				buffer.SetError(err)
			} else {
				cs, err := dicomio.ParseSpecificCharacterSet(encodingNames)
				if err != nil {
					buffer.SetError(err)
				} else {
					buffer.SetCodingSystem(cs)
				}
			}
		}

		if options.ReturnTags == nil || tagInList(elem.Tag, options.ReturnTags) {
			file.Elements = append(file.Elements, elem)
		}
	}
	return file, p.vrMap, buffer.Error()
}

// ReadDataSet parses a Part 10 stream. It is ParseDataSet without the
// observed-VR-map return value.
func ReadDataSet(in io.Reader, options ReadOptions) (*DataSet, error) {
	ds, _, err := ParseDataSet(in, options)
	return ds, err
}

// ReadDataSetInBytes is ReadDataSet over an in-memory buffer.
func ReadDataSetInBytes(data []byte, options ReadOptions) (*DataSet, error) {
	return ReadDataSet(bytes.NewReader(data), options)
}

func getTransferSyntax(ds *DataSet) (byteorder binary.ByteOrder, implicit dicomio.IsImplicitVR, err error) {
	elem, err := ds.FindElementByTag(dicomtag.TransferSyntaxUID)
	if err != nil {
		// Absent TransferSyntaxUID recovers to the implicit-VR little-endian
		// default (spec's TransferSyntaxMissing policy).
		return binary.LittleEndian, dicomio.ImplicitVR, nil
	}

	transferSyntaxUID, err := elem.GetString()
	if err != nil {
		return nil, dicomio.UnknownVR, err
	}

	return dicomio.ParseTransferSyntaxUID(transferSyntaxUID)
}

// ReadDataSetFromFile reads a file into a *DataSet. On an error in the
// body, a partially-decoded data set is returned alongside the first error
// encountered; see ParseDataSet.
func ReadDataSetFromFile(path string, options ReadOptions) (*DataSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	ds, err := ReadDataSet(file, options)
	if e := file.Close(); e != nil && err == nil {
		err = e
	}

	return ds, err
}

// ParseDirectory walks every regular file under root, attempts to parse
// each as a DICOM data set, and returns the ones that parse successfully
// sorted by Instance Number (0020,0013). Files that fail to parse (e.g.
// non-DICOM files sitting alongside a study) are silently skipped -- this
// mirrors how PACS media readers tolerate DICOMDIR siblings and README
// files on a CD.
func ParseDirectory(root string) ([]*DataSet, error) {
	var all []*DataSet
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ds, err := ReadDataSetFromFile(path, ReadOptions{})
		if err != nil || ds == nil {
			return nil
		}
		all = append(all, ds)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool {
		return instanceNumberOf(all[i]) < instanceNumberOf(all[j])
	})
	return all, nil
}

// ParseDirectoryMatching is ParseDirectory restricted to data sets that
// match every filter element (DataSet.FindMatching / Query), e.g. to pull
// only one PatientID's files out of a directory holding several studies.
func ParseDirectoryMatching(root string, filters []*Element) ([]*DataSet, error) {
	all, err := ParseDirectory(root)
	if err != nil {
		return nil, err
	}
	var matched []*DataSet
	for _, ds := range all {
		ok, err := ds.FindMatching(filters)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, ds)
		}
	}
	return matched, nil
}

func instanceNumberOf(ds *DataSet) int {
	e, err := ds.FindElementByTag(dicomtag.InstanceNumber)
	if err != nil {
		return 0
	}
	v, err := e.GetInt32()
	if err != nil {
		return 0
	}
	return int(v)
}
