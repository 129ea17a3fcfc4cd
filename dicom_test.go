package dicom_test

import (
	"bytes"
	"testing"

	"github.com/medicore/dcmcore"
	"github.com/medicore/dcmcore/dicomtag"
	"github.com/medicore/dcmcore/dicomuid"

	"github.com/stretchr/testify/require"
)

// buildTestDataSet assembles a small, self-contained data set: a
// conformant meta group plus a handful of body elements and a tiny
// uncompressed 2x2 single-sample image, so the read/write tests below
// don't depend on an external .dcm fixture.
func buildTestDataSet(t *testing.T) *dicom.DataSet {
	t.Helper()

	meta := []*dicom.Element{
		dicom.MustNewElement(dicomtag.MediaStorageSOPClassUID, "1.2.840.10008.5.1.4.1.1.7"),
		dicom.MustNewElement(dicomtag.MediaStorageSOPInstanceUID, "1.2.3.4.5.6.7.8"),
		dicom.MustNewElement(dicomtag.TransferSyntaxUID, dicomuid.ExplicitVRLittleEndian),
	}

	body := []*dicom.Element{
		dicom.MustNewElement(dicomtag.PatientID, "7DkT2Tp"),
		dicom.MustNewElement(dicomtag.PatientBirthDate, "19530828"),
		dicom.MustNewElement(dicomtag.InstitutionName, "UCLA Medical Center"),
		dicom.MustNewElement(dicomtag.PatientName, "Doe^Jane"),
		dicom.MustNewElement(dicomtag.StudyInstanceUID, "1.2.3.4.5"),
		dicom.MustNewElement(dicomtag.SeriesInstanceUID, "1.2.3.4.5.6"),
		dicom.MustNewElement(dicomtag.Rows, uint16(2)),
		dicom.MustNewElement(dicomtag.Columns, uint16(2)),
		dicom.MustNewElement(dicomtag.SamplesPerPixel, uint16(1)),
		dicom.MustNewElement(dicomtag.BitsAllocated, uint16(8)),
		dicom.MustNewElement(dicomtag.PixelRepresentation, uint16(0)),
	}

	pixelData := dicom.PixelDataInfo{
		Native: dicom.NativePixelData{
			BitsAllocated:   8,
			Rows:            2,
			Columns:         2,
			Frames:          1,
			SamplesPerPixel: 1,
			Data: [][][][]int64{
				{
					{{10}, {20}},
					{{30}, {40}},
				},
			},
		},
	}
	body = append(body, dicom.MustNewElement(dicomtag.PixelData, pixelData))

	return &dicom.DataSet{Elements: append(meta, body...)}
}

func TestWriteReadRoundTrip(t *testing.T) {
	ds := buildTestDataSet(t)

	var buf bytes.Buffer
	require.NoError(t, dicom.WriteDataSet(&buf, ds))

	got, err := dicom.ReadDataSetInBytes(buf.Bytes(), dicom.ReadOptions{})
	require.NoError(t, err)

	patientID, err := got.FindElementByTag(dicomtag.PatientID)
	require.NoError(t, err)
	require.Equal(t, "7DkT2Tp", patientID.MustGetString())

	birthDate, err := got.FindElementByTag(dicomtag.PatientBirthDate)
	require.NoError(t, err)
	require.Equal(t, "19530828", birthDate.MustGetString())

	institution, err := got.FindElementByTag(dicomtag.InstitutionName)
	require.NoError(t, err)
	require.Equal(t, "UCLA Medical Center", institution.MustGetString())

	pixelElem, err := got.FindElementByTag(dicomtag.PixelData)
	require.NoError(t, err)
	info := pixelElem.Value[0].(dicom.PixelDataInfo)
	require.False(t, info.Encapsulated)
	require.Equal(t, int64(10), info.Native.Data[0][0][0][0])
	require.Equal(t, int64(40), info.Native.Data[0][1][1][0])
}

func TestUpdateExistingElement(t *testing.T) {
	ds := buildTestDataSet(t)

	patientID, err := ds.FindElementByTag(dicomtag.PatientID)
	require.NoError(t, err)
	patientID.Value = []interface{}{"Zhang San"}

	var buf bytes.Buffer
	require.NoError(t, dicom.WriteDataSet(&buf, ds))

	got, err := dicom.ReadDataSetInBytes(buf.Bytes(), dicom.ReadOptions{})
	require.NoError(t, err)
	updated, err := got.FindElementByTag(dicomtag.PatientID)
	require.NoError(t, err)
	require.Equal(t, "Zhang San", updated.MustGetString())
}

func TestSetInsertsAbsentTag(t *testing.T) {
	ds := buildTestDataSet(t)
	require.False(t, ds.Contains(dicomtag.InstanceNumber))

	ds.Set(dicom.MustNewElement(dicomtag.InstanceNumber, int32(7)))
	require.True(t, ds.Contains(dicomtag.InstanceNumber))

	elem, err := ds.FindElementByTag(dicomtag.InstanceNumber)
	require.NoError(t, err)
	require.Equal(t, int32(7), elem.MustGetInt32())

	// Set again replaces in place rather than appending a duplicate.
	ds.Set(dicom.MustNewElement(dicomtag.InstanceNumber, int32(8)))
	count := 0
	for _, e := range ds.Elements {
		if e.Tag == dicomtag.InstanceNumber {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestSetByNameInsertsByKeyword(t *testing.T) {
	ds := buildTestDataSet(t)
	require.NoError(t, ds.SetByName("PatientID", "new-patient"))

	elem, err := ds.FindElementByTag(dicomtag.PatientID)
	require.NoError(t, err)
	require.Equal(t, "new-patient", elem.MustGetString())
}

func TestReadOptionsDropPixelData(t *testing.T) {
	ds := buildTestDataSet(t)
	var buf bytes.Buffer
	require.NoError(t, dicom.WriteDataSet(&buf, ds))

	data, err := dicom.ReadDataSetInBytes(buf.Bytes(), dicom.ReadOptions{DropPixelData: true})
	require.NoError(t, err)

	_, err = data.FindElementByTag(dicomtag.PatientName)
	require.NoError(t, err)
	_, err = data.FindElementByTag(dicomtag.PixelData)
	require.Error(t, err)
}

func TestReadOptionsReturnTags(t *testing.T) {
	ds := buildTestDataSet(t)
	var buf bytes.Buffer
	require.NoError(t, dicom.WriteDataSet(&buf, ds))

	data, err := dicom.ReadDataSetInBytes(buf.Bytes(), dicom.ReadOptions{
		DropPixelData: true,
		ReturnTags:    []dicomtag.Tag{dicomtag.StudyInstanceUID},
	})
	require.NoError(t, err)

	_, err = data.FindElementByTag(dicomtag.StudyInstanceUID)
	require.NoError(t, err)
	_, err = data.FindElementByTag(dicomtag.PatientName)
	require.Error(t, err, "PatientName should not be present")
}

func TestReadOptionsStopAtTag(t *testing.T) {
	ds := buildTestDataSet(t)
	var buf bytes.Buffer
	require.NoError(t, dicom.WriteDataSet(&buf, ds))

	data, err := dicom.ReadDataSetInBytes(buf.Bytes(), dicom.ReadOptions{
		DropPixelData: true,
		StopAtTag:     &dicomtag.StudyInstanceUID,
	})
	require.NoError(t, err)

	_, err = data.FindElementByTag(dicomtag.PatientName)
	require.NoError(t, err)
	_, err = data.FindElementByTag(dicomtag.SeriesInstanceUID)
	require.Error(t, err, "SeriesInstanceUID should not be present, it comes after StudyInstanceUID")
}

func TestReadOptionsMaxGroup(t *testing.T) {
	ds := buildTestDataSet(t)
	var buf bytes.Buffer
	require.NoError(t, dicom.WriteDataSet(&buf, ds))

	maxGroup := uint16(0x0010)
	data, err := dicom.ReadDataSetInBytes(buf.Bytes(), dicom.ReadOptions{MaxGroup: &maxGroup})
	require.NoError(t, err)

	_, err = data.FindElementByTag(dicomtag.PatientName)
	require.NoError(t, err)
	_, err = data.FindElementByTag(dicomtag.StudyInstanceUID) // group 0x0020
	require.Error(t, err)
}

func TestReadOptionsAuxVRSkipsElement(t *testing.T) {
	ds := buildTestDataSet(t)
	var buf bytes.Buffer
	require.NoError(t, dicom.WriteDataSet(&buf, ds))

	data, err := dicom.ReadDataSetInBytes(buf.Bytes(), dicom.ReadOptions{
		DropPixelData: true,
		AuxVR:         map[dicomtag.Tag]string{dicomtag.InstitutionName: ""},
	})
	require.NoError(t, err)

	_, err = data.FindElementByTag(dicomtag.InstitutionName)
	require.Error(t, err, "InstitutionName should have been skipped by the aux_vr override")
	_, err = data.FindElementByTag(dicomtag.PatientName)
	require.NoError(t, err)
}

func TestReadOptionsReturnVR(t *testing.T) {
	ds := buildTestDataSet(t)
	var buf bytes.Buffer
	require.NoError(t, dicom.WriteDataSet(&buf, ds))

	_, vrMap, err := dicom.ParseDataSet(bytes.NewReader(buf.Bytes()), dicom.ReadOptions{DropPixelData: true, ReturnVR: true})
	require.NoError(t, err)
	require.Equal(t, "PN", vrMap[dicomtag.PatientName])
}
