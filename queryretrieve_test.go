package dicom_test

import (
	"path/filepath"
	"testing"

	"github.com/medicore/dcmcore"
	"github.com/medicore/dcmcore/dicomtag"

	"github.com/stretchr/testify/require"
)

func TestQueryExactValueMatch(t *testing.T) {
	ds := buildTestDataSet(t)

	match, matched, err := dicom.Query(ds, dicom.MustNewElement(dicomtag.PatientID, "7DkT2Tp"))
	require.NoError(t, err)
	require.True(t, match)
	require.NotNil(t, matched)

	match, _, err = dicom.Query(ds, dicom.MustNewElement(dicomtag.PatientID, "someone-else"))
	require.NoError(t, err)
	require.False(t, match)
}

func TestQueryGlobPattern(t *testing.T) {
	ds := buildTestDataSet(t)

	match, _, err := dicom.Query(ds, dicom.MustNewElement(dicomtag.PatientName, "Doe*"))
	require.NoError(t, err)
	require.True(t, match)

	match, _, err = dicom.Query(ds, dicom.MustNewElement(dicomtag.PatientName, "Smith*"))
	require.NoError(t, err)
	require.False(t, match)
}

func TestQueryUniversalMatch(t *testing.T) {
	ds := buildTestDataSet(t)

	match, matched, err := dicom.Query(ds, dicom.MustNewElement(dicomtag.PatientID))
	require.NoError(t, err)
	require.True(t, match)
	require.NotNil(t, matched)
}

func TestFindMatchingRequiresAllFilters(t *testing.T) {
	ds := buildTestDataSet(t)

	ok, err := ds.FindMatching([]*dicom.Element{
		dicom.MustNewElement(dicomtag.PatientID, "7DkT2Tp"),
		dicom.MustNewElement(dicomtag.PatientName, "Doe*"),
	})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ds.FindMatching([]*dicom.Element{
		dicom.MustNewElement(dicomtag.PatientID, "7DkT2Tp"),
		dicom.MustNewElement(dicomtag.PatientName, "Smith*"),
	})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestParseDirectoryMatching(t *testing.T) {
	dir := t.TempDir()

	match := buildTestDataSet(t)
	require.NoError(t, dicom.WriteDataSetToFile(filepath.Join(dir, "match.dcm"), match))

	other := buildTestDataSet(t)
	require.NoError(t, other.SetByName("PatientID", "different-patient"))
	require.NoError(t, dicom.WriteDataSetToFile(filepath.Join(dir, "other.dcm"), other))

	found, err := dicom.ParseDirectoryMatching(dir, []*dicom.Element{
		dicom.MustNewElement(dicomtag.PatientID, "7DkT2Tp"),
	})
	require.NoError(t, err)
	require.Len(t, found, 1)

	patientID, err := found[0].FindElementByTag(dicomtag.PatientID)
	require.NoError(t, err)
	require.Equal(t, "7DkT2Tp", patientID.MustGetString())
}
