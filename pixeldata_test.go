package dicom_test

import (
	"testing"

	"github.com/medicore/dcmcore"
	"github.com/medicore/dcmcore/dicomtag"

	"github.com/stretchr/testify/require"
)

// buildCTDataSet mimics a small CT slice with RescaleSlope/Intercept set,
// the shape scenario 5 in spec.md exercises (forward rescale then backward
// rescale restores the pre-rescale extrema).
func buildCTDataSet(t *testing.T) *dicom.DataSet {
	t.Helper()
	ds := buildTestDataSet(t)
	ds.Elements = append(ds.Elements,
		dicom.MustNewElement(dicomtag.RescaleIntercept, float64(-1024)),
		dicom.MustNewElement(dicomtag.RescaleSlope, float64(1)),
	)
	return ds
}

func TestRescaleRoundTrip(t *testing.T) {
	ds := buildCTDataSet(t)

	rescaled, err := ds.RescalePixelData()
	require.NoError(t, err)
	require.Equal(t, -1014.0, rescaled[0][0][0][0]) // 10 - 1024
	require.Equal(t, -984.0, rescaled[0][1][1][0])  // 40 - 1024

	restored := ds.UnrescalePixelData(rescaled)
	require.Equal(t, int64(10), restored[0][0][0][0])
	require.Equal(t, int64(40), restored[0][1][1][0])
}

func TestRescaleDefaultsToIdentity(t *testing.T) {
	ds := buildTestDataSet(t)

	rescaled, err := ds.RescalePixelData()
	require.NoError(t, err)
	require.Equal(t, 10.0, rescaled[0][0][0][0])
	require.Equal(t, 40.0, rescaled[0][1][1][0])
}
