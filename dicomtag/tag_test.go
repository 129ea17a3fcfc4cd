package dicomtag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRepeatingGroupCanonicalisation(t *testing.T) {
	a, err := Find(Tag{0x5002, 0x0010})
	require.NoError(t, err)
	b, err := Find(Tag{0x5000, 0x0010})
	require.NoError(t, err)
	require.Equal(t, a.VR, b.VR)
	require.Equal(t, a.Name, b.Name)

	c, err := Find(Tag{0x6010, 0x0010})
	require.NoError(t, err)
	d, err := Find(Tag{0x6000, 0x0010})
	require.NoError(t, err)
	require.Equal(t, c.VR, d.VR)
}

func TestFindByNameWhitespaceInsensitive(t *testing.T) {
	info, err := FindByName("Patient Name")
	require.NoError(t, err)
	require.Equal(t, PatientName, info.Tag)

	info, err = FindByName("patientname")
	require.NoError(t, err)
	require.Equal(t, PatientName, info.Tag)

	_, err = FindByName("NotARealKeyword")
	require.Error(t, err)
}

func TestTagForKeyword(t *testing.T) {
	tag, err := TagForKeyword("Modality")
	require.NoError(t, err)
	require.Equal(t, Modality, tag)
}

func TestGroupLengthFallback(t *testing.T) {
	info, err := Find(Tag{0x0010, 0x0000})
	require.NoError(t, err)
	require.Equal(t, "UL", info.VR)
}

func TestTagCompare(t *testing.T) {
	require.Equal(t, -1, Tag{0x0008, 0x0000}.Compare(Tag{0x0010, 0x0000}))
	require.Equal(t, 0, PatientName.Compare(PatientName))
	require.Equal(t, 1, Tag{0x0010, 0x0020}.Compare(Tag{0x0010, 0x0010}))
}
