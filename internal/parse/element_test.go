package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseElements(t *testing.T) {
	fixture := `Storage Changer /dev/sch0:1 Drives, 16 Slots ( 1 Import/Export )
Data Transfer Element 0:Full (Storage Element 10 Loaded):VolumeTag=000063L7
Data Transfer Element 1:Empty:VolumeTag=
Storage Element 1 IMPORT/EXPORT:Empty:VolumeTag=
Storage Element 2:Full:VolumeTag=000077L7
  not an element line at all
`
	elements, err := ParseElements(fixture)
	require.NoError(t, err)
	require.Len(t, elements, 4)

	assert.Equal(t, ElementDataTransfer, elements[0].Kind)
	assert.Equal(t, 0, elements[0].Slot)
	assert.True(t, elements[0].Full)
	require.NotNil(t, elements[0].LoadedFromSlot)
	assert.Equal(t, 10, *elements[0].LoadedFromSlot)
	assert.Equal(t, "000063L7", elements[0].VolumeTag)

	assert.Equal(t, ElementDataTransfer, elements[1].Kind)
	assert.False(t, elements[1].Full)

	assert.True(t, elements[2].IsIO)
	assert.Equal(t, "", elements[2].VolumeTag)

	assert.Equal(t, ElementStorage, elements[3].Kind)
	assert.Equal(t, "000077L7", elements[3].VolumeTag)
}

func TestParseElementsSenseKeyNotReady(t *testing.T) {
	fixture := "Request Sense: Sense Key=Not Ready\nData Transfer Element 0:Empty:VolumeTag="
	elements, err := ParseElements(fixture)
	assert.ErrorIs(t, err, ErrChangerNotReady)
	require.Len(t, elements, 1)
}

func TestParseElementsIgnoresGarbage(t *testing.T) {
	elements, err := ParseElements("this is not mtx output\nneither is this")
	require.NoError(t, err)
	assert.Empty(t, elements)
}
