package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorflow-io/QualstarLibrary/internal/model"
)

func TestParseWindowsDrives(t *testing.T) {
	fixture := `E  0.0  SN1234  LTFS_MEDIA
   0.1  SN5678  NO_MEDIA
`
	rows := ParseWindowsDrives(fixture)
	require.Len(t, rows, 2)

	assert.Equal(t, "E", rows[0].AssignedLetter)
	assert.Equal(t, "0.0", rows[0].Address)
	assert.Equal(t, "SN1234", rows[0].Serial)
	assert.Equal(t, model.LtfsMedia, rows[0].Status)

	assert.Equal(t, "", rows[1].AssignedLetter)
	assert.Equal(t, "0.1", rows[1].Address)
	assert.Equal(t, model.LtfsNoMedia, rows[1].Status)
}

func TestParseWindowsDrivesIgnoresGarbage(t *testing.T) {
	assert.Empty(t, ParseWindowsDrives("not a drive row"))
}
