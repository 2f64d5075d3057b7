package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDf(t *testing.T) {
	fixture := `Filesystem         Size  Avail Target
ltfs:/dev/sg2       600G   580G /mnt/drive1
tmpfs               16G    16G  /dev/shm
ltfs:/dev/sg3       1T     950G /mnt/drive2
`
	rows := ParseDf(fixture)
	require.Len(t, rows, 2)

	assert.Equal(t, "ltfs:/dev/sg2", rows[0].Source)
	assert.Equal(t, int64(600*1024*1024*1024), rows[0].SizeBytes)
	assert.Equal(t, int64(580*1024*1024*1024), rows[0].AvailBytes)
	assert.Equal(t, "/mnt/drive1", rows[0].Target)

	assert.Equal(t, "/mnt/drive2", rows[1].Target)
}

func TestParseDfIgnoresNonLtfsRows(t *testing.T) {
	rows := ParseDf("tmpfs 16G 16G /dev/shm")
	assert.Empty(t, rows)
}
