package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSGDeviceMap(t *testing.T) {
	fixture := `lrwxrwxrwx 1 root root 0 Jan  1 00:00 Changer-QUALSTAR -> /dev/sg1
lrwxrwxrwx 1 root root 0 Jan  1 00:00 Tape-IBM_SN1234 -> /dev/sg2
lrwxrwxrwx 1 root root 0 Jan  1 00:00 Tape-IBM_SN5678 -> /dev/sg3
lrwxrwxrwx 1 root root 0 Jan  1 00:00 not-a-recognized-entry -> /dev/sg4
`
	devices := ParseSGDeviceMap(fixture)
	require.Len(t, devices, 3)

	assert.True(t, devices[0].IsChanger)
	assert.Equal(t, "/dev/sg1", devices[0].Path)

	assert.False(t, devices[1].IsChanger)
	assert.Equal(t, "SN1234", devices[1].Serial)
	assert.Equal(t, "/dev/sg2", devices[1].Path)

	assert.Equal(t, "SN5678", devices[2].Serial)
	assert.Equal(t, "/dev/sg3", devices[2].Path)
}
