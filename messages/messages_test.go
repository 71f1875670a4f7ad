package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	code, payload, err := Split("CHAThello there\r\n")
	require.NoError(t, err)
	assert.Equal(t, "CHAT", code)
	assert.Equal(t, "hello there", payload)

	code, payload, err = Split("MAPS\n")
	require.NoError(t, err)
	assert.Equal(t, "MAPS", code)
	assert.Equal(t, "", payload)

	_, _, err = Split("ab\n")
	require.ErrorIs(t, err, ErrTooShort)

	_, _, err = Split("")
	require.ErrorIs(t, err, ErrTooShort)
}

func TestSplitKeepsInteriorWhitespace(t *testing.T) {
	_, payload, err := Split("CHAT  hello \n")
	require.NoError(t, err)
	assert.Equal(t, "  hello", payload)
}

func TestSplitDatagram(t *testing.T) {
	code, payload, err := SplitDatagram([]byte("U-VP1|23.5|42.0"))
	require.NoError(t, err)
	assert.Equal(t, "U-VP", code)
	assert.Equal(t, "1|23.5|42.0", payload)

	_, _, err = SplitDatagram([]byte("abc"))
	require.ErrorIs(t, err, ErrTooShort)

	_, _, err = SplitDatagram([]byte{0xff, 0xfe, 0xfd, 0xfc, 0xfb})
	require.ErrorIs(t, err, ErrNotText)
}

func TestLine(t *testing.T) {
	assert.Equal(t, "PONG\n", Line(MsgPong, ""))
	assert.Equal(t, "MAPCisland\n", Line(MsgMapCurrent, "island"))
}

func TestIsVehicleUpdate(t *testing.T) {
	for _, code := range []string{MsgVehicleInit, MsgVehicleEnter, MsgVehicleNew, MsgVehiclePos, MsgVehicleLeave, MsgVehicleRemove} {
		assert.True(t, IsVehicleUpdate(code), code)
	}
	assert.False(t, IsVehicleUpdate(MsgVehicleCreate))
	assert.False(t, IsVehicleUpdate(MsgChat))
	assert.False(t, IsVehicleUpdate(MsgVehicleNewID))
}
