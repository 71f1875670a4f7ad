package util

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetFlagsFromEnvVars(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	var logLevel string
	var port int
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "")
	cmd.PersistentFlags().IntVar(&port, "tcp-port", 30813, "")

	t.Setenv("BNG_LOG_LEVEL", "debug")
	SetFlagsFromEnvVars(cmd)

	assert.Equal(t, "debug", logLevel)
	assert.Equal(t, 30813, port)
}

func TestFlagNameToUpper(t *testing.T) {
	require.Equal(t, "UDP_PORT", flagNameToUpper("udp-port"))
	require.Equal(t, "CONFIG", flagNameToUpper("config"))
}
