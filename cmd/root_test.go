package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocrwatch/frigate-ocr/internal/buildinfo"
)

func TestVersionSkipsConfiguration(t *testing.T) {
	root := RootCommand(buildinfo.NewContext("1.4.0", "2024-05-01"))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--config", "/nonexistent/config.yml"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "frigate-ocr 1.4.0 (built 2024-05-01)\n", out.String())
}

func TestSubcommandsRegistered(t *testing.T) {
	root := RootCommand(buildinfo.NewContext("", ""))
	for _, name := range []string{"run", "plates", "config", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
