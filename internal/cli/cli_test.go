package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCmdRegistersAllSubcommands(t *testing.T) {
	root := RootCmd()

	want := []string{"monitor", "buy", "proxy", "session", "config", "validate", "generate", "credentials"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, cmd.Name())
	}
}

func TestProxyAndSessionHaveSubcommands(t *testing.T) {
	root := RootCmd()

	cmd, _, err := root.Find([]string{"proxy", "list"})
	require.NoError(t, err)
	require.Equal(t, "list", cmd.Name())

	cmd, _, err = root.Find([]string{"session", "cleanup"})
	require.NoError(t, err)
	require.Equal(t, "cleanup", cmd.Name())
}

func TestGenerateKeyPrintsHexKey(t *testing.T) {
	root := RootCmd()
	root.SetArgs([]string{"generate", "key"})

	var buf bytes.Buffer
	root.SetOut(&buf)

	require.NoError(t, root.Execute())
	require.Len(t, buf.String(), 65) // 64 hex chars + trailing newline
}
