package proxypool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func abc() []Endpoint {
	return []Endpoint{
		{Host: "A", Port: 1},
		{Host: "B", Port: 2},
		{Host: "C", Port: 3},
	}
}

func TestRoundRobinAllHealthy(t *testing.T) {
	p := New(abc())

	var got []string
	for i := 0; i < 6; i++ {
		ep, ok := p.Next()
		require.True(t, ok)
		got = append(got, ep.Host)
	}
	require.Equal(t, []string{"A", "B", "C", "A", "B", "C"}, got)
}

func TestRoundRobinPartialHealth(t *testing.T) {
	p := New(abc())
	p.SetHealth(Endpoint{Host: "B", Port: 2}, false)

	var got []string
	for i := 0; i < 5; i++ {
		ep, ok := p.Next()
		require.True(t, ok)
		got = append(got, ep.Host)
	}
	require.Equal(t, []string{"A", "C", "A", "C", "A"}, got)

	ep, ok := p.Next()
	require.True(t, ok)
	require.Equal(t, "A", ep.Host)
}

func TestNextReturnsFalseWhenNoneHealthy(t *testing.T) {
	p := New(abc())
	for _, e := range abc() {
		p.SetHealth(e, false)
	}
	_, ok := p.Next()
	require.False(t, ok)
}

func TestLoadFileParsesAndSkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proxies.txt")
	content := "127.0.0.1:8080\n# comment\n192.168.1.1:3128\n10.0.0.1:8080:user:pass\nmalformed\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 3, p.Len())

	members := p.Members()
	last := members[2]
	require.Equal(t, "10.0.0.1", last.Host)
	require.Equal(t, "user", last.Username)
	require.Equal(t, "pass", last.Password)
}
