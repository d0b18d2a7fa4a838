package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStorePutGet(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	key, err := s.Put("diagrams/abc.svg", strings.NewReader("<svg/>"))
	require.NoError(t, err)
	assert.Equal(t, "diagrams/abc.svg", key)

	rc, err := s.Get("/diagrams/abc.svg")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "<svg/>", string(b))

	_, err = s.Get("diagrams/missing.svg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFSStoreKeysStayInsideBase(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	key, err := s.Put("../../etc/evil", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "etc/evil", key)

	_, err = s.Put("..", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestPutDiagram(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	ref, err := PutDiagram(s, "fp1", `  <svg xmlns="http://www.w3.org/2000/svg"><line/></svg>`)
	require.NoError(t, err)
	assert.Equal(t, DiagramKey("fp1"), ref)
	assert.Equal(t, "image/svg+xml", ContentType(ref))

	_, err = PutDiagram(s, "fp2", `<?xml version="1.0"?><svg/>`)
	assert.NoError(t, err)

	for _, bad := range []string{"", "<html></html>", "not svg"} {
		_, err := PutDiagram(s, "fp3", bad)
		assert.ErrorIs(t, err, ErrInvalidDiagram, bad)
	}
	_, err = PutDiagram(s, "", "<svg/>")
	assert.ErrorIs(t, err, ErrInvalidDiagram)
}
