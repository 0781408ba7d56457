package progress

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderCountsAndReports(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 10)

	var counted int64

	var reports [][2]int64

	pr := NewReader(
		iotest.OneByteReader(bytes.NewReader(data)),
		int64(len(data)),
		4,
		func(n int64) { counted += n },
		func(read, total int64) { reports = append(reports, [2]int64{read, total}) },
	)

	out, err := io.ReadAll(pr)
	require.NoError(t, err)

	assert.Equal(t, data, out)
	assert.Equal(t, int64(10), counted)
	assert.Equal(t, int64(10), pr.BytesRead())
	assert.Equal(t, [][2]int64{{4, 10}, {8, 10}, {10, 10}}, reports)
}

func TestReaderWithoutCallbacks(t *testing.T) {
	pr := NewReader(bytes.NewReader([]byte("bundle")), 6, 0, nil, nil)

	out, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, "bundle", string(out))
}

func TestReaderPropagatesErrors(t *testing.T) {
	pr := NewReader(iotest.ErrReader(io.ErrUnexpectedEOF), 1, 1, nil, nil)

	_, err := io.ReadAll(pr)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
