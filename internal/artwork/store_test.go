package artwork

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStoreSaveIsContentAddressed(t *testing.T) {
	s, err := NewStore(t.TempDir(), hclog.NewNullLogger())
	require.NoError(t, err)

	data := pngBytes(t)
	p1, err := s.Save(data, "image/png")
	require.NoError(t, err)
	p2, err := s.Save(data, "image/png")
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	_, err = os.Stat(p1)
	assert.NoError(t, err)
	_, err = os.Stat(thumbnailPath(p1))
	assert.NoError(t, err, "thumbnail should exist beside the original")
}

func TestStoreSaveRejectsEmptyData(t *testing.T) {
	s, err := NewStore(t.TempDir(), hclog.NewNullLogger())
	require.NoError(t, err)

	_, err = s.Save(nil, "image/png")
	assert.Error(t, err)
}

func TestStoreSaveUndecodableDataStillStoresOriginal(t *testing.T) {
	s, err := NewStore(t.TempDir(), hclog.NewNullLogger())
	require.NoError(t, err)

	p, err := s.Save([]byte("not an image"), "image/jpeg")
	require.NoError(t, err)
	_, err = os.Stat(p)
	assert.NoError(t, err)
	_, err = os.Stat(thumbnailPath(p))
	assert.True(t, os.IsNotExist(err), "no thumbnail for undecodable data")
}

func TestStoreRemoveReleasesBothFiles(t *testing.T) {
	s, err := NewStore(t.TempDir(), hclog.NewNullLogger())
	require.NoError(t, err)

	p, err := s.Save(pngBytes(t), "image/png")
	require.NoError(t, err)

	require.NoError(t, s.Remove(p))
	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(thumbnailPath(p))
	assert.True(t, os.IsNotExist(err))

	// Removing twice is harmless.
	assert.NoError(t, s.Remove(p))
	assert.NoError(t, s.Remove(""))
}
