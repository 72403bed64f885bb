package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testBaseURL = "http://localhost:8080"

func writePng(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// newTestAssets builds a minimal assets dir with background and seal.
func newTestAssets(t *testing.T, withSeal bool) string {
	t.Helper()
	dir := t.TempDir()
	writePng(t, filepath.Join(dir, backgroundAsset), CardWidth, CardHeight,
		color.NRGBA{R: 0xf5, G: 0xf0, B: 0xe0, A: 0xff})
	if withSeal {
		writePng(t, filepath.Join(dir, sealAsset), 300, 300,
			color.NRGBA{R: 0xc0, G: 0x90, B: 0x10, A: 0xff})
	}
	return dir
}

func testPhoto(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 800, 600))
	for y := 0; y < 600; y++ {
		for x := 0; x < 800; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 0x60, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testIdentity() Identity {
	return Identity{
		FullName:       "Ada Lovelace",
		Alias:          "The Enchantress",
		Role:           "Journalist",
		CardId:         "1234567",
		IssueDate:      "2026-08-30",
		ExpirationDate: "2027-08-30",
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	r, err := NewRenderer(newTestAssets(t, true), testBaseURL, "")
	require.NoError(t, err)

	photo := testPhoto(t)
	png1, pdf1, err := r.Render(testIdentity(), photo)
	require.NoError(t, err)
	png2, pdf2, err := r.Render(testIdentity(), photo)
	require.NoError(t, err)

	require.Equal(t, png1, png2, "same inputs must produce identical rasters")
	require.Equal(t, pdf1, pdf2, "creation date is pinned, documents must match")
}

func TestRenderProducesCanvasSizedArtifacts(t *testing.T) {
	r, err := NewRenderer(newTestAssets(t, true), testBaseURL, "")
	require.NoError(t, err)

	pngBytes, pdfBytes, err := r.Render(testIdentity(), testPhoto(t))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(pngBytes))
	require.NoError(t, err)
	require.Equal(t, CardWidth, img.Bounds().Dx())
	require.Equal(t, CardHeight, img.Bounds().Dy())

	require.True(t, bytes.HasPrefix(pdfBytes, []byte("%PDF")))
}

func TestRenderMissingBackgroundIsFatal(t *testing.T) {
	_, err := NewRenderer(t.TempDir(), testBaseURL, "")
	require.ErrorIs(t, err, ErrTemplateMissing)
}

func TestRenderMissingSealIsTolerated(t *testing.T) {
	r, err := NewRenderer(newTestAssets(t, false), testBaseURL, "")
	require.NoError(t, err)
	require.Nil(t, r.seal)

	pngBytes, _, err := r.Render(testIdentity(), testPhoto(t))
	require.NoError(t, err)
	require.NotEmpty(t, pngBytes)
}

func TestRenderRejectsMalformedPhoto(t *testing.T) {
	r, err := NewRenderer(newTestAssets(t, true), testBaseURL, "")
	require.NoError(t, err)

	_, _, err = r.Render(testIdentity(), []byte("definitely not an image"))
	require.ErrorIs(t, err, ErrInvalidPhoto)
}

func TestVerificationURL(t *testing.T) {
	require.Equal(t, "http://localhost:8080/verify/1234567",
		VerificationURL(testBaseURL, "1234567"))
}
