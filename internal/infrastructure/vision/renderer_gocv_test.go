//go:build gocv
// +build gocv

package vision

import (
	"testing"

	"github.com/stretchr/testify/require"

	"leaf-detect/internal/domain/entity"
	"leaf-detect/internal/infrastructure/storage"
)

func TestGoCVRenderer_IgnoresEXIFOrientation(t *testing.T) {
	data := rotatedJPEG(t, 40, 20)

	mat, err := decodeToMat(data)
	require.NoError(t, err)
	defer mat.Close()
	require.Equal(t, 40, mat.Cols())
	require.Equal(t, 20, mat.Rows())

	handles := storage.NewMemoryHandleStore()
	handle, err := handles.Create(data)
	require.NoError(t, err)

	img := entity.SelectedImage{ID: "sel", Name: "rotated.jpg", Raw: data, Handle: handle}
	overlay, err := NewGoCVRenderer(handles).Render(img, nil)
	require.NoError(t, err)
	require.Equal(t, 40, overlay.Width())
	require.Equal(t, 20, overlay.Height())
}
