package loaders

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/spaghettifunk/vent/engine/core"
	"github.com/spaghettifunk/vent/engine/renderer/metadata"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

type imageDecoder func(io.Reader) (image.Image, error)

var decodersByMIME = map[string]imageDecoder{
	"image/png":  png.Decode,
	"image/jpeg": jpeg.Decode,
	"image/gif":  gif.Decode,
	"image/bmp":  bmp.Decode,
	"image/tiff": tiff.Decode,
	"image/webp": webp.Decode,
}

var mimeByExtension = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
}

// MimeTypeFromExtension returns the image MIME type implied by the extension of path.
func MimeTypeFromExtension(path string) string {
	return mimeByExtension[strings.ToLower(filepath.Ext(path))]
}

// SniffMimeType guesses the image MIME type from the leading bytes of data.
func SniffMimeType(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}

// DecodeImage decodes data into tightly packed RGBA8 pixels. When mimeType is
// empty the type is sniffed from the content.
func DecodeImage(data []byte, mimeType string) (*metadata.ImageResourceData, error) {
	if mimeType == "" {
		mimeType = SniffMimeType(data)
	}
	decode, ok := decodersByMIME[strings.ToLower(mimeType)]
	if !ok {
		return nil, fmt.Errorf("%w: image type %q", core.ErrUnsupportedFormat, mimeType)
	}

	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrDecode, mimeType, err)
	}
	return toRGBA(img), nil
}

func toRGBA(img image.Image) *metadata.ImageResourceData {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*metadata.ImageChannelCount || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	return &metadata.ImageResourceData{
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
		Pixels: rgba.Pix,
	}
}

// TextureLoader loads standalone image files.
type TextureLoader struct{}

func (tl *TextureLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrIO, err)
	}

	mimeType := SniffMimeType(data)
	if mimeType == "" {
		mimeType = MimeTypeFromExtension(path)
	}
	img, err := DecodeImage(data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &metadata.Resource{
		Name:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		FullPath: path,
		Type:     metadata.ResourceTypeImage,
		DataSize: uint64(len(img.Pixels)),
		Data:     img,
	}, nil
}

func (tl *TextureLoader) Unload(*metadata.Resource) error {
	return nil
}
