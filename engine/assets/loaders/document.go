package loaders

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/spaghettifunk/vent/engine/core"
)

// Document is a decoded glTF document with every buffer resolved, and the
// directory its external URIs resolve against.
type Document struct {
	*gltf.Document
	Dir string
}

// ParseDocument opens a .gltf or .glb file. GLB is detected from the content.
func ParseDocument(path string) (*Document, error) {
	doc, err := decodeGuarded(func() (*gltf.Document, error) {
		return gltf.Open(path)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Document{Document: doc, Dir: filepath.Dir(path)}, nil
}

// DecodeDocument reads a document from r. External buffers and images resolve
// against dir; with an empty dir only embedded data is accepted.
func DecodeDocument(r io.Reader, dir string) (*Document, error) {
	doc, err := decodeGuarded(func() (*gltf.Document, error) {
		var fsys fs.FS
		if dir != "" {
			fsys = os.DirFS(dir)
		}
		doc := new(gltf.Document)
		if err := gltf.NewDecoderFS(r, fsys).Decode(doc); err != nil {
			return nil, err
		}
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return &Document{Document: doc, Dir: dir}, nil
}

// decodeGuarded runs decode, maps its failures onto the engine errors and
// validates the result.
func decodeGuarded(decode func() (*gltf.Document, error)) (doc *gltf.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: malformed glTF: %v", core.ErrParse, r)
		}
	}()

	doc, err = decode()
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, fmt.Errorf("%w: %w", core.ErrIO, err)
		}
		return nil, fmt.Errorf("%w: %w", core.ErrParse, err)
	}
	if err := validateDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// validateDocument checks every byte range the document declares against the
// resolved buffers, so no later read slices out of range or allocates more
// than the buffers hold.
func validateDocument(doc *gltf.Document) error {
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return fmt.Errorf("%w: glTF version %q, want 2.x", core.ErrParse, doc.Asset.Version)
	}
	for i, buf := range doc.Buffers {
		if buf == nil {
			return fmt.Errorf("%w: buffer %d is null", core.ErrParse, i)
		}
		if buf.ByteLength < 0 || len(buf.Data) < buf.ByteLength {
			return fmt.Errorf("%w: buffer %d declares %d bytes, %d resolved", core.ErrParse, i, buf.ByteLength, len(buf.Data))
		}
	}
	for i, bv := range doc.BufferViews {
		if err := validateBufferView(doc, bv); err != nil {
			return fmt.Errorf("%w: buffer view %d: %w", core.ErrParse, i, err)
		}
	}
	for i, acc := range doc.Accessors {
		if err := validateAccessor(doc, acc); err != nil {
			return fmt.Errorf("%w: accessor %d: %w", core.ErrParse, i, err)
		}
	}
	return nil
}

func validateBufferView(doc *gltf.Document, bv *gltf.BufferView) error {
	if bv == nil {
		return errors.New("null")
	}
	if bv.Buffer < 0 || bv.Buffer >= len(doc.Buffers) {
		return fmt.Errorf("buffer %d out of range", bv.Buffer)
	}
	if bv.ByteOffset < 0 || bv.ByteLength < 0 || bv.ByteStride < 0 {
		return fmt.Errorf("negative offset %d, length %d or stride %d", bv.ByteOffset, bv.ByteLength, bv.ByteStride)
	}
	size := doc.Buffers[bv.Buffer].ByteLength
	if bv.ByteOffset > size || bv.ByteLength > size-bv.ByteOffset {
		return fmt.Errorf("[%d, +%d) exceeds buffer of %d bytes", bv.ByteOffset, bv.ByteLength, size)
	}
	return nil
}

// validateAccessor bounds count elements of the accessor layout against its
// buffer view. Sparse accessors and accessors without a buffer view carry no
// geometry of their own and are rejected.
func validateAccessor(doc *gltf.Document, acc *gltf.Accessor) error {
	if acc == nil {
		return errors.New("null")
	}
	if acc.Sparse != nil {
		return errors.New("sparse accessors are not supported")
	}
	if acc.Count < 0 || acc.ByteOffset < 0 {
		return fmt.Errorf("negative count %d or offset %d", acc.Count, acc.ByteOffset)
	}
	elementSize := gltf.SizeOfElement(acc.ComponentType, acc.Type)
	if elementSize <= 0 {
		return fmt.Errorf("unknown layout %v/%v", acc.Type, acc.ComponentType)
	}
	if acc.BufferView == nil {
		if acc.Count > 0 {
			return errors.New("no buffer view")
		}
		return nil
	}
	if *acc.BufferView < 0 || *acc.BufferView >= len(doc.BufferViews) {
		return fmt.Errorf("buffer view %d out of range", *acc.BufferView)
	}
	if acc.Count == 0 {
		return nil
	}

	bv := doc.BufferViews[*acc.BufferView]
	stride := elementSize
	if bv.ByteStride > 0 {
		if bv.ByteStride < elementSize {
			return fmt.Errorf("stride %d is shorter than its %d byte elements", bv.ByteStride, elementSize)
		}
		stride = bv.ByteStride
	}
	if acc.ByteOffset > bv.ByteLength || bv.ByteLength-acc.ByteOffset < elementSize {
		return fmt.Errorf("offset %d leaves no element in a %d byte view", acc.ByteOffset, bv.ByteLength)
	}
	if fit := (bv.ByteLength-acc.ByteOffset-elementSize)/stride + 1; acc.Count > fit {
		return fmt.Errorf("%d elements, the view holds %d", acc.Count, fit)
	}
	return nil
}

func (d *Document) accessor(index int) (*gltf.Accessor, error) {
	if index < 0 || index >= len(d.Accessors) {
		return nil, fmt.Errorf("%w: accessor %d out of range", core.ErrParse, index)
	}
	return d.Accessors[index], nil
}

// ReadPositions reads a VEC3 FLOAT accessor.
func (d *Document) ReadPositions(index int) ([][3]float32, error) {
	acc, err := d.accessor(index)
	if err != nil {
		return nil, err
	}
	out, err := modeler.ReadPosition(d.Document, acc, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: accessor %d: %w", core.ErrParse, index, err)
	}
	return out, nil
}

// ReadNormals reads a VEC3 FLOAT accessor.
func (d *Document) ReadNormals(index int) ([][3]float32, error) {
	acc, err := d.accessor(index)
	if err != nil {
		return nil, err
	}
	out, err := modeler.ReadNormal(d.Document, acc, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: accessor %d: %w", core.ErrParse, index, err)
	}
	return out, nil
}

// ReadTexcoords reads a VEC2 accessor of FLOAT or of normalized UNSIGNED_BYTE
// or UNSIGNED_SHORT, converted to float.
func (d *Document) ReadTexcoords(index int) ([][2]float32, error) {
	acc, err := d.accessor(index)
	if err != nil {
		return nil, err
	}
	out, err := modeler.ReadTextureCoord(d.Document, acc, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: accessor %d: %w", core.ErrParse, index, err)
	}
	return out, nil
}

// ReadIndices reads a SCALAR accessor of UNSIGNED_BYTE, UNSIGNED_SHORT or
// UNSIGNED_INT widened to uint32.
func (d *Document) ReadIndices(index int) ([]uint32, error) {
	acc, err := d.accessor(index)
	if err != nil {
		return nil, err
	}
	out, err := modeler.ReadIndices(d.Document, acc, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: accessor %d: %w", core.ErrParse, index, err)
	}
	return out, nil
}

// BufferViewData returns the bytes covered by a buffer view.
func (d *Document) BufferViewData(index int) ([]byte, error) {
	if index < 0 || index >= len(d.BufferViews) {
		return nil, fmt.Errorf("%w: buffer view %d out of range", core.ErrParse, index)
	}
	data, err := modeler.ReadBufferView(d.Document, d.BufferViews[index])
	if err != nil {
		return nil, fmt.Errorf("%w: buffer view %d: %w", core.ErrParse, index, err)
	}
	return data, nil
}

// ReadImageURI returns the bytes of an image URI: an embedded data: URI, or a
// file relative to Dir. The MIME type is the one a data: URI declares.
func (d *Document) ReadImageURI(img *gltf.Image) ([]byte, string, error) {
	if img.IsEmbeddedResource() {
		data, err := img.MarshalData()
		if err != nil {
			return nil, "", fmt.Errorf("%w: image data URI: %w", core.ErrParse, err)
		}
		mimeType, _, _ := strings.Cut(strings.TrimPrefix(img.URI, "data:"), ";")
		return data, mimeType, nil
	}
	path, err := url.PathUnescape(img.URI)
	if err != nil {
		path = img.URI
	}
	path = filepath.FromSlash(path)
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.Dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: loading %q: %w", core.ErrIO, img.URI, err)
	}
	return data, "", nil
}

// SceneRoots returns the root nodes of every scene, in scene order.
func (d *Document) SceneRoots() [][]int {
	roots := make([][]int, len(d.Scenes))
	for i, s := range d.Scenes {
		if s != nil {
			roots[i] = s.Nodes
		}
	}
	return roots
}
