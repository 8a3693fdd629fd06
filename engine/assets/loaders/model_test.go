package loaders

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/spaghettifunk/vent/engine/core"
	"github.com/spaghettifunk/vent/engine/math"
	"github.com/spaghettifunk/vent/engine/renderer/headless"
	"github.com/spaghettifunk/vent/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTwoScenesOneTwoPrimitiveMesh(t *testing.T) {
	ctx := newContext(t, 3)
	b := newDocBuilder()
	mesh := b.addMesh("quad", b.triangle(nil), b.triangle(nil))
	b.addScene(b.addNode(gltf.Index(mesh)))
	b.addScene()

	model, err := b.load(t, ctx, "")
	require.NoError(t, err)
	assert.Len(t, model.Meshes, 2)
	for _, m := range model.Meshes {
		assert.Equal(t, "quad", m.Name)
		assert.Equal(t, uint32(3), m.VertexCount)
		assert.Equal(t, uint32(3), m.IndexCount)
	}
	assert.NotEqual(t, model.Meshes[0].ID, model.Meshes[1].ID)

	model.Destroy(ctx)
	assert.Equal(t, headless.Stats{BytesInUse: 3 * metadata.LightUniformSize}, ctx.Stats())
}

func TestLoadCountsPrimitivesOfEveryReachableNode(t *testing.T) {
	ctx := newContext(t, 2)
	b := newDocBuilder()
	single := b.addMesh("single", b.triangle(nil))
	triple := b.addMesh("triple", b.triangle(nil), b.triangle(nil), b.triangle(nil))

	grandchild := b.addNode(gltf.Index(triple))
	child := b.addNode(nil, grandchild)
	root := b.addNode(gltf.Index(single), child)
	other := b.addNode(gltf.Index(single))
	b.addNode(gltf.Index(triple)) // not reachable from any scene
	b.addScene(root)
	b.addScene(other, root)

	model, err := b.load(t, ctx, "")
	require.NoError(t, err)
	// scene 0: 1 + 3, scene 1: 1 + (1 + 3)
	assert.Len(t, model.Meshes, 9)
	assert.Equal(t, "single", model.Meshes[0].Name)
	for _, m := range model.Meshes[1:4] {
		assert.Equal(t, "triple", m.Name)
	}
	model.Destroy(ctx)
}

func TestPrimitiveWithoutNormalsOrTexcoordsHasZeroes(t *testing.T) {
	ctx := newContext(t, 1)
	b := newDocBuilder()
	pos := b.vec3s([3]float32{1, 2, 3}, [3]float32{4, 5, 6}, [3]float32{7, 8, 9}, [3]float32{1, 1, 1})
	mesh := b.addMesh("bare", &gltf.Primitive{
		Attributes: map[string]int{gltf.POSITION: pos},
		Indices:    gltf.Index(b.indices(0, 1, 2, 2, 3, 0)),
	})
	b.addScene(b.addNode(gltf.Index(mesh)))

	model, err := b.load(t, ctx, "")
	require.NoError(t, err)
	require.Len(t, model.Meshes, 1)

	m := model.Meshes[0]
	vertices := decodeVertices(ctx.BufferBytes(m.VertexBuffer))
	require.Len(t, vertices, 4)
	assert.Equal(t, math.NewVec3(4, 5, 6), vertices[1].Position)
	for _, v := range vertices {
		assert.Equal(t, math.Vec3{}, v.Normal)
		assert.Equal(t, math.Vec2{}, v.Texcoord)
	}
	assert.Equal(t, uint64(6*4), m.IndexBuffer.Size)
	assert.Equal(t, metadata.BufferUsageIndex, m.IndexBuffer.Usage)
}

func TestPrimitiveOverlaysNormalsAndTexcoords(t *testing.T) {
	ctx := newContext(t, 1)
	b := newDocBuilder()
	pos := b.vec3s([3]float32{0, 0, 0}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0})
	nrm := b.vec3s([3]float32{0, 0, 1}, [3]float32{0, 1, 0}, [3]float32{1, 0, 0})
	uv := b.vec2s([2]float32{0, 0}, [2]float32{1, 0}, [2]float32{0, 1})
	mesh := b.addMesh("lit", &gltf.Primitive{
		Attributes: map[string]int{
			gltf.POSITION:  pos,
			gltf.NORMAL:    nrm,
			gltf.TEXCOORD_0: uv,
		},
		Indices: gltf.Index(b.indices(0, 1, 2)),
	})
	b.addScene(b.addNode(gltf.Index(mesh)))

	model, err := b.load(t, ctx, "")
	require.NoError(t, err)
	vertices := decodeVertices(ctx.BufferBytes(model.Meshes[0].VertexBuffer))
	assert.Equal(t, math.Vertex3D{
		Position: math.NewVec3(0, 1, 0),
		Texcoord: math.NewVec2(0, 1),
		Normal:   math.NewVec3(1, 0, 0),
	}, vertices[2])
}

func TestMissingPositionsFailsWithoutPartialMesh(t *testing.T) {
	ctx := newContext(t, 3)
	b := newDocBuilder()
	good := b.triangle(nil)
	bad := &gltf.Primitive{
		Attributes: map[string]int{gltf.NORMAL: b.vec3s([3]float32{0, 0, 1})},
		Indices:    gltf.Index(b.indices(0)),
	}
	mesh := b.addMesh("broken", good, bad, b.triangle(nil))
	b.addScene(b.addNode(gltf.Index(mesh)))

	model, err := b.load(t, ctx, "")
	assert.Nil(t, model)
	assert.ErrorIs(t, err, core.ErrMissingAttribute)
	assert.Equal(t, headless.Stats{BytesInUse: 3 * metadata.LightUniformSize}, ctx.Stats())
}

func TestMissingIndicesFails(t *testing.T) {
	ctx := newContext(t, 1)
	b := newDocBuilder()
	prim := b.triangle(nil)
	prim.Indices = nil
	b.addScene(b.addNode(gltf.Index(b.addMesh("noindex", prim))))

	_, err := b.load(t, ctx, "")
	assert.ErrorIs(t, err, core.ErrMissingAttribute)
}

func TestFailureInLaterSceneDestroysEarlierMeshes(t *testing.T) {
	ctx := newContext(t, 2)
	b := newDocBuilder()
	ok := b.addMesh("ok", b.triangle(nil), b.triangle(nil))
	broken := b.triangle(nil)
	broken.Indices = gltf.Index(b.indices(0, 1, 7))
	bad := b.addMesh("bad", broken)
	b.addScene(b.addNode(gltf.Index(ok)))
	b.addScene(b.addNode(gltf.Index(bad)))

	_, err := b.load(t, ctx, "")
	assert.ErrorIs(t, err, core.ErrParse)
	assert.Equal(t, 0, ctx.Stats().Buffers)
	assert.Equal(t, 0, ctx.Stats().Images)
	assert.Equal(t, 0, ctx.Stats().DescriptorSets)
}

func TestDefaultMaterialUsesWhitePlaceholder(t *testing.T) {
	ctx := newContext(t, 3)
	b := newDocBuilder()
	untextured := b.addMaterial(&gltf.Material{
		Name:                 "red",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{BaseColorFactor: &[4]float64{1, 0, 0, 1}},
	})
	mesh := b.addMesh("m", b.triangle(nil), b.triangle(gltf.Index(untextured)))
	b.addScene(b.addNode(gltf.Index(mesh)))

	model, err := b.load(t, ctx, "")
	require.NoError(t, err)
	require.Len(t, model.Meshes, 2)

	for _, m := range model.Meshes {
		diffuse := m.Material.Diffuse
		require.NotNil(t, diffuse)
		assert.Equal(t, PlaceholderTextureSize, diffuse.Width)
		assert.Equal(t, PlaceholderTextureSize, diffuse.Height)
		pixels := ctx.ImagePixels(diffuse)
		require.Len(t, pixels, 128*128*4)
		assert.Equal(t, bytes.Repeat([]byte{255}, len(pixels)), pixels)

		switch m.Material.Name {
		case metadata.DefaultMaterialName:
			assert.Equal(t, math.NewVec4(1, 1, 1, 1), m.Material.BaseColour)
		case "red":
			assert.Equal(t, math.NewVec4(1, 0, 0, 1), m.Material.BaseColour)
			assert.Equal(t, metadata.MaterialUniform{BaseColour: math.NewVec4(1, 0, 0, 1)}.Bytes(),
				ctx.BufferBytes(m.Material.UniformBuffers[2]))
		default:
			t.Fatalf("unexpected material %q", m.Material.Name)
		}
	}
}

func TestUniformBuffersAndDescriptorSetsPerFrame(t *testing.T) {
	ctx := newContext(t, 3)
	b := newDocBuilder()
	b.addScene(b.addNode(gltf.Index(b.addMesh("m", b.triangle(nil)))))

	model, err := b.load(t, ctx, "")
	require.NoError(t, err)
	mat := model.Meshes[0].Material

	require.Len(t, mat.UniformBuffers, 3)
	require.Len(t, mat.DescriptorSets, 3)
	for i, set := range mat.DescriptorSets {
		writes := ctx.Writes(set)
		require.Len(t, writes, 4, "frame %d", i)

		assert.Same(t, mat.UniformBuffers[i], writes[metadata.BindingMaterialVertex].Buffer)
		assert.Same(t, mat.UniformBuffers[i], writes[metadata.BindingMaterialFragment].Buffer)
		assert.Same(t, ctx.LightBuffer(uint32(i)), writes[metadata.BindingLight].Buffer)
		assert.Same(t, mat.Diffuse, writes[metadata.BindingDiffuse].Image)
		assert.Equal(t, metadata.DescriptorTypeCombinedImageSampler, writes[metadata.BindingDiffuse].Type)
		assert.Equal(t, uint64(metadata.MaterialUniformSize), mat.UniformBuffers[i].Size)
	}
	assert.NotSame(t, mat.UniformBuffers[0], mat.UniformBuffers[1])
	assert.NotSame(t, mat.DescriptorSets[0], mat.DescriptorSets[2])
}

func TestEmbeddedTextureDecodesBufferViewOnly(t *testing.T) {
	ctx := newContext(t, 1)
	b := newDocBuilder()
	// data before the image in the same buffer must not confuse the decoder
	tri := b.triangle(nil)
	tex := b.addEmbeddedTexture(pngBytes(t, 2, 3, color.RGBA{R: 10, G: 20, B: 30, A: 255}), "image/png", &gltf.Sampler{
		MagFilter: gltf.MagNearest,
		MinFilter: gltf.MinLinearMipMapLinear,
		WrapS:     gltf.WrapClampToEdge,
		WrapT:     gltf.WrapMirroredRepeat,
	})
	mat := b.addMaterial(&gltf.Material{PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
		BaseColorTexture: &gltf.TextureInfo{Index: tex},
	}})
	tri.Material = gltf.Index(mat)
	b.addScene(b.addNode(gltf.Index(b.addMesh("textured", tri))))

	model, err := b.load(t, ctx, "")
	require.NoError(t, err)
	diffuse := model.Meshes[0].Material.Diffuse
	assert.Equal(t, uint32(2), diffuse.Width)
	assert.Equal(t, uint32(3), diffuse.Height)
	assert.Equal(t, []byte{10, 20, 30, 255}, ctx.ImagePixels(diffuse)[:4])
	assert.Equal(t, metadata.SamplerInfo{
		MagFilter:    metadata.TextureFilterModeNearest,
		MinFilter:    metadata.TextureFilterModeLinear,
		MipmapMode:   metadata.MipmapModeLinear,
		AddressModeU: metadata.TextureRepeatClampToEdge,
		AddressModeV: metadata.TextureRepeatMirroredRepeat,
	}, diffuse.Sampler)
}

func TestURITextureSniffsContentAndUsesSampler(t *testing.T) {
	dir := t.TempDir()
	// extension lies, content is PNG
	require.NoError(t, os.WriteFile(filepath.Join(dir, "albedo.jpg"), pngBytes(t, 4, 4, color.RGBA{R: 1, G: 2, B: 3, A: 255}), 0o644))

	ctx := newContext(t, 2)
	b := newDocBuilder()
	tex := b.addURITexture("albedo.jpg", "", &gltf.Sampler{WrapS: gltf.WrapClampToEdge})
	mat := b.addMaterial(&gltf.Material{PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
		BaseColorTexture: &gltf.TextureInfo{Index: tex},
	}})
	b.addScene(b.addNode(gltf.Index(b.addMesh("m", b.triangle(gltf.Index(mat))))))

	model, err := b.load(t, ctx, dir)
	require.NoError(t, err)
	diffuse := model.Meshes[0].Material.Diffuse
	assert.Equal(t, uint32(4), diffuse.Width)
	assert.Equal(t, []byte{1, 2, 3, 255}, ctx.ImagePixels(diffuse)[:4])
	assert.Equal(t, metadata.TextureRepeatClampToEdge, diffuse.Sampler.AddressModeU)
	assert.Equal(t, metadata.TextureRepeatRepeat, diffuse.Sampler.AddressModeV)
	assert.Equal(t, metadata.DefaultTextureFilter, diffuse.Sampler.MagFilter)
}

func TestTextureFailures(t *testing.T) {
	cases := []struct {
		name string
		tex  func(b *docBuilder) int
		err  error
	}{
		{"embedded without mime", func(b *docBuilder) int {
			return b.addEmbeddedTexture(pngBytes(t, 1, 1, color.RGBA{}), "", nil)
		}, core.ErrUnsupportedFormat},
		{"unknown mime", func(b *docBuilder) int {
			return b.addEmbeddedTexture([]byte{1, 2, 3, 4}, "image/ktx2", nil)
		}, core.ErrUnsupportedFormat},
		{"corrupt image", func(b *docBuilder) int {
			return b.addEmbeddedTexture([]byte("not a png at all"), "image/png", nil)
		}, core.ErrDecode},
		{"missing file", func(b *docBuilder) int {
			return b.addURITexture("nope.png", "", nil)
		}, core.ErrIO},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := newContext(t, 3)
			b := newDocBuilder()
			mat := b.addMaterial(&gltf.Material{PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				BaseColorTexture: &gltf.TextureInfo{Index: tc.tex(b)},
			}})
			b.addScene(b.addNode(gltf.Index(b.addMesh("m", b.triangle(gltf.Index(mat)), b.triangle(nil)))))

			model, err := b.load(t, ctx, t.TempDir())
			assert.Nil(t, model)
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, headless.Stats{BytesInUse: 3 * metadata.LightUniformSize}, ctx.Stats())
		})
	}
}

func TestAllocationFailureReleasesEverything(t *testing.T) {
	// room for the lights, one placeholder and a few small buffers, not for a second placeholder
	budget := uint64(2*metadata.LightUniformSize + 128*128*4 + 1024)
	ctx, err := headless.New(headless.Options{FramesInFlight: 2, MemoryBudget: budget})
	require.NoError(t, err)

	b := newDocBuilder()
	b.addScene(b.addNode(gltf.Index(b.addMesh("m", b.triangle(nil), b.triangle(nil)))))

	_, err = b.load(t, ctx, "")
	assert.ErrorIs(t, err, core.ErrAllocation)
	assert.Equal(t, headless.Stats{BytesInUse: 2 * metadata.LightUniformSize}, ctx.Stats())
}

func TestLoadModelFromDiskThroughLoaderInterface(t *testing.T) {
	dir := t.TempDir()
	b := newDocBuilder()
	b.addScene(b.addNode(gltf.Index(b.addMesh("m", b.triangle(nil)))))
	path := filepath.Join(dir, "tri.gltf")
	require.NoError(t, os.WriteFile(path, b.json(t), 0o644))

	ctx := newContext(t, 1)
	loader := NewGLTFLoader(ctx)
	res, err := loader.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "tri", res.Name)
	assert.Equal(t, metadata.ResourceTypeModel, res.Type)
	model := res.Data.(*metadata.Model)
	assert.Equal(t, path, model.Path)
	assert.Len(t, model.Meshes, 1)

	require.NoError(t, loader.Unload(res))
	assert.Equal(t, 0, ctx.Stats().Buffers)

	_, err = loader.LoadModel(filepath.Join(dir, "missing.gltf"))
	assert.ErrorIs(t, err, core.ErrIO)
}

func TestNodeCycleIsRejected(t *testing.T) {
	ctx := newContext(t, 1)
	b := newDocBuilder()
	b.addNode(nil, 1)
	b.addNode(nil, 0)
	b.addScene(0)

	_, err := b.load(t, ctx, "")
	assert.ErrorIs(t, err, core.ErrParse)
}
