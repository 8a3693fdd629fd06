// Package headless implements metadata.ResourceContext in host memory. It backs
// tooling that has no GPU and records every allocation so callers can inspect it.
package headless

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/vent/engine/core"
	"github.com/spaghettifunk/vent/engine/renderer/metadata"
)

type Options struct {
	FramesInFlight uint32
	// Upper bound of bytes held by buffers and images. Zero means unlimited.
	MemoryBudget uint64
}

type bufferData struct {
	bytes []byte
}

type imageData struct {
	pixels []byte
}

type descriptorSetData struct {
	writes map[uint32]metadata.DescriptorWrite
}

// Stats is a snapshot of the live allocations of a Context.
type Stats struct {
	// Buffers excludes the light buffers owned by the context.
	Buffers        int
	Images         int
	DescriptorSets int
	BytesInUse     uint64
}

// Context is safe for concurrent use.
type Context struct {
	mu      sync.Mutex
	frames  uint32
	budget  uint64
	inUse   uint64
	lights  []*metadata.Buffer
	buffers map[*metadata.Buffer]struct{}
	images  map[*metadata.Image]struct{}
	sets    map[*metadata.DescriptorSet]struct{}
}

var _ metadata.ResourceContext = (*Context)(nil)

func New(opts Options) (*Context, error) {
	if opts.FramesInFlight == 0 {
		opts.FramesInFlight = core.DefaultFramesInFlight
	}
	c := &Context{
		frames:  opts.FramesInFlight,
		budget:  opts.MemoryBudget,
		buffers: make(map[*metadata.Buffer]struct{}),
		images:  make(map[*metadata.Image]struct{}),
		sets:    make(map[*metadata.DescriptorSet]struct{}),
	}

	light := metadata.DefaultLight().Bytes()
	for i := uint32(0); i < c.frames; i++ {
		buf, err := c.AllocateBuffer(metadata.LightUniformSize, metadata.BufferUsageUniform, light)
		if err != nil {
			c.Destroy()
			return nil, err
		}
		c.lights = append(c.lights, buf)
	}
	core.LogDebug("headless resource context created (%d frames in flight)", c.frames)
	return c, nil
}

func (c *Context) FramesInFlight() uint32 {
	return c.frames
}

func (c *Context) reserve(size uint64) error {
	if c.budget != 0 && c.inUse+size > c.budget {
		return fmt.Errorf("%w: %d bytes requested, %d of %d in use", core.ErrAllocation, size, c.inUse, c.budget)
	}
	c.inUse += size
	return nil
}

func (c *Context) AllocateBuffer(size uint64, usage metadata.BufferUsage, data []byte) (*metadata.Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: zero sized buffer", core.ErrAllocation)
	}
	if uint64(len(data)) > size {
		return nil, fmt.Errorf("%w: %d bytes do not fit a %d byte buffer", core.ErrAllocation, len(data), size)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.reserve(size); err != nil {
		return nil, err
	}

	bytes := make([]byte, size)
	copy(bytes, data)
	buf := &metadata.Buffer{
		Size:         size,
		Usage:        usage,
		InternalData: &bufferData{bytes: bytes},
	}
	c.buffers[buf] = struct{}{}
	return buf, nil
}

func (c *Context) AllocateImageFromPixels(width, height uint32, rgba []byte, sampler metadata.SamplerInfo) (*metadata.Image, error) {
	want := uint64(width) * uint64(height) * metadata.ImageChannelCount
	if want == 0 || uint64(len(rgba)) != want {
		return nil, fmt.Errorf("%w: %d bytes of pixels for a %dx%d image", core.ErrAllocation, len(rgba), width, height)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.reserve(want); err != nil {
		return nil, err
	}

	pixels := make([]byte, len(rgba))
	copy(pixels, rgba)
	img := &metadata.Image{
		Width:        width,
		Height:       height,
		Sampler:      sampler,
		InternalData: &imageData{pixels: pixels},
	}
	c.images[img] = struct{}{}
	return img, nil
}

func (c *Context) AllocateImageFromColor(rgba [4]uint8, width, height uint32) (*metadata.Image, error) {
	pixels := make([]byte, uint64(width)*uint64(height)*metadata.ImageChannelCount)
	for i := 0; i < len(pixels); i += metadata.ImageChannelCount {
		copy(pixels[i:], rgba[:])
	}
	return c.AllocateImageFromPixels(width, height, pixels, metadata.DefaultSamplerInfo())
}

func (c *Context) AllocateDescriptorSets(count uint32) ([]*metadata.DescriptorSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sets := make([]*metadata.DescriptorSet, count)
	for i := range sets {
		sets[i] = &metadata.DescriptorSet{
			InternalData: &descriptorSetData{writes: make(map[uint32]metadata.DescriptorWrite)},
		}
		c.sets[sets[i]] = struct{}{}
	}
	return sets, nil
}

func (c *Context) UpdateDescriptorSet(set *metadata.DescriptorSet, writes []metadata.DescriptorWrite) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sets[set]; !ok {
		return fmt.Errorf("%w: descriptor set is not live", core.ErrAllocation)
	}
	data := set.InternalData.(*descriptorSetData)
	for _, w := range writes {
		if err := c.validateWrite(w); err != nil {
			return err
		}
		data.writes[w.Binding] = w
	}
	return nil
}

func (c *Context) validateWrite(w metadata.DescriptorWrite) error {
	for _, b := range metadata.MeshDescriptorLayout {
		if b.Binding != w.Binding {
			continue
		}
		if b.Type != w.Type {
			return fmt.Errorf("binding %d expects descriptor type %d, got %d", w.Binding, b.Type, w.Type)
		}
		switch w.Type {
		case metadata.DescriptorTypeUniformBuffer:
			if _, ok := c.buffers[w.Buffer]; !ok {
				return fmt.Errorf("binding %d: buffer is not live", w.Binding)
			}
		case metadata.DescriptorTypeCombinedImageSampler:
			if _, ok := c.images[w.Image]; !ok {
				return fmt.Errorf("binding %d: image is not live", w.Binding)
			}
		}
		return nil
	}
	return fmt.Errorf("binding %d is not part of the mesh layout", w.Binding)
}

func (c *Context) LightBuffer(frame uint32) *metadata.Buffer {
	if int(frame) >= len(c.lights) {
		return nil
	}
	return c.lights[frame]
}

// SetLight overwrites the light uniform of one frame.
func (c *Context) SetLight(frame uint32, light metadata.LightUniform) {
	buf := c.LightBuffer(frame)
	if buf == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	copy(buf.InternalData.(*bufferData).bytes, light.Bytes())
}

func (c *Context) FreeBuffer(buffer *metadata.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.buffers[buffer]; !ok {
		return
	}
	delete(c.buffers, buffer)
	c.inUse -= buffer.Size
}

func (c *Context) FreeImage(image *metadata.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.images[image]; !ok {
		return
	}
	delete(c.images, image)
	c.inUse -= uint64(len(image.InternalData.(*imageData).pixels))
}

func (c *Context) FreeDescriptorSets(sets []*metadata.DescriptorSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range sets {
		delete(c.sets, s)
	}
}

// Destroy releases the light buffers. Everything else must have been freed by its owner.
func (c *Context) Destroy() {
	for _, buf := range c.lights {
		c.FreeBuffer(buf)
	}
	c.lights = nil

	stats := c.Stats()
	if stats.Buffers+stats.Images+stats.DescriptorSets > 0 {
		core.LogWarn("headless resource context destroyed with live resources: %+v", stats)
	}
}

func (c *Context) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Buffers:        len(c.buffers) - len(c.lights),
		Images:         len(c.images),
		DescriptorSets: len(c.sets),
		BytesInUse:     c.inUse,
	}
}

// BufferBytes returns the contents of a live buffer.
func (c *Context) BufferBytes(buffer *metadata.Buffer) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.buffers[buffer]; !ok {
		return nil
	}
	return buffer.InternalData.(*bufferData).bytes
}

// ImagePixels returns the RGBA8 pixels of a live image.
func (c *Context) ImagePixels(image *metadata.Image) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.images[image]; !ok {
		return nil
	}
	return image.InternalData.(*imageData).pixels
}

// Writes returns the bindings written into a live descriptor set, keyed by binding.
func (c *Context) Writes(set *metadata.DescriptorSet) map[uint32]metadata.DescriptorWrite {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sets[set]; !ok {
		return nil
	}
	out := make(map[uint32]metadata.DescriptorWrite)
	for k, v := range set.InternalData.(*descriptorSetData).writes {
		out[k] = v
	}
	return out
}
