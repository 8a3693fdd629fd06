package metadata

/**
 * @brief A structure to hold decoded image data, always 4 channels (RGBA8).
 */
type ImageResourceData struct {
	/** @brief The width of the image. */
	Width uint32
	/** @brief The height of the image. */
	Height uint32
	/** @brief The pixel data of the image, row-major, 4 bytes per pixel. */
	Pixels []uint8
}

const ImageChannelCount = 4
