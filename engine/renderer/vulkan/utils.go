package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vent/engine/core"
)

// resultError wraps a failed Vulkan call. Out of memory results map to
// core.ErrAllocation, everything else to core.ErrUnknown.
func resultError(op string, res vk.Result) error {
	switch res {
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory, vk.ErrorOutOfPoolMemory,
		vk.ErrorFragmentedPool, vk.ErrorFragmentation, vk.ErrorTooManyObjects, vk.ErrorMemoryMapFailed:
		return fmt.Errorf("%w: %s: %s", core.ErrAllocation, op, VulkanResultString(res, false))
	}
	return fmt.Errorf("%w: %s: %s", core.ErrUnknown, op, VulkanResultString(res, true))
}

// Names of the results a resource context can run into. Everything else is
// printed numerically.
var resultNames = map[vk.Result]string{
	vk.Success:                   "VK_SUCCESS",
	vk.NotReady:                  "VK_NOT_READY",
	vk.Timeout:                   "VK_TIMEOUT",
	vk.Incomplete:                "VK_INCOMPLETE",
	vk.ErrorOutOfHostMemory:      "VK_ERROR_OUT_OF_HOST_MEMORY",
	vk.ErrorOutOfDeviceMemory:    "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vk.ErrorInitializationFailed: "VK_ERROR_INITIALIZATION_FAILED",
	vk.ErrorDeviceLost:           "VK_ERROR_DEVICE_LOST",
	vk.ErrorMemoryMapFailed:      "VK_ERROR_MEMORY_MAP_FAILED",
	vk.ErrorLayerNotPresent:      "VK_ERROR_LAYER_NOT_PRESENT",
	vk.ErrorExtensionNotPresent:  "VK_ERROR_EXTENSION_NOT_PRESENT",
	vk.ErrorFeatureNotPresent:    "VK_ERROR_FEATURE_NOT_PRESENT",
	vk.ErrorIncompatibleDriver:   "VK_ERROR_INCOMPATIBLE_DRIVER",
	vk.ErrorTooManyObjects:       "VK_ERROR_TOO_MANY_OBJECTS",
	vk.ErrorFormatNotSupported:   "VK_ERROR_FORMAT_NOT_SUPPORTED",
	vk.ErrorFragmentedPool:       "VK_ERROR_FRAGMENTED_POOL",
	vk.ErrorOutOfPoolMemory:      "VK_ERROR_OUT_OF_POOL_MEMORY",
	vk.ErrorFragmentation:        "VK_ERROR_FRAGMENTATION",
	vk.ErrorUnknown:              "VK_ERROR_UNKNOWN",
}

var resultDescriptions = map[vk.Result]string{
	vk.ErrorInitializationFailed: "initialization of an object could not be completed",
	vk.ErrorDeviceLost:           "the logical or physical device has been lost",
	vk.ErrorLayerNotPresent:      "a requested layer is not present or could not be loaded",
	vk.ErrorExtensionNotPresent:  "a requested extension is not supported",
	vk.ErrorFeatureNotPresent:    "a requested feature is not supported",
	vk.ErrorIncompatibleDriver:   "the requested version of Vulkan is not supported by the driver",
	vk.ErrorFormatNotSupported:   "a requested format is not supported on this device",
}

// VulkanResultString names result, followed by a short description when
// getExtended is set and one is known.
func VulkanResultString(result vk.Result, getExtended bool) string {
	name, ok := resultNames[result]
	if !ok {
		return fmt.Sprintf("VkResult(%d)", int32(result))
	}
	if desc, ok := resultDescriptions[result]; ok && getExtended {
		return name + " " + desc
	}
	return name
}

// Success codes are non-negative, error codes negative.
func VulkanResultIsSuccess(result vk.Result) bool {
	return result >= 0
}

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	for i := range list {
		list[i] = VulkanSafeString(list[i])
	}
	return list
}

// cString trims a fixed size, NUL terminated name returned by the driver.
func cString(arr []byte) string {
	for i, b := range arr {
		if b == 0 {
			return string(arr[:i])
		}
	}
	return string(arr)
}
