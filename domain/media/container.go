package media

import "path/filepath"

// Container identifies a supported video container by its file extension
type Container string

const (
	ContainerMP4  Container = ".mp4"
	ContainerMKV  Container = ".mkv"
	ContainerWebM Container = ".webm"
)

// SupportedContainers lists the containers the tool accepts, in scan order
var SupportedContainers = []Container{ContainerMP4, ContainerMKV, ContainerWebM}

// ContainerFromPath returns the container for a path based on its extension.
// Extensions are matched case-sensitively.
func ContainerFromPath(path string) (Container, bool) {
	ext := filepath.Ext(path)
	for _, c := range SupportedContainers {
		if string(c) == ext {
			return c, true
		}
	}
	return "", false
}

// IsSupported returns true if the path has a supported container extension
func IsSupported(path string) bool {
	_, ok := ContainerFromPath(path)
	return ok
}

// AudioCodec returns the encoder used for vocal tracks written into this
// container. "copy" means the separated audio is stored as produced.
func (c Container) AudioCodec() string {
	switch c {
	case ContainerMP4:
		return "aac"
	case ContainerWebM:
		return "libopus"
	default:
		return "copy"
	}
}

// DropsAttachments reports whether attachment streams must be left out of
// the remuxed output. The mp4 muxer fails when asked to copy them.
func (c Container) DropsAttachments() bool {
	return c == ContainerMP4
}
