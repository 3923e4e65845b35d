package media

import (
	"fmt"
	"path/filepath"
)

// ExtractedTrackExtension is used for extracted audio. Matroska audio holds
// any codec copied out of a source without re-encoding.
const ExtractedTrackExtension = ".mka"

// AudioTrack follows one audio stream through extraction, separation and
// remux. Ordinal is the position among audio streams and decides the slot
// the vocals are written back into.
type AudioTrack struct {
	StreamIndex   int
	Ordinal       int
	CodecName     string
	Language      string
	Title         string
	ExtractedPath string
	VocalsPath    string
}

// NewAudioTrack creates a track descriptor for an audio stream
func NewAudioTrack(stream Stream, ordinal int, workDir string) AudioTrack {
	return AudioTrack{
		StreamIndex:   stream.Index,
		Ordinal:       ordinal,
		CodecName:     stream.CodecName,
		Language:      stream.Language,
		Title:         stream.Title,
		ExtractedPath: filepath.Join(workDir, fmt.Sprintf("track_%d%s", ordinal, ExtractedTrackExtension)),
	}
}

// IsSeparated returns true once the vocals stem has been produced
func (t AudioTrack) IsSeparated() bool {
	return t.VocalsPath != ""
}

// RemuxRequest describes a new container assembled from a source and its
// processed vocal tracks
type RemuxRequest struct {
	SourcePath      string
	DestinationPath string
	Container       Container
	Probe           *ProbeResult
	Tracks          []AudioTrack
}

// Validate checks that every audio slot of the source has a separated track
// in original order
func (r *RemuxRequest) Validate() error {
	if r.SourcePath == "" {
		return fmt.Errorf("source path is required")
	}
	if r.DestinationPath == "" {
		return fmt.Errorf("destination path is required")
	}
	if r.Probe == nil {
		return fmt.Errorf("probe result is required")
	}

	audioCount := r.Probe.AudioCount()
	if len(r.Tracks) > audioCount {
		return fmt.Errorf("%d vocal tracks exceed the %d audio streams of the source", len(r.Tracks), audioCount)
	}
	if len(r.Tracks) < audioCount {
		return fmt.Errorf("%d vocal tracks do not cover the %d audio streams of the source", len(r.Tracks), audioCount)
	}

	for i, t := range r.Tracks {
		if t.Ordinal != i {
			return fmt.Errorf("track %d is out of order (ordinal %d)", i, t.Ordinal)
		}
		if !t.IsSeparated() {
			return fmt.Errorf("track %d has no vocals stem", i)
		}
	}
	return nil
}
