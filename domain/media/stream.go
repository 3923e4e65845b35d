package media

// StreamKind is the codec type reported by ffprobe for a stream
type StreamKind string

const (
	KindVideo      StreamKind = "video"
	KindAudio      StreamKind = "audio"
	KindSubtitle   StreamKind = "subtitle"
	KindData       StreamKind = "data"
	KindAttachment StreamKind = "attachment"
)

// Stream describes one stream of a source container
type Stream struct {
	Index     int // absolute index within the container
	Kind      StreamKind
	CodecName string
	Language  string
	Title     string
}

// ProbeResult lists every stream of a source container in index order
type ProbeResult struct {
	Path    string
	Streams []Stream
}

// AudioStreams returns the audio streams in their original order
func (p *ProbeResult) AudioStreams() []Stream {
	var audio []Stream
	for _, s := range p.Streams {
		if s.Kind == KindAudio {
			audio = append(audio, s)
		}
	}
	return audio
}

// AudioCount returns the number of audio streams
func (p *ProbeResult) AudioCount() int {
	return len(p.AudioStreams())
}
