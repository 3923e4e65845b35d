package ffmpeg

import (
	"context"
	"encoding/json"

	"video-music-remover/domain/media"
	"video-music-remover/infrastructure/command"

	"github.com/cockroachdb/errors"
	ffmpeggo "github.com/u2takey/ffmpeg-go"
)

// probeData is the subset of `ffprobe -show_streams -of json` we read
type probeData struct {
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	Index     int               `json:"index"`
	CodecType string            `json:"codec_type"`
	CodecName string            `json:"codec_name"`
	Tags      map[string]string `json:"tags"`
}

// ProbeFunc runs ffprobe on a file and returns its json output
type ProbeFunc func(fileName string, kwargs ...ffmpeggo.KwArgs) (string, error)

// Prober implements media.Prober using ffprobe through ffmpeg-go
type Prober struct {
	probe  ProbeFunc
	runner command.Runner
}

// ProberOption is a functional option for configuring Prober
type ProberOption func(*Prober)

// WithProbeFunc replaces the ffprobe call (for testing)
func WithProbeFunc(fn ProbeFunc) ProberOption {
	return func(p *Prober) {
		p.probe = fn
	}
}

// WithProberCommandRunner sets the runner used by VerifyInstalled (for testing)
func WithProberCommandRunner(runner command.Runner) ProberOption {
	return func(p *Prober) {
		p.runner = runner
	}
}

// NewProber creates a new ffprobe-based prober. ffmpeg-go resolves
// ffprobe from PATH.
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		probe:  ffmpeggo.Probe,
		runner: &command.ExecRunner{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Probe implements media.Prober
func (p *Prober) Probe(ctx context.Context, path string) (*media.ProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := p.probe(path)
	if err != nil {
		return nil, errors.Wrapf(err, "ffprobe %s", path)
	}

	return ParseProbe(path, []byte(out))
}

// VerifyInstalled checks that ffprobe is available on PATH, where ffmpeg-go
// looks for it
func (p *Prober) VerifyInstalled(ctx context.Context) error {
	if _, err := p.runner.Output(ctx, "ffprobe", "-version"); err != nil {
		return errors.Wrap(err, "ffprobe not found or not executable")
	}
	return nil
}

// ParseProbe decodes ffprobe json into a ProbeResult, keeping source stream order
func ParseProbe(path string, data []byte) (*media.ProbeResult, error) {
	var pd probeData
	if err := json.Unmarshal(data, &pd); err != nil {
		return nil, errors.Wrapf(err, "decoding ffprobe output for %s", path)
	}

	result := &media.ProbeResult{Path: path}
	for _, s := range pd.Streams {
		result.Streams = append(result.Streams, media.Stream{
			Index:     s.Index,
			Kind:      media.StreamKind(s.CodecType),
			CodecName: s.CodecName,
			Language:  s.Tags["language"],
			Title:     s.Tags["title"],
		})
	}
	return result, nil
}

// Ensure Prober implements media.Prober
var _ media.Prober = (*Prober)(nil)
