package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"video-music-remover/domain/job"
	"video-music-remover/domain/media"
	"video-music-remover/domain/separation"

	"github.com/cockroachdb/errors"
)

// --- Mock implementations for testing ---

type mockProber struct {
	result     *media.ProbeResult
	shouldFail bool
	failError  error
}

func (m *mockProber) Probe(ctx context.Context, path string) (*media.ProbeResult, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	r := *m.result
	r.Path = path
	return &r, nil
}

type mockExtractor struct {
	shouldFail bool
	failError  error
	workDirs   []string
}

func (m *mockExtractor) ExtractTracks(ctx context.Context, probe *media.ProbeResult, workDir string) ([]media.AudioTrack, error) {
	m.workDirs = append(m.workDirs, workDir)
	if m.shouldFail {
		return nil, m.failError
	}
	var tracks []media.AudioTrack
	for i, s := range probe.AudioStreams() {
		tracks = append(tracks, media.NewAudioTrack(s, i, workDir))
	}
	return tracks, nil
}

type mockSeparator struct {
	failOnCall int // 1-based, 0 never fails
	failError  error
	calls      []string
}

func (m *mockSeparator) Separate(ctx context.Context, inputPath, outputDir string) (string, error) {
	m.calls = append(m.calls, inputPath)
	if m.failOnCall == len(m.calls) {
		return "", m.failError
	}
	return filepath.Join(outputDir, "vocals.mp3"), nil
}

func (m *mockSeparator) Close() error { return nil }

type mockRemuxer struct {
	shouldFail bool
	failError  error
	requests   []*media.RemuxRequest
	fs         *mockFileSystem
}

func (m *mockRemuxer) Remux(ctx context.Context, req *media.RemuxRequest) error {
	m.requests = append(m.requests, req)
	// ffmpeg creates the output before failing
	m.fs.files[req.DestinationPath] = true
	if m.shouldFail {
		return m.failError
	}
	return req.Validate()
}

type mockFileSystem struct {
	files        map[string]bool
	tempDirs     []string
	removedAll   []string
	removed      []string
	renamed      map[string]string
	tempErr      error
	renameErr    error
	removeAllErr error
}

func newMockFileSystem() *mockFileSystem {
	return &mockFileSystem{files: map[string]bool{}, renamed: map[string]string{}}
}

func (m *mockFileSystem) Exists(path string) bool                { return m.files[path] }
func (m *mockFileSystem) IsDir(path string) (bool, error)        { return false, nil }
func (m *mockFileSystem) ListFiles(dir string) ([]string, error) { return nil, nil }
func (m *mockFileSystem) MkdirAll(path string) error             { return nil }

func (m *mockFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	if m.tempErr != nil {
		return "", m.tempErr
	}
	path := filepath.Join("/tmp", fmt.Sprintf("music-remover-%d", len(m.tempDirs)))
	m.tempDirs = append(m.tempDirs, path)
	return path, nil
}

func (m *mockFileSystem) Rename(from, to string) error {
	if m.renameErr != nil {
		return m.renameErr
	}
	delete(m.files, from)
	m.files[to] = true
	m.renamed[from] = to
	return nil
}

func (m *mockFileSystem) Remove(path string) error {
	delete(m.files, path)
	m.removed = append(m.removed, path)
	return nil
}

func (m *mockFileSystem) RemoveAll(path string) error {
	m.removedAll = append(m.removedAll, path)
	return m.removeAllErr
}

type recorder struct {
	events []job.Event
}

func (r *recorder) Report(e job.Event) { r.events = append(r.events, e) }

func (r *recorder) kinds() []job.EventKind {
	var kinds []job.EventKind
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func twoAudioProbe() *media.ProbeResult {
	return &media.ProbeResult{Streams: []media.Stream{
		{Index: 0, Kind: media.KindVideo, CodecName: "h264"},
		{Index: 1, Kind: media.KindAudio, CodecName: "aac", Language: "eng"},
		{Index: 2, Kind: media.KindAudio, CodecName: "aac", Language: "deu"},
	}}
}

type fixture struct {
	prober    *mockProber
	extractor *mockExtractor
	remuxer   *mockRemuxer
	fs        *mockFileSystem
	separator *mockSeparator
	reporter  *recorder
	service   *Service
	job       job.ProcessingJob
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := newMockFileSystem()
	f := &fixture{
		prober:    &mockProber{result: twoAudioProbe()},
		extractor: &mockExtractor{},
		remuxer:   &mockRemuxer{fs: fs},
		fs:        fs,
		separator: &mockSeparator{},
		reporter:  &recorder{},
	}
	f.service = NewService(f.prober, f.extractor, f.remuxer, f.fs, f.reporter, WithTempDirectory("/scratch"))

	j, err := job.NewProcessingJob("/videos/a.mp4", "/out", separation.ModelHTDemucs)
	if err != nil {
		t.Fatal(err)
	}
	f.job = j
	return f
}

func TestPartialPath(t *testing.T) {
	if got := PartialPath("/out/a.mp4"); got != "/out/.a.partial.mp4" {
		t.Errorf("PartialPath() = %q", got)
	}
	if got := PartialPath("/out/talk.v2.mkv"); got != "/out/.talk.v2.partial.mkv" {
		t.Errorf("PartialPath() = %q", got)
	}
}

func TestProcess_Success(t *testing.T) {
	f := newFixture(t)

	if err := f.service.Process(context.Background(), f.job, f.separator); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.remuxer.requests) != 1 {
		t.Fatalf("expected one remux, got %d", len(f.remuxer.requests))
	}
	req := f.remuxer.requests[0]
	if req.DestinationPath != "/out/.a.partial.mp4" {
		t.Errorf("remux destination = %q, want the partial path", req.DestinationPath)
	}
	if req.Container != media.ContainerMP4 {
		t.Errorf("container = %q", req.Container)
	}
	if len(req.Tracks) != 2 {
		t.Fatalf("remuxed %d tracks, want 2", len(req.Tracks))
	}
	for i, track := range req.Tracks {
		if track.Ordinal != i {
			t.Errorf("track %d has ordinal %d", i, track.Ordinal)
		}
		want := filepath.Join("/tmp/music-remover-0/intermediate", fmt.Sprint(i), "vocals.mp3")
		if track.VocalsPath != want {
			t.Errorf("track %d vocals = %q, want %q", i, track.VocalsPath, want)
		}
	}

	if f.fs.renamed["/out/.a.partial.mp4"] != "/out/a.mp4" {
		t.Errorf("partial output not renamed: %v", f.fs.renamed)
	}
	if len(f.fs.removedAll) != 1 || f.fs.removedAll[0] != "/tmp/music-remover-0" {
		t.Errorf("workspace not removed: %v", f.fs.removedAll)
	}

	want := []job.EventKind{
		job.EventJobStarted,
		job.EventStageStarted,
		job.EventStageStarted,
		job.EventTrackSeparationStarted,
		job.EventTrackSeparationFinished,
		job.EventTrackSeparationStarted,
		job.EventTrackSeparationFinished,
		job.EventStageStarted,
		job.EventJobSucceeded,
	}
	got := f.reporter.kinds()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("events = %v\nwant %v", got, want)
	}
	last := f.reporter.events[6]
	if last.Track != 2 || last.TotalTracks != 2 {
		t.Errorf("track counter = %d/%d, want 2/2", last.Track, last.TotalTracks)
	}
}

func TestProcess_Failures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture)
		wantKind  error
		wantStage job.Stage
		wantRemux bool
	}{
		{
			name:      "probe fails",
			setup:     func(f *fixture) { f.prober.shouldFail, f.prober.failError = true, fmt.Errorf("invalid data") },
			wantKind:  job.ErrExtraction,
			wantStage: job.StageExtracting,
		},
		{
			name:      "no audio streams",
			setup:     func(f *fixture) { f.extractor.shouldFail, f.extractor.failError = true, job.ErrNoAudioStreams },
			wantKind:  job.ErrExtraction,
			wantStage: job.StageExtracting,
		},
		{
			name:      "temp workspace cannot be created",
			setup:     func(f *fixture) { f.fs.tempErr = fmt.Errorf("disk full") },
			wantKind:  job.ErrExtraction,
			wantStage: job.StageExtracting,
		},
		{
			name:      "second track fails to separate",
			setup:     func(f *fixture) { f.separator.failOnCall, f.separator.failError = 2, fmt.Errorf("RuntimeError: cuda oom") },
			wantKind:  job.ErrSeparation,
			wantStage: job.StageSeparating,
		},
		{
			name:      "remux fails",
			setup:     func(f *fixture) { f.remuxer.shouldFail, f.remuxer.failError = true, fmt.Errorf("exit status 1") },
			wantKind:  job.ErrRemux,
			wantStage: job.StageRemuxing,
			wantRemux: true,
		},
		{
			name:      "rename fails",
			setup:     func(f *fixture) { f.fs.renameErr = fmt.Errorf("cross-device link") },
			wantKind:  job.ErrRemux,
			wantStage: job.StageRemuxing,
			wantRemux: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			err := f.service.Process(context.Background(), f.job, f.separator)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, tt.wantKind) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.wantKind)
			}
			if job.StageOf(err) != tt.wantStage {
				t.Errorf("StageOf() = %q, want %q", job.StageOf(err), tt.wantStage)
			}

			failed := f.reporter.events[len(f.reporter.events)-1]
			if failed.Kind != job.EventJobFailed || failed.Stage != tt.wantStage {
				t.Errorf("last event = %s at %s, want job_failed at %s", failed.Kind, failed.Stage, tt.wantStage)
			}

			if len(f.fs.tempDirs) != len(f.fs.removedAll) {
				t.Errorf("created %d workspaces but removed %d", len(f.fs.tempDirs), len(f.fs.removedAll))
			}
			if f.fs.Exists("/out/a.mp4") {
				t.Error("a failed job must not leave a destination file")
			}
			if tt.wantRemux && f.fs.Exists("/out/.a.partial.mp4") {
				t.Error("the partial output must be removed")
			}
		})
	}
}

func TestProcess_CleanupFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.fs.removeAllErr = fmt.Errorf("device busy")

	if err := f.service.Process(context.Background(), f.job, f.separator); err != nil {
		t.Fatalf("cleanup failures must not fail the job: %v", err)
	}
	last := f.reporter.events[len(f.reporter.events)-1]
	if last.Kind != job.EventCleanupFailed {
		t.Errorf("last event = %s, want cleanup_failed", last.Kind)
	}
}
