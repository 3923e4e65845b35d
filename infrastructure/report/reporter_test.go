package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"video-music-remover/domain/job"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
)

func TestLogReporter_Messages(t *testing.T) {
	handler := memory.New()
	reporter := NewLogReporter(&log.Logger{Handler: handler, Level: log.DebugLevel})

	source := "/videos/a.mp4"
	tests := []struct {
		name      string
		event     job.Event
		wantLevel log.Level
		wantMsg   string
	}{
		{
			name:      "job started",
			event:     job.Event{Kind: job.EventJobStarted, Source: source},
			wantLevel: log.InfoLevel,
			wantMsg:   `Processing file "a.mp4"`,
		},
		{
			name:      "track separation",
			event:     job.Event{Kind: job.EventTrackSeparationStarted, Source: source, Track: 2, TotalTracks: 2},
			wantLevel: log.InfoLevel,
			wantMsg:   `"a.mp4": start separating vocal... 2/2`,
		},
		{
			name:      "track separated",
			event:     job.Event{Kind: job.EventTrackSeparationFinished, Source: source, Track: 1, TotalTracks: 2},
			wantLevel: log.InfoLevel,
			wantMsg:   `"a.mp4": vocal separated successfully 1/2`,
		},
		{
			name:      "remux",
			event:     job.Event{Kind: job.EventStageStarted, Source: source, Stage: job.StageRemuxing},
			wantLevel: log.InfoLevel,
			wantMsg:   `"a.mp4": creating a new video with no music...`,
		},
		{
			name:      "job succeeded",
			event:     job.Event{Kind: job.EventJobSucceeded, Source: source},
			wantLevel: log.InfoLevel,
			wantMsg:   `"a.mp4": a new video with no music has been created`,
		},
		{
			name:      "deletion started",
			event:     job.Event{Kind: job.EventDeletionStarted, Source: source},
			wantLevel: log.InfoLevel,
			wantMsg:   `"a.mp4": Post-Processing(optional): deleting original video...`,
		},
		{
			name:      "job failed",
			event:     job.Event{Kind: job.EventJobFailed, Source: source, Stage: job.StageSeparating, Err: fmt.Errorf("RuntimeError: boom")},
			wantLevel: log.ErrorLevel,
			wantMsg:   `an error occurred while processing file "a.mp4", skipping the file`,
		},
		{
			name:      "deletion failed",
			event:     job.Event{Kind: job.EventDeletionFailed, Source: source, Err: fmt.Errorf("permission denied")},
			wantLevel: log.WarnLevel,
			wantMsg:   `"a.mp4": could not delete the original video`,
		},
		{
			name:      "batch finished",
			event:     job.Event{Kind: job.EventBatchFinished, Succeeded: 2, Failed: 1, Skipped: 3},
			wantLevel: log.InfoLevel,
			wantMsg:   "Processing finished: 2 succeeded, 1 failed, 3 skipped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(handler.Entries)
			reporter.Report(tt.event)

			if len(handler.Entries) != before+1 {
				t.Fatalf("expected one entry, got %d", len(handler.Entries)-before)
			}
			entry := handler.Entries[len(handler.Entries)-1]
			if entry.Level != tt.wantLevel {
				t.Errorf("level = %s, want %s", entry.Level, tt.wantLevel)
			}
			if entry.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", entry.Message, tt.wantMsg)
			}
		})
	}
}

func TestLogReporter_FailureFields(t *testing.T) {
	handler := memory.New()
	reporter := NewLogReporter(&log.Logger{Handler: handler, Level: log.InfoLevel})

	reporter.Report(job.Event{
		Kind:   job.EventJobFailed,
		JobID:  "job-1",
		Source: "/videos/a.mp4",
		Stage:  job.StageRemuxing,
		Err:    fmt.Errorf("exit status 1"),
	})

	fields := handler.Entries[0].Fields
	if fields.Get("job") != "job-1" || fields.Get("stage") != "remuxing" {
		t.Errorf("unexpected fields: %v", fields)
	}
	if fields.Get("error") != "exit status 1" {
		t.Errorf("error field = %v", fields.Get("error"))
	}
}

func TestNewLogger_AppendsToFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "run.log")
	if err := os.WriteFile(logFile, []byte("previous run\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var console bytes.Buffer
	logger, closer, err := NewLogger(&console, logFile)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	NewLogReporter(logger).Report(job.Event{Kind: job.EventJobStarted, Source: "/videos/a.mp4"})
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "previous run\n") {
		t.Error("log file was truncated")
	}
	if !strings.Contains(string(data), `Processing file "a.mp4"`) {
		t.Errorf("log file missing message:\n%s", data)
	}
	if !strings.Contains(console.String(), `Processing file "a.mp4"`) {
		t.Errorf("console missing message:\n%s", console.String())
	}
}

func TestNewLogger_ConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	logger, closer, err := NewLogger(&console, "")
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	defer closer.Close()

	logger.Info("hello")
	if !strings.Contains(console.String(), "hello") {
		t.Errorf("console = %q", console.String())
	}
}

func TestNewLogger_UnwritableFile(t *testing.T) {
	_, _, err := NewLogger(&bytes.Buffer{}, filepath.Join(t.TempDir(), "missing", "run.log"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
