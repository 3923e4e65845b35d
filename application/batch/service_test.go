package batch_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"video-music-remover/application/batch"
	"video-music-remover/application/scan"
	"video-music-remover/domain/job"
	"video-music-remover/domain/separation"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type memoryFS struct {
	dirs      map[string]bool
	files     map[string]bool
	removeErr error
	removed   []string
}

func (m *memoryFS) Exists(path string) bool { return m.dirs[path] || m.files[path] }

func (m *memoryFS) IsDir(path string) (bool, error) {
	if m.dirs[path] {
		return true, nil
	}
	if m.files[path] {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: no such file or directory", path)
}

func (m *memoryFS) ListFiles(dir string) ([]string, error) {
	var names []string
	for f := range m.files {
		if filepath.Dir(f) == dir {
			names = append(names, filepath.Base(f))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *memoryFS) MkdirAll(path string) error                    { return nil }
func (m *memoryFS) MkdirTemp(dir, pattern string) (string, error) { return "/tmp/work", nil }
func (m *memoryFS) Rename(from, to string) error                  { return nil }
func (m *memoryFS) RemoveAll(path string) error                   { return nil }

func (m *memoryFS) Remove(path string) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	delete(m.files, path)
	m.removed = append(m.removed, path)
	return nil
}

// dummyRunner writes the destination of every job except those in failures
type dummyRunner struct {
	fs        *memoryFS
	failures  map[string]error
	processed []string
	models    []separation.Separator
}

func (d *dummyRunner) Process(ctx context.Context, j job.ProcessingJob, sep separation.Separator) error {
	d.processed = append(d.processed, j.Name())
	d.models = append(d.models, sep)
	if err, ok := d.failures[j.Name()]; ok {
		return err
	}
	d.fs.files[j.DestinationPath] = true
	return nil
}

type dummySeparator struct {
	closed int
}

func (d *dummySeparator) Separate(ctx context.Context, inputPath, outputDir string) (string, error) {
	return filepath.Join(outputDir, "vocals.mp3"), nil
}

func (d *dummySeparator) Close() error {
	d.closed++
	return nil
}

var _ = Describe("Batch", func() {
	var (
		fs        *memoryFS
		runner    *dummyRunner
		separator *dummySeparator
		loads     []separation.Model
		loadErr   error
		events    []job.Event
		service   *batch.Service
	)

	BeforeEach(func() {
		fs = &memoryFS{
			dirs: map[string]bool{"/videos": true, "/out": true},
			files: map[string]bool{
				"/videos/a.mp4":     true,
				"/videos/b.mkv":     true,
				"/videos/c.webm":    true,
				"/videos/notes.txt": true,
			},
		}
		runner = &dummyRunner{fs: fs, failures: map[string]error{}}
		separator = &dummySeparator{}
		loads = nil
		loadErr = nil
		events = nil

		loader := func(ctx context.Context, model separation.Model) (separation.Separator, error) {
			loads = append(loads, model)
			if loadErr != nil {
				return nil, loadErr
			}
			return separator, nil
		}
		registry := separation.Registry{}
		for _, model := range separation.Models() {
			registry[model] = loader
		}

		reporter := job.ReporterFunc(func(e job.Event) { events = append(events, e) })
		service = batch.NewService(fs, runner, registry, reporter)
	})

	countEvents := func(kind job.EventKind) int {
		n := 0
		for _, e := range events {
			if e.Kind == kind {
				n++
			}
		}
		return n
	}

	Describe("a directory of videos", func() {
		It("processes every supported file in name order", func() {
			summary, err := service.Run(context.Background(), batch.Input{InputPath: "/videos", OutputPath: "/out"})
			Expect(err).NotTo(HaveOccurred())

			Expect(runner.processed).To(Equal([]string{"a.mp4", "b.mkv", "c.webm"}))
			Expect(summary.Succeeded).To(HaveLen(3))
			Expect(summary.HasFailures()).To(BeFalse())
		})

		It("loads the model once and shares it with every job", func() {
			_, err := service.Run(context.Background(), batch.Input{InputPath: "/videos", OutputPath: "/out", Model: separation.ModelMDXDemucs})
			Expect(err).NotTo(HaveOccurred())

			Expect(loads).To(Equal([]separation.Model{separation.ModelMDXDemucs}))
			for _, sep := range runner.models {
				Expect(sep).To(BeIdenticalTo(separator))
			}
			By("closing the model when the run ends")
			Expect(separator.closed).To(Equal(1))
		})

		It("does no work on a second run", func() {
			_, err := service.Run(context.Background(), batch.Input{InputPath: "/videos", OutputPath: "/out"})
			Expect(err).NotTo(HaveOccurred())
			runner.processed = nil

			summary, err := service.Run(context.Background(), batch.Input{InputPath: "/videos", OutputPath: "/out"})
			Expect(err).NotTo(HaveOccurred())
			Expect(runner.processed).To(BeEmpty())
			Expect(summary.Skipped).To(Equal(3))
			Expect(summary.Attempted()).To(Equal(0))

			By("never loading the model when there is nothing to do")
			Expect(loads).To(HaveLen(1))
		})

		It("skips files whose output already exists", func() {
			fs.files["/out/b.mkv"] = true

			summary, err := service.Run(context.Background(), batch.Input{InputPath: "/videos", OutputPath: "/out"})
			Expect(err).NotTo(HaveOccurred())
			Expect(runner.processed).To(Equal([]string{"a.mp4", "c.webm"}))
			Expect(summary.Skipped).To(Equal(1))
			Expect(countEvents(job.EventFileSkipped)).To(Equal(1))
		})
	})

	Describe("a failing job", func() {
		BeforeEach(func() {
			runner.failures["b.mkv"] = job.SeparationError(fmt.Errorf("RuntimeError: boom"))
		})

		It("is recorded and the rest of the batch still runs", func() {
			summary, err := service.Run(context.Background(), batch.Input{InputPath: "/videos", OutputPath: "/out"})
			Expect(err).NotTo(HaveOccurred())

			Expect(runner.processed).To(HaveLen(3))
			Expect(summary.Succeeded).To(HaveLen(2))
			Expect(summary.Failed).To(HaveLen(1))
			Expect(summary.HasFailures()).To(BeTrue())

			failure := summary.Failed[0]
			Expect(failure.Job.Name()).To(Equal("b.mkv"))
			Expect(failure.Stage).To(Equal(job.StageSeparating))
			Expect(errors.Is(failure.Err, job.ErrSeparation)).To(BeTrue())
		})

		It("keeps its original when delete-original is set", func() {
			_, err := service.Run(context.Background(), batch.Input{InputPath: "/videos", OutputPath: "/out", DeleteOriginal: true})
			Expect(err).NotTo(HaveOccurred())

			Expect(fs.removed).To(ConsistOf("/videos/a.mp4", "/videos/c.webm"))
			Expect(fs.files).To(HaveKey("/videos/b.mkv"))
		})

		It("is processed again on the next run", func() {
			_, err := service.Run(context.Background(), batch.Input{InputPath: "/videos", OutputPath: "/out"})
			Expect(err).NotTo(HaveOccurred())
			delete(runner.failures, "b.mkv")
			runner.processed = nil

			_, err = service.Run(context.Background(), batch.Input{InputPath: "/videos", OutputPath: "/out"})
			Expect(err).NotTo(HaveOccurred())
			Expect(runner.processed).To(Equal([]string{"b.mkv"}))
		})
	})

	Describe("a separation model that crashes", func() {
		It("is restarted so the following jobs still succeed", func() {
			var started []*crashingSeparator
			loader := func(ctx context.Context, model separation.Model) (separation.Separator, error) {
				sep := &crashingSeparator{crash: len(started) == 0}
				started = append(started, sep)
				return sep, nil
			}
			registry := separation.Registry{separation.ModelHTDemucs: loader}
			reporter := job.ReporterFunc(func(e job.Event) { events = append(events, e) })
			service = batch.NewService(fs, &separatingRunner{fs: fs}, registry, reporter)

			summary, err := service.Run(context.Background(), batch.Input{InputPath: "/videos", OutputPath: "/out"})
			Expect(err).NotTo(HaveOccurred())

			Expect(summary.Failed).To(HaveLen(1))
			Expect(summary.Failed[0].Job.Name()).To(Equal("a.mp4"))
			Expect(errors.Is(summary.Failed[0].Err, separation.ErrExited)).To(BeTrue())
			Expect(summary.Succeeded).To(HaveLen(2))

			Expect(started).To(HaveLen(2))
			Expect(started[0].closed).To(Equal(1))
			Expect(countEvents(job.EventModelLoaded)).To(Equal(2))
		})
	})

	Describe("delete-original", func() {
		It("removes each source after its output was created", func() {
			summary, err := service.Run(context.Background(), batch.Input{InputPath: "/videos", OutputPath: "/out", DeleteOriginal: true})
			Expect(err).NotTo(HaveOccurred())

			Expect(fs.removed).To(Equal([]string{"/videos/a.mp4", "/videos/b.mkv", "/videos/c.webm"}))
			Expect(summary.DeletionFailures).To(BeEmpty())
			Expect(countEvents(job.EventDeletionFinished)).To(Equal(3))
		})

		It("counts a deletion failure without failing the job", func() {
			fs.removeErr = fmt.Errorf("permission denied")

			summary, err := service.Run(context.Background(), batch.Input{InputPath: "/videos/a.mp4", OutputPath: "/out", DeleteOriginal: true})
			Expect(err).NotTo(HaveOccurred())

			Expect(summary.Succeeded).To(HaveLen(1))
			Expect(summary.HasFailures()).To(BeFalse())
			Expect(summary.DeletionFailures).To(HaveLen(1))
			Expect(errors.Is(summary.DeletionFailures[0].Err, job.ErrDeletion)).To(BeTrue())
			Expect(countEvents(job.EventDeletionFailed)).To(Equal(1))
		})
	})

	Describe("a single file", func() {
		It("is processed even when its output exists", func() {
			fs.files["/out/a.mp4"] = true

			summary, err := service.Run(context.Background(), batch.Input{InputPath: "/videos/a.mp4", OutputPath: "/out"})
			Expect(err).NotTo(HaveOccurred())
			Expect(runner.processed).To(Equal([]string{"a.mp4"}))
			Expect(summary.Skipped).To(BeZero())
		})
	})

	Describe("unrecoverable errors", func() {
		It("rejects an output directory inside the input", func() {
			fs.dirs["/videos/out"] = true

			summary, err := service.Run(context.Background(), batch.Input{InputPath: "/videos", OutputPath: "/videos/out"})
			Expect(errors.Is(err, scan.ErrInvalidPath)).To(BeTrue())
			Expect(summary).To(BeNil())
			Expect(runner.processed).To(BeEmpty())
		})

		It("stops when the model cannot be loaded", func() {
			loadErr = fmt.Errorf("No module named 'demucs'")

			summary, err := service.Run(context.Background(), batch.Input{InputPath: "/videos", OutputPath: "/out"})
			Expect(err).To(MatchError(ContainSubstring("loading separation model ht_demucs")))
			Expect(summary.Attempted()).To(BeZero())
			Expect(runner.processed).To(BeEmpty())
		})

		It("stops between jobs once the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancelling := &cancellingRunner{dummyRunner: runner, cancel: cancel}
			service = batch.NewService(fs, cancelling, separation.Registry{
				separation.ModelHTDemucs: func(context.Context, separation.Model) (separation.Separator, error) {
					return separator, nil
				},
			}, nil)

			summary, err := service.Run(ctx, batch.Input{InputPath: "/videos", OutputPath: "/out"})
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(summary.Attempted()).To(Equal(1))
		})
	})
})

// cancellingRunner cancels the run after the first job
type cancellingRunner struct {
	*dummyRunner
	cancel context.CancelFunc
}

func (c *cancellingRunner) Process(ctx context.Context, j job.ProcessingJob, sep separation.Separator) error {
	err := c.dummyRunner.Process(ctx, j, sep)
	c.cancel()
	return err
}

// crashingSeparator exits on its first call when crash is set
type crashingSeparator struct {
	crash  bool
	exited bool
	closed int
}

func (c *crashingSeparator) Separate(ctx context.Context, inputPath, outputDir string) (string, error) {
	if c.crash || c.exited {
		c.exited = true
		return "", errors.Mark(fmt.Errorf("worker exited: Killed"), separation.ErrExited)
	}
	return filepath.Join(outputDir, "vocals.mp3"), nil
}

func (c *crashingSeparator) Exited() bool { return c.exited }

func (c *crashingSeparator) Close() error {
	c.closed++
	return nil
}

// separatingRunner separates one track per job
type separatingRunner struct {
	fs *memoryFS
}

func (r *separatingRunner) Process(ctx context.Context, j job.ProcessingJob, sep separation.Separator) error {
	if _, err := sep.Separate(ctx, "/tmp/work/track_0.mka", "/tmp/work/intermediate/0"); err != nil {
		return job.SeparationError(err)
	}
	r.fs.files[j.DestinationPath] = true
	return nil
}
