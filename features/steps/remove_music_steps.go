//go:build integration

package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"video-music-remover/application/batch"
	"video-music-remover/cmd"
	"video-music-remover/domain/job"
	"video-music-remover/domain/separation"
	"video-music-remover/infrastructure/ffmpeg"
	"video-music-remover/infrastructure/filesystem"

	"github.com/cucumber/godog"
	ffmpeggo "github.com/u2takey/ffmpeg-go"
)

// fakeToolkit stands in for ffmpeg, ffprobe and demucs. ffmpeg calls create
// their output file, the probe returns a video stream, the configured audio
// streams and a subtitle stream.
type fakeToolkit struct {
	audioStreams   int
	silent         map[string]bool
	failExtraction map[string]bool
	remuxes        map[string][]string
	separations    int
	loadedModels   []separation.Model
}

func (f *fakeToolkit) Run(ctx context.Context, name string, args ...string) error {
	source := argAfter(args, "-i")
	if f.failExtraction[filepath.Base(source)] && strings.HasPrefix(argAfter(args, "-map"), "0:a:") {
		return fmt.Errorf("ffmpeg failed: Invalid data found when processing input")
	}
	if contains(args, "-map_metadata") {
		f.remuxes[filepath.Base(source)] = args
	}
	return os.WriteFile(args[len(args)-1], []byte("media"), 0644)
}

func (f *fakeToolkit) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return []byte(name + " version 7.0"), nil
}

func (f *fakeToolkit) Probe(fileName string, kwargs ...ffmpeggo.KwArgs) (string, error) {
	type stream struct {
		Index     int               `json:"index"`
		CodecType string            `json:"codec_type"`
		CodecName string            `json:"codec_name"`
		Tags      map[string]string `json:"tags,omitempty"`
	}

	streams := []stream{{Index: 0, CodecType: "video", CodecName: "h264"}}
	if !f.silent[filepath.Base(fileName)] {
		for i := 0; i < f.audioStreams; i++ {
			streams = append(streams, stream{
				Index:     len(streams),
				CodecType: "audio",
				CodecName: "aac",
				Tags:      map[string]string{"language": fmt.Sprintf("l%d", i)},
			})
		}
	}
	streams = append(streams, stream{Index: len(streams), CodecType: "subtitle", CodecName: "subrip"})

	data, err := json.Marshal(map[string]any{"streams": streams})
	return string(data), err
}

func (f *fakeToolkit) Separate(ctx context.Context, inputPath, outputDir string) (string, error) {
	f.separations++
	vocals := filepath.Join(outputDir, "vocals.mp3")
	return vocals, os.WriteFile(vocals, []byte("vocals"), 0644)
}

func (f *fakeToolkit) Close() error { return nil }

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

type removeMusicContext struct {
	inputDir  string
	outputDir string
	tempDir   string
	inputPath string
	toolkit   *fakeToolkit
	output    bytes.Buffer
	err       error
}

var SharedRemoveMusicContext = &removeMusicContext{}

func InitializeRemoveMusicScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedRemoveMusicContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		root, err := os.MkdirTemp("", "remove-music-test-*")
		if err != nil {
			return c, err
		}
		*testCtx = removeMusicContext{
			inputDir:  filepath.Join(root, "input"),
			outputDir: filepath.Join(root, "output"),
			tempDir:   root,
			toolkit: &fakeToolkit{
				audioStreams:   1,
				silent:         make(map[string]bool),
				failExtraction: make(map[string]bool),
				remuxes:        make(map[string][]string),
			},
		}
		testCtx.inputPath = testCtx.inputDir
		return c, os.MkdirAll(testCtx.inputDir, 0755)
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if testCtx.tempDir != "" {
			os.RemoveAll(testCtx.tempDir)
		}
		return c, nil
	})

	ctx.Step(`^an input directory with the files "([^"]*)"$`, testCtx.anInputDirectoryWithTheFiles)
	ctx.Step(`^an empty output directory$`, testCtx.anEmptyOutputDirectory)
	ctx.Step(`^the output directory already contains "([^"]*)"$`, testCtx.theOutputDirectoryAlreadyContains)
	ctx.Step(`^every video has (\d+) audio streams$`, testCtx.everyVideoHasAudioStreams)
	ctx.Step(`^"([^"]*)" has no audio streams$`, testCtx.hasNoAudioStreams)
	ctx.Step(`^extracting audio from "([^"]*)" fails$`, testCtx.extractingAudioFromFails)
	ctx.Step(`^the input is the single file "([^"]*)"$`, testCtx.theInputIsTheSingleFile)
	ctx.Step(`^the output directory is inside the input directory$`, testCtx.theOutputDirectoryIsInsideTheInputDirectory)
	ctx.Step(`^I remove the music with model "([^"]*)"$`, testCtx.iRemoveTheMusicWithModel)
	ctx.Step(`^I remove the music with model "([^"]*)" and delete the originals$`, testCtx.iRemoveTheMusicAndDeleteTheOriginals)
	ctx.Step(`^I remove the music again$`, testCtx.iRemoveTheMusicAgain)
	ctx.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	ctx.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	ctx.Step(`^the summary should report (\d+) succeeded, (\d+) failed and (\d+) skipped$`, testCtx.theSummaryShouldReport)
	ctx.Step(`^the output directory should contain "([^"]*)"$`, testCtx.theOutputDirectoryShouldContain)
	ctx.Step(`^the output directory should not contain "([^"]*)"$`, testCtx.theOutputDirectoryShouldNotContain)
	ctx.Step(`^the original "([^"]*)" should still exist$`, testCtx.theOriginalShouldStillExist)
	ctx.Step(`^the original "([^"]*)" should be deleted$`, testCtx.theOriginalShouldBeDeleted)
	ctx.Step(`^(\d+) audio tracks should have been separated$`, testCtx.audioTracksShouldHaveBeenSeparated)
	ctx.Step(`^the model "([^"]*)" should have been loaded once$`, testCtx.theModelShouldHaveBeenLoadedOnce)
	ctx.Step(`^the new "([^"]*)" should map "([^"]*)"$`, testCtx.theNewShouldMap)
	ctx.Step(`^no temporary files should remain$`, testCtx.noTemporaryFilesShouldRemain)
}

func (r *removeMusicContext) anInputDirectoryWithTheFiles(files string) error {
	for _, name := range strings.Split(files, ",") {
		name = strings.TrimSpace(name)
		if err := os.WriteFile(filepath.Join(r.inputDir, name), []byte("source"), 0644); err != nil {
			return err
		}
	}
	return nil
}

func (r *removeMusicContext) anEmptyOutputDirectory() error {
	return os.MkdirAll(r.outputDir, 0755)
}

func (r *removeMusicContext) theOutputDirectoryAlreadyContains(name string) error {
	return os.WriteFile(filepath.Join(r.outputDir, name), []byte("done before"), 0644)
}

func (r *removeMusicContext) everyVideoHasAudioStreams(n int) error {
	r.toolkit.audioStreams = n
	return nil
}

func (r *removeMusicContext) hasNoAudioStreams(name string) error {
	r.toolkit.silent[name] = true
	return nil
}

func (r *removeMusicContext) extractingAudioFromFails(name string) error {
	r.toolkit.failExtraction[name] = true
	return nil
}

func (r *removeMusicContext) theInputIsTheSingleFile(name string) error {
	r.inputPath = filepath.Join(r.inputDir, name)
	return nil
}

func (r *removeMusicContext) theOutputDirectoryIsInsideTheInputDirectory() error {
	r.outputDir = filepath.Join(r.inputDir, "out")
	return os.MkdirAll(r.outputDir, 0755)
}

func (r *removeMusicContext) run(model string, deleteOriginal bool) error {
	parsed, err := separation.ParseModel(model)
	if err != nil {
		return err
	}

	registry := separation.Registry{}
	for _, m := range separation.Models() {
		registry[m] = func(ctx context.Context, model separation.Model) (separation.Separator, error) {
			r.toolkit.loadedModels = append(r.toolkit.loadedModels, model)
			return r.toolkit, nil
		}
	}

	deps := cmd.RemoveMusicDependencies{
		Prober:        ffmpeg.NewProber(ffmpeg.WithProbeFunc(r.toolkit.Probe)),
		Extractor:     ffmpeg.NewExtractor(ffmpeg.WithExtractorCommandRunner(r.toolkit)),
		Remuxer:       ffmpeg.NewRemuxer(ffmpeg.WithCommandRunner(r.toolkit)),
		FileSystem:    filesystem.NewChecker(),
		Registry:      registry,
		Reporter:      job.Discard,
		TempDirectory: filepath.Join(r.tempDir, "work"),
	}
	if err := os.MkdirAll(deps.TempDirectory, 0755); err != nil {
		return err
	}

	input := batch.Input{
		InputPath:      r.inputPath,
		OutputPath:     r.outputDir,
		Model:          parsed,
		DeleteOriginal: deleteOriginal,
	}

	r.output.Reset()
	r.err = cmd.RunRemoveMusicWithDependencies(context.Background(), deps, input, &r.output)
	return nil
}

func (r *removeMusicContext) iRemoveTheMusicWithModel(model string) error {
	return r.run(model, false)
}

func (r *removeMusicContext) iRemoveTheMusicAndDeleteTheOriginals(model string) error {
	return r.run(model, true)
}

func (r *removeMusicContext) iRemoveTheMusicAgain() error {
	return r.run(string(separation.DefaultModel), false)
}

func (r *removeMusicContext) theCommandShouldSucceed() error {
	if r.err != nil {
		return fmt.Errorf("expected success, got %v\n%s", r.err, r.output.String())
	}
	return nil
}

func (r *removeMusicContext) theCommandShouldFail() error {
	if r.err == nil {
		return fmt.Errorf("expected the command to fail\n%s", r.output.String())
	}
	return nil
}

func (r *removeMusicContext) theSummaryShouldReport(succeeded, failed, skipped int) error {
	for _, want := range []string{
		fmt.Sprintf("Succeeded: %d", succeeded),
		fmt.Sprintf("Failed:    %d", failed),
		fmt.Sprintf("Skipped:   %d", skipped),
	} {
		if !strings.Contains(r.output.String(), want) {
			return fmt.Errorf("expected %q in summary:\n%s", want, r.output.String())
		}
	}
	return nil
}

func (r *removeMusicContext) theOutputDirectoryShouldContain(name string) error {
	if _, err := os.Stat(filepath.Join(r.outputDir, name)); err != nil {
		return fmt.Errorf("expected %s in output directory: %w", name, err)
	}
	return nil
}

func (r *removeMusicContext) theOutputDirectoryShouldNotContain(name string) error {
	if _, err := os.Stat(filepath.Join(r.outputDir, name)); err == nil {
		return fmt.Errorf("did not expect %s in output directory", name)
	}
	return nil
}

func (r *removeMusicContext) theOriginalShouldStillExist(name string) error {
	if _, err := os.Stat(filepath.Join(r.inputDir, name)); err != nil {
		return fmt.Errorf("expected original %s to exist: %w", name, err)
	}
	return nil
}

func (r *removeMusicContext) theOriginalShouldBeDeleted(name string) error {
	if _, err := os.Stat(filepath.Join(r.inputDir, name)); err == nil {
		return fmt.Errorf("expected original %s to be deleted", name)
	}
	return nil
}

func (r *removeMusicContext) audioTracksShouldHaveBeenSeparated(n int) error {
	if r.toolkit.separations != n {
		return fmt.Errorf("expected %d separations, got %d", n, r.toolkit.separations)
	}
	return nil
}

func (r *removeMusicContext) theModelShouldHaveBeenLoadedOnce(model string) error {
	if len(r.toolkit.loadedModels) != 1 || string(r.toolkit.loadedModels[0]) != model {
		return fmt.Errorf("expected %s loaded once, got %v", model, r.toolkit.loadedModels)
	}
	return nil
}

func (r *removeMusicContext) theNewShouldMap(name, mapping string) error {
	args, ok := r.toolkit.remuxes[name]
	if !ok {
		return fmt.Errorf("%s was not remuxed", name)
	}
	if !strings.Contains(strings.Join(args, " "), mapping) {
		return fmt.Errorf("expected %q in remux arguments %v", mapping, args)
	}
	return nil
}

func (r *removeMusicContext) noTemporaryFilesShouldRemain() error {
	entries, err := os.ReadDir(filepath.Join(r.tempDir, "work"))
	if err != nil {
		return err
	}
	if len(entries) != 0 {
		return fmt.Errorf("expected an empty temp directory, found %d entries", len(entries))
	}

	outputs, err := os.ReadDir(r.outputDir)
	if err != nil {
		return err
	}
	for _, e := range outputs {
		if strings.Contains(e.Name(), ".partial") {
			return fmt.Errorf("partial output %s left behind", e.Name())
		}
	}
	return nil
}
