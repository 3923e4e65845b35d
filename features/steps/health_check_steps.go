//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"video-music-remover/cmd"
	"video-music-remover/infrastructure/demucs"
	"video-music-remover/infrastructure/diagnostics"

	"github.com/cucumber/godog"
)

// toolRunner answers `-version` style calls for installed tools only
type toolRunner struct {
	installed map[string]bool
	calls     []string
}

func (t *toolRunner) Run(ctx context.Context, name string, args ...string) error {
	_, err := t.Output(ctx, name, args...)
	return err
}

func (t *toolRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	t.calls = append(t.calls, name+" "+strings.Join(args, " "))
	if !t.installed[name] {
		return nil, fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	if name == "python3" {
		return []byte("4.0.1\n"), nil
	}
	return []byte(name + " version 7.0\n"), nil
}

type healthCheckContext struct {
	runner   *toolRunner
	settings diagnostics.Settings
	output   bytes.Buffer
	err      error
}

var SharedHealthCheckContext = &healthCheckContext{}

func InitializeHealthCheckScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedHealthCheckContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		*testCtx = healthCheckContext{runner: &toolRunner{installed: make(map[string]bool)}}
		testCtx.settings = diagnostics.Settings{
			FFmpegPath: "ffmpeg",
			PythonPath: "python3",
			DemucsPath: "demucs",
			Engine:     demucs.EngineWorker,
		}
		return c, nil
	})

	ctx.Step(`^the tools "([^"]*)" are installed$`, testCtx.theToolsAreInstalled)
	ctx.Step(`^the "([^"]*)" engine is configured$`, testCtx.theEngineIsConfigured)
	ctx.Step(`^I run the health check$`, testCtx.iRunTheHealthCheck)
	ctx.Step(`^the health check should pass$`, testCtx.theHealthCheckShouldPass)
	ctx.Step(`^the health check should fail$`, testCtx.theHealthCheckShouldFail)
	ctx.Step(`^the health check output should contain "([^"]*)"$`, testCtx.theHealthCheckOutputShouldContain)
}

func (h *healthCheckContext) theToolsAreInstalled(tools string) error {
	for _, tool := range strings.Split(tools, ",") {
		h.runner.installed[strings.TrimSpace(tool)] = true
	}
	return nil
}

func (h *healthCheckContext) theEngineIsConfigured(name string) error {
	engine, err := demucs.ParseEngine(name)
	if err != nil {
		return err
	}
	h.settings.Engine = engine
	return nil
}

func (h *healthCheckContext) iRunTheHealthCheck() error {
	checker := diagnostics.NewChecker(h.runner)
	h.err = cmd.RunHealthCheckWithDependencies(context.Background(), checker, h.settings, &h.output)
	return nil
}

func (h *healthCheckContext) theHealthCheckShouldPass() error {
	if h.err != nil {
		return fmt.Errorf("expected the health check to pass, got %v\n%s", h.err, h.output.String())
	}
	return nil
}

func (h *healthCheckContext) theHealthCheckShouldFail() error {
	if h.err == nil {
		return fmt.Errorf("expected the health check to fail\n%s", h.output.String())
	}
	return nil
}

func (h *healthCheckContext) theHealthCheckOutputShouldContain(text string) error {
	if !strings.Contains(h.output.String(), text) {
		return fmt.Errorf("expected %q in output:\n%s", text, h.output.String())
	}
	return nil
}
