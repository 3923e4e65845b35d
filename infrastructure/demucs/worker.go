package demucs

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"video-music-remover/domain/separation"
	"video-music-remover/infrastructure/command"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

//go:embed worker.py
var workerScript string

// stderrTail is how many stderr lines of the worker are kept for error messages
const stderrTail = 20

// WorkerError is a failure reported by the python worker. Kind is the
// python exception class, e.g. RuntimeError or UnicodeDecodeError.
type WorkerError struct {
	Kind    string
	Message string
}

func (e *WorkerError) Error() string {
	if e.Kind == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

type workerRequest struct {
	ID        string `json:"id"`
	Input     string `json:"input"`
	OutputDir string `json:"output_dir"`
	Format    string `json:"format"`
}

type workerResponse struct {
	ID     string `json:"id"`
	Ready  bool   `json:"ready"`
	Model  string `json:"model"`
	Device string `json:"device"`
	Vocals string `json:"vocals"`
	Error  string `json:"error"`
	Kind   string `json:"kind"`
}

// Worker is a long-lived python process holding one loaded model. Requests
// are serialized; the worker handles one track at a time.
type Worker struct {
	model  separation.Model
	format separation.OutputFormat

	mu      sync.Mutex
	proc    command.Process
	encoder *json.Encoder
	reader  *bufio.Reader
	stderr  *command.TailBuffer
	drained chan struct{}
	closed  bool
	exited  bool
}

// StartWorker launches the python worker and waits until the model is loaded
func StartWorker(ctx context.Context, starter command.Starter, python string, model separation.Model, format separation.OutputFormat, device string) (*Worker, error) {
	logger := log.WithFields(log.Fields{
		"model":  model.Pretrained(),
		"python": python,
		"device": device,
	})
	logger.Info("loading separation model")

	proc, err := starter.Start(ctx, python, "-u", "-c", workerScript, model.Pretrained(), device)
	if err != nil {
		return nil, errors.Wrap(err, "starting separation worker")
	}

	w := &Worker{
		model:   model,
		format:  format,
		proc:    proc,
		encoder: json.NewEncoder(proc.Stdin()),
		reader:  bufio.NewReader(proc.Stdout()),
		stderr:  command.NewTailBuffer(stderrTail),
		drained: make(chan struct{}),
	}
	go w.drainStderr()

	resp, err := w.readResponse()
	if err != nil {
		_ = w.Close()
		return nil, errors.Wrapf(err, "loading model %s", model.Pretrained())
	}
	if !resp.Ready {
		_ = w.Close()
		return nil, errors.Wrapf(&WorkerError{Kind: resp.Kind, Message: resp.Error}, "loading model %s", model.Pretrained())
	}

	logger.WithField("device", resp.Device).Info("separation model loaded")
	return w, nil
}

func (w *Worker) drainStderr() {
	defer close(w.drained)
	scanner := bufio.NewScanner(w.proc.Stderr())
	for scanner.Scan() {
		line := scanner.Text()
		w.stderr.Add(line)
		log.WithField("model", w.model.Pretrained()).Debug(line)
	}
}

func (w *Worker) readResponse() (*workerResponse, error) {
	line, err := w.reader.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.Mark(w.exitError("worker exited"), separation.ErrExited)
		}
		return nil, errors.Mark(errors.Wrap(err, "reading worker response"), separation.ErrExited)
	}

	var resp workerResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, errors.Wrapf(err, "decoding worker response %q", string(line))
	}
	return &resp, nil
}

func (w *Worker) exitError(msg string) error {
	if tail := w.stderr.String(); tail != "" {
		return errors.Newf("%s: %s", msg, tail)
	}
	return errors.New(msg)
}

// Separate implements separation.Separator
func (w *Worker) Separate(ctx context.Context, inputPath, outputDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return "", errors.New("separation worker is closed")
	}
	if w.exited {
		return "", errors.Mark(w.exitError("separation worker exited"), separation.ErrExited)
	}

	req := workerRequest{
		ID:        uuid.NewString(),
		Input:     inputPath,
		OutputDir: outputDir,
		Format:    string(w.format),
	}

	log.WithFields(log.Fields{
		"request": req.ID,
		"input":   inputPath,
		"model":   w.model.Pretrained(),
	}).Debug("separating track")

	if err := w.encoder.Encode(req); err != nil {
		w.exited = true
		return "", errors.Mark(errors.Wrap(err, "sending request to worker"), separation.ErrExited)
	}

	resp, err := w.readResponse()
	if err != nil {
		if errors.Is(err, separation.ErrExited) {
			w.exited = true
		}
		return "", err
	}
	if resp.ID != req.ID {
		return "", errors.Newf("worker answered request %q, expected %q", resp.ID, req.ID)
	}
	if resp.Error != "" {
		return "", &WorkerError{Kind: resp.Kind, Message: resp.Error}
	}
	if resp.Vocals == "" {
		return "", errors.New("worker returned no vocals path")
	}

	return resp.Vocals, nil
}

// Exited reports whether the worker process died. An exited worker cannot
// serve requests and has to be started again.
func (w *Worker) Exited() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exited
}

// Close stops the worker by closing its stdin and waits for it to exit
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	_ = w.proc.Stdin().Close()
	<-w.drained
	if err := w.proc.Wait(); err != nil {
		return w.exitError(fmt.Sprintf("worker exited with %v", err))
	}
	return nil
}

// Ensure Worker implements separation.Separator
var (
	_ separation.Separator = (*Worker)(nil)
	_ separation.Exiter    = (*Worker)(nil)
)
