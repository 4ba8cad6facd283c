// Package videoproc drives the external transcoding script that turns
// submitted demo videos into the processed MP4s the announcement pipeline
// attaches to posts.
package videoproc

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/blacktop/arbiter/internal/logutil"
)

// Sentinels the script run appends as the final log line.
const (
	sentinelDone   = "END"
	sentinelFailed = "ERROR"
)

// State describes where a transcoding job is.
type State int

const (
	StateRunning State = iota
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "running"
	}
}

// Processor runs the transcoding script and tracks its artifacts on disk.
type Processor struct {
	// Dir is where the script leaves processed videos and thumbnails.
	Dir string
	// LogDir holds one append-only log per job.
	LogDir string
	// DownloadDir receives raw uploads before the script picks them up.
	DownloadDir string
	// Script is the path of the transcoding shell script.
	Script string
}

// Job identifies a started transcoding run.
type Job struct {
	ID string
}

// StartURL transcodes a video fetched from a remote URL. The job runs in
// the background; progress lands in the job's log file.
func (p *Processor) StartURL(ctx context.Context, rawURL string) (Job, error) {
	if strings.TrimSpace(rawURL) == "" {
		return Job{}, fmt.Errorf("video URL is empty")
	}
	id := uuid.New().String()
	return p.start(ctx, id, []string{"-u", rawURL, "-o", id})
}

// StartFile saves the uploaded video under DownloadDir and transcodes it.
// name only contributes its extension.
func (p *Processor) StartFile(ctx context.Context, name string, r io.Reader) (Job, error) {
	id := uuid.New().String()

	ext := filepath.Ext(name)
	if ext == "" {
		ext = ".mp4"
	}
	saved := filepath.Join(p.DownloadDir, id+ext)
	if err := os.MkdirAll(p.DownloadDir, 0o755); err != nil {
		return Job{}, fmt.Errorf("create download dir: %w", err)
	}
	f, err := os.Create(saved)
	if err != nil {
		return Job{}, fmt.Errorf("save upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return Job{}, fmt.Errorf("save upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return Job{}, fmt.Errorf("save upload: %w", err)
	}

	return p.start(ctx, id, []string{"-f", saved, "-o", id})
}

func (p *Processor) start(ctx context.Context, id string, args []string) (Job, error) {
	if err := os.MkdirAll(p.LogDir, 0o755); err != nil {
		return Job{}, fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(p.LogPath(id), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return Job{}, fmt.Errorf("open job log: %w", err)
	}

	cmd := exec.CommandContext(ctx, "bash", append([]string{p.Script}, args...)...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		logFile.Close()
		return Job{}, fmt.Errorf("start %s: %w", p.Script, err)
	}

	logutil.Infof("transcoding job %s started", id)
	go func() {
		defer logFile.Close()
		if err := cmd.Wait(); err != nil {
			logutil.Errorf("transcoding job %s failed: %v", id, err)
			fmt.Fprintf(logFile, "\n%s\n", sentinelFailed)
			return
		}
		logutil.Infof("transcoding job %s finished", id)
		fmt.Fprintf(logFile, "\n%s\n", sentinelDone)
	}()

	return Job{ID: id}, nil
}

// ProcessedPath is where the script leaves the finished video for a job.
func (p *Processor) ProcessedPath(id string) string {
	return filepath.Join(p.Dir, id+".mp4")
}

// LogPath is the job's append-only log.
func (p *Processor) LogPath(id string) string {
	return filepath.Join(p.LogDir, id+".log")
}

// Ready reports whether the processed video exists for a job.
func (p *Processor) Ready(id string) bool {
	_, err := os.Stat(p.ProcessedPath(id))
	return err == nil
}

// Status inspects the job log's trailing sentinel. The sentinel always
// occupies its own line, so script output that merely ends in the same
// token never counts.
func (p *Processor) Status(id string) (State, error) {
	data, err := os.ReadFile(p.LogPath(id))
	if err != nil {
		return StateRunning, fmt.Errorf("read job log: %w", err)
	}
	switch lastLine(string(data)) {
	case sentinelDone:
		return StateDone, nil
	case sentinelFailed:
		return StateFailed, nil
	default:
		return StateRunning, nil
	}
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return s
}
