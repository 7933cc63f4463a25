package recorder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/zeusync/spotlight/internal/experiment"
)

// Sink persists a finished subject session.
type Sink interface {
	Store(ctx context.Context, s experiment.SubjectSession) error
}

// FileName is the session file name for a subject.
func FileName(subjectID int) string {
	return strconv.Itoa(subjectID) + ".csv"
}

// WriteSessionFile writes s to <dir>/<subjectID>.csv, replacing any existing
// file. The file is closed on every path.
func WriteSessionFile(dir string, s experiment.SubjectSession) (path string, err error) {
	if dir != "" {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create output dir: %w", err)
		}
	}
	path = filepath.Join(dir, FileName(s.SubjectID))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create session file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close session file: %w", cerr)
		}
	}()

	if err = WriteSession(f, s); err != nil {
		return path, err
	}
	if err = f.Sync(); err != nil {
		return path, fmt.Errorf("sync session file: %w", err)
	}
	return path, nil
}

// Serialize writes the active session as delimited rows to w.
func (r *Recorder) Serialize(w io.Writer) error {
	if r.session == nil {
		return experiment.ErrNoSession
	}
	return WriteSession(w, *r.session)
}

// WriteFile serializes the active session to <dir>/<subjectID>.csv.
func (r *Recorder) WriteFile(dir string) (string, error) {
	if r.session == nil {
		return "", experiment.ErrNoSession
	}
	return WriteSessionFile(dir, *r.session)
}

// FileSink stores sessions as CSV files under Dir.
type FileSink struct {
	Dir string
}

var _ Sink = FileSink{}

func (s FileSink) Store(_ context.Context, session experiment.SubjectSession) error {
	_, err := WriteSessionFile(s.Dir, session)
	return err
}
