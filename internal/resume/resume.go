// Package resume implements the resume-timestamp store: a small plaintext
// file the scheduler writes on every resume-from-suspend and the runner reads
// on its next invocation to decide whether it was woken by Night-Kitchen. The
// format is decimal-ASCII milliseconds-since-epoch, chosen (per spec) for
// debuggability over any binary framing.
package resume

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bnavetta/night-kitchen/internal/nkerrors"
)

const fileName = "resume-timestamp"

// Path resolves the resume-timestamp file location: $RUNTIME_DIRECTORY is the
// conventional systemd-provided per-service runtime directory; when unset,
// the current working directory is used.
func Path() string {
	dir := os.Getenv("RUNTIME_DIRECTORY")
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, fileName)
}

// Write truncates (or creates) the resume-timestamp file and writes now as
// decimal milliseconds since the Unix epoch. No fsync or locking: the
// scheduler is the only writer, and the runner only reads after the scheduler
// has either not yet restarted or has already flushed.
func Write(path string, now time.Time) error {
	contents := strconv.FormatInt(now.UnixMilli(), 10)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return fmt.Errorf("writing resume timestamp to %s: %w", path, err)
	}
	return nil
}

// Read returns the stored resume timestamp, or (zero, false, nil) if the file
// doesn't exist. A present-but-unparseable file is reported as ErrMalformed
// rather than conflated with "absent", so the caller can log the distinction
// even though both cases fall back to the same "no information" treatment in
// practice.
func Read(path string) (time.Time, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("reading resume timestamp from %s: %w", path, err)
	}

	ms, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing resume timestamp in %s: %w: %w", path, err, nkerrors.ErrMalformed)
	}
	return time.UnixMilli(ms).UTC(), true, nil
}
