package vault

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const filePerm = 0o600

// appendLine adds line to the end of path, creating the file if needed.
// A missing trailing newline from a hand edit is repaired first so the new
// line never merges into the previous one.
func appendLine(path, line string) error {
	_, statErr := os.Stat(path)
	created := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE, filePerm)
	if err != nil {
		return storageErr("open", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return storageErr("stat", path, err)
	}

	var buf strings.Builder
	if size := info.Size(); size > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, size-1); err != nil {
			return storageErr("read", path, err)
		}
		if last[0] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.WriteString(line)
	buf.WriteByte('\n')

	if _, err := f.WriteString(buf.String()); err != nil {
		return storageErr("append", path, err)
	}
	if err := f.Sync(); err != nil {
		return storageErr("sync", path, err)
	}
	if created {
		_ = syncDir(filepath.Dir(path))
	}
	return nil
}

// scanLines calls fn for every line of path until fn returns false.
// A missing file is treated as empty.
func scanLines(path string, fn func(line string) bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return storageErr("open", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if !fn(strings.TrimRight(sc.Text(), "\r")) {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return storageErr("read", path, err)
	}
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	return f.Sync()
}
