package atomicfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/querymem/pkg/utils/atomicfile"
)

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")

	gt.NoError(t, atomicfile.WriteFile(path, []byte("first"), 0o600))
	gt.NoError(t, atomicfile.WriteFile(path, []byte("second"), 0o600))

	data, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.Equal(t, string(data), "second")

	// No temp files are left behind
	entries, err := os.ReadDir(dir)
	gt.NoError(t, err)
	gt.A(t, entries).Length(1)
}

func TestWriteFileMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "data.bin")
	gt.Error(t, atomicfile.WriteFile(path, []byte("x"), 0o600))
}
