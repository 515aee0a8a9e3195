package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTopicsCSV writes a topics input file with a header row followed by the
// provided rows and returns its path.
func WriteTopicsCSV(t testing.TB, dir string, rows ...string) string {
	t.Helper()

	path := filepath.Join(dir, "topics.csv")
	contents := "topic,word_count,outline,category,tags\n"
	for _, row := range rows {
		contents += row + "\n"
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
