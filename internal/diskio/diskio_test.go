package diskio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAtomic_LeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	hash, err := WriteAtomic(path, []byte(`{"k":"v"}`))
	if err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty content hash")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp.") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(b) != `{"k":"v"}` {
		t.Fatalf("unexpected content: %q", b)
	}
}

func TestWriteAtomic_HashIsStable(t *testing.T) {
	dir := t.TempDir()
	h1, err := WriteAtomic(filepath.Join(dir, "a"), []byte("same bytes"))
	if err != nil {
		t.Fatalf("WriteAtomic a: %v", err)
	}
	h2, err := WriteAtomic(filepath.Join(dir, "b"), []byte("same bytes"))
	if err != nil {
		t.Fatalf("WriteAtomic b: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("same bytes hashed differently: %s vs %s", h1, h2)
	}
	if h1 != ContentHash([]byte("same bytes")) {
		t.Fatal("WriteAtomic hash disagrees with ContentHash")
	}
}

func TestHashFile_MatchesContentHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	data := []byte(strings.Repeat("stream me\n", 1000))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if got != ContentHash(data) {
		t.Fatalf("streamed hash %s != whole-buffer hash %s", got, ContentHash(data))
	}
}

func TestReadJSON_AbsentFileIsSuccess(t *testing.T) {
	var v map[string]string
	found, err := ReadJSON(filepath.Join(t.TempDir(), "nope.json"), &v)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if found {
		t.Fatal("expected found=false for absent file")
	}
}

func TestReadJSON_MalformedIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var v map[string]string
	found, err := ReadJSON(path, &v)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if !found {
		t.Fatal("expected found=true for existing-but-malformed file")
	}
}

func TestListSorted_FiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"cmd_3_c.json", "cmd_1_a.json", "cmd_2_b.json", "other.txt", "cmd_4_d.tmp"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "cmd_sub.json"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	names, err := ListSorted(dir, "cmd_", ".json")
	if err != nil {
		t.Fatalf("ListSorted: %v", err)
	}
	want := []string{"cmd_1_a.json", "cmd_2_b.json", "cmd_3_c.json"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
}

func TestListSorted_MissingDirIsEmpty(t *testing.T) {
	names, err := ListSorted(filepath.Join(t.TempDir(), "absent"), "", "")
	if err != nil {
		t.Fatalf("ListSorted: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected empty, got %v", names)
	}
}

func TestAppendLine_IsAppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log", "timeline.jsonl")
	if err := AppendLine(path, []byte(`{"n":1}`)); err != nil {
		t.Fatalf("AppendLine: %v", err)
	}
	if err := AppendLine(path, []byte(`{"n":2}`)); err != nil {
		t.Fatalf("AppendLine: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "{\"n\":1}\n{\"n\":2}\n" {
		t.Fatalf("unexpected content: %q", b)
	}
}

func TestRename_MovesAtomically(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "queue", "req.json")
	dst := filepath.Join(dir, "inflight", "req.json")
	if _, err := WriteAtomic(src, []byte("payload")); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	if err := Rename(src, dst); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if Exists(src) {
		t.Fatal("src still exists after rename")
	}
	if !Exists(dst) {
		t.Fatal("dst missing after rename")
	}
}

func TestRemoveIfExists_MissingIsSuccess(t *testing.T) {
	if err := RemoveIfExists(filepath.Join(t.TempDir(), "gone.json")); err != nil {
		t.Fatalf("RemoveIfExists: %v", err)
	}
}
