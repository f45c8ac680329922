package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_ReadFile(t *testing.T) {
	fs := OSFileSystem{}

	data, err := fs.ReadFile("filesystem.go")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if len(data) == 0 {
		t.Error("expected non-empty file content")
	}
}

func TestOSFileSystem_RenameAndGlob(t *testing.T) {
	fs := OSFileSystem{}
	dir := t.TempDir()

	for _, name := range []string{"leg001_points.xyz", "leg000_points.xyz", "notes.txt"} {
		if err := fs.WriteFile(filepath.Join(dir, name), []byte("1 2 3"), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	if err := fs.MkdirAll(filepath.Join(dir, "leg999_points.xyz"), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	got, err := Glob(fs, dir, "leg*_points.xyz")
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	want := []string{filepath.Join(dir, "leg000_points.xyz"), filepath.Join(dir, "leg001_points.xyz")}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Glob = %v, want %v", got, want)
	}

	src := filepath.Join(dir, "notes.txt")
	dst := filepath.Join(dir, "renamed.txt")
	if err := fs.Rename(src, dst); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if _, err := fs.Stat(src); !os.IsNotExist(err) {
		t.Errorf("expected source to be gone, got err=%v", err)
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	err := mfs.WriteFile("/test.txt", testData, 0644)
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}
}

func TestMemoryFileSystem_CreateAndWrite(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/created.txt")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = w.Write([]byte("created content"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	err = w.Close()
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := mfs.ReadFile("/created.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if string(data) != "created content" {
		t.Errorf("expected 'created content', got %q", data)
	}
}

func TestMemoryFileSystem_Open(t *testing.T) {
	mfs := NewMemoryFileSystem()

	err := mfs.WriteFile("/opentest.txt", []byte("open me"), 0644)
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	f, err := mfs.Open("/opentest.txt")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	if string(data) != "open me" {
		t.Errorf("expected 'open me', got %q", data)
	}
}

func TestMemoryFileSystem_OpenNonExistent(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_, err := mfs.Open("/nonexistent.txt")
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestMemoryFileSystem_StatImpliedDir(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.WriteFile("/run/scene/20250101/leg000_points.xyz", []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	for _, dir := range []string{"/run", "/run/scene", "/run/scene/20250101"} {
		info, err := mfs.Stat(dir)
		if err != nil {
			t.Fatalf("Stat(%s) failed: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("expected %s to be a directory", dir)
		}
	}
}

func TestMemoryFileSystem_ReadDir(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_ = mfs.WriteFile("/root/b.txt", []byte("b"), 0644)
	_ = mfs.WriteFile("/root/a.txt", []byte("a"), 0644)
	_ = mfs.WriteFile("/root/sub/deep.txt", []byte("d"), 0644)
	_ = mfs.MkdirAll("/root/empty", 0755)

	entries, err := mfs.ReadDir("/root")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := []string{"a.txt", "b.txt", "empty", "sub"}
	if len(names) != len(want) {
		t.Fatalf("ReadDir names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, names[i], want[i])
		}
	}
	if !entries[2].IsDir() || !entries[3].IsDir() {
		t.Error("expected empty and sub to be directories")
	}

	subs, err := SubDirs(mfs, "/root")
	if err != nil {
		t.Fatalf("SubDirs failed: %v", err)
	}
	if len(subs) != 2 || subs[0] != "/root/empty" || subs[1] != "/root/sub" {
		t.Errorf("SubDirs = %v", subs)
	}
}

func TestMemoryFileSystem_ReadDirMissing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.ReadDir("/missing"); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestMemoryFileSystem_Rename(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_ = mfs.WriteFile("/out/tile.ply.tmp", []byte("payload"), 0644)
	if err := mfs.Rename("/out/tile.ply.tmp", "/out/tile.ply"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	if _, err := mfs.Stat("/out/tile.ply.tmp"); err == nil {
		t.Error("expected temp file to be gone")
	}
	data, err := mfs.ReadFile("/out/tile.ply")
	if err != nil || string(data) != "payload" {
		t.Errorf("renamed content = %q, err=%v", data, err)
	}

	if err := mfs.Rename("/out/missing", "/out/x"); err == nil {
		t.Error("expected error renaming missing file")
	}
}

func TestMemoryFileSystem_Remove(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_ = mfs.WriteFile("/removeme.txt", []byte("delete"), 0644)

	if err := mfs.Remove("/removeme.txt"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := mfs.Stat("/removeme.txt"); err == nil {
		t.Error("expected file to not exist after removal")
	}
	if err := mfs.Remove("/removeme.txt"); err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestMemoryFileSystem_RemoveNonEmptyDir(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_ = mfs.WriteFile("/dir/file.txt", []byte("x"), 0644)
	if err := mfs.Remove("/dir"); err == nil {
		t.Error("expected error removing non-empty directory")
	}
}

func TestGlob_BadPattern(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.MkdirAll("/d", 0755)

	if _, err := Glob(mfs, "/d", "[unterminated"); err == nil {
		t.Error("expected error for malformed pattern")
	}
}
