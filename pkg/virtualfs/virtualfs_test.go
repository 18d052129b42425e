package virtualfs

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFiles(t *testing.T) {
	s := openStore(t)
	if _, err := s.Load("data.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Load of missing file: %v", err)
	}
	if err := s.Save("dir/data.txt", []byte("1,2\n")); err != nil {
		t.Fatal(err)
	}
	if err := s.Save("DATA.TXT", []byte("3,4\n")); err != nil {
		t.Fatal(err)
	}
	data, err := s.Load("Data.txt")
	if err != nil || string(data) != "3,4\n" {
		t.Errorf("Load = %q, %v", data, err)
	}
	names, err := s.List()
	if err != nil || len(names) != 1 || names[0] != "DATA.TXT" {
		t.Errorf("List = %v, %v", names, err)
	}
	if err := s.Remove("data.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load("data.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("file still present after Remove: %v", err)
	}
}

func TestEnvironment(t *testing.T) {
	s := openStore(t)
	for name, v := range map[string]string{"path": "/bin", "HOME": "/root"} {
		if err := s.Setenv(name, v); err != nil {
			t.Fatal(err)
		}
	}
	if v, _ := s.Getenv("Path"); v != "/bin" {
		t.Errorf("Getenv(Path) = %q", v)
	}
	tests := []struct {
		n    int
		want string
	}{
		{1, "HOME=/root"},
		{2, "PATH=/bin"},
		{3, ""},
		{0, ""},
	}
	for _, tt := range tests {
		if got, err := s.EnvEntry(tt.n); err != nil || got != tt.want {
			t.Errorf("EnvEntry(%d) = %q, %v; want %q", tt.n, got, err, tt.want)
		}
	}
	if err := s.Setenv("HOME", ""); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Getenv("HOME"); v != "" {
		t.Errorf("HOME still set to %q", v)
	}
}
