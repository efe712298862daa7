package storage

import (
	"path/filepath"
	"testing"
)

func TestMemoryBackendReadWrite(t *testing.T) {
	m := NewMemory()
	if m.IsPersistent() {
		t.Fatalf("memory backend reports persistent")
	}

	if _, err := m.WriteAt([]byte("hello"), 10); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if m.Size() != 15 {
		t.Fatalf("Size = %d, want 15", m.Size())
	}

	buf := make([]byte, 5)
	n, err := m.ReadAt(buf, 10)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 5 || string(buf) != "hello" {
		t.Fatalf("read %q, want \"hello\"", buf[:n])
	}
}

func TestDiskBackendPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")

	d, err := OpenDisk(path)
	if err != nil {
		t.Fatalf("OpenDisk: %v", err)
	}
	if !d.IsPersistent() {
		t.Fatalf("disk backend reports not persistent")
	}
	if _, err := d.WriteAt([]byte("durable"), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := d.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenDisk(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	buf := make([]byte, 7)
	if _, err := reopened.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt after reopen: %v", err)
	}
	if string(buf) != "durable" {
		t.Fatalf("read %q after reopen, want \"durable\"", buf)
	}
}

func TestDiskBackendTruncate(t *testing.T) {
	dir := t.TempDir()
	d, err := OpenDisk(filepath.Join(dir, "t.bin"))
	if err != nil {
		t.Fatalf("OpenDisk: %v", err)
	}
	defer d.Close()

	if _, err := d.WriteAt([]byte("0123456789"), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := d.Truncate(4); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if d.Size() != 4 {
		t.Fatalf("Size after truncate = %d, want 4", d.Size())
	}
}
