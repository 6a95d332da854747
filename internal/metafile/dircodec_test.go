package metafile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openvcs/vcsync/internal/syncinfo"
)

func TestDirCodecEntriesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	codec := NewDirCodec()

	records := []*syncinfo.ResourceSync{
		{Name: "main.go", Revision: "1.4", Timestamp: "ts1", Options: "-kb", Tag: "REL_1"},
		{Name: "sub", Directory: true},
	}
	if err := codec.WriteEntries(dir, records); err != nil {
		t.Fatal(err)
	}

	got, err := codec.ReadEntries(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	// WriteEntries sorts by name.
	if !got[0].Equal(records[0]) {
		t.Fatalf("unexpected record: %+v", got[0])
	}
	if !got[1].Directory || got[1].Name != "sub" {
		t.Fatalf("unexpected directory record: %+v", got[1])
	}
}

func TestDirCodecEntriesAbsent(t *testing.T) {
	codec := NewDirCodec()
	got, err := codec.ReadEntries(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected nil records for absent entries file")
	}
}

func TestDirCodecEntriesMalformed(t *testing.T) {
	dir := t.TempDir()
	codec := NewDirCodec()
	if err := codec.EnsureBinding(dir); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, MetaDir, "entries")
	if err := os.WriteFile(path, []byte("not an entry line\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := codec.ReadEntries(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDirCodecFolderSyncRoundTrip(t *testing.T) {
	dir := t.TempDir()
	codec := NewDirCodec()

	info := &syncinfo.FolderSync{
		Root:       ":ext:alice@host:/var/repo",
		Repository: "project/module",
		Tag:        "BRANCH_2",
		Static:     true,
	}
	if err := codec.WriteFolderSync(dir, info); err != nil {
		t.Fatal(err)
	}

	got, err := codec.ReadFolderSync(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(info) {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	// Clearing tag and static must remove their files.
	info.Tag = ""
	info.Static = false
	if err := codec.WriteFolderSync(dir, info); err != nil {
		t.Fatal(err)
	}
	got, err = codec.ReadFolderSync(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got.Tag != "" || got.Static {
		t.Fatalf("expected tag and static cleared, got %+v", got)
	}
}

func TestDirCodecFolderSyncAbsent(t *testing.T) {
	codec := NewDirCodec()
	got, err := codec.ReadFolderSync(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected nil folder sync without binding marker")
	}
}

func TestDirCodecMetadataFiles(t *testing.T) {
	dir := t.TempDir()
	codec := NewDirCodec()

	if files := codec.MetadataFiles(dir); len(files) != 0 {
		t.Fatalf("expected no metadata files, got %v", files)
	}

	if err := codec.WriteFolderSync(dir, &syncinfo.FolderSync{Root: "r", Repository: "m"}); err != nil {
		t.Fatal(err)
	}
	if err := codec.WriteEntries(dir, nil); err != nil {
		t.Fatal(err)
	}

	files := codec.MetadataFiles(dir)
	if len(files) != 3 { // entries, root, repository
		t.Fatalf("expected 3 metadata files, got %v", files)
	}

	if _, err := codec.MarkerModTime(dir); err != nil {
		t.Fatal(err)
	}
}
