package metafile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/openvcs/vcsync/internal/syncinfo"
	"github.com/openvcs/vcsync/internal/utils"
)

// ErrMalformed indicates a metadata file that exists but cannot be parsed.
var ErrMalformed = errors.New("malformed metadata file")

// DirCodec is the standard codec: plain text files under a `.vcs`
// subdirectory. Entries are one record per line,
// `/name/revision/timestamp/options/tag` for files and `D/name////` for
// directories.
type DirCodec struct{}

func NewDirCodec() *DirCodec {
	return &DirCodec{}
}

func (c *DirCodec) metaDir(dir string) string {
	return filepath.Join(dir, MetaDir)
}

func (c *DirCodec) ReadEntries(dir string) ([]*syncinfo.ResourceSync, error) {
	path := filepath.Join(c.metaDir(dir), entriesFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read entries %s: %w", path, err)
	}

	var records []*syncinfo.ResourceSync
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		record, err := parseEntryLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (c *DirCodec) WriteEntries(dir string, records []*syncinfo.ResourceSync) error {
	if err := c.EnsureBinding(dir); err != nil {
		return err
	}

	// Deterministic file contents regardless of cache map iteration order.
	sorted := make([]*syncinfo.ResourceSync, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	for _, record := range sorted {
		b.WriteString(formatEntryLine(record))
		b.WriteByte('\n')
	}

	path := filepath.Join(c.metaDir(dir), entriesFile)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write entries %s: %w", path, err)
	}
	return nil
}

func (c *DirCodec) ReadFolderSync(dir string) (*syncinfo.FolderSync, error) {
	meta := c.metaDir(dir)

	root, err := readLine(filepath.Join(meta, rootFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read folder binding for %s: %w", dir, err)
	}
	if root == "" {
		return nil, fmt.Errorf("%w: empty root in %s", ErrMalformed, meta)
	}

	repo, err := readLine(filepath.Join(meta, repoFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: root without repository in %s", ErrMalformed, meta)
		}
		return nil, fmt.Errorf("read folder binding for %s: %w", dir, err)
	}

	tag, err := readLine(filepath.Join(meta, tagFile))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read folder binding for %s: %w", dir, err)
	}

	return &syncinfo.FolderSync{
		Root:       root,
		Repository: repo,
		Tag:        tag,
		Static:     utils.FileExists(filepath.Join(meta, staticFile)),
	}, nil
}

func (c *DirCodec) WriteFolderSync(dir string, info *syncinfo.FolderSync) error {
	if err := c.EnsureBinding(dir); err != nil {
		return err
	}
	meta := c.metaDir(dir)

	if err := writeLine(filepath.Join(meta, rootFile), info.Root); err != nil {
		return fmt.Errorf("write folder binding for %s: %w", dir, err)
	}
	if err := writeLine(filepath.Join(meta, repoFile), info.Repository); err != nil {
		return fmt.Errorf("write folder binding for %s: %w", dir, err)
	}

	tagPath := filepath.Join(meta, tagFile)
	if info.Tag != "" {
		if err := writeLine(tagPath, info.Tag); err != nil {
			return fmt.Errorf("write folder binding for %s: %w", dir, err)
		}
	} else if err := removeIfExists(tagPath); err != nil {
		return fmt.Errorf("write folder binding for %s: %w", dir, err)
	}

	staticPath := filepath.Join(meta, staticFile)
	if info.Static {
		if err := writeLine(staticPath, ""); err != nil {
			return fmt.Errorf("write folder binding for %s: %w", dir, err)
		}
	} else if err := removeIfExists(staticPath); err != nil {
		return fmt.Errorf("write folder binding for %s: %w", dir, err)
	}

	return nil
}

func (c *DirCodec) HasBinding(dir string) bool {
	return utils.DirExists(c.metaDir(dir))
}

func (c *DirCodec) EnsureBinding(dir string) error {
	if err := utils.EnsureDir(c.metaDir(dir)); err != nil {
		return fmt.Errorf("create binding marker for %s: %w", dir, err)
	}
	return nil
}

func (c *DirCodec) MetadataFiles(dir string) []string {
	meta := c.metaDir(dir)
	var files []string
	for _, name := range []string{entriesFile, rootFile, repoFile, tagFile, staticFile} {
		path := filepath.Join(meta, name)
		if utils.FileExists(path) {
			files = append(files, path)
		}
	}
	return files
}

func (c *DirCodec) MarkerModTime(dir string) (time.Time, error) {
	info, err := os.Stat(filepath.Join(c.metaDir(dir), rootFile))
	if err != nil {
		return time.Time{}, fmt.Errorf("stat binding marker for %s: %w", dir, err)
	}
	return info.ModTime(), nil
}

// parseEntryLine decodes a single entries line. Directory lines carry a `D`
// prefix and empty trailing fields.
func parseEntryLine(line string) (*syncinfo.ResourceSync, error) {
	directory := false
	if strings.HasPrefix(line, "D") {
		directory = true
		line = line[1:]
	}
	if !strings.HasPrefix(line, "/") {
		return nil, fmt.Errorf("%w: entry line %q", ErrMalformed, line)
	}

	// Leading slash yields an empty first field.
	fields := strings.Split(line, "/")
	if len(fields) != 6 || fields[1] == "" {
		return nil, fmt.Errorf("%w: entry line %q", ErrMalformed, line)
	}

	return &syncinfo.ResourceSync{
		Name:      fields[1],
		Revision:  fields[2],
		Timestamp: fields[3],
		Options:   fields[4],
		Tag:       fields[5],
		Directory: directory,
	}, nil
}

func formatEntryLine(record *syncinfo.ResourceSync) string {
	line := fmt.Sprintf("/%s/%s/%s/%s/%s",
		record.Name, record.Revision, record.Timestamp, record.Options, record.Tag)
	if record.Directory {
		return "D" + line
	}
	return line
}

func readLine(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimRight(line, "\r"), nil
}

func writeLine(path, line string) error {
	return os.WriteFile(path, []byte(line+"\n"), 0o644)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
