package tree

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/openvcs/vcsync/internal/metafile"
	"github.com/openvcs/vcsync/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName is the per-working-copy ignore file read by Load.
const IgnoreFileName = ".vcsignore"

var defaultIgnoreLines = []string{
	// own metadata
	metafile.MetaDir + "/",
	".vcsync/",
	IgnoreFileName,
	// other version control
	".git/",
	".svn/",
	// IDE/editor
	".vscode",
	".idea",
	"*.swp",
	// OS junk
	".DS_Store",
	"Thumbs.db",
}

// IgnoreList filters walker output: metadata directories, foreign VCS
// droppings and user-listed patterns never appear as tree nodes.
type IgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string) *IgnoreList {
	l := &IgnoreList{baseDir: baseDir}
	l.ignore = gitignore.CompileIgnoreLines(defaultIgnoreLines...)
	return l
}

// Load compiles the default patterns plus the working copy's ignore file, if
// present. A broken ignore file is logged and skipped.
func (l *IgnoreList) Load() {
	ignoreLines := defaultIgnoreLines
	ignorePath := filepath.Join(l.baseDir, IgnoreFileName)

	if utils.FileExists(ignorePath) {
		file, err := os.Open(ignorePath)
		if err != nil {
			slog.Warn("failed to open ignore file", "path", ignorePath, "error", err)
		} else {
			defer file.Close()
			rules := 0
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				line := scanner.Text()
				if line != "" {
					ignoreLines = append(ignoreLines, line)
					rules++
				}
			}
			if err := scanner.Err(); err != nil {
				slog.Warn("error reading ignore file", "path", ignorePath, "error", err)
			} else {
				slog.Debug("loaded ignore file", "path", ignorePath, "rules", rules)
			}
		}
	}

	l.ignore = gitignore.CompileIgnoreLines(ignoreLines...)
}

// ShouldIgnore matches a path (absolute or relative to the base directory)
// against the compiled patterns. Directory candidates need isDir set:
// gitignore `dir/` patterns only match paths carrying the trailing
// separator.
func (l *IgnoreList) ShouldIgnore(path string, isDir bool) bool {
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(l.baseDir, path)
		if err != nil {
			return false
		}
		path = filepath.ToSlash(rel)
	}
	if isDir && !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return l.ignore.MatchesPath(path)
}
