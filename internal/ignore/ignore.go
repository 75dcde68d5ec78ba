package ignore

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/trsync/internal/content"
	"github.com/openmined/trsync/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName is the per workspace ignore file, at the workspace root.
const FileName = ".trsyncignore"

var idLine = regexp.MustCompile(`^#(\d+)\s*$`)

// IsHiddenName reports names that are never watched nor scanned.
func IsHiddenName(name string) bool {
	if name == "" {
		return false
	}
	return strings.HasPrefix(name, ".") ||
		strings.HasPrefix(name, "~") ||
		strings.HasPrefix(name, "#") ||
		strings.HasSuffix(name, "~")
}

// List decides which remote contents and which local paths are left alone.
type List struct {
	ids      mapset.Set[content.ID]
	patterns *gitignore.GitIgnore
	globs    []string
}

// New builds a List from ignore file lines and extra doublestar globs.
// Lines `#<id>` name remote content ids, other non comment lines are gitignore patterns.
func New(lines []string, globs []string) (*List, error) {
	for _, g := range globs {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("ignore: invalid glob %q", g)
		}
	}

	ids := mapset.NewSet[content.ID]()
	var patterns []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := idLine.FindStringSubmatch(line); m != nil {
			id, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("ignore: bad content id %q: %w", line, err)
			}
			ids.Add(content.ID(id))
			continue
		}
		patterns = append(patterns, line)
	}

	return &List{
		ids:      ids,
		patterns: gitignore.CompileIgnoreLines(patterns...),
		globs:    globs,
	}, nil
}

// Load reads root/.trsyncignore when present.
func Load(root string, globs []string) (*List, error) {
	ignorePath := filepath.Join(root, FileName)
	if !utils.FileExists(ignorePath) {
		return New(nil, globs)
	}

	file, err := os.Open(ignorePath)
	if err != nil {
		return nil, fmt.Errorf("ignore: open %s: %w", ignorePath, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ignore: read %s: %w", ignorePath, err)
	}

	list, err := New(lines, globs)
	if err != nil {
		return nil, err
	}
	slog.Info("ignore file loaded", "path", ignorePath, "ids", list.ids.Cardinality(), "lines", len(lines))
	return list, nil
}

// IgnoredID reports a remote content listed in the ignore file.
func (l *List) IgnoredID(id content.ID) bool {
	return l.ids.Contains(id)
}

// IgnoredPath reports whether a relative slash path must not be synchronized.
func (l *List) IgnoredPath(rel string) bool {
	if rel == "" || rel == "." {
		return false
	}
	for _, segment := range strings.Split(rel, "/") {
		if IsHiddenName(segment) {
			return true
		}
	}
	if l.patterns.MatchesPath(rel) {
		return true
	}
	for _, g := range l.globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
		// a glob matching a folder covers everything below it
		for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if ok, _ := doublestar.Match(g, dir); ok {
				return true
			}
		}
	}
	return false
}

// IDs lists the ignored content ids.
func (l *List) IDs() []content.ID {
	return l.ids.ToSlice()
}
