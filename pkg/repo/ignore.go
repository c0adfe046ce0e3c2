package repo

import (
	"bufio"
	"path"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// IgnoreFile is read from the working-copy root.
const IgnoreFile = ".gitletignore"

// Ignorer decides which working-copy paths Add and Status skip.
type Ignorer struct {
	rules []ignoreRule
}

type ignoreRule struct {
	glob    string
	negated bool
	dirOnly bool
	anchor  bool // glob contains a slash and matches the full path
	re      *regexp.Regexp
}

// loadIgnorer reads .gitletignore from root. .gitlet and .git are always
// ignored, whatever the file says.
func loadIgnorer(fsys afero.Fs, root string) *Ignorer {
	ig := &Ignorer{rules: []ignoreRule{
		{glob: GitDirName, dirOnly: true},
		{glob: ".git", dirOnly: true},
	}}

	f, err := fsys.Open(path.Join(root, IgnoreFile))
	if err != nil {
		return ig
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if rule, ok := parseIgnoreLine(sc.Text()); ok {
			ig.rules = append(ig.rules, rule)
		}
	}
	return ig
}

func (r *Repo) ignorer() *Ignorer {
	return loadIgnorer(r.FS, r.RootDir)
}

// parseIgnoreLine parses one .gitletignore line. Blank lines and # comments
// yield no rule.
func parseIgnoreLine(line string) (ignoreRule, bool) {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return ignoreRule{}, false
	}

	var rule ignoreRule
	if strings.HasPrefix(line, "!") {
		rule.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		rule.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return ignoreRule{}, false
	}
	rule.anchor = strings.Contains(line, "/")
	rule.glob = line
	if strings.Contains(line, "**") {
		if re, err := regexp.Compile(globToRegex(line)); err == nil {
			rule.re = re
		}
	}
	return rule, true
}

// Ignored reports whether the slash-separated repo-relative file path p is
// ignored. The last matching rule wins, so "!" rules can re-include.
func (ig *Ignorer) Ignored(p string) bool {
	return ig.check(p, false)
}

// IgnoredDir is Ignored for a directory path.
func (ig *Ignorer) IgnoredDir(p string) bool {
	return ig.check(p, true)
}

func (ig *Ignorer) check(p string, isDir bool) bool {
	ignored := false
	for _, rule := range ig.rules {
		if rule.matches(p, isDir) {
			ignored = !rule.negated
		}
	}
	return ignored
}

// matches tests p and each of its parent directories, so a rule naming a
// directory covers everything below it.
func (rule ignoreRule) matches(p string, isDir bool) bool {
	segments := strings.Split(p, "/")
	for i := range segments {
		if i == len(segments)-1 && rule.dirOnly && !isDir {
			return false
		}
		if rule.matchOne(strings.Join(segments[:i+1], "/"), segments[i]) {
			return true
		}
	}
	return false
}

func (rule ignoreRule) matchOne(full, base string) bool {
	target := base
	if rule.anchor {
		target = full
	}
	if rule.re != nil {
		return rule.re.MatchString(target)
	}
	ok, _ := path.Match(rule.glob, target)
	return ok
}

func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '*' && i+1 < len(pattern) && pattern[i+1] == '*':
			if i+2 < len(pattern) && pattern[i+2] == '/' {
				// "**/" matches zero or more leading directories.
				b.WriteString("(?:.*/)?")
				i += 2
			} else {
				b.WriteString(".*")
				i++
			}
		case ch == '*':
			b.WriteString("[^/]*")
		case ch == '?':
			b.WriteString("[^/]")
		default:
			if strings.ContainsRune(`.+()|[]{}^$\`, rune(ch)) {
				b.WriteByte('\\')
			}
			b.WriteByte(ch)
		}
	}
	b.WriteString("$")
	return b.String()
}
