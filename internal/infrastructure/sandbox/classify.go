package sandbox

import "regexp"

// DangerPatterns is the default dangerous-command pattern set (spec
// §4.2), reproduced exactly in the order the original source checks them
// so the first match found is deterministic.
var DangerPatterns = []string{
	`rm\s+-rf\s+/`,
	`mkfs`,
	`dd\s+if=`,
	`:\(\)\s*\{`, // fork bomb
	`>\s*/dev/sd`,
}

// DangerClassifier matches a command string against a configurable
// pattern set. Invalid regexes are silently dropped — configuration
// validation is an external concern (spec §4.2).
type DangerClassifier struct {
	patterns []*regexp.Regexp
}

// NewDangerClassifier compiles patterns, discarding any that fail to
// compile.
func NewDangerClassifier(patterns []string) *DangerClassifier {
	c := &DangerClassifier{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		c.patterns = append(c.patterns, re)
	}
	return c
}

// DefaultDangerClassifier builds a classifier from DangerPatterns.
func DefaultDangerClassifier() *DangerClassifier {
	return NewDangerClassifier(DangerPatterns)
}

// IsDangerous reports whether cmd matches any compiled pattern. An empty
// pattern set disables the gate (spec §3 "dangerous_patterns").
func (c *DangerClassifier) IsDangerous(cmd string) bool {
	for _, re := range c.patterns {
		if re.MatchString(cmd) {
			return true
		}
	}
	return false
}

// interactivePattern pairs a compiled matcher with its advisory
// suggestion, reproducing the original source's exact category list and
// wording (spec §4.2; "ne"/"joe" are additional bare-name editors the
// original recognizes beyond spec.md's literal prose — kept since
// spec.md's silence on the exact list is not a prohibition).
type interactivePattern struct {
	re         *regexp.Regexp
	suggestion string
}

var interactivePatterns = []interactivePattern{
	{regexp.MustCompile(`^(nano|vim?|emacs|pico|ne|joe)\b`), "Use /save or write_file tool instead"},
	{regexp.MustCompile(`^(ssh|telnet|ftp|sftp)\b`), "Interactive sessions not supported"},
	{regexp.MustCompile(`^(htop|top)\b`), "Use 'ps aux' or 'ps aux | head' instead"},
	{regexp.MustCompile(`^(less|more|man)\b`), "Use cat or read_file tool instead"},
	{regexp.MustCompile(`^(mysql|psql|sqlite3|mongo)\b`), ""},
	{regexp.MustCompile(`^(python|node|irb|ghci)\s*$`), ""},
	{regexp.MustCompile(`\b(docker|podman)\s+.*\s-it\b`), ""},
}

// InteractiveClassifier detects commands that require a controlling TTY
// and so cannot be run by a host that does not allocate one (spec §4.2).
type InteractiveClassifier struct{}

// NewInteractiveClassifier returns a classifier with the fixed default
// pattern set.
func NewInteractiveClassifier() *InteractiveClassifier {
	return &InteractiveClassifier{}
}

// IsInteractive reports whether cmd matches a known TTY-requiring
// category.
func (c *InteractiveClassifier) IsInteractive(cmd string) bool {
	for _, p := range interactivePatterns {
		if p.re.MatchString(cmd) {
			return true
		}
	}
	return false
}

// Suggestion returns an advisory string for a recognized interactive
// command, or "" if none applies.
func (c *InteractiveClassifier) Suggestion(cmd string) string {
	for _, p := range interactivePatterns {
		if p.re.MatchString(cmd) {
			return p.suggestion
		}
	}
	return ""
}
