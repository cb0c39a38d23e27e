package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	groupLevel   = "level"
	groupMessage = "message"
)

// ErrInvalidPattern is returned for a pattern that does not compile or
// lacks the level/message capture groups.
var ErrInvalidPattern = errors.New("invalid pattern")

// Unmatched decides what happens to lines the pattern does not match.
type Unmatched string

const (
	// UnmatchedForward treats the raw line as an Info message.
	UnmatchedForward Unmatched = "forward"
	// UnmatchedDrop discards the line.
	UnmatchedDrop Unmatched = "drop"
)

// ParseUnmatched parses an unmatched-line policy name.
func ParseUnmatched(s string) (Unmatched, error) {
	switch u := Unmatched(strings.ToLower(strings.TrimSpace(s))); u {
	case UnmatchedForward, UnmatchedDrop:
		return u, nil
	}
	return "", fmt.Errorf("invalid unmatched policy %q (valid: forward, drop)", s)
}

// Drop reasons reported in Result.Reason.
const (
	ReasonLevel     = "level"
	ReasonUnmatched = "unmatched"
)

// Result is the outcome of filtering one line.
type Result struct {
	Level   Level
	Message string
	Matched bool
	Forward bool
	Reason  string // set when Forward is false
}

// ---------------------------------------------------------------------------
// Level Filter
// ---------------------------------------------------------------------------

// LevelFilter extracts severity and message from a line with a
// user-supplied regex and keeps lines at or above a threshold.
// It holds no per-line state and is safe for concurrent use.
type LevelFilter struct {
	re        *regexp.Regexp
	levelIdx  int
	msgIdx    int
	threshold Level
	unmatched Unmatched
}

// NewLevelFilter compiles pattern, which must have named groups "level"
// and "message".
func NewLevelFilter(pattern string, threshold Level, unmatched Unmatched) (*LevelFilter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	f := &LevelFilter{
		re:        re,
		levelIdx:  re.SubexpIndex(groupLevel),
		msgIdx:    re.SubexpIndex(groupMessage),
		threshold: threshold,
		unmatched: unmatched,
	}
	if f.levelIdx < 0 || f.msgIdx < 0 {
		return nil, fmt.Errorf("%w: %q needs named groups (?P<level>...) and (?P<message>...)", ErrInvalidPattern, pattern)
	}
	if f.unmatched == "" {
		f.unmatched = UnmatchedForward
	}
	return f, nil
}

// Threshold returns the minimum forwarded level.
func (f *LevelFilter) Threshold() Level {
	return f.threshold
}

// Apply filters a single line.
func (f *LevelFilter) Apply(line string) Result {
	var res Result
	match := f.re.FindStringSubmatch(line)
	if match == nil {
		// Unmatched lines carry the default level and face the same threshold.
		res = Result{Level: Info, Message: line}
		if f.unmatched == UnmatchedDrop {
			res.Reason = ReasonUnmatched
			return res
		}
	} else {
		res = Result{
			Level:   LevelOf(match[f.levelIdx]),
			Message: strings.TrimRight(match[f.msgIdx], " \t\r"),
			Matched: true,
		}
	}
	if res.Level < f.threshold {
		res.Reason = ReasonLevel
		return res
	}
	res.Forward = true
	return res
}
