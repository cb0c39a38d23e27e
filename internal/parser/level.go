package parser

import (
	"errors"
	"fmt"
	"strings"
)

// Level is a log severity. Levels are totally ordered, Debug lowest.
type Level int

const (
	Debug Level = iota
	Info
	Warning
	Error
	Critical
)

// ErrInvalidLevel is returned when a configured threshold names no level.
var ErrInvalidLevel = errors.New("invalid log level")

var levelNames = [...]string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}

// levelMap maps the severity names different applications write to the
// common set. Keys are lower case.
var levelMap = map[string]Level{
	"trace":     Debug,
	"debug":     Debug,
	"debug1":    Debug, // Postgres
	"debug2":    Debug,
	"debug3":    Debug,
	"debug4":    Debug,
	"debug5":    Debug,
	"info":      Info,
	"log":       Info, // Postgres
	"notice":    Info, // syslog
	"statement": Info,
	"warn":      Warning,
	"warning":   Warning,
	"err":       Error, // syslog
	"error":     Error,
	"crit":      Critical,
	"critical":  Critical,
	"fatal":     Critical,
	"alert":     Critical, // syslog
	"emerg":     Critical,
	"emergency": Critical,
	"panic":     Critical,
}

// String returns the canonical upper-case name.
func (l Level) String() string {
	if l < Debug || l > Critical {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel maps a severity name, case-insensitively and alias-aware.
// ok is false for names it does not know.
func ParseLevel(name string) (Level, bool) {
	l, ok := levelMap[strings.ToLower(strings.TrimSpace(name))]
	return l, ok
}

// LevelOf is ParseLevel with unknown names treated as Info.
func LevelOf(name string) Level {
	if l, ok := ParseLevel(name); ok {
		return l
	}
	return Info
}

// ParseThreshold parses a configured minimum level. Unlike LevelOf, an
// unknown name is an error.
func ParseThreshold(name string) (Level, error) {
	l, ok := ParseLevel(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q (valid: %s)", ErrInvalidLevel, name, strings.ToLower(strings.Join(levelNames[:], ", ")))
	}
	return l, nil
}
