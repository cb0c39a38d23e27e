// Package mounts decides whether a path lives on a local or a networked
// filesystem, so callers can poll remote files less often.
package mounts

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultTable is the mount table read on Linux.
const DefaultTable = "/proc/mounts"

// Entry is one line of the mount table.
type Entry struct {
	Device     string
	Mountpoint string
	Type       string
}

// remoteTypes are filesystem types backed by a network protocol. Any type
// starting with "fuse" is also treated as remote (gcsfuse, s3fs, sshfs...).
var remoteTypes = map[string]struct{}{
	"nfs":       {},
	"nfs4":      {},
	"cifs":      {},
	"smb":       {},
	"smbfs":     {},
	"smb3":      {},
	"sshfs":     {},
	"9p":        {},
	"ceph":      {},
	"glusterfs": {},
	"lustre":    {},
	"gpfs":      {},
	"afs":       {},
	"davfs":     {},
	"s3fs":      {},
}

// fallbackMarkers are path fragments that usually indicate a network mount
// when the mount table cannot be read.
var fallbackMarkers = []string{"/mnt/", "/mount/", "/net/", "/nfs/"}

// IsRemoteType reports whether a filesystem type is networked.
func IsRemoteType(fstype string) bool {
	fstype = strings.ToLower(fstype)
	if strings.HasPrefix(fstype, "fuse") {
		return true
	}
	_, ok := remoteTypes[fstype]
	return ok
}

// ParseTable reads mount entries in /proc/mounts format. Malformed lines
// are skipped.
func ParseTable(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) < 3 {
			continue
		}
		entries = append(entries, Entry{
			Device:     unescape(f[0]),
			Mountpoint: unescape(f[1]),
			Type:       f[2],
		})
	}
	return entries, sc.Err()
}

// unescape decodes the octal escapes (\040 for space) the kernel writes.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if n, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Detector classifies paths using the mount table.
type Detector struct {
	table  string
	statfs func(path string) (remote, ok bool)
}

// Option configures a Detector.
type Option func(*Detector)

// WithTable reads mounts from path instead of DefaultTable.
func WithTable(path string) Option {
	return func(d *Detector) { d.table = path }
}

// NewDetector returns a Detector for the running system.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{table: DefaultTable, statfs: statfsRemote}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IsRemote reports whether path is on a networked filesystem. Symlinks are
// resolved first and the longest matching mountpoint decides. When the
// mount table cannot be read, the filesystem magic from statfs is used if
// available, then a path-prefix heuristic.
func (d *Detector) IsRemote(path string) bool {
	path = resolve(path)

	entries, err := d.entries()
	if err != nil {
		if d.statfs != nil {
			if remote, ok := d.statfs(path); ok {
				return remote
			}
		}
		return heuristic(path)
	}

	var best *Entry
	for i := range entries {
		e := &entries[i]
		if !under(path, e.Mountpoint) {
			continue
		}
		if best == nil || len(e.Mountpoint) > len(best.Mountpoint) {
			best = e
		}
	}
	if best == nil {
		return heuristic(path)
	}
	return IsRemoteType(best.Type)
}

func (d *Detector) entries() ([]Entry, error) {
	f, err := os.Open(d.table)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseTable(f)
}

func under(path, mountpoint string) bool {
	if mountpoint == "/" {
		return strings.HasPrefix(path, "/")
	}
	mountpoint = strings.TrimRight(mountpoint, "/")
	return path == mountpoint || strings.HasPrefix(path, mountpoint+"/")
}

func heuristic(path string) bool {
	for _, m := range fallbackMarkers {
		if strings.Contains(path, m) {
			return true
		}
	}
	return false
}

// resolve makes path absolute and resolves symlinks in its longest
// existing ancestor; the file itself need not exist yet.
func resolve(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rest := ""
	for dir := abs; ; {
		if real, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(real, rest)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}
