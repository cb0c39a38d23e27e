//go:build linux

package mounts

import "golang.org/x/sys/unix"

// filesystem magic numbers from statfs(2).
const (
	magicNFS    = 0x6969
	magicSMB    = 0x517b
	magicSMB2   = 0xfe534d42
	magicCIFS   = 0xff534d42
	magicFUSE   = 0x65735546
	magicCeph   = 0x00c36400
	magicV9FS   = 0x01021997
	magicAFS    = 0x5346414f
	magicLustre = 0x0bd00bd0
)

func statfsRemote(path string) (remote, ok bool) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return false, false
	}
	switch uint32(st.Type) {
	case magicNFS, magicSMB, magicSMB2, magicCIFS, magicFUSE, magicCeph, magicV9FS, magicAFS, magicLustre:
		return true, true
	}
	return false, true
}
