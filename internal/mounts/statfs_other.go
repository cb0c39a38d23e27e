//go:build !linux

package mounts

func statfsRemote(string) (remote, ok bool) {
	return false, false
}
