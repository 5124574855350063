//go:build windows

package watcher

// getInode extracts a file identifier from os.FileInfo.Sys().
// Windows has no inodes; identity tracking is unavailable there, which
// only affects development setups.
func getInode(sys interface{}) uint64 {
	return 0
}
