package vm

import "github.com/cloudfoundry/gosigar"

// SystemInfo holds a physical-memory sample taken by GetSystemInfo.
type SystemInfo struct {
	Total uint64
	Used  uint64
	Free  uint64
}

// GetSystemInfo samples total/used/free physical memory.
func GetSystemInfo() (SystemInfo, error) {
	mem := sigar.Mem{}
	if err := mem.Get(); err != nil {
		return SystemInfo{}, err
	}
	return SystemInfo{Total: mem.Total, Used: mem.Used, Free: mem.Free}, nil
}

// PageSize returns the OS page size memfit's arena layer must align all
// run/chunk geometry to.
func PageSize() int64 { return pageSize }
