package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// minFreeBytes is the free-space floor below which recording locally is
// asking for trouble. Finished artifacts buffer in memory but journal and
// logs land on disk.
const minFreeBytes = 256 << 20

// CheckDirectoryAccess verifies that the directory exists and is
// readable and writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskSpace verifies the filesystem holding path has headroom for
// the journal and logs.
func CheckDiskSpace(name, path string) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s (%.1f GiB free)", path, float64(free)/(1<<30))
	if free < minFreeBytes {
		return Result{Name: name, Detail: detail + " below 256 MiB floor"}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckTokenFile verifies an auth token is on disk. A missing token is a
// failed check, not an error: recordings still run, uploads will not.
func CheckTokenFile(path string) Result {
	const name = "Auth token"
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (not found; sign in on the dashboard)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if strings.TrimSpace(string(data)) == "" {
		return Result{Name: name, Detail: fmt.Sprintf("%s (empty)", path)}
	}
	return Result{Name: name, Passed: true, Detail: "present"}
}

// CheckUploadEndpoint verifies the configured upload API answers at all.
// Any HTTP response passes; only transport failure fails the check, since
// the endpoint may well reject an unauthenticated probe.
func CheckUploadEndpoint(ctx context.Context, endpoint string) Result {
	const name = "Upload endpoint"

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, endpoint, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid endpoint (%v)", err)}
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	resp.Body.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (%d)", resp.StatusCode)}
}
