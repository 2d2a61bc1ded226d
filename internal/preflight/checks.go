package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
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

// CheckCDN verifies that the host named by the CDN URL template accepts TCP
// connections. No asset is requested.
func CheckCDN(ctx context.Context, template string, timeout time.Duration) Result {
	const name = "Asset CDN"

	address, err := cdnAddress(template)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(checkCtx, "tcp", address)
	if err != nil {
		return Result{Name: name, Detail: summarizeDialError(address, err)}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", address)}
}

func cdnAddress(template string) (string, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		return "", errors.New("missing url template")
	}
	parsed, err := url.Parse(strings.ReplaceAll(template, "{id}", "0"))
	if err != nil {
		return "", fmt.Errorf("invalid url template (%v)", err)
	}
	host := parsed.Hostname()
	if host == "" {
		return "", errors.New("url template has no host")
	}
	port := parsed.Port()
	if port == "" {
		switch parsed.Scheme {
		case "http":
			port = "80"
		case "https":
			port = "443"
		default:
			return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
		}
	}
	return net.JoinHostPort(host, port), nil
}

func summarizeDialError(address string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("%s timed out", address)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("%s timed out", address)
	}
	return fmt.Sprintf("%s unreachable (%v)", address, err)
}
