package camnotify

import (
	"os"
	"runtime"
	"strings"
	"sync"
)

var (
	hostLabelOnce sync.Once
	hostLabelVal  string
)

// hostLabel names the capturing machine in message captions. It prefers the
// hostname and falls back to a short machine id on Linux.
func hostLabel() string {
	hostLabelOnce.Do(func() {
		if name, err := os.Hostname(); err == nil && strings.TrimSpace(name) != "" {
			hostLabelVal = strings.TrimSpace(name)
			return
		}
		if runtime.GOOS != "linux" {
			return
		}
		for _, path := range []string{"/etc/machine-id", "/sys/class/dmi/id/product_uuid"} {
			if id, err := readSystemFile(path); err == nil && id != "" {
				if len(id) > 12 {
					id = id[:12]
				}
				hostLabelVal = id
				return
			}
		}
	})
	return hostLabelVal
}

func readSystemFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
