package registry

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadNeighbors seeds the registry from a neighbor file, one "ip:port" per
// line. Every entry starts as {Offline, 0}; blank lines and the node's own
// identity are skipped. Returns the number of peers added.
func LoadNeighbors(path, self string, r *Registry) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open neighbor file: %w", err)
	}
	defer f.Close()

	added := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line == self {
			continue
		}
		if r.SeedOffline(line, self) {
			added++
		}
	}
	if err := sc.Err(); err != nil {
		return added, fmt.Errorf("read neighbor file: %w", err)
	}
	return added, nil
}
