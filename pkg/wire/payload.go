package wire

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// PeerEntry is one peer as carried in a PEER_LIST payload:
// "<ip>:<port>:<STATUS>:<clock>". The identity itself contains a colon, so a
// valid entry splits into at least four colon-separated parts.
type PeerEntry struct {
	ID     string
	Status string
	Clock  uint64
}

// EncodePeerList builds PEER_LIST args: a count followed by one token per
// entry.
func EncodePeerList(entries []PeerEntry) []string {
	args := make([]string, 0, len(entries)+1)
	args = append(args, strconv.Itoa(len(entries)))
	for _, e := range entries {
		args = append(args, fmt.Sprintf("%s:%s:%d", e.ID, e.Status, e.Clock))
	}
	return args
}

// ParsePeerList decodes PEER_LIST args. Malformed entries are skipped rather
// than failing the whole list; gossip is best-effort.
func ParsePeerList(args []string) ([]PeerEntry, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("wire: PEER_LIST missing count")
	}
	count, err := strconv.Atoi(args[0])
	if err != nil || count < 0 {
		return nil, fmt.Errorf("wire: PEER_LIST bad count %q", args[0])
	}
	tokens := args[1:]
	if count < len(tokens) {
		tokens = tokens[:count]
	}

	entries := make([]PeerEntry, 0, len(tokens))
	for _, tok := range tokens {
		parts := strings.Split(tok, ":")
		if len(parts) < 4 {
			continue
		}
		clk, err := strconv.ParseUint(parts[3], 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, PeerEntry{
			ID:     parts[0] + ":" + parts[1],
			Status: parts[2],
			Clock:  clk,
		})
	}
	return entries, nil
}

// FileEntry is one shared file as carried in an LS_LIST payload:
// "<name>:<size_bytes>". Filenames must not contain whitespace or colons; the
// protocol does not escape.
type FileEntry struct {
	Name string
	Size int64
}

// EncodeFileList builds LS_LIST args: a count followed by one token per file.
func EncodeFileList(files []FileEntry) []string {
	args := make([]string, 0, len(files)+1)
	args = append(args, strconv.Itoa(len(files)))
	for _, f := range files {
		args = append(args, fmt.Sprintf("%s:%d", f.Name, f.Size))
	}
	return args
}

// ParseFileList decodes LS_LIST args, skipping malformed tokens.
func ParseFileList(args []string) ([]FileEntry, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("wire: LS_LIST missing count")
	}
	count, err := strconv.Atoi(args[0])
	if err != nil || count < 0 {
		return nil, fmt.Errorf("wire: LS_LIST bad count %q", args[0])
	}
	tokens := args[1:]
	if count < len(tokens) {
		tokens = tokens[:count]
	}

	files := make([]FileEntry, 0, len(tokens))
	for _, tok := range tokens {
		name, sizeStr, ok := strings.Cut(tok, ":")
		if !ok {
			continue
		}
		size, err := strconv.ParseInt(sizeStr, 10, 64)
		if err != nil || size < 0 {
			continue
		}
		files = append(files, FileEntry{Name: name, Size: size})
	}
	return files, nil
}

// EncodeFilePayload builds FILE args: name, offset, length, base64 content.
// Offset and length are always "0 0" (whole-file transfer); receivers ignore
// them. An empty file leaves the content token out entirely, since the frame
// is whitespace-tokenized and an empty token cannot be represented.
func EncodeFilePayload(name string, data []byte) []string {
	args := []string{name, "0", "0"}
	if len(data) > 0 {
		args = append(args, base64.StdEncoding.EncodeToString(data))
	}
	return args
}

// ParseFilePayload decodes FILE args back to the filename and raw bytes.
func ParseFilePayload(args []string) (string, []byte, error) {
	if len(args) < 3 {
		return "", nil, fmt.Errorf("wire: FILE payload has %d args, want at least 3", len(args))
	}
	name := args[0]
	if len(args) < 4 {
		return name, nil, nil // empty file
	}
	data, err := base64.StdEncoding.DecodeString(args[3])
	if err != nil {
		return "", nil, fmt.Errorf("wire: FILE content: %w", err)
	}
	return name, data, nil
}
