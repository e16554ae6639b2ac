package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lsouza/peershare/pkg/node"
	"github.com/lsouza/peershare/pkg/registry"
	"github.com/lsouza/peershare/pkg/share"
)

// runMenu is the interactive operator loop. It is a thin wrapper: every
// option maps onto one public node operation, with peers and search results
// addressed by the positional index of the last printed snapshot.
func runMenu(n *node.Node, reg *registry.Registry, dir *share.Dir) {
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Println()
		fmt.Println(strings.Repeat("=", 40))
		fmt.Println("Choose a command:")
		fmt.Println("[1] List peers")
		fmt.Println("[2] Refresh peer list")
		fmt.Println("[3] List local files")
		fmt.Println("[4] Search files")
		fmt.Println("[9] Quit")
		fmt.Println(strings.Repeat("=", 40))

		line, ok := readLine(in)
		if !ok {
			quit(n)
			return
		}
		switch line {
		case "1":
			listPeers(in, n, reg)
		case "2":
			n.RefreshPeers()
		case "3":
			listLocalFiles(dir)
		case "4":
			searchFiles(in, n)
		case "9":
			quit(n)
			return
		default:
			fmt.Println("Invalid option.")
		}
	}
}

// listPeers prints the known peers and lets the operator probe one with a
// HELLO. Index 0 returns to the main menu.
func listPeers(in *bufio.Scanner, n *node.Node, reg *registry.Registry) {
	for {
		peers := reg.SnapshotAll()
		if len(peers) == 0 {
			fmt.Println("No known peers.")
			return
		}
		fmt.Println()
		fmt.Println("Known peers:")
		fmt.Println("[0] Back")
		for i, e := range peers {
			fmt.Printf("[%d] %s %s %d\n", i+1, e.ID, e.Record.Status, e.Record.Clock)
		}

		idx, ok := readIndex(in, len(peers))
		if !ok {
			continue
		}
		if idx == 0 {
			return
		}
		peer := peers[idx-1].ID
		if n.Probe(peer) {
			fmt.Printf("%s answered.\n", peer)
		} else {
			fmt.Printf("%s is unreachable.\n", peer)
		}
	}
}

func listLocalFiles(dir *share.Dir) {
	files, err := dir.List()
	if err != nil {
		fmt.Printf("Could not list shared directory: %v\n", err)
		return
	}
	if len(files) == 0 {
		fmt.Println("No files in the shared directory.")
		return
	}
	fmt.Println()
	for _, f := range files {
		fmt.Printf("%s (%d bytes)\n", f.Name, f.Size)
	}
}

// searchFiles fans out LS, shows the aggregated results and downloads the
// selected entry from its source peer.
func searchFiles(in *bufio.Scanner, n *node.Node) {
	found := n.SearchFiles()

	fmt.Println()
	fmt.Println("Files found on the network:")
	fmt.Println("Name | Size | Peer")
	fmt.Println("[0] <Cancel>")
	for i, f := range found {
		fmt.Printf("[%d] %s | %d | %s\n", i+1, f.Name, f.Size, f.Peer)
	}
	if len(found) == 0 {
		return
	}

	fmt.Println("Enter the number of the file to download:")
	idx, ok := readIndex(in, len(found))
	if !ok || idx == 0 {
		return
	}
	f := found[idx-1]
	if err := n.Download(f); err != nil {
		fmt.Printf("Download failed: %v\n", err)
		return
	}
	fmt.Printf("Download of %s finished.\n", f.Name)
}

func quit(n *node.Node) {
	fmt.Println("Leaving...")
	n.AnnounceDeparture()
	n.Stop()
}

func readLine(in *bufio.Scanner) (string, bool) {
	fmt.Print("> ")
	if !in.Scan() {
		return "", false
	}
	return strings.TrimSpace(in.Text()), true
}

// readIndex reads a selection in [0, max]. Reports false on unreadable input,
// which callers treat as "ask again" or "cancel".
func readIndex(in *bufio.Scanner, max int) (int, bool) {
	line, ok := readLine(in)
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(line)
	if err != nil || idx < 0 || idx > max {
		fmt.Println("Enter a valid number.")
		return 0, false
	}
	return idx, true
}
