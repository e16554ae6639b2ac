package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Simple load generator for a running peershare node: opens one connection
// per request (as the protocol requires) and fires HELLO or LS messages.
func main() {
	addr := flag.String("addr", "127.0.0.1:9001", "node address")
	n := flag.Int("n", 5000, "requests")
	conc := flag.Int("c", 32, "concurrency")
	op := flag.String("op", "hello", "message to send: hello or ls")
	flag.Parse()

	var expectReply bool
	var msgType string
	switch *op {
	case "hello":
		msgType = "HELLO"
	case "ls":
		msgType = "LS"
		expectReply = true
	default:
		fmt.Fprintf(os.Stderr, "unknown op %q\n", *op)
		os.Exit(1)
	}

	var failed atomic.Int64
	wg := sync.WaitGroup{}
	start := time.Now()
	ch := make(chan int, *conc)

	for i := 0; i < *n; i++ {
		wg.Add(1)
		ch <- 1
		go func(i int) {
			defer wg.Done()
			defer func() { <-ch }()

			conn, err := net.DialTimeout("tcp", *addr, 5*time.Second)
			if err != nil {
				failed.Add(1)
				return
			}
			defer conn.Close()
			conn.SetDeadline(time.Now().Add(5 * time.Second))

			req := fmt.Sprintf("127.0.0.1:0 %d %s\n", i+1, msgType)
			if _, err := conn.Write([]byte(req)); err != nil {
				failed.Add(1)
				return
			}
			if expectReply {
				buf := make([]byte, 4096)
				if _, err := conn.Read(buf); err != nil {
					failed.Add(1)
				}
			}
		}(i)
	}
	wg.Wait()
	dur := time.Since(start)
	fmt.Printf("Completed %d ops in %s (%.2f ops/s), %d failed\n", *n, dur, float64(*n)/dur.Seconds(), failed.Load())
}
