// Command chatrelay-client is the counterpart to cmd/chatrelay/server,
// adapted from ChatClient/client.c's recv_handler/send loop split into a
// reader goroutine and the main goroutine reading stdin.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8888", "relay address")
	name := flag.String("name", "", "display name")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *name == "" {
		log.Error("-name is required")
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Error("dial failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Fprintln(conn, *name)

	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			line := scanner.Text()
			parts := strings.SplitN(line, "|", 3)
			if len(parts) != 3 {
				continue
			}
			switch parts[0] {
			case "SYS":
				fmt.Printf("[system] %s\n", parts[2])
			case "MSG":
				fmt.Printf("%s: %s\n", parts[1], parts[2])
			}
		}
	}()

	stdin := bufio.NewScanner(os.Stdin)
	for stdin.Scan() {
		fmt.Fprintln(conn, stdin.Text())
	}
}
