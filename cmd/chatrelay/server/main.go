// Command chatrelay-server is a line-framed TCP broadcast relay, adapted
// from the original ChatServer's design (accept loop, client table guarded
// by a single mutex, broadcast-to-all-but-sender) but with no relationship
// to the pkg/rft transfer protocol: it exists as a second, independent
// networked component in this repository, the way the teacher's own cmd/
// tree carries more than one throwaway entry point.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
)

type client struct {
	name string
	conn net.Conn
}

type relay struct {
	mu      sync.Mutex
	clients []*client
}

func (r *relay) join(c *client) {
	r.mu.Lock()
	r.clients = append(r.clients, c)
	r.mu.Unlock()
}

func (r *relay) leave(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, other := range r.clients {
		if other == c {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			return
		}
	}
}

// broadcast sends line to every client except exclude, mirroring
// ChatServer/server.c's broadcast_raw under its CRITICAL_SECTION.
func (r *relay) broadcast(line string, exclude *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c == exclude {
			continue
		}
		fmt.Fprintln(c.conn, line)
	}
}

func (r *relay) handle(log *slog.Logger, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	name := scanner.Text()
	c := &client{name: name, conn: conn}
	r.join(c)
	log.Info("client joined", "name", name, "addr", conn.RemoteAddr())
	r.broadcast(fmt.Sprintf("SYS||%s joined", name), c)
	defer func() {
		r.leave(c)
		r.broadcast(fmt.Sprintf("SYS||%s left", name), c)
		log.Info("client left", "name", name)
	}()

	for scanner.Scan() {
		r.broadcast(fmt.Sprintf("MSG|%s|%s", name, scanner.Text()), c)
	}
}

func main() {
	addr := flag.String("addr", ":8888", "listen address")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Error("listen failed", "error", err)
		os.Exit(1)
	}
	log.Info("chat relay listening", "addr", *addr)

	r := &relay{}
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Error("accept failed", "error", err)
			continue
		}
		go r.handle(log, conn)
	}
}
