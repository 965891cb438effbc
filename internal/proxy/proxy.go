// Package proxy implements the event loop (spec component C7) and the
// command-FIFO wiring (SPEC_FULL.md's C10): one goroutine running a select
// over four channels, each fed by a small dedicated reader goroutine, so
// Session State is only ever touched from the select body.
package proxy

import (
	"bufio"
	"io"
	"log"
	"net"
	"os"
	"syscall"

	"jx-relay/internal/command"
	"jx-relay/internal/config"
	"jx-relay/internal/filters"
	"jx-relay/internal/protocol"
	"jx-relay/internal/routing"
	"jx-relay/internal/session"
)

// frame is one decoded message tagged with the leg it arrived on, or the
// terminal error that leg's reader goroutine hit.
type frame struct {
	msg protocol.Message
	err error
}

// Run accepts exactly one client connection on cfg.ListenAddr, dials
// cfg.Upstream, and drives the session until either leg closes. It blocks
// for the lifetime of one session; the caller loops it for the next client.
func Run(cfg config.Config) error {
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer ln.Close()
	log.Printf("[Proxy] listening on %s", cfg.ListenAddr)

	clientConn, err := ln.Accept()
	if err != nil {
		return err
	}
	log.Printf("[Proxy] client connected from %s", clientConn.RemoteAddr())

	serverConn, err := net.Dial("tcp", cfg.Upstream)
	if err != nil {
		clientConn.Close()
		return err
	}
	log.Printf("[Proxy] connected upstream to %s", cfg.Upstream)

	s := session.New()
	s.ClientConn = clientConn
	s.ServerConn = serverConn

	loop := newEventLoop(s, cfg)
	loop.run()
	return nil
}

// eventLoop owns every channel feeding the select body and the
// cipher-aware reader/writer pair for each leg currently registered.
type eventLoop struct {
	s   *session.State
	cfg config.Config

	clientIn chan frame
	serverIn chan frame
	listenIn chan net.Conn
	cmdIn    chan string

	// listening is true while an accept-one-connection goroutine is
	// running against s.Listener; closing the listener (on handoff, or on
	// session end) is what stops it.
	listening bool

	clientReader *protocol.Reader
	serverReader *protocol.Reader
	clientWriter *protocol.Writer
	serverWriter *protocol.Writer

	pipeline []filters.Filter
}

func newEventLoop(s *session.State, cfg config.Config) *eventLoop {
	return &eventLoop{
		s:            s,
		cfg:          cfg,
		clientIn:     make(chan frame, 8),
		serverIn:     make(chan frame, 8),
		listenIn:     make(chan net.Conn, 1),
		cmdIn:        make(chan string, 8),
		clientReader: protocol.NewReader(),
		serverReader: protocol.NewReader(),
		clientWriter: protocol.NewWriter(),
		serverWriter: protocol.NewWriter(),
		pipeline:     filters.Default(),
	}
}

// run is the select body: the only place that touches Session State or a
// cipher instance, matching spec section 5's single-writer requirement.
func (l *eventLoop) run() {
	go readLeg(l.s.ClientConn, l.clientReader, l.clientIn)
	go readLeg(l.s.ServerConn, l.serverReader, l.serverIn)
	go readCommandFIFO(l.cfg.CommandFIFOPath, l.cmdIn)

	defer l.s.ClientConn.Close()
	defer func() {
		if l.s.ServerConn != nil {
			l.s.ServerConn.Close()
		}
	}()
	defer func() {
		if l.s.Listener != nil {
			l.s.Listener.Close()
		}
	}()

	for {
		select {
		case f := <-l.clientIn:
			if f.err != nil {
				log.Printf("[Proxy] client leg closed: %v", f.err)
				return
			}
			l.dispatch(routing.ServerBound, f.msg)

		case f := <-l.serverIn:
			if f.err != nil {
				log.Printf("[Proxy] server leg closed: %v", f.err)
				return
			}
			l.dispatch(routing.ClientBound, f.msg)

		case conn := <-l.listenIn:
			l.handoff(conn)

		case line := <-l.cmdIn:
			for _, pkt := range commandPackets(line, l.s) {
				l.send(pkt)
			}
		}
	}
}

// commandPackets delegates one command-FIFO line to the command runner.
func commandPackets(line string, s *session.State) []routing.Targeted {
	return command.Run(line, s)
}

// dispatch runs a freshly decoded packet through the filter pipeline and
// sends every resulting packet to its targeted leg.
func (l *eventLoop) dispatch(dir routing.Direction, msg protocol.Message) {
	pkt := routing.Targeted{Dir: dir, Msg: msg}
	for _, out := range filters.Run(l.pipeline, pkt, l.s, l.cfg) {
		l.send(out)
	}
	if l.s.Listener != nil && !l.listening {
		l.registerListener()
	}
}

// send encodes and writes pkt, then installs ciphers if pkt was the
// handshake packet — the handshake itself must go out in cleartext before
// the writer's cipher is set (protocol.Writer's own ordering requirement).
func (l *eventLoop) send(pkt routing.Targeted) {
	switch pkt.Dir {
	case routing.ClientBound:
		frame := l.clientWriter.Encode(pkt.Msg)
		l.installCiphersIfNeeded(pkt.Msg)
		if _, err := l.s.ClientConn.Write(frame); err != nil {
			log.Printf("[Proxy] client write failed: %v", err)
			// Closing the leg makes its reader report an error, which ends
			// the session in run.
			l.s.ClientConn.Close()
		}
	case routing.ServerBound:
		frame := l.serverWriter.Encode(pkt.Msg)
		l.installCiphersIfNeeded(pkt.Msg)
		if l.s.ServerConn == nil {
			log.Printf("[Proxy] dropped server-bound packet: no server connection")
			return
		}
		if _, err := l.s.ServerConn.Write(frame); err != nil {
			log.Printf("[Proxy] server write failed: %v", err)
			l.s.ServerConn.Close()
		}
	}
}

// installCiphersIfNeeded watches for the handshake packet and seeds all
// four cipher legs the moment it is observed, on whichever direction it
// arrives from, matching spec section 4's handshake-sensitive ordering.
func (l *eventLoop) installCiphersIfNeeded(msg protocol.Message) {
	keys, ok := msg.(*protocol.EncryptionKeysMessage)
	if !ok || l.s.AllCiphersPresent() {
		return
	}
	l.s.InstallCiphers(keys.ClientSeed, keys.ServerSeed)
	l.clientReader.SetCipher(l.s.ClientIngress)
	l.serverReader.SetCipher(l.s.ServerIngress)
	l.clientWriter.SetCipher(l.s.ClientEgress)
	l.serverWriter.SetCipher(l.s.ServerEgress)
	l.s.AssertCipherInvariant()
}

// registerListener starts the accept-one-connection goroutine for the
// listener ConnectionRedirect just opened, feeding the result to listenIn.
// Closing ln (on handoff, or on session end) is what retires this goroutine.
func (l *eventLoop) registerListener() {
	l.listening = true
	ln := l.s.Listener
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		l.listenIn <- conn
	}()
}

// handoff installs the returning client connection as the new client leg,
// clears every cipher slot, and retires the listener (spec section 4.5's
// "LISTENER readable" transition).
func (l *eventLoop) handoff(conn net.Conn) {
	log.Printf("[Proxy] redirect handoff complete, new client from %s", conn.RemoteAddr())
	l.s.ClientConn.Close()
	l.s.ClientConn = conn
	l.s.Listener.Close()
	l.s.Listener = nil
	l.listening = false
	l.s.ClearCiphers()

	l.clientReader = protocol.NewReader()
	l.clientWriter = protocol.NewWriter()
	l.clientIn = make(chan frame, 8)
	go readLeg(l.s.ClientConn, l.clientReader, l.clientIn)
}

// readLeg owns one connection's read side: it only performs blocking
// net.Conn.Read calls and frame decoding, then sends fully-decoded frames
// down out. It never touches Session State, per spec section 4.6.
func readLeg(conn net.Conn, r *protocol.Reader, out chan<- frame) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			r.Feed(buf[:n])
			for {
				msg, ok := r.Next()
				if !ok {
					break
				}
				out <- frame{msg: msg}
			}
		}
		if err != nil {
			out <- frame{err: err}
			return
		}
	}
}

// readCommandFIFO creates the operator command pipe with user-only
// permissions if nothing exists at path yet, opens it non-blockingly and
// feeds one line per read, matching spec section 5's "read-only... opened
// with non-blocking semantics" requirement. With no path configured it
// yields no commands; a FIFO that cannot be opened is logged once and
// likewise yields no commands for the session's lifetime.
func readCommandFIFO(path string, out chan<- string) {
	if path == "" {
		return
	}
	if err := syscall.Mkfifo(path, 0o600); err != nil && !os.IsExist(err) {
		log.Printf("[Proxy] could not create command fifo: %v", err)
	}
	f, err := os.OpenFile(path, os.O_RDONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		log.Printf("[Proxy] command fifo unavailable: %v", err)
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		out <- scanner.Text()
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		log.Printf("[Proxy] command fifo read error: %v", err)
	}
}
