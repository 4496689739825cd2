package server

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"chatd/friends"
	"chatd/history"
	"chatd/mailbox"
	"chatd/message"
	"chatd/storage"
)

type Config struct {
	Port           int
	MaxConnections int
	ShutdownGrace  time.Duration
}

// Server owns the listening socket and all shared state: presence
// registry, friend graph, offline mailbox, and conversation history.
// Each accepted connection gets its own goroutine running a session's
// read loop; the shared structures carry their own synchronization.
type Server struct {
	config   *Config
	store    *storage.Store
	graph    *friends.Graph
	history  *history.History
	mailbox  *mailbox.Mailbox
	presence *registry
	router   *router

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}

	wg       sync.WaitGroup
	closed   chan struct{}
	shutdown sync.Once
}

func New(store *storage.Store, config *Config) *Server {
	if config.ShutdownGrace == 0 {
		config.ShutdownGrace = 5 * time.Second
	}
	graph := friends.New(store)
	hist := history.New(store)
	mb := mailbox.New(store, graph)
	presence := newRegistry()

	srv := &Server{
		config:   config,
		store:    store,
		graph:    graph,
		history:  hist,
		mailbox:  mb,
		presence: presence,
		conns:    make(map[net.Conn]struct{}),
		closed:   make(chan struct{}),
	}
	srv.router = newRouter(presence, graph, mb, hist, store)
	return srv
}

// Start binds the listening socket and runs the accept loop until
// Shutdown. A bind failure is fatal to startup; a transient accept
// error is logged and the loop continues.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(s.config.Port))
	if err != nil {
		return errors.Wrapf(err, "bind port %d", s.config.Port)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	jww.INFO.Printf("chatd listening on %s", ln.Addr())
	jww.INFO.Printf("max connections (advisory): %d", s.config.MaxConnections)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return nil
			default:
			}
			jww.WARN.Printf("accept error: %v", err)
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		live := len(s.conns)
		s.mu.Unlock()
		if live > s.config.MaxConnections {
			jww.WARN.Printf("%d live connections exceed the configured maximum of %d", live, s.config.MaxConnections)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// Addr reports the bound listener address, for callers that configured
// port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// handleConnection runs one session to completion.
func (s *Server) handleConnection(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()
	sess := &session{srv: s, conn: conn}
	sess.run()
}

// Shutdown stops accepting, closes every live socket so blocked reads
// unwind, and waits up to the grace period for sessions to finish.
// Safe to call concurrently and more than once.
func (s *Server) Shutdown() {
	s.shutdown.Do(func() {
		close(s.closed)

		s.mu.Lock()
		if s.ln != nil {
			s.ln.Close()
		}
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			jww.INFO.Printf("all sessions closed")
		case <-time.After(s.config.ShutdownGrace):
			jww.WARN.Printf("shutdown grace period elapsed with sessions still live")
		}
	})
}

// completeLogin runs the post-handshake side effects in protocol order:
// the friend list is the server's first response, queued offline
// messages follow FIFO, and only then does the user go live in the
// presence registry.
func (s *Server) completeLogin(sess *session) {
	username := sess.username

	if err := s.store.CreateUserRecord(username); err != nil {
		jww.ERROR.Printf("failed to create record for %s: %v", username, err)
	}
	s.graph.Load(username)
	s.mailbox.Hydrate(username)

	list := strings.Join(s.graph.Friends(username), ",")
	if err := sess.send(message.New("", username, list, message.FriendList)); err != nil {
		jww.WARN.Printf("failed to send friend list to %s: %v", username, err)
	}
	for _, m := range s.mailbox.DrainAll(username) {
		if err := sess.send(m); err != nil {
			jww.WARN.Printf("failed to deliver queued message to %s: %v", username, err)
		}
	}

	s.presence.register(username, sess)
	s.broadcastStatus(username, true)
	s.broadcastOnlineUsers()
	jww.INFO.Printf("user %s logged in (%d online)", username, s.presence.count())
}

// logout deregisters the session. If the registry entry already belongs
// to a newer session for the same username, no broadcasts are sent.
func (s *Server) logout(sess *session) {
	if !s.presence.unregister(sess.username, sess) {
		return
	}
	s.broadcastStatus(sess.username, false)
	s.broadcastOnlineUsers()
}

// broadcastStatus tells every registered session that a user went
// online or offline. Best-effort: one slow or dead session must not
// block the rest.
func (s *Server) broadcastStatus(username string, online bool) {
	state := "offline"
	if online {
		state = "online"
	}
	m := message.New(username, "", state, message.StatusUpdate)
	for _, sess := range s.presence.all() {
		if err := sess.send(m); err != nil {
			jww.WARN.Printf("status broadcast to %s failed: %v", sess.username, err)
		}
	}
}

// broadcastOnlineUsers sends the comma-joined online list to every
// registered session.
func (s *Server) broadcastOnlineUsers() {
	m := message.New("", "", strings.Join(s.presence.snapshot(), ","), message.OnlineUsers)
	for _, sess := range s.presence.all() {
		if err := sess.send(m); err != nil {
			jww.WARN.Printf("online-users broadcast to %s failed: %v", sess.username, err)
		}
	}
}
