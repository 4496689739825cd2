package server

import (
	"bufio"
	"bytes"
	"net"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"chatd/message"
)

// session is the server-side state for one connection. Its lifecycle is
// Connecting -> AwaitingLogin -> Authenticated -> Closed: the username
// is assigned exactly once, at successful login, and is the key under
// which the session is registered in the presence registry.
type session struct {
	srv  *Server
	conn net.Conn

	username string

	// writeMu serializes outbound writes so broadcasts from other
	// goroutines never interleave with this session's own traffic on
	// the wire.
	writeMu sync.Mutex
}

func (sess *session) run() {
	remote := sess.conn.RemoteAddr().String()
	jww.INFO.Printf("client connected from %s", remote)
	defer sess.teardown(remote)

	reader := bufio.NewReader(sess.conn)

	if err := sess.awaitLogin(reader); err != nil {
		jww.WARN.Printf("login failed from %s: %v", remote, err)
		return
	}

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		m, err := message.Decode(line)
		if err != nil {
			// Malformed traffic after login is skipped, not fatal.
			jww.WARN.Printf("dropping malformed line from %s: %v", sess.username, err)
			continue
		}
		sess.srv.router.route(m)
	}
}

// awaitLogin enforces the handshake: the first inbound line must decode
// to a LOGIN message. Anything else is a fatal protocol error for this
// session.
func (sess *session) awaitLogin(reader *bufio.Reader) error {
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return errors.Wrap(err, "read login line")
	}
	m, err := message.Decode(line)
	if err != nil {
		return err
	}
	if m.Type != message.Login {
		// Tell the client why it is being dropped before closing.
		if err := sess.send(message.New("", "", "invalid login attempt", message.Login)); err != nil {
			jww.WARN.Printf("failed to reject login: %v", err)
		}
		return errors.Errorf("expected LOGIN, got %s", m.Type)
	}
	if m.From == "" {
		return errors.New("login without username")
	}

	sess.username = m.From
	sess.srv.completeLogin(sess)
	return nil
}

// send encodes and writes one message. Safe for concurrent use; this is
// the only write path to the socket.
func (sess *session) send(m *message.Message) error {
	data, err := message.Encode(m)
	if err != nil {
		return err
	}
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	_, err = sess.conn.Write(data)
	return errors.Wrapf(err, "write to %s", sess.username)
}

func (sess *session) teardown(remote string) {
	if sess.username != "" {
		sess.srv.logout(sess)
		jww.INFO.Printf("client %s disconnected from %s", sess.username, remote)
	} else {
		jww.INFO.Printf("client disconnected from %s", remote)
	}
	sess.conn.Close()
}
