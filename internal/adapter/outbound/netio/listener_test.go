package netio

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mooproxy/mooproxy/internal/domain/auth"
	"github.com/mooproxy/mooproxy/internal/domain/world"
)

func dialAndSend(t *testing.T, addr string, line string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	return conn
}

func waitPump(t *testing.T, l *Listener, wld *world.World) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if l.Pump(wld) {
			return
		}
		select {
		case <-deadline:
			t.Fatal("no auth attempt became ready")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestListenerAuthenticatesAndPromotesClient(t *testing.T) {
	wld := world.New("test", "/tmp/test.conf")
	l, err := Listen("tcp", "127.0.0.1:0", auth.NewLiteral("swordfish"), auth.NewDefaultTokenBucket())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	go l.Serve(wld)

	conn := dialAndSend(t, l.Addr().String(), "swordfish")
	defer conn.Close()

	waitPump(t, l, wld)

	if wld.ClientStatus != world.ClientConnected {
		t.Fatalf("status = %v, want ClientConnected", wld.ClientStatus)
	}
	if l.Client() == nil {
		t.Fatal("Client() should return the promoted connection")
	}

	r := bufio.NewReader(conn)
	prompt, _ := r.ReadString('\n')
	if !strings.Contains(prompt, "please authenticate") {
		t.Fatalf("expected an auth prompt before the greeting, got %q", prompt)
	}
	line1, _ := r.ReadString('\n')
	line2, _ := r.ReadString('\n')
	if line1 == "" || line2 == "" {
		t.Fatalf("expected greeting lines, got %q / %q", line1, line2)
	}
	if !strings.Contains(line1, "Authentication succesful") {
		t.Fatalf("first greeting line = %q, want the auth-success notice", line1)
	}
}

func TestListenerRejectsWrongSecret(t *testing.T) {
	wld := world.New("test", "/tmp/test.conf")
	l, err := Listen("tcp", "127.0.0.1:0", auth.NewLiteral("swordfish"), auth.NewDefaultTokenBucket())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	go l.Serve(wld)

	conn := dialAndSend(t, l.Addr().String(), "wrong")
	defer conn.Close()

	waitPump(t, l, wld)

	if wld.ClientStatus != world.ClientDisconnected {
		t.Fatalf("status = %v, want ClientDisconnected", wld.ClientStatus)
	}
	if wld.ClientLoginFailures != 1 {
		t.Fatalf("ClientLoginFailures = %d, want 1", wld.ClientLoginFailures)
	}

	r := bufio.NewReader(conn)
	prompt, _ := r.ReadString('\n')
	if !strings.Contains(prompt, "please authenticate") {
		t.Fatalf("expected an auth prompt, got %q", prompt)
	}
	msg, _ := r.ReadString('\n')
	if !strings.Contains(msg, "Authentication failed") {
		t.Fatalf("expected an authentication failure message before close, got %q", msg)
	}
}

func TestListenerTakeoverClosesPreviousClient(t *testing.T) {
	wld := world.New("test", "/tmp/test.conf")
	l, err := Listen("tcp", "127.0.0.1:0", auth.NewLiteral("swordfish"), auth.NewDefaultTokenBucket())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	go l.Serve(wld)

	first := dialAndSend(t, l.Addr().String(), "swordfish")
	defer first.Close()
	waitPump(t, l, wld)

	second := dialAndSend(t, l.Addr().String(), "swordfish")
	defer second.Close()
	waitPump(t, l, wld)

	firstReader := bufio.NewReader(first)
	prompt, err := firstReader.ReadString('\n')
	if err != nil || !strings.Contains(prompt, "please authenticate") {
		t.Fatalf("expected an auth prompt on the old connection: err=%v prompt=%q", err, prompt)
	}
	notice, err := firstReader.ReadString('\n')
	if err != nil || !strings.Contains(notice, "taken over") {
		t.Fatalf("expected a takeover notice on the old connection: err=%v notice=%q", err, notice)
	}
	if l.Client() != second {
		t.Fatal("second connection should now be the promoted client")
	}
}

func TestListenerRefusesBeyondMaxSlots(t *testing.T) {
	wld := world.New("test", "/tmp/test.conf")
	l, err := Listen("tcp", "127.0.0.1:0", auth.NewLiteral("swordfish"), auth.NewDefaultTokenBucket())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	go l.Serve(wld)

	var conns []net.Conn
	for i := 0; i < auth.MaxSlots; i++ {
		c, err := net.Dial("tcp", l.Addr().String())
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		conns = append(conns, c)
	}
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	// Give the accept loop a moment to place each into a slot.
	time.Sleep(50 * time.Millisecond)

	extra, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial extra: %v", err)
	}
	defer extra.Close()

	buf := make([]byte, 1)
	extra.SetReadDeadline(time.Now().Add(time.Second))
	_, err = extra.Read(buf)
	if err == nil {
		t.Fatal("expected the extra connection to be refused (closed)")
	}
}
