package gossip

import (
	"bufio"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"locationproxy/internal/logging"
)

type fakeTopology struct {
	peers map[string][]string
	addrs map[string]string
}

func (f *fakeTopology) Peers(server string) []string { return f.peers[server] }
func (f *fakeTopology) Addr(server string) string     { return f.addrs[server] }

func listenCapture(t *testing.T) (addr string, received <-chan string) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ch := make(chan string, 8)
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				line, _ := bufio.NewReader(c).ReadString('\n')
				ch <- line
			}(conn)
		}
	}()
	t.Cleanup(func() { l.Close() })
	return l.Addr().String(), ch
}

func TestFloodForwardsToAllPeers(t *testing.T) {
	addrA, recvA := listenCapture(t)
	addrB, recvB := listenCapture(t)

	topo := &fakeTopology{
		peers: map[string][]string{"self": {"a", "b"}},
		addrs: map[string]string{"a": addrA, "b": addrB},
	}
	sink := logging.Wrap(zaptest.NewLogger(t))
	engine := New("self", topo, sink)

	engine.Flood(context.Background(), "UPDATE kiwi +1.0-1.0 100.0 99.0 self")

	select {
	case line := <-recvA:
		if line != "UPDATE kiwi +1.0-1.0 100.0 99.0 self\n" {
			t.Fatalf("unexpected line received by a: %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for peer a")
	}

	select {
	case line := <-recvB:
		if line != "UPDATE kiwi +1.0-1.0 100.0 99.0 self\n" {
			t.Fatalf("unexpected line received by b: %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for peer b")
	}
}

func TestFloodSwallowsUnreachablePeer(t *testing.T) {
	// a peer that is down must not fail the flood round.
	topo := &fakeTopology{
		peers: map[string][]string{"self": {"down"}},
		addrs: map[string]string{"down": "127.0.0.1:1"}, // nothing listens here
	}
	sink := logging.Wrap(zaptest.NewLogger(t))
	engine := New("self", topo, sink)

	done := make(chan struct{})
	go func() {
		engine.Flood(context.Background(), "UPDATE kiwi +1.0-1.0 100.0 99.0 self")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Flood did not return promptly when a peer is unreachable")
	}
}

// fakeConn is a no-op net.Conn that records whether Close was called, used
// to check a dial that resolves after its deadline still gets cleaned up.
type fakeConn struct {
	net.Conn
	closed chan struct{}
}

func (c *fakeConn) Close() error {
	close(c.closed)
	return nil
}

func TestSendClosesConnectionThatArrivesAfterDeadline(t *testing.T) {
	topo := &fakeTopology{
		peers: map[string][]string{"self": {"slow"}},
		addrs: map[string]string{"slow": "127.0.0.1:0"},
	}
	sink := logging.Wrap(zaptest.NewLogger(t))
	engine := New("self", topo, sink)

	closed := make(chan struct{})
	release := make(chan struct{})
	engine.dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		<-release
		return &fakeConn{closed: closed}, nil
	}

	started := time.Now()
	errCh := make(chan error, 1)
	go func() { errCh <- engine.send(context.Background(), "slow", "UPDATE kiwi +1.0-1.0 100.0 99.0 self") }()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected a timeout error from send")
		}
		if time.Since(started) > dialTimeout+time.Second {
			t.Fatalf("send took too long to time out: %v", time.Since(started))
		}
	case <-time.After(dialTimeout + time.Second):
		t.Fatal("send did not return once dialTimeout elapsed")
	}

	close(release)

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection that arrived after the deadline was never closed")
	}
}

func TestFloodWithNoPeersIsNoop(t *testing.T) {
	topo := &fakeTopology{peers: map[string][]string{}, addrs: map[string]string{}}
	sink := logging.Wrap(zaptest.NewLogger(t))
	engine := New("self", topo, sink)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		engine.Flood(context.Background(), "UPDATE kiwi +1.0-1.0 100.0 99.0 self")
	}()
	wg.Wait()
}
