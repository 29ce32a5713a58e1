// Package gossip implements the flooding engine: given a registry-accepted
// update, forward it verbatim to every direct peer, concurrently,
// swallowing unreachable-peer errors so the triggering request never fails
// because a neighbor happens to be down.
package gossip

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"locationproxy/internal/logging"
)

// dialTimeout bounds the one suspension point in Flood: opening a peer
// connection must not be allowed to stall the flood round indefinitely.
const dialTimeout = 2 * time.Second

// Topology is the subset of config.Config the gossip engine needs: who are
// my direct peers, and how do I dial them. Declared as an interface here so
// tests can supply a fake topology without constructing a full Config.
type Topology interface {
	Peers(server string) []string
	Addr(server string) string
}

// Engine forwards registry-accepted updates to every direct peer of
// selfName in topology. One outbound TCP connection per peer, opened
// concurrently.
type Engine struct {
	selfName string
	topology Topology
	sink     logging.Sink

	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// New builds an Engine for selfName using topology for peer addresses.
func New(selfName string, topology Topology, sink logging.Sink) *Engine {
	return &Engine{
		selfName: selfName,
		topology: topology,
		sink:     sink,
		dial:     (&net.Dialer{}).DialContext,
	}
}

// Flood forwards line to every direct peer of selfName. It launches one
// goroutine per peer and waits for all to complete before returning. Peer
// write failures are logged and swallowed; they never surface as an error
// from Flood, because a down peer must not fail the client request that
// triggered this round.
func (e *Engine) Flood(ctx context.Context, line string) {
	peers := e.topology.Peers(e.selfName)
	if len(peers) == 0 {
		return
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed error

	for _, peer := range peers {
		wg.Add(1)
		go func(peer string) {
			defer wg.Done()
			if err := e.send(ctx, peer, line); err != nil {
				mu.Lock()
				failed = multierr.Append(failed, fmt.Errorf("%s: %w", peer, err))
				mu.Unlock()
			}
		}(peer)
	}
	wg.Wait()

	if failed != nil {
		e.sink.Event("gossip round completed with unreachable peers",
			zap.String("line", line),
			zap.Error(failed),
		)
	}
}

// send opens one short-lived connection to peer, writes line+"\n", and
// closes. Connection failures (refused, timeout, reset) are returned to the
// caller for logging only; they are never retried or queued - a peer that
// is down at the moment of flooding simply misses that message.
//
// The dial itself is bounded by dialCtx, derived from ctx plus dialTimeout,
// so a slow-but-reachable peer cannot outlive this call: DialContext aborts
// the in-flight connect() once dialCtx is done. The drain goroutine below
// is a second line of defense that closes the connection if DialContext
// still hands one back after the deadline has already been observed here.
func (e *Engine) send(ctx context.Context, peer string, line string) error {
	addr := e.topology.Addr(peer)

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	type result struct {
		conn net.Conn
		err  error
	}
	dialed := make(chan result, 1)
	go func() {
		conn, err := e.dial(dialCtx, "tcp", addr)
		dialed <- result{conn, err}
	}()

	select {
	case r := <-dialed:
		if r.err != nil {
			return r.err
		}
		defer r.conn.Close()
		if _, err := r.conn.Write([]byte(line + "\n")); err != nil {
			return err
		}
		return nil
	case <-dialCtx.Done():
		go func() {
			if r := <-dialed; r.conn != nil {
				r.conn.Close()
			}
		}()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("dial %s: timed out", addr)
	}
}
