// Package server wires the connection acceptor and the four request
// handlers on top of the Codec, Registry, Gossip Engine, and Places Adapter.
// One request line in per TCP connection, at most one response out (a
// single AT line, or for WHATSAT an AT line followed by a JSON document),
// then the connection is closed - no connection reuse across requests.
package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"locationproxy/internal/config"
	"locationproxy/internal/gossip"
	"locationproxy/internal/logging"
	"locationproxy/internal/places"
	"locationproxy/internal/protocol"
	"locationproxy/internal/registry"
)

// Server is one federation member: it owns a listener on its configured
// port, the shared Registry, and the collaborators (Gossip, Places) needed
// to answer client and peer requests arriving on that listener.
type Server struct {
	selfName string
	cfg      *config.Config
	registry *registry.Registry
	engine   *gossip.Engine
	places   *places.Client
	sink     logging.Sink

	now func() time.Time

	closing chan chan error
}

// New builds a Server for selfName. The listener is not opened until Serve
// is called.
func New(selfName string, cfg *config.Config, reg *registry.Registry, engine *gossip.Engine, placesClient *places.Client, sink logging.Sink) *Server {
	return &Server{
		selfName: selfName,
		cfg:      cfg,
		registry: reg,
		engine:   engine,
		places:   placesClient,
		sink:     sink,
		now:      time.Now,
		closing:  make(chan chan error),
	}
}

// Serve opens the listener on this server's configured port and spawns the
// accept loop in the background. It returns once the listener is bound, not
// once the server stops.
func (s *Server) Serve() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.ListenHost, s.cfg.Port(s.selfName))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.sink.Event("server listening", zap.String("addr", addr))
	go s.acceptLoop(l)
	return nil
}

// Shutdown stops the accept loop and closes the listener, waiting for
// acknowledgment.
func (s *Server) Shutdown() error {
	errch := make(chan error)
	s.closing <- errch
	return <-errch
}

// acceptLoop accepts connections and dispatches each to its own goroutine.
// Accepting and serving are split into two select cases so a pending
// shutdown signal is always observed promptly even while Accept() is
// blocked.
func (s *Server) acceptLoop(l net.Listener) {
	defer l.Close()

	accepting := make(chan struct{}, 1)
	serving := make(chan net.Conn, 1)
	accepting <- struct{}{}

	for {
		select {
		case <-accepting:
			go func() {
				conn, err := l.Accept()
				if err != nil {
					return
				}
				serving <- conn
			}()

		case conn := <-serving:
			go s.handleConn(conn)
			accepting <- struct{}{}

		case errch := <-s.closing:
			errch <- nil
			return
		}
	}
}

// handleConn reads exactly one line from conn, dispatches it, writes a
// response if the handler produced one, then closes the connection on
// every exit path.
func (s *Server) handleConn(conn net.Conn) {
	connID := xid.New()
	defer conn.Close()

	log := s.sink.With(zap.String("conn_id", connID.String()))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		log.Event("client disconnected before sending a full request", zap.Error(err))
		return
	}
	line = strings.TrimRight(line, "\r\n")

	cmd := protocol.ParseLine(line)
	log.Event("received request", zap.String("cmd", cmd.Kind.String()), zap.String("line", line))

	ctx := context.Background()
	response, ok := s.dispatch(ctx, log, cmd)
	if !ok {
		return
	}

	if _, err := conn.Write([]byte(response)); err != nil {
		log.Event("failed writing response", zap.Error(err))
		return
	}
}

// dispatch routes a classified command to its handler. ok is false only for
// the peer-originated UPDATE kind, which never produces a response line.
func (s *Server) dispatch(ctx context.Context, log logging.Sink, cmd protocol.Command) (response string, ok bool) {
	switch cmd.Kind {
	case protocol.IAMAT:
		return s.handleIAMAT(ctx, log, cmd), true
	case protocol.WHATSAT:
		return s.handleWHATSAT(ctx, log, cmd), true
	case protocol.Update:
		s.handleUpdate(ctx, log, cmd)
		return "", false
	default:
		return s.handleInvalid(cmd), true
	}
}

// handleIAMAT answers a client's location announcement and, if it is
// strictly newer than what is already on record, floods it to peers before
// returning.
func (s *Server) handleIAMAT(ctx context.Context, log logging.Sink, cmd protocol.Command) string {
	clientName := cmd.Tokens[1]
	location := cmd.Tokens[2]
	tsSent := cmd.Tokens[3]

	tsReceived := s.now()
	tsReceivedSeconds := float64(tsReceived.UnixNano()) / 1e9
	tsReceivedText := formatDecimal(tsReceivedSeconds)

	skew, err := computeSkew(tsReceivedSeconds, tsSent)
	if err != nil {
		log.Event("malformed ts_sent on otherwise-valid IAMAT", zap.String("kind", "malformed"), zap.Error(err))
		return "? " + cmd.Line + "\n"
	}

	report := registry.ClientReport{
		Location:     location,
		TsSent:       tsSent,
		TsReceived:   tsReceivedText,
		OriginServer: s.selfName,
	}
	result := s.registry.Upsert(clientName, report)

	response := fmt.Sprintf("AT %s %s %s %s %s\n", s.selfName, skew, clientName, location, tsSent)

	if result == registry.Accepted {
		updateLine := fmt.Sprintf("UPDATE %s %s %s %s %s", clientName, location, tsReceivedText, tsSent, s.selfName)
		s.engine.Flood(ctx, updateLine)
	}

	return response
}

// handleWHATSAT answers a query for a client's last known location with
// nearby places around it.
func (s *Server) handleWHATSAT(ctx context.Context, log logging.Sink, cmd protocol.Command) string {
	clientName := cmd.Tokens[1]
	radiusKm, _ := strconv.Atoi(cmd.Tokens[2])
	limit, _ := strconv.Atoi(cmd.Tokens[3])

	report, found := s.registry.Get(clientName)
	if !found {
		log.Event("whatsat for unknown client", zap.String("kind", "unknown_client"), zap.String("client", clientName))
		return "? " + cmd.Line + "\n"
	}

	tsReceivedSeconds, err := strconv.ParseFloat(report.TsReceived, 64)
	if err != nil {
		log.Event("stored report has malformed ts_received", zap.Error(err))
		return "? " + cmd.Line + "\n"
	}

	skew, err := computeSkew(tsReceivedSeconds, report.TsSent)
	if err != nil {
		log.Event("stored report has malformed ts_sent", zap.Error(err))
		return "? " + cmd.Line + "\n"
	}

	center, err := centerFromLocation(report.Location)
	if err != nil {
		log.Event("stored report has malformed location", zap.Error(err))
		return "? " + cmd.Line + "\n"
	}

	doc, err := s.places.Search(ctx, center, radiusKm*1000, limit)
	if err != nil {
		log.Event("places lookup failed", zap.String("kind", "places_failure"), zap.Error(err))
		return "? " + cmd.Line + "\n"
	}

	pretty, err := doc.MarshalIndent()
	if err != nil {
		log.Event("failed rendering places document", zap.Error(err))
		return "? " + cmd.Line + "\n"
	}

	header := fmt.Sprintf("AT %s %s %s %s %s\n", report.OriginServer, skew, clientName, report.Location, report.TsSent)
	return header + string(pretty) + "\n"
}

// handleUpdate applies a peer-originated update and, if accepted, re-floods
// it unmodified. It never writes a response.
func (s *Server) handleUpdate(ctx context.Context, log logging.Sink, cmd protocol.Command) {
	clientName := cmd.Tokens[1]
	report := registry.ClientReport{
		Location:     cmd.Tokens[2],
		TsReceived:   cmd.Tokens[3],
		TsSent:       cmd.Tokens[4],
		OriginServer: cmd.Tokens[5],
	}

	result := s.registry.Upsert(clientName, report)
	if result != registry.Accepted {
		return
	}

	// Re-flood the line exactly as received: the forwarding server never
	// rewrites origin_server, ts_sent, or ts_received, which is what makes
	// the flood terminate.
	s.engine.Flood(ctx, cmd.Line)
}

// handleInvalid echoes the offending line back with a leading "?".
func (s *Server) handleInvalid(cmd protocol.Command) string {
	return "? " + cmd.Line + "\n"
}

// computeSkew returns ts_received - ts_sent formatted with an explicit
// leading sign.
func computeSkew(tsReceived float64, tsSentText string) (string, error) {
	tsSent, err := strconv.ParseFloat(tsSentText, 64)
	if err != nil {
		return "", fmt.Errorf("parsing ts_sent %q: %w", tsSentText, err)
	}
	return formatSigned(tsReceived - tsSent), nil
}

// centerFromLocation converts a "±LAT±LON" token into the "lat,lon" form
// the Places API expects, stripping any leading '+'.
func centerFromLocation(location string) (string, error) {
	lat, lon, ok := protocol.SplitLocation(location)
	if !ok {
		return "", fmt.Errorf("malformed stored location %q", location)
	}
	return strings.TrimPrefix(lat, "+") + "," + strings.TrimPrefix(lon, "+"), nil
}

// formatSigned renders v in plain (non-exponential) decimal with an
// explicit leading sign.
func formatSigned(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.HasPrefix(s, "-") {
		s = "+" + s
	}
	return s
}

// formatDecimal renders v as plain decimal text, full precision, used for
// server-observed timestamps that will later be compared and re-emitted as
// text.
func formatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
