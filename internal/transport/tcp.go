package transport

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/nslz/broquet/internal/broker"
	"github.com/nslz/broquet/internal/logger"
)

// TCPServer accepts client connections and enrolls them into the broker's
// active set. It does not read from the sockets itself; the broker's
// dispatcher owns all reads.
type TCPServer struct {
	port           string
	listener       net.Listener
	broker         *broker.Broker
	isShuttingdown atomic.Bool
	log            *logger.Logger
}

// New creates a new TCPServer instance
func New(port string, b *broker.Broker, log *logger.Logger) *TCPServer {
	return &TCPServer{
		port:   port,
		broker: b,
		log:    log,
	}
}

// Start binds 0.0.0.0:<port> and begins accepting connections.
func (srv *TCPServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%s", srv.port))
	if err != nil {
		return err
	}
	srv.listener = listener
	go srv.accept(ctx)
	return nil
}

// Stop shuts down the listener gracefully
func (srv *TCPServer) Stop() error {
	srv.isShuttingdown.Store(true)
	if srv.listener != nil {
		return srv.listener.Close()
	}
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (srv *TCPServer) Addr() net.Addr {
	if srv.listener == nil {
		return nil
	}
	return srv.listener.Addr()
}

func (srv *TCPServer) accept(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			srv.log.Info("Shutting down accept loop")
			return
		default:
			conn, err := srv.listener.Accept()
			if err != nil {
				if srv.isShuttingdown.Load() {
					return
				}
				srv.log.LogError(err, "Failed accepting connection")
				continue
			}
			srv.enroll(conn)
		}
	}
}

// enroll adds the connection to the active set keyed on its remote port,
// the ephemeral peer handle used everywhere else.
func (srv *TCPServer) enroll(conn net.Conn) {
	addr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		srv.log.Warn("Rejecting connection without a TCP peer address")
		conn.Close()
		return
	}

	srv.broker.Conns.Add(conn, uint16(addr.Port))
	srv.log.LogClientConnection("", conn.RemoteAddr().String(), "accepted")
}
