package service

import (
	"context"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/project-chip/certification-tool-backend-sub001/socket"
)

var upgrader = websocket.Upgrader{
	// Operators connect from the frontend origin, which is not ours.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SocketServer upgrades operator connections and attaches them to the hub.
// Video clients additionally get a UDP relay bound to the video address.
type SocketServer struct {
	hub       *socket.Hub
	addr      string
	videoAddr string

	ctx    context.Context
	server *http.Server
}

func (s *SocketServer) Start(ctx context.Context) error {
	hdlr := http.NewServeMux()
	hdlr.HandleFunc("/ws", s.handleWS)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	server := &http.Server{
		Handler: c.Handler(hdlr),
		Addr:    s.addr,
	}
	s.server = server
	s.ctx = ctx
	return s.server.ListenAndServe()
}

func (s *SocketServer) Shutdown() error {
	return s.server.Shutdown(s.ctx)
}

func (s *SocketServer) handleWS(w http.ResponseWriter, r *http.Request) {
	role := socket.Role(r.URL.Query().Get("role"))
	if role == "" {
		role = socket.RoleMain
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("websocket upgrade failed", "err", err)
		return
	}

	conn, err := s.hub.Connect(ws, role)
	if err != nil {
		log.Warn("websocket connection rejected", "role", role, "err", err)
		return
	}

	if role == socket.RoleVideo {
		src, err := net.ListenPacket("udp", s.videoAddr)
		if err != nil {
			log.Error("failed to bind video stream source", "addr", s.videoAddr, "err", err)
			s.hub.Disconnect(conn)
			return
		}
		go func() {
			if err := s.hub.RelayVideo(s.ctx, conn, src); err != nil && s.ctx.Err() == nil {
				log.Warn("video relay terminated", "err", err)
			}
		}()
	}

	go s.hub.ReadLoop(conn)
}
