package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Tsukikage7/elected-scheduler/logger"
)

// Server 指标 HTTP 服务器.
type Server struct {
	collector *Collector
	addr      string
	logger    logger.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer 创建指标 HTTP 服务器.
func NewServer(collector *Collector, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{
		collector: collector,
		addr:      collector.config.Addr,
		logger:    log,
	}
}

// Handler 返回包含指标与健康检查路由的处理器.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.collector.Path(), s.collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start 启动服务器，阻塞直到 ctx 取消或服务器出错.
//
// ctx 已取消时不监听端口，直接返回 ctx.Err().
func (s *Server) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.server, s.listener = srv, ln
	s.mu.Unlock()

	s.logger.Debugf("[Metrics] 指标服务启动 [addr:%s] [path:%s]", ln.Addr(), s.collector.Path())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}
	return nil
}

// Stop 停止服务器.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Debug("[Metrics] 指标服务停止中...")
	return srv.Shutdown(ctx)
}

// Name 返回服务器名称.
func (s *Server) Name() string {
	return "metrics"
}

// Addr 返回实际监听地址，未启动时返回配置地址.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
