package tcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/Zereker/nlu/internal/domain"
	"github.com/Zereker/nlu/pkg/log"
	"github.com/Zereker/nlu/pkg/metrics"
)

// Robot 问答引擎
// 实现 action.Robot
type Robot interface {
	Search(ctx context.Context, userID, question string) domain.MatchResult
	Configure(ctx context.Context, userID, content string) (*domain.ConfigResult, error)
}

// ServerConfig contains TCP server configuration
type ServerConfig struct {
	Addr         string
	MaxFrameSize int           // 单帧最大字节数
	IdleTimeout  time.Duration // 连接空闲超时，0 表示不超时
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         ":7000",
		MaxFrameSize: 64 * 1024,
	}
}

// Server 以换行分隔的 UTF-8 JSON 帧提供问答服务，每个连接一个 goroutine
type Server struct {
	logger *slog.Logger
	robot  Robot
	config ServerConfig

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a new TCP server
func NewServer(robot Robot, config ServerConfig) *Server {
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = DefaultServerConfig().MaxFrameSize
	}
	return &Server{
		logger: log.Logger("tcp"),
		robot:  robot,
		config: config,
		conns:  make(map[net.Conn]struct{}),
	}
}

// ListenAndServe 监听配置的地址并服务，直到 ctx 取消或 Shutdown
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve 在给定的 listener 上接受连接
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return net.ErrClosed
	}
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("tcp server listening", "addr", ln.Addr().String())

	stop := context.AfterFunc(ctx, func() {
		_ = s.Shutdown(context.Background())
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Warn("accept timeout", "error", err)
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConn(ctx, conn)
		}()
	}
}

// Addr 监听地址，未开始监听时为 nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown 停止监听、关闭所有连接并等待处理中的请求结束
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		if s.listener != nil {
			_ = s.listener.Close()
		}
		for conn := range s.conns {
			_ = conn.Close()
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	metrics.ConnectionsActive.Inc()
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conns[conn]; ok {
		delete(s.conns, conn)
		metrics.ConnectionsActive.Dec()
	}
	_ = conn.Close()
}

// handleConn 逐帧处理一个连接。读端结束（对端关闭、超时或超长帧）时取消该连接的 context，
// 进行中的请求随之停止。
func (s *Server) handleConn(parent context.Context, conn net.Conn) {
	ctx, cancel := context.WithCancel(parent)

	remote := conn.RemoteAddr().String()
	s.logger.Debug("connection opened", "remote", remote)
	defer s.logger.Debug("connection closed", "remote", remote)

	frames := make(chan []byte)
	readerDone := make(chan struct{})
	var readErr error
	go func() {
		defer close(readerDone)
		defer close(frames)
		defer cancel()
		readErr = s.readFrames(ctx, conn, frames)
	}()
	defer func() {
		cancel()
		_ = conn.Close()
		<-readerDone
	}()

	writer := bufio.NewWriter(conn)
	for line := range frames {
		if err := s.writeFrame(writer, s.dispatch(ctx, line)); err != nil {
			s.logger.Warn("write failed", "remote", remote, "error", err)
			return
		}
	}

	if readErr == nil {
		return
	}
	if errors.Is(readErr, bufio.ErrTooLong) {
		metrics.FramesTotal.WithLabelValues("malformed").Inc()
		_ = s.writeFrame(writer, domain.ErrorResponse{Error: domain.ErrMalformedRequest.Error() + ": frame too large"})
	}
	if !s.isClosed() {
		s.logger.Debug("read failed", "remote", remote, "error", readErr)
	}
}

// readFrames 按行读取请求帧，跳过空行；对端正常关闭时返回 nil
func (s *Server) readFrames(ctx context.Context, conn net.Conn, frames chan<- []byte) error {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), s.config.MaxFrameSize)

	for {
		if s.config.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		select {
		case frames <- bytes.Clone(line):
		case <-ctx.Done():
			return nil
		}
	}
}

// dispatch 处理一帧请求，任何错误都转换为错误应答
func (s *Server) dispatch(ctx context.Context, line []byte) (resp any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while handling frame", "panic", r)
			resp = domain.ErrorResponse{Error: "internal error"}
		}
	}()

	var req domain.Request
	if err := json.Unmarshal(line, &req); err != nil {
		metrics.FramesTotal.WithLabelValues("malformed").Inc()
		return domain.ErrorResponse{Error: fmt.Sprintf("%s: %v", domain.ErrMalformedRequest, err)}
	}

	switch {
	case req.AskContent != nil:
		metrics.FramesTotal.WithLabelValues("ask").Inc()
		return s.robot.Search(ctx, req.UserID, *req.AskContent)

	case req.ConfigContent != nil:
		metrics.FramesTotal.WithLabelValues("config").Inc()
		result, err := s.robot.Configure(ctx, req.UserID, *req.ConfigContent)
		if err != nil {
			s.logger.Warn("configure failed", "user_id", req.UserID, "error", err)
			return domain.ErrorResponse{Error: err.Error()}
		}
		return result

	default:
		metrics.FramesTotal.WithLabelValues("malformed").Inc()
		return domain.ErrorResponse{Error: domain.ErrMalformedRequest.Error() + ": ask_content or config_content is required"}
	}
}

func (s *Server) writeFrame(w *bufio.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
