package server

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/nlu/internal/action"
	"github.com/Zereker/nlu/internal/api/consumer"
	"github.com/Zereker/nlu/internal/api/http"
	"github.com/Zereker/nlu/internal/api/mcp"
	"github.com/Zereker/nlu/internal/api/tcp"
	"github.com/Zereker/nlu/internal/history"
	"github.com/Zereker/nlu/internal/knowledge"
	"github.com/Zereker/nlu/internal/online"
	"github.com/Zereker/nlu/internal/session"
	"github.com/Zereker/nlu/pkg/graph"
	"github.com/Zereker/nlu/pkg/log"
	"github.com/Zereker/nlu/pkg/metrics"
	"github.com/Zereker/nlu/pkg/mq"
	"github.com/Zereker/nlu/pkg/navigation"
	"github.com/Zereker/nlu/pkg/nlp"
	"github.com/Zereker/nlu/pkg/redis"
	"github.com/Zereker/nlu/pkg/review"
)

// Server represents the nlu server
type Server struct {
	config    Config
	logger    *slog.Logger
	robot     *action.Robot
	queue     mq.MessageQueue
	review    review.Store
	consumer  *consumer.Consumer
	tokenizer *nlp.Tokenizer
	locations []string
}

// NewServer creates a new server with the given configuration
func NewServer(conf Config) (*Server, error) {
	server := &Server{
		config: conf,
	}

	if err := server.initDepend(); err != nil {
		return nil, errors.WithMessage(err, "init server dependency failed")
	}

	if err := server.initConsumer(); err != nil {
		return nil, errors.WithMessage(err, "init consumer failed")
	}

	if err := server.initRobot(); err != nil {
		return nil, errors.WithMessage(err, "init robot failed")
	}

	return server, nil
}

// initDepend initializes all dependencies
func (s *Server) initDepend() error {
	// Initialize log first
	if err := log.Init(s.config.Log); err != nil {
		return errors.WithMessage(err, "failed to init log")
	}

	s.logger = log.Logger("server")
	s.logger.Info("initializing dependencies")

	metrics.MustRegisterAll()

	ctx := context.Background()

	// Initialize Neo4j knowledge graph
	s.logger.Info("initializing graph store")
	if err := graph.Init(s.config.Neo4j); err != nil {
		return errors.WithMessage(err, "failed to init graph store")
	}

	// Initialize Redis
	s.logger.Info("initializing redis")
	if err := redis.Init(s.config.Redis); err != nil {
		return errors.WithMessage(err, "failed to init redis")
	}

	// Initialize message queue, in-memory when kafka is disabled
	s.logger.Info("initializing message queue")
	if s.config.Kafka.Enabled {
		if err := mq.Init(s.config.Kafka); err != nil {
			return errors.WithMessage(err, "failed to init message queue")
		}
		s.queue = mq.NewQueue()
	} else {
		s.queue = mq.NewInMemoryQueue(false)
	}

	// Initialize review store
	s.logger.Info("initializing review store")
	if s.config.Postgres.Enabled {
		store, err := review.NewPostgresStore(s.config.Postgres)
		if err != nil {
			return errors.WithMessage(err, "failed to init postgres review store")
		}
		s.review = store
	} else {
		store, err := review.NewFileStore(s.config.Review)
		if err != nil {
			return errors.WithMessage(err, "failed to init file review store")
		}
		s.review = store
	}

	// Load navigation locations
	if s.config.Navigation.Path != "" {
		s.logger.Info("loading navigation locations", "path", s.config.Navigation.Path)
		locations, err := navigation.LoadLocations(ctx, s.config.Navigation)
		if err != nil {
			// 导航表不可用时以空地点表启动
			s.logger.Error("failed to load navigation locations", "error", err)
		}
		s.locations = locations
	}

	// Initialize tokenizer
	s.logger.Info("initializing tokenizer")
	var lex nlp.Lexicon
	if s.config.Lexicon.Path != "" {
		loaded, err := nlp.LoadLexicon(s.config.Lexicon.Path)
		if err != nil {
			return errors.WithMessage(err, "failed to load lexicon")
		}
		lex = loaded
	}
	tokenizer, err := nlp.NewTokenizer(lex, s.config.Lexicon.DictFiles...)
	if err != nil {
		return errors.WithMessage(err, "failed to init tokenizer")
	}
	s.tokenizer = tokenizer

	return nil
}

// initConsumer initializes the review record consumer
func (s *Server) initConsumer() error {
	s.logger.Info("initializing consumer")

	c, err := consumer.NewConsumer(s.review, consumer.Config{
		Kafka: s.config.Kafka,
	})
	if err != nil {
		return errors.WithMessage(err, "failed to create consumer")
	}

	if !s.config.Kafka.Enabled {
		if err := c.Attach(s.queue); err != nil {
			return errors.WithMessage(err, "failed to attach consumer")
		}
	}

	s.consumer = c
	return nil
}

// initRobot assembles the dialogue robot
func (s *Server) initRobot() error {
	s.logger.Info("initializing robot")

	sessions, err := session.NewStore(s.config.Session)
	if err != nil {
		return errors.WithMessage(err, "failed to init session store")
	}

	store := knowledge.NewNeo4jStore(graph.NewClient())
	apis := action.NewAPIRegistry()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	names, err := store.ListAPIs(ctx)
	if err != nil {
		return errors.WithMessage(err, "failed to list knowledge apis")
	}
	if err := apis.Validate(names); err != nil {
		return err
	}

	var cache *redis.Cache
	if client := redis.Client(); client != nil {
		cache = redis.NewCache(client, s.config.Redis.KeyPrefix)
	}

	s.robot = action.NewRobot(s.config.Dialogue.Tables(), action.Options{
		Store:     store,
		Tokenizer: s.tokenizer,
		Sessions:  sessions,
		Enricher:  online.NewService(s.config.Online, s.tokenizer, cache),
		Recorder:  history.NewPublisher(s.queue),
		APIs:      apis,
		Locations: s.locations,
	})

	s.logger.Info("robot ready", "stages", s.robot.Stages(), "locations", len(s.locations))
	return nil
}

// Start starts the server based on configuration mode
func (s *Server) Start() error {
	s.logger.Info("starting", "mode", s.config.Server.Mode, "tcp", s.config.Server.TCPAddr, "port", s.config.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case <-sigCh:
			s.logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	g, ctx := errgroup.WithContext(ctx)

	// Start consumer
	if s.config.Kafka.Enabled {
		g.Go(func() error {
			return s.runConsumer(ctx)
		})
	}

	if s.config.Server.ServesTCP() {
		g.Go(func() error {
			return s.runTCPServer(ctx)
		})
	}

	if s.config.Server.ServesHTTP() {
		g.Go(func() error {
			return s.runHTTPServer(ctx)
		})
	}

	if s.config.Server.ServesMCP() {
		g.Go(func() error {
			return s.runMCPServer(ctx)
		})
	}

	return g.Wait()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop consumer
	if s.consumer != nil {
		if err := s.consumer.Stop(); err != nil {
			s.logger.Error("failed to stop consumer", "error", err)
		}
	}

	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			s.logger.Error("failed to close message queue", "error", err)
		}
	}

	if s.review != nil {
		if err := s.review.Close(ctx); err != nil {
			s.logger.Error("failed to close review store", "error", err)
		}
	}

	if err := graph.Close(ctx); err != nil {
		s.logger.Error("failed to close graph store", "error", err)
	}

	if err := redis.Close(); err != nil {
		s.logger.Error("failed to close redis", "error", err)
	}

	return nil
}

func (s *Server) runTCPServer(ctx context.Context) error {
	cfg := tcp.DefaultServerConfig()
	cfg.Addr = s.config.Server.TCPAddr
	if s.config.Server.MaxFrameSize > 0 {
		cfg.MaxFrameSize = s.config.Server.MaxFrameSize
	}
	if s.config.Server.IdleTimeout != "" {
		cfg.IdleTimeout, _ = time.ParseDuration(s.config.Server.IdleTimeout)
	}

	srv := tcp.NewServer(s.robot, cfg)
	if err := srv.ListenAndServe(ctx); err != nil {
		return errors.WithMessage(err, "tcp server error")
	}
	return nil
}

func (s *Server) runHTTPServer(ctx context.Context) error {
	serverCfg := http.DefaultServerConfig()
	serverCfg.Port = s.config.Server.Port
	serverCfg.Metrics = s.config.Server.MetricsEnabled()

	srv := http.NewServer(s.robot, serverCfg)

	// Shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	if err := srv.Start(); err != nil && ctx.Err() == nil {
		return errors.WithMessage(err, "http server error")
	}
	return nil
}

func (s *Server) runMCPServer(ctx context.Context) error {
	server := mcp.NewServer(s.robot, mcp.ServerConfig{
		Name:    "nlu",
		Version: "0.1.0",
	})

	if err := server.RunStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return errors.WithMessage(err, "mcp server error")
	}
	return nil
}

func (s *Server) runConsumer(ctx context.Context) error {
	if err := s.consumer.Start(ctx); err != nil {
		return errors.WithMessage(err, "consumer start error")
	}

	// Wait for context cancellation
	<-ctx.Done()

	return s.consumer.Stop()
}
