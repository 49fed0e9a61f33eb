package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/IniZio/reim/internal/devtools"
	"github.com/IniZio/reim/internal/metrics"
	"github.com/IniZio/reim/internal/value"
)

const (
	defaultDevtoolsTimeout = 5 * time.Second
	shutdownTimeout        = 10 * time.Second
)

// DevtoolsOptions holds flags for the devtools command.
type DevtoolsOptions struct {
	*RootOptions
	Addr        string // hub listen address
	MetricsAddr string // separate /metrics listener, empty serves it on Addr
}

// InstanceInfo describes one store instance known to the hub.
type InstanceInfo struct {
	ID     string          `json:"id"`
	Action string          `json:"action,omitempty"`
	State  json.RawMessage `json:"state,omitempty"`
}

// jumpRequest is the body of POST /instances/{id}/jump. Seq selects a
// recorded commit; otherwise State is sent as JUMP_TO_STATE.
type jumpRequest struct {
	Seq   int64           `json:"seq,omitempty"`
	State json.RawMessage `json:"state,omitempty"`
}

// NewDevtoolsCommand creates the devtools command.
func NewDevtoolsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DevtoolsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "devtools",
		Short: "Serve a time-travel debugger hub",
		Long: `Serve a debugger hub that stores connect to over WebSocket.

Endpoints:
  /                          WebSocket endpoint for stores
  GET  /instances            connected instances with their latest frame
  POST /instances/{id}/jump  send {"seq": N} or {"state": ...} to an instance
  /metrics                   Prometheus metrics

Examples:
  reim devtools
  reim devtools --addr :8000 --metrics-addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				opts.Addr = opts.Config.DevtoolsAddr
			}
			if !cmd.Flags().Changed("metrics-addr") {
				opts.MetricsAddr = opts.Config.MetricsAddr
			}
			return runDevtools(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:8000", "hub listen address")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "separate listen address for /metrics")

	return cmd
}

func runDevtools(opts *DevtoolsOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	gin.SetMode(gin.ReleaseMode)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := newDevtoolsHub(m, logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	servers := []*http.Server{{
		Handler:           newDevtoolsMux(hub, reg, opts.MetricsAddr == "", logger),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	addrs := []string{opts.Addr}
	if opts.MetricsAddr != "" {
		router := gin.New()
		router.Use(gin.Recovery())
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
		servers = append(servers, &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second})
		addrs = append(addrs, opts.MetricsAddr)
	}

	listeners := make([]net.Listener, 0, len(servers))
	for _, addr := range addrs {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			for _, l := range listeners {
				l.Close()
			}
			return formatter.fail(ErrCodeListen, fmt.Sprintf("failed to listen on %s", addr), err)
		}
		listeners = append(listeners, ln)
	}

	errCh := make(chan error, len(servers))
	for i, srv := range servers {
		go func() {
			if err := srv.Serve(listeners[i]); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	logger.Info("devtools hub listening", "addr", listeners[0].Addr().String())
	if len(listeners) > 1 {
		logger.Info("metrics listening", "addr", listeners[1].Addr().String())
	}
	if !formatter.JSON() {
		fmt.Fprintf(formatter.Writer, "Devtools hub on ws://%s/\n", listeners[0].Addr())
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		logger.Error("devtools server failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("devtools shutdown", "error", err)
		}
	}

	if serveErr != nil {
		return WrapExitError(ExitCommandError, "devtools server failed", serveErr)
	}
	logger.Info("devtools hub stopped")
	return nil
}

// newDevtoolsHub creates a hub that counts every received frame.
func newDevtoolsHub(m *metrics.Metrics, logger *slog.Logger) *devtools.Hub {
	return devtools.NewHub(
		devtools.WithHubLogger(logger),
		devtools.OnFrame(func(_ string, msg devtools.Message) {
			m.Frame(msg.Type)
		}),
	)
}

// apiError is the body of every non-2xx API response.
type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// newDevtoolsMux routes the hub WebSocket endpoint, the instance API and,
// when serveMetrics is set, /metrics.
func newDevtoolsMux(hub *devtools.Hub, reg *prometheus.Registry, serveMetrics bool, logger *slog.Logger) http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/", gin.WrapH(hub))
	router.GET("/instances", func(c *gin.Context) {
		ids := hub.Instances()
		out := make([]InstanceInfo, 0, len(ids))
		for _, id := range ids {
			info := InstanceInfo{ID: id}
			if msg, ok := hub.Latest(id); ok {
				info.Action = msg.Action
				info.State = msg.State
			}
			out = append(out, info)
		}
		c.JSON(http.StatusOK, out)
	})
	router.POST("/instances/:id/jump", func(c *gin.Context) {
		id := c.Param("id")

		var req jumpRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, apiError{Error: "invalid jump request: " + err.Error(), Code: "INVALID_REQUEST"})
			return
		}

		var err error
		switch {
		case req.Seq > 0:
			err = hub.JumpToSeq(id, req.Seq)
		case len(req.State) > 0:
			state, decodeErr := value.Unmarshal(req.State)
			if decodeErr != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, apiError{Error: "invalid state: " + decodeErr.Error(), Code: "INVALID_STATE"})
				return
			}
			err = hub.Jump(id, devtools.JumpToState, state)
		default:
			c.AbortWithStatusJSON(http.StatusBadRequest, apiError{Error: "jump needs seq or state", Code: "INVALID_REQUEST"})
			return
		}

		switch {
		case errors.Is(err, devtools.ErrUnknownInstance):
			c.AbortWithStatusJSON(http.StatusNotFound, apiError{Error: err.Error(), Code: "UNKNOWN_INSTANCE"})
		case err != nil:
			logger.Warn("jump failed", "id", id, "error", err)
			c.AbortWithStatusJSON(http.StatusBadGateway, apiError{Error: err.Error(), Code: "JUMP_FAILED"})
		default:
			c.Status(http.StatusAccepted)
		}
	})
	if serveMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}
	return router
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("devtools request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}
