/******************************************************************************
 *
 *  Description :
 *
 *  HTTP server for metrics and health checks.
 *
 *****************************************************************************/

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	metricsPath = "/metrics"
	healthPath  = "/healthz"
	// Time allowed for in-flight HTTP requests on shutdown.
	httpShutdownTimeout = 5 * time.Second
)

// promHTTPLogger routes promhttp errors to zap.
type promHTTPLogger struct {
	log *zap.Logger
}

func (l promHTTPLogger) Println(v ...any) {
	l.log.Sugar().Warn(v...)
}

// healthChecker reports if the component is able to serve requests.
type healthChecker interface {
	Connected() bool
}

// newHTTPHandler creates the mux serving metrics, health checks and, if pprofPath is set, profiles.
func newHTTPHandler(reg *prometheus.Registry, health healthChecker, pprofPath string, log *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	servePprof(mux, pprofPath, log)
	mux.Handle(metricsPath, promhttp.InstrumentMetricHandler(reg,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{ErrorLog: promHTTPLogger{log: log}})))
	mux.HandleFunc(healthPath, func(wrt http.ResponseWriter, req *http.Request) {
		wrt.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if health != nil && !health.Connected() {
			wrt.WriteHeader(http.StatusServiceUnavailable)
			wrt.Write([]byte("disconnected\n"))
			return
		}
		wrt.Write([]byte("ok\n"))
	})

	accessLog := zap.NewStdLog(log.Named("http")).Writer()
	return handlers.RecoveryHandler(handlers.RecoveryLogger(promHTTPLogger{log: log}))(
		handlers.CombinedLoggingHandler(accessLog, mux))
}

// listenAndServe runs the HTTP server until ctx is cancelled.
func listenAndServe(ctx context.Context, addr string, handler http.Handler, log *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	server := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	httpdone := make(chan error, 1)
	go func() {
		log.Info("Listening for HTTP connections", zap.String("addr", ln.Addr().String()))
		httpdone <- server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			return err
		}
		<-httpdone
		log.Info("HTTP server stopped")
		return nil
	case err := <-httpdone:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
