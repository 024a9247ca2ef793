package engine

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

// Handler is the signature used by all module route handlers.
// Returning a Response instead of writing directly keeps error mapping
// and logging in one place.
type Handler func(r *http.Request, ps httprouter.Params) Response

type Router struct {
	router *httprouter.Router
}

func NewRouter() *Router {
	return &Router{router: httprouter.New()}
}

// Serve wires up the stdlib http server to the engine.
func (r *Router) Serve(addr string) Proc {
	return func(ctx context.Context) error {
		svr := &http.Server{Handler: r, Addr: addr}
		go func() {
			<-ctx.Done()
			slog.Warn("gracefully shutting down http server...")
			svr.Shutdown(context.Background())
		}()
		if err := svr.ListenAndServe(); err != nil {
			return err
		}
		slog.Info("the http server has shut down")
		return nil
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, rr *http.Request) { r.router.ServeHTTP(w, rr) }

func (r *Router) Handle(method, path string, fn Handler) {
	r.router.Handle(method, path, func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		start := time.Now()
		ww := &responseWrapper{ResponseWriter: w, status: 200}
		Handle(ww, req, ps, fn)
		slog.Info("http request", "url", req.URL.Path, "method", req.Method, "latencyMS", time.Since(start).Milliseconds(), "status", ww.status)
	})
}

// HandleFunc registers a plain http.HandlerFunc, bypassing the Response
// plumbing. Used for probes.
func (r *Router) HandleFunc(method, path string, fn http.HandlerFunc) {
	r.router.HandlerFunc(method, path, fn)
}

// Handle invokes a Handler and writes its Response. Exposed so tests can
// drive handlers without a live server.
func Handle(w http.ResponseWriter, r *http.Request, ps httprouter.Params, fn Handler) {
	resp := fn(r, ps)
	if resp == nil {
		resp = Empty()
	}
	resp.Write(w, r)
}

type responseWrapper struct {
	http.ResponseWriter
	status int
}

func (w *responseWrapper) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
