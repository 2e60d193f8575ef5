// internal/infra/httpapi/server.go
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"habit_notifier/internal/app"
	"habit_notifier/internal/domain/delivery"
	"habit_notifier/internal/domain/notification"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pquerna/ffjson/ffjson"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const maxBodySize = 64 << 10

// Response is the envelope of every API reply.
type Response struct {
	ID      string      `json:"id"`
	Status  bool        `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// TimerLister exposes the scheduler's armed timers.
type TimerLister interface {
	Armed() []app.ArmedTimer
}

// Server is the local control API. Mutations go through the worker as
// commands; reads go straight to the store.
type Server struct {
	router  *mux.Router
	web     http.Server
	sink    delivery.CommandSink
	repo    notification.Repository
	timers  TimerLister
	channel delivery.Channel
	logger  *logrus.Entry
}

func NewServer(
	addr string,
	sink delivery.CommandSink,
	repo notification.Repository,
	timers TimerLister,
	channel delivery.Channel,
	logger *logrus.Entry,
) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		sink:    sink,
		repo:    repo,
		timers:  timers,
		channel: channel,
		logger:  logger,
	}
	s.initHandlers()
	s.web = http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) initHandlers() {
	s.router.Use(s.requestID)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/messages", s.handleMessage).Methods(http.MethodPost)
	api.HandleFunc("/notifications", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id}", s.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id}/logs", s.handleLogs).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id}/click", s.handleClick).Methods(http.MethodPost)
	api.HandleFunc("/timers", s.handleTimers).Methods(http.MethodGet)
	api.HandleFunc("/permission", s.handlePermission).Methods(http.MethodGet, http.MethodPost)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler())
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server stops. A clean shutdown is not an error.
func (s *Server) ListenAndServe() error {
	s.logger.WithField("addr", s.web.Addr).Info("Control API going online")
	if err := s.web.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("Control API has shut down")
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.web.Shutdown(ctx)
}

type requestIDKey struct{}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		s.logger.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"remote":     r.RemoteAddr,
		}).Trace("Handle request")
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.sendError(w, r, http.StatusBadRequest, err)
		return
	}
	cmd, err := app.DecodeMessage(raw)
	if err != nil {
		s.sendError(w, r, http.StatusBadRequest, err)
		return
	}
	if cmd == nil {
		s.sendResponse(w, r, http.StatusAccepted, &Response{Status: true, Message: "ignored"})
		return
	}
	if err := s.sink.Submit(r.Context(), cmd); err != nil {
		s.sendError(w, r, statusFor(err), err)
		return
	}
	s.sendResponse(w, r, http.StatusOK, &Response{Status: true, Message: notification.CommandName(cmd)})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	defs, err := s.repo.GetAll(r.Context())
	if err != nil {
		s.sendError(w, r, statusFor(storeErr(err)), err)
		return
	}
	s.sendResponse(w, r, http.StatusOK, &Response{Status: true, Data: defs})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	def, err := s.repo.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.sendError(w, r, statusFor(storeErr(err)), err)
		return
	}
	s.sendResponse(w, r, http.StatusOK, &Response{Status: true, Data: def})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.repo.GetLogsForDefinition(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.sendError(w, r, statusFor(storeErr(err)), err)
		return
	}
	s.sendResponse(w, r, http.StatusOK, &Response{Status: true, Data: logs})
}

type clickRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.sendError(w, r, http.StatusBadRequest, err)
		return
	}
	var req clickRequest
	if len(raw) > 0 {
		if err := ffjson.Unmarshal(raw, &req); err != nil {
			s.sendError(w, r, http.StatusBadRequest, err)
			return
		}
	}
	cmd := notification.ClickCommand{NotificationID: mux.Vars(r)["id"], Action: req.Action}
	if err := s.sink.Submit(r.Context(), cmd); err != nil {
		s.sendError(w, r, statusFor(err), err)
		return
	}
	route := notification.ResolveAction(req.Action)
	s.sendResponse(w, r, http.StatusOK, &Response{Status: true, Message: route.Kind.String()})
}

func (s *Server) handleTimers(w http.ResponseWriter, r *http.Request) {
	s.sendResponse(w, r, http.StatusOK, &Response{Status: true, Data: s.timers.Armed()})
}

func (s *Server) handlePermission(w http.ResponseWriter, r *http.Request) {
	var (
		perm delivery.Permission
		err  error
	)
	if r.Method == http.MethodPost {
		perm, err = s.channel.RequestPermission(r.Context())
	} else {
		perm, err = s.channel.Permission(r.Context())
	}
	if err != nil {
		s.sendError(w, r, http.StatusBadGateway, err)
		return
	}
	s.sendResponse(w, r, http.StatusOK, &Response{Status: true, Message: string(perm)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendResponse(w, r, http.StatusOK, &Response{Status: true, Message: "ok"})
}

// storeErr tags raw repository failures so they map to 503.
func storeErr(err error) error {
	if errors.Is(err, notification.ErrDefinitionNotFound) || errors.Is(err, notification.ErrLogNotFound) {
		return err
	}
	return errors.Join(notification.ErrStoreUnavailable, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrMalformedMessage),
		errors.Is(err, notification.ErrInvalidTimeFormat),
		errors.Is(err, notification.ErrInvalidDefinition):
		return http.StatusBadRequest
	case errors.Is(err, notification.ErrUnknownDefinitionID),
		errors.Is(err, notification.ErrDefinitionNotFound):
		return http.StatusNotFound
	case errors.Is(err, notification.ErrStoreUnavailable),
		errors.Is(err, app.ErrWorkerStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) sendError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.logger.WithError(err).WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"status": status,
	}).Warn("Request failed")
	s.sendResponse(w, r, status, &Response{Status: false, Message: err.Error()})
}

func (s *Server) sendResponse(w http.ResponseWriter, r *http.Request, status int, res *Response) {
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		res.ID = id
	}
	buf, err := ffjson.Marshal(res)
	if err != nil {
		s.logger.WithError(err).Error("Cannot serialize response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer ffjson.Pool(buf)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf) // nolint: errcheck
}
