// Package httpapi exposes universes, nodes and metrics over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"artnetctl/internal/artnet"
	"artnetctl/internal/logger"
	"artnetctl/internal/packet"
	"artnetctl/internal/universe"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Controller is what the API needs from the art-net controller.
type Controller interface {
	SetUniverseData(net, subnet, universe int, data []byte) error
	Store() *universe.Store
	Nodes() []artnet.Node
	SendPoll() error
	LastTimeCode() *packet.TimeCode
}

// Server serves the API.
type Server struct {
	log    logger.Logger
	ctrl   Controller
	router chi.Router
	srv    *http.Server
}

// New конструктор. gatherer backs /metrics; nil disables the endpoint.
func New(log logger.Logger, ctrl Controller, gatherer prometheus.Gatherer) *Server {
	s := &Server{log: log, ctrl: ctrl}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.Route("/universes", func(r chi.Router) {
		r.Get("/", s.listUniverses)
		r.Route("/{net}/{subnet}/{universe}", func(r chi.Router) {
			r.Get("/", s.getUniverse)
			r.Put("/", s.putUniverse)
			r.Delete("/", s.deleteUniverse)
			r.Post("/destinations", s.addDestination)
			r.Delete("/destinations/{addr}", s.removeDestination)
		})
	})
	r.Get("/nodes", s.listNodes)
	r.Post("/poll", s.poll)
	r.Get("/timecode", s.timecode)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.With(logger.Fields{"module": "http"}).Errorf("server stopped: %v", err)
		}
	}()
	s.log.With(logger.Fields{"module": "http"}).Infof("listening on %s", ln.Addr())
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.With(logger.Fields{
			"module":   "http",
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start),
		}).Debug("request")
	})
}

type universeJSON struct {
	Key          uint16    `json:"key"`
	Address      string    `json:"address"`
	Net          int       `json:"net"`
	SubNet       int       `json:"subnet"`
	Universe     int       `json:"universe"`
	Data         []int     `json:"data"`
	Updated      time.Time `json:"updated"`
	LastSent     time.Time `json:"lastSent"`
	Destinations []string  `json:"destinations"`
}

func toUniverseJSON(info universe.Info) universeJSON {
	out := universeJSON{
		Key:      uint16(info.Key),
		Address:  info.Key.String(),
		Net:      info.Key.Net(),
		SubNet:   info.Key.SubNet(),
		Universe: info.Key.Universe(),
		Data:     make([]int, len(info.Data)),
		Updated:  info.Updated,
		LastSent: info.LastSent,
	}
	for i, b := range info.Data {
		out.Data[i] = int(b)
	}
	for _, d := range info.Destinations {
		out.Destinations = append(out.Destinations, d.String())
	}
	return out
}

type nodeJSON struct {
	IP        string    `json:"ip"`
	BindIndex uint8     `json:"bindIndex"`
	ShortName string    `json:"shortName"`
	LongName  string    `json:"longName"`
	Report    string    `json:"report"`
	Product   string    `json:"product"`
	Style     string    `json:"style"`
	Outputs   []string  `json:"outputs"`
	Inputs    []string  `json:"inputs"`
	LastSeen  time.Time `json:"lastSeen"`
}

type dataRequest struct {
	Data []int `json:"data"`
}

type destinationRequest struct {
	Addr string `json:"addr"`
}

func (s *Server) listUniverses(w http.ResponseWriter, _ *http.Request) {
	list := s.ctrl.Store().List()
	out := make([]universeJSON, len(list))
	for i, info := range list {
		out[i] = toUniverseJSON(info)
	}
	writeJSON(w, http.StatusOK, out)
}

func urlKey(r *http.Request) (universe.Key, error) {
	var parts [3]int
	for i, name := range []string{"net", "subnet", "universe"} {
		v, err := strconv.Atoi(chi.URLParam(r, name))
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, packet.ErrOutOfRange)
		}
		parts[i] = v
	}
	return universe.NewKey(parts[0], parts[1], parts[2])
}

func (s *Server) getUniverse(w http.ResponseWriter, r *http.Request) {
	k, err := urlKey(r)
	if err != nil {
		writeError(w, err)
		return
	}
	info, ok := s.ctrl.Store().Get(k)
	if !ok {
		writeError(w, fmt.Errorf("%s: %w", k, universe.ErrUnknownUniverse))
		return
	}
	writeJSON(w, http.StatusOK, toUniverseJSON(info))
}

func (s *Server) putUniverse(w http.ResponseWriter, r *http.Request) {
	k, err := urlKey(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req dataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data := make([]byte, len(req.Data))
	for i, v := range req.Data {
		if v < 0 || v > 255 {
			writeError(w, &packet.RangeError{Field: fmt.Sprintf("data[%d]", i), Value: v, Min: 0, Max: 255})
			return
		}
		data[i] = byte(v)
	}
	if err := s.ctrl.SetUniverseData(k.Net(), k.SubNet(), k.Universe(), data); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteUniverse(w http.ResponseWriter, r *http.Request) {
	k, err := urlKey(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ctrl.SetUniverseData(k.Net(), k.SubNet(), k.Universe(), nil); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseDestination accepts "ip" or "ip:port"; the port defaults to 6454.
func parseDestination(s string) (*net.UDPAddr, error) {
	host, port := s, packet.UDPPort
	if h, p, err := net.SplitHostPort(s); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 0xffff {
			return nil, fmt.Errorf("bad port %q: %w", p, packet.ErrOutOfRange)
		}
		host, port = h, n
	}
	ip := net.ParseIP(host).To4()
	if ip == nil {
		return nil, fmt.Errorf("%q is not an IPv4 address: %w", host, packet.ErrOutOfRange)
	}
	return &net.UDPAddr{IP: ip, Port: port}, nil
}

func (s *Server) addDestination(w http.ResponseWriter, r *http.Request) {
	k, err := urlKey(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req destinationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	addr, err := parseDestination(req.Addr)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ctrl.Store().AddDestination(k, addr); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeDestination(w http.ResponseWriter, r *http.Request) {
	k, err := urlKey(r)
	if err != nil {
		writeError(w, err)
		return
	}
	addr, err := parseDestination(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ctrl.Store().RemoveDestination(k, addr); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listNodes(w http.ResponseWriter, _ *http.Request) {
	nodes := s.ctrl.Nodes()
	out := make([]nodeJSON, len(nodes))
	for i, n := range nodes {
		out[i] = nodeJSON{
			IP:        n.IP.String(),
			BindIndex: n.BindIndex,
			ShortName: n.ShortName,
			LongName:  n.LongName,
			Report:    n.Report,
			Product:   n.Product.String(),
			Style:     n.Style.String(),
			LastSeen:  n.LastSeen,
		}
		for _, k := range n.Outputs {
			out[i].Outputs = append(out[i].Outputs, k.String())
		}
		for _, k := range n.Inputs {
			out[i].Inputs = append(out[i].Inputs, k.String())
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) poll(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctrl.SendPoll(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) timecode(w http.ResponseWriter, _ *http.Request) {
	tc := s.ctrl.LastTimeCode()
	if tc == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"type":    tc.Type.String(),
		"hours":   tc.Hours,
		"minutes": tc.Minutes,
		"seconds": tc.Seconds,
		"frames":  tc.Frames,
		"string":  tc.String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, packet.ErrOutOfRange), errors.Is(err, packet.ErrIndex):
		status = http.StatusBadRequest
	case errors.Is(err, universe.ErrUnknownUniverse):
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}
