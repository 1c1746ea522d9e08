package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/nvlviz/pkg/errors"
	"github.com/matzehuels/nvlviz/pkg/graph"
	"github.com/matzehuels/nvlviz/pkg/live"
	"github.com/matzehuels/nvlviz/pkg/pipeline"
	"github.com/matzehuels/nvlviz/pkg/render/html"
)

// maxBodyBytes caps uploaded graphs.
const maxBodyBytes = 64 << 20

type errorBody struct {
	Error struct {
		Code    errors.Code `json:"code"`
		Message string      `json:"message"`
	} `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	var body errorBody
	body.Error.Code = errors.GetCode(err)
	if body.Error.Code == "" {
		body.Error.Code = errors.ErrCodeInternal
	}
	body.Error.Message = errors.UserMessage(err)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	if len(s.opts.Bundle) == 0 {
		s.writeError(w, r, errors.New(errors.ErrCodeNotFound, "no engine bundle configured"))
		return
	}
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(s.opts.Bundle)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"graphs": infos})
}

// load fetches the graph named in the route.
func (s *Server) load(w http.ResponseWriter, r *http.Request) (*graph.VisualizationGraph, bool) {
	g, err := s.store.Load(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return g, true
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	g, ok := s.load(w, r)
	if !ok {
		return
	}
	data, err := graph.Marshal(g)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	g, err := graph.Read(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name := chi.URLParam(r, "name")
	if err := s.store.Save(r.Context(), name, g); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("graph saved", "name", name, "nodes", len(g.Nodes), "relationships", len(g.Relationships))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pageOptions(name string) html.Options {
	opts := html.Options{
		Title:           name,
		Config:          s.opts.Config,
		DisableTooltip:  s.opts.DisableTooltip,
		MaxAllowedNodes: s.opts.MaxAllowedNodes,
		BundleURL:       s.opts.BundleURL,
		Logger:          s.logger,
	}
	if opts.BundleURL == "" {
		opts.BundleURL = BundlePath
	}
	return opts
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, g *graph.VisualizationGraph, opts html.Options) {
	page, err := html.Render(g, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) handleStaticPage(w http.ResponseWriter, r *http.Request) {
	g, ok := s.load(w, r)
	if !ok {
		return
	}
	s.writePage(w, r, g, s.pageOptions(chi.URLParam(r, "name")))
}

func (s *Server) handleLivePage(w http.ResponseWriter, r *http.Request) {
	g, ok := s.load(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	opts := s.pageOptions(name)
	// The session reports the graph name as its container.
	opts.ContainerID = name
	opts.Live = &html.LiveOptions{SocketPath: "/graphs/" + name + "/ws"}
	s.writePage(w, r, g, opts)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	g, ok := s.load(w, r)
	if !ok {
		return
	}
	if n, limit := len(g.Nodes), s.maxNodes(); n > limit {
		s.writeError(w, r, errors.New(errors.ErrCodeTooManyNodes, "Too many nodes (%d) to render", n))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	name := chi.URLParam(r, "name")
	session := live.NewSession(conn,
		live.WithLogger(s.logger),
		live.WithTimeout(s.opts.SessionTimeout),
		live.WithContainer(name))
	if err := session.Serve(r.Context(), g, s.opts.Config); err != nil {
		s.logger.Warn("live session ended", "graph", name, "error", err)
		return
	}
	s.logger.Debug("live session closed", "graph", name)
}

// exportTypes are the formats served by handleExport.
var exportTypes = map[string]string{
	pipeline.FormatJSON: "application/json",
	pipeline.FormatDOT:  "text/vnd.graphviz; charset=utf-8",
	pipeline.FormatSVG:  "image/svg+xml",
	pipeline.FormatPNG:  "image/png",
	pipeline.FormatPDF:  "application/pdf",
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	contentType, ok := exportTypes[format]
	if !ok {
		if err := pipeline.ValidateFormat(format); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidFormat, "%s is not available as an export", format))
		return
	}
	g, ok := s.load(w, r)
	if !ok {
		return
	}
	if n, limit := len(g.Nodes), s.maxNodes(); n > limit {
		s.writeError(w, r, errors.New(errors.ErrCodeTooManyNodes, "Too many nodes (%d) to render", n))
		return
	}

	q := r.URL.Query()
	opts := pipeline.Options{
		Formats:  []string{format},
		Detailed: q.Get("detailed") == "true",
		Refresh:  q.Get("refresh") == "true",
		Logger:   s.logger,
	}
	if v := q.Get("scale"); v != "" {
		scale, err := strconv.ParseFloat(v, 64)
		if err != nil || scale <= 0 {
			s.writeError(w, r, errors.New(errors.ErrCodeInvalidOption, "invalid scale %q", v))
			return
		}
		opts.Scale = scale
	}
	result, err := s.opts.Runner.Execute(r.Context(), g, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("ETag", `"`+result.GraphHash[:16]+`"`)
	if result.CacheInfo.RenderHit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	_, _ = w.Write(result.Artifacts[format])
}

func (s *Server) maxNodes() int {
	if s.opts.MaxAllowedNodes > 0 {
		return s.opts.MaxAllowedNodes
	}
	return html.DefaultMaxAllowedNodes
}
