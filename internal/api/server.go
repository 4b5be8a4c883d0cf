// Package api serves the node's JSON HTTP interface: board description, the
// latest frame, recorded sessions and raw board commands.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/openbci/internal/boards"
	"github.com/banshee-data/openbci/internal/db"
	"github.com/banshee-data/openbci/internal/frame"
	"github.com/banshee-data/openbci/internal/httputil"
	"github.com/banshee-data/openbci/internal/monitoring"
	"github.com/banshee-data/openbci/internal/openbci"
	"github.com/banshee-data/openbci/internal/timeutil"
	"github.com/banshee-data/openbci/internal/version"
)

// Node is the part of *openbci.Node the API reads and drives.
type Node interface {
	Board() boards.Descriptor
	Labels() []string
	Command() string
	SessionID() string
	Stats() openbci.Stats
	SendCommand(cmd string) (string, error)
}

type Server struct {
	node   Node
	latest *frame.Latest
	db     *db.DB
	clock  timeutil.Clock
	logf   monitoring.Logger
}

// NewServer returns a server for node. database may be nil when recording is
// disabled; the session routes then answer 503.
func NewServer(node Node, latest *frame.Latest, database *db.DB) *Server {
	return &Server{
		node:   node,
		latest: latest,
		db:     database,
		clock:  timeutil.RealClock{},
		logf:   monitoring.OrDefault(nil),
	}
}

// SetClock replaces the clock used to stamp recorded commands.
func (s *Server) SetClock(c timeutil.Clock) {
	s.clock = c
}

// SetLogger replaces the diagnostic logger.
func (s *Server) SetLogger(l monitoring.Logger) {
	s.logf = monitoring.OrDefault(l)
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/board", s.showBoard)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/frames/latest", s.showLatestFrame)
	mux.HandleFunc("/api/command", s.sendCommand)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/{id}", s.showSession)
	mux.HandleFunc("/api/sessions/{id}/samples", s.listSamples)
	mux.HandleFunc("/api/sessions/{id}/commands", s.listCommands)
	return mux
}

// BoardInfo describes the running board.
type BoardInfo struct {
	Board     string   `json:"board"`
	ID        int      `json:"board_id"`
	Rate      int      `json:"rate"`
	NumRows   int      `json:"num_rows"`
	Transport string   `json:"transport"`
	Daisy     bool     `json:"daisy"`
	Labels    []string `json:"labels"`
	Command   string   `json:"command,omitempty"`
	Session   string   `json:"session"`
}

func (s *Server) showBoard(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	b := s.node.Board()
	httputil.WriteJSONOK(w, BoardInfo{
		Board:     string(b.Board),
		ID:        b.ID,
		Rate:      b.SamplingRate,
		NumRows:   b.NumRows,
		Transport: b.Transport.String(),
		Daisy:     b.Daisy,
		Labels:    s.node.Labels(),
		Command:   s.node.Command(),
		Session:   s.node.SessionID(),
	})
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, s.node.Stats())
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, version.Get())
}

func (s *Server) showLatestFrame(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	f, ok := s.latest.Get()
	if !ok {
		httputil.NotFound(w, "no frame emitted yet")
		return
	}
	httputil.WriteJSONOK(w, f)
}

// CommandResult is the response of POST /api/command.
type CommandResult struct {
	Command  string `json:"command"`
	Response string `json:"response"`
}

func (s *Server) sendCommand(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}

	var command string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Command string `json:"command"`
		}
		if err := httputil.DecodeJSON(r.Body, &body); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		command = body.Command
	} else {
		command = r.FormValue("command")
	}
	if command == "" {
		httputil.BadRequest(w, "missing 'command'")
		return
	}

	resp, err := s.node.SendCommand(command)
	if s.db != nil {
		rec := db.Command{Session: s.node.SessionID(), Command: command, Response: resp, Sent: s.clock.Now()}
		if err != nil {
			rec.Error = err.Error()
		}
		// the session row only exists once a frame was recorded
		if _, rerr := s.db.RecordCommand(rec); rerr != nil {
			s.logf("failed to record command %q: %v", command, rerr)
		}
	}
	if err != nil {
		if errors.Is(err, openbci.ErrTerminated) {
			httputil.ServiceUnavailable(w, err.Error())
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to send command: %v", err))
		return
	}
	httputil.WriteJSONOK(w, CommandResult{Command: command, Response: resp})
}

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.db == nil {
		httputil.ServiceUnavailable(w, "recording is disabled")
		return false
	}
	return true
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) || !s.requireDB(w) {
		return
	}
	limit, err := intParam(r, "limit", 100)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	sessions, err := s.db.Sessions(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) showSession(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) || !s.requireDB(w) {
		return
	}
	session, err := s.db.GetSession(r.PathValue("id"))
	if errors.Is(err, db.ErrSessionNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, session)
}

func (s *Server) listSamples(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) || !s.requireDB(w) {
		return
	}
	q := db.SampleQuery{SessionID: r.PathValue("id")}
	var err error
	if q.Limit, err = intParam(r, "limit", 1000); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if q.From, err = timeParam(r, "from"); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if q.To, err = timeParam(r, "to"); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	samples, err := s.db.Samples(q)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list samples: %v", err))
		return
	}
	if samples == nil {
		samples = []db.Sample{}
	}
	httputil.WriteJSONOK(w, samples)
}

func (s *Server) listCommands(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) || !s.requireDB(w) {
		return
	}
	commands, err := s.db.Commands(r.PathValue("id"))
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if commands == nil {
		commands = []db.Command{}
	}
	httputil.WriteJSONOK(w, commands)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid '%s' parameter", name)
	}
	return n, nil
}

// timeParam accepts RFC 3339 or fractional Unix seconds.
func timeParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return timeutil.FromUnixSeconds(f), nil
	}
	return time.Time{}, fmt.Errorf("invalid '%s' parameter", name)
}
