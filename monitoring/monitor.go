// Package monitoring turns a running simulation into a small HTTP server so
// an operator can inspect it from outside the process: current virtual
// time, queue depth, registered clients, and host resource usage.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"

	"github.com/sarchlab/desim/des"
)

// Server exposes a read-only view of a *des.Scheduler over HTTP.
type Server struct {
	scheduler  *des.Scheduler
	portNumber int
}

// NewServer creates a Server that will report on s.
func NewServer(s *des.Scheduler) *Server {
	return &Server{scheduler: s}
}

// WithPortNumber fixes the listening port. Ports below 1000 are rejected
// (reserved range) in favor of an OS-assigned port, matching the caution a
// monitoring endpoint deserves on a shared host.
func (srv *Server) WithPortNumber(port int) *Server {
	if port < 1000 {
		fmt.Fprintf(os.Stderr,
			"monitoring: refusing port %d, using a random port instead\n", port)
		port = 0
	}
	srv.portNumber = port
	return srv
}

// Start launches the HTTP server in the background and returns the address
// it is listening on.
func (srv *Server) Start() (string, error) {
	r := mux.NewRouter()
	r.HandleFunc("/api/now", srv.now)
	r.HandleFunc("/api/queue", srv.queue)
	r.HandleFunc("/api/clients", srv.clients)
	r.HandleFunc("/api/resource", srv.resource)
	r.HandleFunc("/api/profile", srv.profile)

	addr := ":0"
	if srv.portNumber >= 1000 {
		addr = ":" + strconv.Itoa(srv.portNumber)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}

	actual := listener.Addr().(*net.TCPAddr)

	go func() {
		_ = http.Serve(listener, r)
	}()

	return actual.String(), nil
}

func (srv *Server) now(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]float64{"now": des.Now(srv.scheduler)})
}

func (srv *Server) queue(w http.ResponseWriter, _ *http.Request) {
	snap := srv.scheduler.Snapshot()
	writeJSON(w, map[string]any{
		"time":        snap.Time,
		"queue_len":   snap.QueueLen,
		"termination": snap.Termination.String(),
	})
}

func (srv *Server) clients(w http.ResponseWriter, _ *http.Request) {
	snap := srv.scheduler.Snapshot()
	writeJSON(w, map[string]any{"client_count": snap.Clients})
}

type resourceReport struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss"`
}

func (srv *Server) resource(w http.ResponseWriter, _ *http.Request) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	mem, err := p.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceReport{CPUPercent: cpuPercent, MemoryRSS: mem.RSS})
}

// profile captures one second of CPU profile from the simulation process,
// parses it with the pprof profile package and returns the parsed profile
// encoded as JSON, so a caller can diagnose a slow run without attaching a
// separate tool.
func (srv *Server) profile(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := pprof.StartCPUProfile(&buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	time.Sleep(time.Second)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}
