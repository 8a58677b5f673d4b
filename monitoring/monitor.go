// Package monitoring serves the state of a running machine over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
	"go.uber.org/zap"

	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/mem/vm"
	"github.com/sarchlab/exokern/sim"
)

// Machine is what the monitor can look at. *kern.Kernel implements it.
type Machine interface {
	NumCPU() int
	Envs() []env.Info
	EnvInfo(id env.ID) (env.Info, error)
	Pages(id env.ID) ([]vm.Page, error)
	Audit() error
	FramePool() *vm.FramePool
}

// EventCounts reports how often each hook position fired.
type EventCounts interface {
	Snapshot() map[string]uint64
}

// Monitor turns a simulation into a server and allows external monitoring of
// the machine.
type Monitor struct {
	machine     Machine
	events      EventCounts
	portNumber  int
	openBrowser bool
	logger      *zap.Logger

	profileDuration time.Duration

	server *http.Server

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		logger:          zap.NewNop(),
		profileDuration: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitoring page in a browser.
func (m *Monitor) WithBrowser() *Monitor {
	m.openBrowser = true
	return m
}

// WithLogger sets the logger of the monitor.
func (m *Monitor) WithLogger(logger *zap.Logger) *Monitor {
	m.logger = logger.Named("monitor")
	return m
}

// RegisterMachine registers the machine to be monitored.
func (m *Monitor) RegisterMachine(machine Machine) {
	m.machine = machine
}

// RegisterEventCounts registers the source of /api/events.
func (m *Monitor) RegisterEventCounts(c EventCounts) {
	m.events = c
}

// CreateProgressBar creates a bar that follows the environments of a run,
// expecting the given number of them.
func (m *Monitor) CreateProgressBar(name string, expected uint64) *ProgressBar {
	bar := &ProgressBar{state: EnvProgress{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Expected:  expected,
	}}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/machine", m.describeMachine)
	r.HandleFunc("/api/envs", m.listEnvs)
	r.HandleFunc("/api/env/{id}", m.envDetails)
	r.HandleFunc("/api/pages/{id}", m.listPages)
	r.HandleFunc("/api/audit", m.audit)
	r.HandleFunc("/api/events", m.listEvents)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts the monitor as a web server and returns the address it
// listens on.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	m.server = &http.Server{
		Handler:           m.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if !errors.Is(err, http.ErrServerClosed) {
			dieOnErr(err)
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			m.logger.Warn("cannot open browser", zap.Error(err))
		}
	}

	return url
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

type machineRsp struct {
	NumCPU     int `json:"num_cpu"`
	NumEnvs    int `json:"num_envs"`
	FramesUsed int `json:"frames_used"`
	FramesFree int `json:"frames_free"`
}

func (m *Monitor) describeMachine(w http.ResponseWriter, _ *http.Request) {
	pool := m.machine.FramePool()

	writeJSON(w, machineRsp{
		NumCPU:     m.machine.NumCPU(),
		NumEnvs:    len(m.machine.Envs()),
		FramesUsed: pool.InUse(),
		FramesFree: pool.Free(),
	})
}

type envRsp struct {
	ID     string `json:"id"`
	Parent string `json:"parent"`
	Type   string `json:"type"`
	Status string `json:"status"`
	CPU    int    `json:"cpu"`
	Runs   int    `json:"runs"`
	Break  string `json:"break"`
}

func toEnvRsp(info env.Info) envRsp {
	return envRsp{
		ID:     info.ID.String(),
		Parent: info.ParentID.String(),
		Type:   info.Type.String(),
		Status: info.Status.String(),
		CPU:    info.CPU,
		Runs:   info.Runs,
		Break:  fmt.Sprintf("%08x", info.Break),
	}
}

func (m *Monitor) listEnvs(w http.ResponseWriter, _ *http.Request) {
	infos := m.machine.Envs()

	rsp := make([]envRsp, 0, len(infos))
	for _, info := range infos {
		rsp = append(rsp, toEnvRsp(info))
	}

	writeJSON(w, rsp)
}

func (m *Monitor) envDetails(w http.ResponseWriter, r *http.Request) {
	info, ok := m.findEnvOr404(w, r)
	if !ok {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&info)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type pageRsp struct {
	VA    string `json:"va"`
	PPN   uint64 `json:"ppn"`
	Flags string `json:"flags"`
}

func (m *Monitor) listPages(w http.ResponseWriter, r *http.Request) {
	info, ok := m.findEnvOr404(w, r)
	if !ok {
		return
	}

	pages, err := m.machine.Pages(info.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	rsp := make([]pageRsp, 0, len(pages))
	for _, p := range pages {
		rsp = append(rsp, pageRsp{
			VA:    fmt.Sprintf("%08x", p.VAddr),
			PPN:   p.Frame.PPN,
			Flags: p.Flags.String(),
		})
	}

	writeJSON(w, rsp)
}

type auditRsp struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (m *Monitor) audit(w http.ResponseWriter, _ *http.Request) {
	rsp := auditRsp{OK: true}

	if err := m.machine.Audit(); err != nil {
		rsp = auditRsp{Error: err.Error()}
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listEvents(w http.ResponseWriter, _ *http.Request) {
	if m.events == nil {
		writeJSON(w, map[string]uint64{})
		return
	}

	writeJSON(w, m.events.Snapshot())
}

func (m *Monitor) findEnvOr404(
	w http.ResponseWriter,
	r *http.Request,
) (env.Info, bool) {
	idStr := mux.Vars(r)["id"]

	n, err := strconv.ParseUint(idStr, 16, 32)
	if err != nil {
		http.Error(w, "Invalid environment id "+idStr, http.StatusBadRequest)
		return env.Info{}, false
	}

	info, err := m.machine.EnvInfo(env.ID(int32(uint32(n))))
	if err != nil {
		http.Error(w, "Environment not found", http.StatusNotFound)
		return env.Info{}, false
	}

	return info, true
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	rsp := make([]EnvProgress, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		rsp = append(rsp, b.Progress())
	}

	writeJSON(w, rsp)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
