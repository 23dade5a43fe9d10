// Package monitoring turns a booted kernel into a server that allows
// external inspection of the process table and the page ownership state.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/betrusted-io/xous-core-sub009/kernel"
	"github.com/betrusted-io/xous-core-sub009/kernel/defs"
)

// Monitor serves the inspection API for one kernel instance.
type Monitor struct {
	kernel     *kernel.Kernel
	portNumber int
	url        string
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
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

// RegisterKernel registers the kernel to be monitored.
func (m *Monitor) RegisterKernel(k *kernel.Kernel) {
	m.kernel = k
}

// StartServer starts the monitor as a web server.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()

	r.HandleFunc("/api/processes", m.listProcesses)
	r.HandleFunc("/api/process/{pid}", m.listProcessDetails)
	r.HandleFunc("/api/memory", m.listMemory)
	r.HandleFunc("/api/field/{fields}", m.listFieldValue)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.url = fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring kernel with %s\n", m.url)

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()
}

// OpenBrowser points the local browser at the running server.
func (m *Monitor) OpenBrowser() {
	err := browser.OpenURL(m.url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open browser: %s\n", err)
	}
}

type processRsp struct {
	PID    defs.PID `json:"pid"`
	State  string   `json:"state"`
	Parent defs.PID `json:"parent"`
	Satp   uint32   `json:"satp"`
}

func (m *Monitor) listProcesses(w http.ResponseWriter, _ *http.Request) {
	procs := m.kernel.Services.Processes()

	rsp := make([]processRsp, 0, len(procs))
	for pid, p := range procs {
		rsp = append(rsp, processRsp{
			PID:    pid,
			State:  p.State.String(),
			Parent: p.Parent,
			Satp:   p.Mapping.Satp(),
		})
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) listProcessDetails(w http.ResponseWriter, r *http.Request) {
	pidNumber, err := strconv.Atoi(mux.Vars(r)["pid"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	proc, err := m.kernel.Services.GetProcess(defs.PID(pidNumber))
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		_, err = w.Write([]byte("Process not found"))
		dieOnErr(err)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&proc)
	serializer.SetMaxDepth(2)
	err = serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) listMemory(w http.ResponseWriter, _ *http.Request) {
	bytes, err := json.Marshal(m.kernel.Mem.RegionStats())
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	fields := strings.Split(mux.Vars(r)["fields"], ".")

	serializer := goseth.NewSerializer()
	serializer.SetRoot(m.kernel)
	serializer.SetMaxDepth(1)

	err := serializer.SetEntryPoint(fields)
	dieOnErr(err)

	err = serializer.Serialize(w)
	dieOnErr(err)
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

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
