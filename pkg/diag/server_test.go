package diag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/phi-robotics/motorlink/pkg/adapter"
	"github.com/phi-robotics/motorlink/pkg/ecat"
	"github.com/phi-robotics/motorlink/pkg/motor"
)

func newTestServer(t *testing.T) (*Server, *motor.Controller, *ecat.SimSlave, func()) {
	t.Helper()
	m := ecat.NewSimMaster()
	slave := m.AddSlave(0, 0xAAAA, 0xBBBB)
	ctrl, err := motor.New(motor.Config{
		CycleUS:  4000,
		Master:   m,
		Fallback: adapter.NewStandard(),
	})
	if err != nil {
		t.Fatalf("motor.New: %v", err)
	}
	s := New(ctrl, nil, func() {})
	return s, ctrl, slave, ctrl.Close
}

func TestRootAndStatus(t *testing.T) {
	s, ctrl, _, done := newTestServer(t)
	defer done()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET / = %d", resp.StatusCode)
	}

	ctrl.SetCommand(true, -1, 2500)
	resp, err = http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	var st StatusReply
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if !st.Run || st.Dir != -1 || st.Step != 2500 {
		t.Errorf("status = %+v", st)
	}
}

func TestControlEndpoint(t *testing.T) {
	s, ctrl, _, done := newTestServer(t)
	defer done()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/control", "application/json",
		strings.NewReader(`{"direction":"forward","step":1234}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /control = %d", resp.StatusCode)
	}
	cmd := ctrl.CommandState()
	if !cmd.Run || cmd.Direction != 1 || cmd.Step != 1234 {
		t.Errorf("command = %+v", cmd)
	}

	// Bad direction rejected.
	resp, err = http.Post(ts.URL+"/control", "application/json",
		strings.NewReader(`{"direction":"sideways","step":10}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad direction = %d, want 400", resp.StatusCode)
	}

	// GET on a control path rejected.
	resp, err = http.Get(ts.URL + "/control")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /control = %d, want 405", resp.StatusCode)
	}
}

func TestStopEndpoint(t *testing.T) {
	s, ctrl, _, done := newTestServer(t)
	defer done()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctrl.SetCommand(true, 1, 100)
	resp, err := http.Post(ts.URL+"/stop", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if cmd := ctrl.CommandState(); cmd.Run {
		t.Error("run still set after /stop")
	}
}

func TestShutdownInvokesStop(t *testing.T) {
	m := ecat.NewSimMaster()
	m.AddSlave(0, 0xAAAA, 0xBBBB)
	ctrl, err := motor.New(motor.Config{CycleUS: 4000, Master: m, Fallback: adapter.NewStandard()})
	if err != nil {
		t.Fatal(err)
	}
	defer ctrl.Close()
	called := false
	s := New(ctrl, nil, func() { called = true })
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/shutdown", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if !called {
		t.Error("shutdown hook not invoked")
	}
}

func TestDiagSnapshot(t *testing.T) {
	s, ctrl, slave, done := newTestServer(t)
	defer done()
	slave.ScriptStatus([]uint16{0x27})
	slave.SetActual(314)
	ctrl.Tick()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/diag")
	if err != nil {
		t.Fatal(err)
	}
	var d DiagReply
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(d.Axes) != 1 {
		t.Fatalf("axes = %d", len(d.Axes))
	}
	if d.Axes[0].Status != 0x27 || d.Axes[0].Actual != 314 || !d.Axes[0].Enabled {
		t.Errorf("axis = %+v", d.Axes[0])
	}
	if d.Axes[0].Adapter != "Standard" {
		t.Errorf("adapter = %q", d.Axes[0].Adapter)
	}
}

func TestWebsocketStream(t *testing.T) {
	s, ctrl, slave, done := newTestServer(t)
	defer done()
	slave.ScriptStatus([]uint16{0x27})
	ctrl.Tick()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	var d DiagReply
	if err := conn.ReadJSON(&d); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(d.Axes) != 1 || d.Axes[0].Status != 0x27 {
		t.Errorf("streamed diag = %+v", d)
	}
}
