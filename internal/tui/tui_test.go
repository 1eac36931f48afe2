package tui

import (
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chaz8081/focusband/internal/ble"
	"github.com/chaz8081/focusband/internal/broadcast"
	"github.com/chaz8081/focusband/internal/monitor"
)

// fakeController records which commands the UI issued.
type fakeController struct {
	state *broadcast.Value[monitor.UiState]

	mu    sync.Mutex
	calls []string
}

func newFakeController() *fakeController {
	return &fakeController{state: broadcast.New(monitor.UiState{})}
}

func (f *fakeController) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeController) Subscribe() *broadcast.Subscription[monitor.UiState] {
	return f.state.Subscribe()
}
func (f *fakeController) RequestConnectionToggle() { f.record("toggle") }
func (f *fakeController) StartMonitoring()         { f.record("start") }
func (f *fakeController) StopMonitoring()          { f.record("stop") }
func (f *fakeController) Disconnect()              { f.record("disconnect") }

var _ Controller = (*fakeController)(nil)

func testDevice(t *testing.T) ble.Peripheral {
	t.Helper()
	p, err := ble.NewPeripheral("Focus Band", ble.DefaultServiceUUID)
	if err != nil {
		t.Fatalf("NewPeripheral() error = %v", err)
	}
	return p
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update() returned %T, want Model", next)
	}
	return nm, cmd
}

func TestKeysIssueCommands(t *testing.T) {
	ctrl := newFakeController()
	m := New(ctrl, testDevice(t))

	m, _ = update(t, m, key("c"))
	m, _ = update(t, m, key("m"))
	m, _ = update(t, m, stateMsg(monitor.UiState{BleStatus: ble.Connected, IsMonitoring: true}))
	m, _ = update(t, m, key("m"))
	_, _ = update(t, m, key("d"))

	want := []string{"toggle", "start", "stop", "disconnect"}
	if got := strings.Join(ctrl.calls, ","); got != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", ctrl.calls, want)
	}
}

func TestInitialSnapshotArrivesFromSubscription(t *testing.T) {
	ctrl := newFakeController()
	ctrl.state.Store(monitor.UiState{BleStatus: ble.Scanning})
	m := New(ctrl, testDevice(t))

	msg := m.waitForState()()
	st, ok := msg.(stateMsg)
	if !ok {
		t.Fatalf("waitForState() produced %T, want stateMsg", msg)
	}
	if st.BleStatus != ble.Scanning {
		t.Errorf("BleStatus = %v, want Scanning", st.BleStatus)
	}
}

func TestQuitClosesSubscription(t *testing.T) {
	ctrl := newFakeController()
	m := New(ctrl, testDevice(t))

	_, cmd := update(t, m, key("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit the program")
	}
	if n := ctrl.state.Subscribers(); n != 0 {
		t.Errorf("Subscribers() = %d after quit, want 0", n)
	}
}

func TestViewShowsState(t *testing.T) {
	m := New(newFakeController(), testDevice(t))
	m, _ = update(t, m, stateMsg(monitor.UiState{
		BleStatus:              ble.Connected,
		IsMonitoring:           true,
		FocusScore:             73,
		HasBluetoothPermission: true,
	}))

	view := m.View()
	for _, want := range []string{"Focus Band", ble.DefaultServiceUUID, "Connected", "73", "granted", "stop monitoring", "c: disconnect"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestBar(t *testing.T) {
	tests := []struct {
		score  int
		filled int
	}{
		{0, 0},
		{50, 10},
		{100, 20},
		{-5, 0},
		{150, 20},
	}
	for _, tt := range tests {
		got := bar(tt.score)
		if n := strings.Count(got, "█"); n != tt.filled {
			t.Errorf("bar(%d) filled = %d, want %d", tt.score, n, tt.filled)
		}
	}
}
