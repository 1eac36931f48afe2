// Package monitor coordinates the simulated BLE link with focus-score
// sampling. A Controller mirrors the link status into its UiState, gates the
// sampling loop on the Connected state, and cancels its tasks cleanly when
// they are stopped or superseded.
//
// Commands never fail: an invalid request (starting while disconnected,
// stopping while idle, anything after Dispose) is ignored.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chaz8081/focusband/internal/ble"
	"github.com/chaz8081/focusband/internal/broadcast"
	"github.com/chaz8081/focusband/internal/focus"
)

// UiState is the complete snapshot presented to the front end. Snapshots are
// replaced wholesale; a reader never sees a partially applied change.
type UiState struct {
	FocusScore             int        `json:"focus_score"`
	IsMonitoring           bool       `json:"is_monitoring"`
	BleStatus              ble.Status `json:"ble_status"`
	HasBluetoothPermission bool       `json:"has_bluetooth_permission"`
}

// PermissionRequester asks for Bluetooth permission and reports whether it
// was granted.
type PermissionRequester func() bool

// AlwaysGrant is the simulated permission flow: every request succeeds.
func AlwaysGrant() bool { return true }

// Options configures a Controller.
type Options struct {
	ScanDelay      time.Duration // Scanning -> Connecting (default 2s)
	ConnectDelay   time.Duration // Connecting -> Connected (default 2s)
	SampleInterval time.Duration // between focus samples (default 5s)

	Permission PermissionRequester // default AlwaysGrant
	Source     focus.Source        // default focus.RandomSource
	Clock      clockwork.Clock     // default real clock
}

// DefaultOptions returns the reference timings.
func DefaultOptions() Options {
	return Options{
		ScanDelay:      2 * time.Second,
		ConnectDelay:   2 * time.Second,
		SampleInterval: 5 * time.Second,
	}
}

// Controller owns the UiState and three cancellable tasks: the status
// observer, the connection sequence, and the sampling loop. All methods are
// safe for concurrent use.
type Controller struct {
	sim   *ble.Simulator
	state *broadcast.Value[UiState]
	opts  Options

	// mu serializes commands and task publishes. Each task publishes only
	// while holding mu and after confirming its own context is live, so a
	// cancel issued under mu is final.
	mu             sync.Mutex
	disposed       bool
	cancelObserver context.CancelFunc
	cancelConnect  context.CancelFunc
	cancelSampling context.CancelFunc

	wg sync.WaitGroup
}

// New creates a Controller bound to sim and starts its status observer.
// Call Dispose when done.
func New(sim *ble.Simulator, opts Options) *Controller {
	def := DefaultOptions()
	if opts.ScanDelay <= 0 {
		opts.ScanDelay = def.ScanDelay
	}
	if opts.ConnectDelay <= 0 {
		opts.ConnectDelay = def.ConnectDelay
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = def.SampleInterval
	}
	if opts.Permission == nil {
		opts.Permission = AlwaysGrant
	}
	if opts.Source == nil {
		opts.Source = focus.RandomSource{}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	c := &Controller{
		sim:   sim,
		state: broadcast.New(UiState{}),
		opts:  opts,
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelObserver = cancel
	sub := sim.Observe()
	c.wg.Add(1)
	go c.observe(ctx, sub)

	return c
}

// Device returns the simulated band this controller is bound to.
func (c *Controller) Device() ble.Peripheral {
	return c.sim.Peripheral()
}

// State returns the current snapshot.
func (c *Controller) State() UiState {
	return c.state.Load()
}

// Subscribe streams snapshots, starting with the current one. Close the
// subscription when done.
func (c *Controller) Subscribe() *broadcast.Subscription[UiState] {
	return c.state.Subscribe()
}

// RequestConnectionToggle is the connect button. Without permission it asks
// for it and connects once granted. With permission it connects from
// Disconnected and disconnects from any other status.
func (c *Controller) RequestConnectionToggle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}

	st := c.state.Load()
	if !st.HasBluetoothPermission {
		granted := c.opts.Permission()
		c.state.Update(func(s UiState) UiState {
			s.HasBluetoothPermission = granted
			return s
		})
		if !granted {
			slog.Info("[MONITOR] bluetooth permission denied")
			return
		}
		slog.Info("[MONITOR] bluetooth permission granted")
		c.beginConnectionLocked()
		return
	}

	if st.BleStatus == ble.Disconnected {
		c.beginConnectionLocked()
	} else {
		c.disconnectLocked()
	}
}

// BeginConnectionSequence starts the timed Scanning -> Connecting ->
// Connected sequence, cancelling any sequence already in flight.
func (c *Controller) BeginConnectionSequence() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.beginConnectionLocked()
}

// beginConnectionLocked supersedes any running sequence (caller must hold mu).
func (c *Controller) beginConnectionLocked() {
	if c.cancelConnect != nil {
		c.cancelConnect()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelConnect = cancel

	// The first phase is published before returning so the caller observes
	// Scanning without waiting on the scheduler.
	c.sim.SetStatus(ble.Scanning)
	slog.Info("[BLE] scanning", "device", c.sim.Peripheral().Name)

	c.wg.Add(1)
	go c.runConnection(ctx)
}

func (c *Controller) runConnection(ctx context.Context) {
	defer c.wg.Done()

	if err := focus.Sleep(ctx, c.opts.Clock, c.opts.ScanDelay); err != nil {
		return
	}
	if !c.publishStatus(ctx, ble.Connecting) {
		return
	}
	if err := focus.Sleep(ctx, c.opts.Clock, c.opts.ConnectDelay); err != nil {
		return
	}
	if c.publishStatus(ctx, ble.Connected) {
		slog.Info("[BLE] connected", "device", c.sim.Peripheral().String())
	}
}

// publishStatus sets st unless ctx was cancelled, checked under mu.
func (c *Controller) publishStatus(ctx context.Context, st ble.Status) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	c.sim.SetStatus(st)
	return true
}

// Disconnect cancels any connection sequence and sets the link to
// Disconnected. The snapshot shows Disconnected with monitoring stopped
// before Disconnect returns.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disconnectLocked()
}

func (c *Controller) disconnectLocked() {
	if c.cancelConnect != nil {
		c.cancelConnect()
		c.cancelConnect = nil
	}
	c.sim.SetStatus(ble.Disconnected)

	// The mirror is set here too so a command issued right after Disconnect
	// sees Disconnected. The observer reapplies the same snapshot later.
	if c.markDisconnectedLocked() {
		slog.Info("[MONITOR] monitoring stopped")
	}
	slog.Info("[BLE] disconnected", "device", c.sim.Peripheral().Name)
}

// markDisconnectedLocked cancels sampling and writes Disconnected together
// with the monitoring reset in one snapshot. It reports whether monitoring
// was active.
func (c *Controller) markDisconnectedLocked() bool {
	if c.cancelSampling != nil {
		c.cancelSampling()
		c.cancelSampling = nil
	}
	wasMonitoring := false
	c.state.Update(func(s UiState) UiState {
		wasMonitoring = s.IsMonitoring
		s.BleStatus = ble.Disconnected
		s.IsMonitoring = false
		s.FocusScore = 0
		return s
	})
	return wasMonitoring
}

// StartMonitoring starts the sampling loop. Ignored unless the mirrored
// status is Connected and monitoring is not already active.
func (c *Controller) StartMonitoring() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}

	// The mirror can trail the simulator by one observer step; require both.
	st := c.state.Load()
	if st.IsMonitoring || st.BleStatus != ble.Connected || c.sim.Status() != ble.Connected {
		slog.Debug("[MONITOR] start ignored", "monitoring", st.IsMonitoring, "status", st.BleStatus)
		return
	}
	c.state.Update(func(s UiState) UiState {
		s.IsMonitoring = true
		return s
	})

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelSampling = cancel
	sampler := focus.NewSampler(c.opts.Source, c.opts.Clock, c.opts.SampleInterval)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = sampler.Run(ctx, func(score int) { c.publishScore(ctx, score) })
	}()
	slog.Info("[MONITOR] monitoring started", "interval", c.opts.SampleInterval)
}

// publishScore records a sample unless its sampling task was cancelled.
func (c *Controller) publishScore(ctx context.Context, score int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	c.state.Update(func(s UiState) UiState {
		s.FocusScore = score
		return s
	})
	slog.Debug("[MONITOR] focus sample", "score", score)
}

// StopMonitoring cancels the sampling loop and resets the score. Ignored
// when monitoring is not active.
func (c *Controller) StopMonitoring() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.stopMonitoringLocked()
}

func (c *Controller) stopMonitoringLocked() {
	if !c.state.Load().IsMonitoring {
		return
	}
	if c.cancelSampling != nil {
		c.cancelSampling()
		c.cancelSampling = nil
	}
	c.state.Update(func(s UiState) UiState {
		s.IsMonitoring = false
		s.FocusScore = 0
		return s
	})
	slog.Info("[MONITOR] monitoring stopped")
}

// observe mirrors every published status into the UiState and forces
// monitoring off on Disconnected.
func (c *Controller) observe(ctx context.Context, sub *broadcast.Subscription[ble.Status]) {
	defer c.wg.Done()
	defer sub.Close()

	for {
		st, err := sub.Next(ctx)
		if err != nil {
			return
		}
		c.applyStatus(ctx, st)
	}
}

func (c *Controller) applyStatus(ctx context.Context, st ble.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	if st != ble.Disconnected {
		c.state.Update(func(s UiState) UiState {
			s.BleStatus = st
			return s
		})
		return
	}

	if c.markDisconnectedLocked() {
		slog.Info("[MONITOR] link lost, monitoring stopped")
	}
}

// Dispose cancels every task and waits for them to exit. No state changes
// once Dispose returns. Safe to call more than once.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	for _, cancel := range []context.CancelFunc{c.cancelSampling, c.cancelConnect, c.cancelObserver} {
		if cancel != nil {
			cancel()
		}
	}
	c.cancelSampling, c.cancelConnect, c.cancelObserver = nil, nil, nil
	c.mu.Unlock()

	c.wg.Wait()
	slog.Debug("[MONITOR] disposed")
}
