package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"

	"tomato/internal/config"
	"tomato/internal/event"
	"tomato/internal/ipc"
	"tomato/internal/notify"
	"tomato/internal/pomodoro"
	"tomato/internal/report"
	"tomato/internal/storage"
	"tomato/internal/storage/boltdb"
	"tomato/internal/web"

	sqlitestore "tomato/internal/storage/sqlite"
)

const (
	eventBuffer  = 64
	saveTimeout  = 2 * time.Second
	reportMaxAge = 366
)

type App struct {
	cfg     *config.Config
	storage storage.Storage
	engine  *pomodoro.Engine
	session string

	toast      *notify.Toast
	desktop    *notify.Desktop
	dispatcher *notify.Dispatcher
	web        *web.Server

	// --- Socket Handling ---
	socketPath string
	listener   *net.UnixListener

	wg     conc.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// OpenStorage returns the uninitialized backend named by backend.
func OpenStorage(backend, path string) (storage.Storage, error) {
	switch backend {
	case "sqlite", "":
		return sqlitestore.NewSQLiteStore(path), nil
	case "bolt":
		return boltdb.NewBoltStore(path), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", backend)
}

func NewApp(cfg *config.Config) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:        cfg,
		session:    uuid.NewString(),
		socketPath: cfg.SocketPath,
		ctx:        ctx,
		cancel:     cancel,
	}
	if a.socketPath == "" {
		a.socketPath = ipc.DefaultSocketPath
	}

	// Initialize Storage
	store, err := OpenStorage(cfg.StorageBackend, cfg.DatabasePath)
	if err != nil {
		cancel()
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.storage = store

	a.engine = pomodoro.New(
		pomodoro.NewSettingsStore(store, cfg.Pomodoro.Settings()),
		pomodoro.NewProgressStore(store),
		pomodoro.Options{
			TickInterval:   cfg.TickInterval(),
			AutoStartDelay: cfg.AutoStartDelay(),
		},
	)

	a.toast = notify.NewToast(cfg.Notifications.Toast)
	a.desktop = notify.NewDesktop("tomato", cfg.Notifications.Desktop)
	a.dispatcher = notify.NewDispatcher(a.toast, a.desktop)

	if cfg.HTTPAddr != "" {
		a.web = web.NewServer(a.engine, a.summary)
	}

	return a, nil
}

// setupSocket checks for existing socket and creates the listener
func (a *App) setupSocket() error {
	if _, err := os.Stat(a.socketPath); err == nil {
		conn, err := net.DialTimeout("unix", a.socketPath, 1*time.Second)
		if err == nil {
			// Another instance answered
			conn.Close()
			return fmt.Errorf("socket %s already active, another instance might be running", a.socketPath)
		}
		log.Printf("Stale socket file found at %s, removing.", a.socketPath)
		if err := os.Remove(a.socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket file %s: %w", a.socketPath, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("error checking socket file %s: %w", a.socketPath, err)
	}

	addr, err := net.ResolveUnixAddr("unix", a.socketPath)
	if err != nil {
		return fmt.Errorf("failed to resolve unix addr %s: %w", a.socketPath, err)
	}

	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on socket %s: %w", a.socketPath, err)
	}

	a.listener = listener
	log.Printf("Listening for commands on %s", a.socketPath)
	return nil
}

// listenForCommands accepts connections and handles them
func (a *App) listenForCommands() {
	defer log.Println("Socket command listener stopped.")

	for {
		conn, err := a.listener.AcceptUnix()
		if err != nil {
			select {
			case <-a.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Failed to accept connection: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		a.wg.Go(func() { a.handleConnection(conn) })
	}
}

// handleConnection reads command, processes it, and sends response
func (a *App) handleConnection(conn *net.UnixConn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var cmd ipc.Command
	if err := decoder.Decode(&cmd); err != nil {
		if err != io.EOF {
			log.Printf("Failed to decode command: %v", err)
		}
		_ = encoder.Encode(ipc.Response{Success: false, Message: "Failed to decode command: " + err.Error()})
		return
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	log.Printf("Received command: %s", cmd.Name)

	response := a.processCommand(cmd)

	if err := encoder.Encode(response); err != nil {
		log.Printf("Failed to send response: %v", err)
	}
}

// processCommand routes the command to the correct handler
func (a *App) processCommand(cmd ipc.Command) ipc.Response {
	switch cmd.Name {
	case ipc.CmdPing:
		return ipc.Response{Success: true, Message: "pong"}

	case ipc.CmdStart:
		a.engine.Start()
		return a.status("Timer started")

	case ipc.CmdPause:
		a.engine.Pause()
		return a.status("Timer paused")

	case ipc.CmdReset:
		a.engine.Reset()
		return a.status("Timer reset")

	case ipc.CmdSkip:
		a.engine.Skip()
		return a.status("Phase skipped")

	case ipc.CmdChangeType:
		var args ipc.ChangeTypeArgs
		if err := mapToStruct(cmd.Args, &args); err != nil {
			return ipc.Response{Success: false, Message: fmt.Sprintf("Invalid args for %s: %v", cmd.Name, err)}
		}
		phase, err := pomodoro.ParsePhase(args.Phase)
		if err != nil {
			return ipc.Response{Success: false, Message: err.Error()}
		}
		if err := a.engine.ChangeType(phase); err != nil {
			return ipc.Response{Success: false, Message: err.Error()}
		}
		return a.status(fmt.Sprintf("Switched to %s", phase))

	case ipc.CmdUpdateSettings:
		var args ipc.UpdateSettingsArgs
		if err := mapToStruct(cmd.Args, &args); err != nil {
			return ipc.Response{Success: false, Message: fmt.Sprintf("Invalid args for %s: %v", cmd.Name, err)}
		}
		if args.Empty() {
			return ipc.Response{Success: false, Message: "No settings to update"}
		}
		if err := a.engine.UpdateSettings(args); err != nil {
			return ipc.Response{Success: false, Message: err.Error()}
		}
		return ipc.NewResponse("Settings updated", a.engine.Settings())

	case ipc.CmdGetStatus:
		return a.status("")

	case ipc.CmdGetSettings:
		return ipc.NewResponse("", a.engine.Settings())

	case ipc.CmdReport:
		var args ipc.ReportArgs
		if err := mapToStruct(cmd.Args, &args); err != nil {
			return ipc.Response{Success: false, Message: fmt.Sprintf("Invalid args for %s: %v", cmd.Name, err)}
		}
		if args.Days < 1 || args.Days > reportMaxAge {
			return ipc.Response{Success: false, Message: fmt.Sprintf("days must be between 1 and %d", reportMaxAge)}
		}
		summary, err := a.summary(a.ctx, args.Days)
		if err != nil {
			return ipc.Response{Success: false, Message: err.Error()}
		}
		return ipc.NewResponse("", summary)

	default:
		return ipc.Response{Success: false, Message: fmt.Sprintf("Unknown command: %s", cmd.Name)}
	}
}

func (a *App) status(message string) ipc.Response {
	return ipc.NewResponse(message, a.engine.State())
}

// summary reports on the last days calendar days, today included.
func (a *App) summary(ctx context.Context, days int) (report.Summary, error) {
	end := time.Now()
	y, m, d := end.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.Local).AddDate(0, 0, -(days - 1))
	return report.Build(ctx, a.storage, start, end, time.Local)
}

// Helper function to convert map[string]interface{} (from json unmarshal) to struct
func mapToStruct(input interface{}, output interface{}) error {
	if input == nil {
		return nil
	}
	jsonBytes, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal args map: %w", err)
	}
	if err := json.Unmarshal(jsonBytes, output); err != nil {
		return fmt.Errorf("failed to unmarshal args into struct: %w", err)
	}
	return nil
}

func (a *App) Run() error {
	defer a.cleanup()

	log.Println("Starting Tomato Application (Daemon Mode)...")
	log.Printf("Config: %+v", *a.cfg)
	log.Printf("Session: %s", a.session)

	if err := a.engine.Load(a.ctx); err != nil {
		log.Printf("Warning: Engine started with substituted defaults: %v", err)
	}

	if err := a.setupSocket(); err != nil {
		return fmt.Errorf("failed to set up socket: %w", err)
	}

	a.handleSignals()
	a.watchConfig()

	if permitted, err := a.desktop.Permitted(a.ctx); err != nil || !permitted {
		log.Printf("Desktop notifications unavailable (permitted=%t, err=%v); using log only.", permitted, err)
	}

	history := a.engine.Subscribe(eventBuffer)
	notifications := a.engine.Subscribe(eventBuffer)

	a.wg.Go(func() { a.mainLoop(history) })
	a.wg.Go(func() { a.dispatcher.Run(a.ctx, notifications) })
	a.wg.Go(a.listenForCommands)

	if a.web != nil {
		a.wg.Go(func() {
			if err := a.web.Run(a.ctx, a.cfg.HTTPAddr); err != nil {
				log.Printf("HTTP API stopped: %v", err)
			}
		})
	}

	a.record(a.ctx, event.Event{Type: event.EventTypeAppStart})

	log.Println("Tomato daemon running. Send commands via tomato-cli or socket.")
	<-a.ctx.Done()

	log.Println("Shutdown signal received, waiting for components...")

	// Close the listener before waiting so that Accept returns
	if err := a.listener.Close(); err != nil {
		log.Printf("Error closing socket listener: %v", err)
	}
	// Stops the timer and closes the subscriptions feeding the loops
	a.engine.Close()

	waitChan := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(waitChan)
	}()

	select {
	case <-waitChan:
		log.Println("All application goroutines finished.")
	case <-time.After(5 * time.Second):
		log.Println("Warning: Timeout waiting for application goroutines to stop.")
	}

	log.Println("Tomato Application finished.")
	return nil
}

// mainLoop records engine events in the event log until the subscription
// is closed.
func (a *App) mainLoop(events <-chan pomodoro.Event) {
	defer log.Println("Main application loop stopped.")

	for ev := range events {
		log.Printf("Timer: %s phase=%s remaining=%s running=%t completed=%d count=%d",
			ev.Type, ev.Phase, formatDuration(time.Duration(ev.Remaining)*time.Second), ev.Running, ev.Completed, ev.Count)

		if e, ok := a.historyEvent(ev); ok {
			ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
			a.record(ctx, e)
			cancel()
		}
	}
}

// historyEvent maps an engine event to the event log entry it produces.
// Pauses, resets and manual phase changes are not recorded.
func (a *App) historyEvent(ev pomodoro.Event) (event.Event, bool) {
	settings := a.engine.Settings()
	e := event.Event{Timestamp: ev.At}

	switch {
	case ev.Type == pomodoro.EventWorkCompleted || ev.Type == pomodoro.EventBreakCompleted:
		e.Type = event.EventTypePhaseComplete
		e.Tag = string(ev.Previous)
		e.Value = float64(settings.Seconds(ev.Previous)) / 60
		e.Notes = fmt.Sprintf("next=%s count=%d", ev.Phase, ev.Count)
	case ev.Type == pomodoro.EventSettingsUpdated:
		data, err := json.Marshal(settings)
		if err != nil {
			return event.Event{}, false
		}
		e.Type = event.EventTypeSettings
		e.Notes = string(data)
	case ev.Skipped:
		e.Type = event.EventTypePhaseSkip
		e.Tag = string(ev.Previous)
		e.Notes = fmt.Sprintf("next=%s", ev.Phase)
	case ev.Type == pomodoro.EventStateChange && ev.Running:
		e.Type = event.EventTypePhaseStart
		e.Tag = string(ev.Phase)
		e.Value = float64(ev.Remaining) / 60
		if ev.Remaining < settings.Seconds(ev.Phase) {
			e.Notes = "resumed"
		}
	default:
		return event.Event{}, false
	}
	return e, true
}

func (a *App) record(ctx context.Context, e event.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.Session = a.session
	if _, err := a.storage.SaveEvent(ctx, e); err != nil {
		log.Printf("Error saving event (Type: %s, Tag: %s): %v", e.Type, e.Tag, err)
	}
}

// watchConfig hot-applies notification toggles from the config file.
func (a *App) watchConfig() {
	config.Watch(func(cfg *config.Config) {
		a.toast.SetEnabled(cfg.Notifications.Toast)
		a.desktop.SetEnabled(cfg.Notifications.Desktop)
		log.Printf("Notifications: toast=%t desktop=%t", cfg.Notifications.Toast, cfg.Notifications.Desktop)
	})
}

func (a *App) handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Printf("Received signal: %v. Initiating shutdown...", sig)
			a.cancel()
		case <-a.ctx.Done():
		}
		signal.Stop(sigChan)
	}()
}

// Stop triggers the same shutdown as SIGTERM.
func (a *App) Stop() {
	a.cancel()
}

// cleanup needs to ensure socket removal
func (a *App) cleanup() {
	log.Println("Running cleanup...")
	a.cancel()

	saveCtx, saveCancel := context.WithTimeout(context.Background(), saveTimeout)
	defer saveCancel()
	a.record(saveCtx, event.Event{Type: event.EventTypeAppStop})

	var errs error
	if a.engine != nil {
		a.engine.Close()
	}
	if a.desktop != nil {
		errs = multierr.Append(errs, a.desktop.Close())
	}
	if a.storage != nil {
		errs = multierr.Append(errs, a.storage.Close())
	}
	if errs != nil {
		log.Printf("Errors during cleanup: %v", errs)
	}

	if a.listener != nil {
		if _, err := os.Stat(a.socketPath); err == nil {
			log.Printf("Removing socket file: %s", a.socketPath)
			if err := os.Remove(a.socketPath); err != nil {
				log.Printf("Warning: Failed to remove socket file %s: %v", a.socketPath, err)
			}
		}
	}

	log.Println("Cleanup finished.")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
