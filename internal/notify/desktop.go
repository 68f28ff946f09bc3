package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/godbus/dbus/v5"

	"tomato/internal/event"
)

const (
	notificationsName = "org.freedesktop.Notifications"
	notificationsPath = dbus.ObjectPath("/org/freedesktop/Notifications")
	expireTimeoutMs   = int32(5000)
)

// ErrNotPermitted is returned when no notification service is available on
// the session bus.
var ErrNotPermitted = errors.New("desktop notifications not available")

// bus is the part of the session bus the desktop notifier talks to.
type bus interface {
	HasOwner(ctx context.Context, name string) (bool, error)
	Notify(ctx context.Context, appName, summary, body string) (uint32, error)
	Close() error
}

// Desktop shows notifications through the freedesktop notification service.
// It only checks whether the service is present and never asks for it.
type Desktop struct {
	appName string
	enabled atomic.Bool
	dial    func() (bus, error)

	mu   sync.Mutex
	conn bus
}

func NewDesktop(appName string, enabled bool) *Desktop {
	d := &Desktop{appName: appName, dial: dialSessionBus}
	d.enabled.Store(enabled)
	return d
}

func (d *Desktop) Name() string            { return "desktop" }
func (d *Desktop) Enabled() bool           { return d.enabled.Load() }
func (d *Desktop) SetEnabled(enabled bool) { d.enabled.Store(enabled) }

// Permitted reports whether a notification service owns its well-known name.
func (d *Desktop) Permitted(ctx context.Context) (bool, error) {
	conn, err := d.connection()
	if err != nil {
		return false, err
	}
	return conn.HasOwner(ctx, notificationsName)
}

func (d *Desktop) Notify(ctx context.Context, n event.Notification) error {
	permitted, err := d.Permitted(ctx)
	if err != nil {
		return err
	}
	if !permitted {
		return ErrNotPermitted
	}

	conn, err := d.connection()
	if err != nil {
		return err
	}
	body := n.Message
	if body == n.Title {
		body = ""
	}
	if _, err := conn.Notify(ctx, d.appName, n.Title, body); err != nil {
		// Drop the connection so the next call redials.
		d.reset()
		return fmt.Errorf("send desktop notification: %w", err)
	}
	return nil
}

func (d *Desktop) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

func (d *Desktop) connection() (bus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		return d.conn, nil
	}
	conn, err := d.dial()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	d.conn = conn
	return conn, nil
}

func (d *Desktop) reset() {
	if err := d.Close(); err != nil {
		log.Printf("Warning: Failed to close session bus connection: %v", err)
	}
}

type dbusBus struct {
	conn *dbus.Conn
}

func dialSessionBus() (bus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	return &dbusBus{conn: conn}, nil
}

func (b *dbusBus) HasOwner(ctx context.Context, name string) (bool, error) {
	var has bool
	call := b.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, name)
	if err := call.Store(&has); err != nil {
		return false, fmt.Errorf("query owner of %s: %w", name, err)
	}
	return has, nil
}

func (b *dbusBus) Notify(ctx context.Context, appName, summary, body string) (uint32, error) {
	var id uint32
	obj := b.conn.Object(notificationsName, notificationsPath)
	call := obj.CallWithContext(ctx, notificationsName+".Notify", 0,
		appName, uint32(0), "", summary, body, []string{}, map[string]dbus.Variant{}, expireTimeoutMs)
	if err := call.Store(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (b *dbusBus) Close() error {
	return b.conn.Close()
}
