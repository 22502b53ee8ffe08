// Package scanner implements BLE discovery of Progressor devices.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/gripforce/progctl/internal/bluetooth"
	"github.com/gripforce/progctl/pkg/protocol"
)

// DeviceEventType marks if the device was newly discovered or updated.
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

// Device is one discovered advertiser, aggregated across its advertisements.
type Device struct {
	mu sync.Mutex

	Address   string
	Name      string
	RSSI      int
	FirstSeen time.Time
	LastSeen  time.Time
	AdvCount  int
}

func newDevice(adv ble.Advertisement) *Device {
	now := time.Now()
	return &Device{
		Address:   adv.Addr().String(),
		Name:      adv.LocalName(),
		RSSI:      adv.RSSI(),
		FirstSeen: now,
		LastSeen:  now,
		AdvCount:  1,
	}
}

func (d *Device) update(adv ble.Advertisement) {
	d.mu.Lock()
	if name := adv.LocalName(); name != "" {
		d.Name = name
	}
	d.RSSI = adv.RSSI()
	d.LastSeen = time.Now()
	d.AdvCount++
	d.mu.Unlock()
}

// Snapshot returns a copy safe to read outside the scan callback.
func (d *Device) Snapshot() Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Device{
		Address:   d.Address,
		Name:      d.Name,
		RSSI:      d.RSSI,
		FirstSeen: d.FirstSeen,
		LastSeen:  d.LastSeen,
		AdvCount:  d.AdvCount,
	}
}

// DeviceEvent is delivered once per processed advertisement.
type DeviceEvent struct {
	Type   DeviceEventType
	Device Device
}

// Options configures scanning behavior.
type Options struct {
	Duration        time.Duration
	DuplicateFilter bool

	// NamePrefix keeps only advertisers whose local name starts with the
	// prefix. Empty keeps everything.
	NamePrefix string

	AllowList []string
	BlockList []string
}

// DefaultOptions returns Progressor-only scanning for ten seconds.
func DefaultOptions() Options {
	return Options{
		Duration:        10 * time.Second,
		DuplicateFilter: true,
		NamePrefix:      protocol.DefaultNamePrefix,
	}
}

// Scanner handles BLE device discovery.
type Scanner struct {
	devices *hashmap.Map[string, *Device]
	logger  *logrus.Logger
	opts    Options
	onEvent func(DeviceEvent)
}

// New creates a scanner. onEvent may be nil when the caller only wants the
// final device list.
func New(logger *logrus.Logger, onEvent func(DeviceEvent)) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	if onEvent == nil {
		onEvent = func(DeviceEvent) {}
	}
	return &Scanner{logger: logger, onEvent: onEvent}
}

func newDeviceMap() *hashmap.Map[string, *Device] {
	return hashmap.New[string, *Device]()
}

// Scan performs BLE discovery with the provided options and returns the
// discovered devices sorted by first sighting.
func (s *Scanner) Scan(ctx context.Context, opts Options) ([]Device, error) {
	s.devices = newDeviceMap()
	s.opts = opts

	s.logger.WithFields(logrus.Fields{
		"duration":    opts.Duration,
		"name_prefix": opts.NamePrefix,
	}).Info("Starting BLE scan...")

	dev, err := bluetooth.NewPlatformDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}
	ble.SetDefaultDevice(dev)

	scanCtx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	err = ble.Scan(scanCtx, opts.DuplicateFilter, s.handleAdvertisement, nil)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	s.logger.WithField("device_count", s.devices.Len()).Info("BLE scan completed")
	return s.deviceList(), nil
}

// handleAdvertisement updates an existing device record or adds a new one.
func (s *Scanner) handleAdvertisement(adv ble.Advertisement) {
	if !s.shouldInclude(adv) {
		return
	}

	addr := adv.Addr().String()
	dev, existing := s.devices.Get(addr)
	if !existing {
		dev, existing = s.devices.GetOrInsert(addr, newDevice(adv))
	}

	event := DeviceEvent{Type: EventNew}
	if existing {
		dev.update(adv)
		event.Type = EventUpdated
	} else {
		s.logger.WithFields(logrus.Fields{
			"device":  dev.Name,
			"address": dev.Address,
			"rssi":    dev.RSSI,
		}).Info("Discovered new device")
	}
	event.Device = dev.Snapshot()
	s.onEvent(event)
}

// shouldInclude applies the name/allow/block filters.
func (s *Scanner) shouldInclude(adv ble.Advertisement) bool {
	addr := adv.Addr().String()

	for _, blocked := range s.opts.BlockList {
		if addr == blocked {
			return false
		}
	}

	if len(s.opts.AllowList) > 0 {
		allowed := false
		for _, a := range s.opts.AllowList {
			if addr == a {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if s.opts.NamePrefix != "" && !strings.HasPrefix(adv.LocalName(), s.opts.NamePrefix) {
		return false
	}

	return true
}

// deviceList returns a first-seen ordered snapshot of discovered devices.
func (s *Scanner) deviceList() []Device {
	devs := make([]Device, 0, s.devices.Len())
	s.devices.Range(func(_ string, value *Device) bool {
		devs = append(devs, value.Snapshot())
		return true
	})
	sort.Slice(devs, func(i, j int) bool {
		return devs[i].FirstSeen.Before(devs[j].FirstSeen)
	})
	return devs
}
