package scanner

import (
	"io"
	"testing"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdvertisement implements ble.Advertisement with fixed values.
type fakeAdvertisement struct {
	name string
	addr string
	rssi int
}

func (f *fakeAdvertisement) LocalName() string              { return f.name }
func (f *fakeAdvertisement) ManufacturerData() []byte       { return nil }
func (f *fakeAdvertisement) ServiceData() []ble.ServiceData { return nil }
func (f *fakeAdvertisement) Services() []ble.UUID           { return nil }
func (f *fakeAdvertisement) OverflowService() []ble.UUID    { return nil }
func (f *fakeAdvertisement) TxPowerLevel() int              { return 0 }
func (f *fakeAdvertisement) Connectable() bool              { return true }
func (f *fakeAdvertisement) SolicitedService() []ble.UUID   { return nil }
func (f *fakeAdvertisement) RSSI() int                      { return f.rssi }
func (f *fakeAdvertisement) Addr() ble.Addr                 { return ble.NewAddr(f.addr) }

func newTestScanner(opts Options, onEvent func(DeviceEvent)) *Scanner {
	log := logrus.New()
	log.SetOutput(io.Discard)
	s := New(log, onEvent)
	s.devices = newDeviceMap()
	s.opts = opts
	return s
}

func TestScannerFiltersByNamePrefix(t *testing.T) {
	var events []DeviceEvent
	s := newTestScanner(DefaultOptions(), func(e DeviceEvent) { events = append(events, e) })

	s.handleAdvertisement(&fakeAdvertisement{name: "Progressor_17", addr: "aa:bb:cc:dd:ee:01", rssi: -60})
	s.handleAdvertisement(&fakeAdvertisement{name: "KitchenScale", addr: "aa:bb:cc:dd:ee:02", rssi: -50})

	require.Len(t, events, 1)
	assert.Equal(t, EventNew, events[0].Type)
	assert.Equal(t, "Progressor_17", events[0].Device.Name)
	assert.Equal(t, 1, s.devices.Len())
}

func TestScannerAggregatesRepeatAdvertisements(t *testing.T) {
	var events []DeviceEvent
	s := newTestScanner(DefaultOptions(), func(e DeviceEvent) { events = append(events, e) })

	adv := &fakeAdvertisement{name: "Progressor_17", addr: "aa:bb:cc:dd:ee:01", rssi: -60}
	s.handleAdvertisement(adv)
	adv.rssi = -45
	s.handleAdvertisement(adv)
	s.handleAdvertisement(adv)

	require.Len(t, events, 3)
	assert.Equal(t, EventNew, events[0].Type)
	assert.Equal(t, EventUpdated, events[1].Type)
	assert.Equal(t, EventUpdated, events[2].Type)

	assert.Equal(t, 1, s.devices.Len())
	devs := s.deviceList()
	require.Len(t, devs, 1)
	assert.Equal(t, -45, devs[0].RSSI)
	assert.Equal(t, 3, devs[0].AdvCount)
}

func TestScannerBlockList(t *testing.T) {
	opts := DefaultOptions()
	opts.BlockList = []string{"aa:bb:cc:dd:ee:01"}

	var events []DeviceEvent
	s := newTestScanner(opts, func(e DeviceEvent) { events = append(events, e) })

	s.handleAdvertisement(&fakeAdvertisement{name: "Progressor_17", addr: "aa:bb:cc:dd:ee:01"})
	assert.Empty(t, events)
}

func TestScannerAllowList(t *testing.T) {
	opts := DefaultOptions()
	opts.AllowList = []string{"aa:bb:cc:dd:ee:02"}

	var events []DeviceEvent
	s := newTestScanner(opts, func(e DeviceEvent) { events = append(events, e) })

	s.handleAdvertisement(&fakeAdvertisement{name: "Progressor_17", addr: "aa:bb:cc:dd:ee:01"})
	s.handleAdvertisement(&fakeAdvertisement{name: "Progressor_42", addr: "aa:bb:cc:dd:ee:02"})

	require.Len(t, events, 1)
	assert.Equal(t, "Progressor_42", events[0].Device.Name)
}

func TestScannerEmptyPrefixKeepsEverything(t *testing.T) {
	opts := DefaultOptions()
	opts.NamePrefix = ""

	var events []DeviceEvent
	s := newTestScanner(opts, func(e DeviceEvent) { events = append(events, e) })

	s.handleAdvertisement(&fakeAdvertisement{name: "Anything", addr: "aa:bb:cc:dd:ee:03"})
	assert.Len(t, events, 1)
}

func TestScannerKeepsNameAcrossAnonymousAdvertisements(t *testing.T) {
	opts := DefaultOptions()
	opts.NamePrefix = ""

	s := newTestScanner(opts, nil)
	s.handleAdvertisement(&fakeAdvertisement{name: "Progressor_17", addr: "aa:bb:cc:dd:ee:01"})
	// Scan-response-less advertisement with no local name.
	s.handleAdvertisement(&fakeAdvertisement{name: "", addr: "aa:bb:cc:dd:ee:01"})

	devs := s.deviceList()
	require.Len(t, devs, 1)
	assert.Equal(t, "Progressor_17", devs[0].Name)
}
