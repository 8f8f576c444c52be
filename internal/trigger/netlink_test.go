package trigger

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"

	"pipewatch/internal/config"
	"pipewatch/internal/pipeline"
)

type activationRecorder struct {
	refs   []string
	labels []string
	result bool
}

func (r *activationRecorder) ActivateWatcher(ref, label string) bool {
	r.refs = append(r.refs, ref)
	r.labels = append(r.labels, label)
	return r.result
}

func (r *activationRecorder) StartPipelineTracking(string, string, string) (pipeline.Run, error) {
	return pipeline.Run{}, nil
}

func (r *activationRecorder) UpdatePipelineStage(string, string, string, map[string]any) error {
	return nil
}

func newNetlinkConfig(device string) *config.Config {
	cfg := config.Default()
	cfg.Trigger.NetlinkDevice = device
	return &cfg
}

func TestNewNetlinkMonitor(t *testing.T) {
	if m := NewNetlinkMonitor(nil, nil, nil); m != nil {
		t.Error("expected nil monitor for nil config")
	}
	if m := NewNetlinkMonitor(newNetlinkConfig("  "), nil, nil); m != nil {
		t.Error("expected nil monitor for empty device")
	}
	m := NewNetlinkMonitor(newNetlinkConfig("/dev/sdb"), nil, nil)
	if m == nil {
		t.Fatal("expected monitor")
	}
	if m.device != "/dev/sdb" {
		t.Errorf("expected device /dev/sdb, got %s", m.device)
	}
	if m.Running() {
		t.Error("unstarted monitor reports running")
	}
}

func TestNetlinkMonitorNilSafety(t *testing.T) {
	var m *NetlinkMonitor
	m.Stop()
	if m.Running() {
		t.Error("nil monitor reports running")
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil monitor: %v", err)
	}
}

func TestNetlinkHandleEvent(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantCall  bool
		wantRef   string
		wantLabel string
	}{
		{
			name:      "matching devname with label",
			env:       map[string]string{"DEVNAME": "/dev/sdb1", "ID_FS_LABEL": "IMPORTS"},
			wantCall:  true,
			wantRef:   "/dev/sdb1",
			wantLabel: "IMPORTS",
		},
		{
			name:      "relative devname",
			env:       map[string]string{"DEVNAME": "sdb"},
			wantCall:  true,
			wantRef:   "/dev/sdb",
			wantLabel: "/dev/sdb",
		},
		{
			name:      "devpath fallback",
			env:       map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/block/sdb"},
			wantCall:  true,
			wantRef:   "/dev/sdb",
			wantLabel: "/dev/sdb",
		},
		{
			name: "other device",
			env:  map[string]string{"DEVNAME": "/dev/sda"},
		},
		{
			name: "no device name",
			env:  map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &activationRecorder{result: true}
			m := NewNetlinkMonitor(newNetlinkConfig("/dev/sdb"), rec, nil)
			got := m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: tt.env})
			if got != tt.wantCall {
				t.Fatalf("handleEvent = %v, want %v", got, tt.wantCall)
			}
			if !tt.wantCall {
				if len(rec.refs) != 0 {
					t.Fatalf("unexpected activation %v", rec.refs)
				}
				return
			}
			if len(rec.refs) != 1 || rec.refs[0] != tt.wantRef || rec.labels[0] != tt.wantLabel {
				t.Fatalf("activation = %v/%v, want %s/%s", rec.refs, rec.labels, tt.wantRef, tt.wantLabel)
			}
		})
	}
}

func TestNetlinkMatcher(t *testing.T) {
	matcher := buildMatcher()
	block := netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "block"}}
	if !matcher.Evaluate(block) {
		t.Error("expected block add to match")
	}
	usb := netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "usb"}}
	if matcher.Evaluate(usb) {
		t.Error("expected usb event not to match")
	}
	remove := netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"SUBSYSTEM": "block"}}
	if matcher.Evaluate(remove) {
		t.Error("expected remove not to match")
	}
}
