package topology_test

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/nettrail/linkwatch/internal/topology"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestInterfaceIdentity(t *testing.T) {
	t.Parallel()

	sw := topology.NewSwitch("00:00:00:00:00:00:00:01")
	intf := topology.NewInterface(sw, 3, "eth3")

	if got, want := intf.ID(), "00:00:00:00:00:00:00:01:3"; got != want {
		t.Errorf("ID() = %q, want %q", got, want)
	}
	if intf.Name() != "eth3" || intf.PortNumber() != 3 {
		t.Errorf("Name()/PortNumber() = %q/%d", intf.Name(), intf.PortNumber())
	}
	if intf.Switch() != sw {
		t.Error("Switch() does not return the owning switch")
	}
}

func TestInterfaceStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		active  bool
		enabled bool
		want    topology.Status
	}{
		{name: "active and enabled", active: true, enabled: true, want: topology.StatusUp},
		{name: "inactive", active: false, enabled: true, want: topology.StatusDown},
		{name: "disabled", active: true, enabled: false, want: topology.StatusDown},
		{name: "inactive and disabled", active: false, enabled: false, want: topology.StatusDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sw := topology.NewSwitch("00:00:00:00:00:00:00:01")
			intf := topology.NewInterface(sw, 1, "eth1")
			intf.SetActive(tt.active)
			intf.SetEnabled(tt.enabled)

			if got := intf.Status(); got != tt.want {
				t.Errorf("Status() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInterfaceDefaults(t *testing.T) {
	t.Parallel()

	sw := topology.NewSwitch("00:00:00:00:00:00:00:01")
	intf := topology.NewInterface(sw, 1, "eth1")

	if !intf.LLDP() || !intf.Active() || !intf.Enabled() {
		t.Error("interface does not start with lldp, active, and enabled set")
	}
	if !sw.Connected() {
		t.Error("switch does not start connected")
	}
}

func TestInterfaceMetadata(t *testing.T) {
	t.Parallel()

	sw := topology.NewSwitch("00:00:00:00:00:00:00:01")
	intf := topology.NewInterface(sw, 1, "eth1")

	if _, ok := intf.MetadataValue("k"); ok {
		t.Fatal("metadata value present on a fresh interface")
	}
	if intf.RemoveMetadata("k") {
		t.Fatal("RemoveMetadata reported a missing key as present")
	}

	intf.ExtendMetadata(map[string]any{"k": "v", "n": 1})
	if v, ok := intf.MetadataValue("k"); !ok || v != "v" {
		t.Fatalf("MetadataValue(k) = (%v, %v)", v, ok)
	}

	// Metadata() is a copy: mutating it must not leak back.
	md := intf.Metadata()
	md["k"] = "mutated"
	if v, _ := intf.MetadataValue("k"); v != "v" {
		t.Error("Metadata() exposed the internal map")
	}

	if !intf.RemoveMetadata("k") {
		t.Fatal("RemoveMetadata missed an existing key")
	}
	if _, ok := intf.MetadataValue("k"); ok {
		t.Fatal("metadata value survived removal")
	}
}

func TestSwitchInterfaces(t *testing.T) {
	t.Parallel()

	sw := topology.NewSwitch("00:00:00:00:00:00:00:01")
	i1 := topology.NewInterface(sw, 1, "eth1")
	i2 := topology.NewInterface(sw, 2, "eth2")
	sw.AddInterface(i1)
	sw.AddInterface(i2)

	if got, ok := sw.Interface(2); !ok || got != i2 {
		t.Fatalf("Interface(2) = (%v, %v)", got, ok)
	}
	if _, ok := sw.Interface(9); ok {
		t.Fatal("Interface(9) found a nonexistent port")
	}
	if got := len(sw.Interfaces()); got != 2 {
		t.Fatalf("Interfaces() len = %d, want 2", got)
	}

	sw.RemoveInterface(1)
	if _, ok := sw.Interface(1); ok {
		t.Fatal("interface survived removal")
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := topology.NewRegistry()
	sw1 := topology.NewSwitch("00:00:00:00:00:00:00:01")
	sw2 := topology.NewSwitch("00:00:00:00:00:00:00:02")
	i1 := topology.NewInterface(sw1, 1, "eth1")
	i2 := topology.NewInterface(sw2, 7, "eth7")
	sw1.AddInterface(i1)
	sw2.AddInterface(i2)
	r.AddSwitch(sw1)
	r.AddSwitch(sw2)

	if got, ok := r.Switch(sw1.DPID()); !ok || got != sw1 {
		t.Fatalf("Switch(%s) = (%v, %v)", sw1.DPID(), got, ok)
	}
	if got := len(r.Switches()); got != 2 {
		t.Fatalf("Switches() len = %d, want 2", got)
	}
	if got := len(r.Interfaces()); got != 2 {
		t.Fatalf("Interfaces() len = %d, want 2", got)
	}

	if got, ok := r.InterfaceByID(i2.ID()); !ok || got != i2 {
		t.Fatalf("InterfaceByID(%s) = (%v, %v)", i2.ID(), got, ok)
	}
	if _, ok := r.InterfaceByID("00:00:00:00:00:00:00:09:1"); ok {
		t.Fatal("InterfaceByID found a nonexistent interface")
	}

	r.RemoveSwitch(sw1.DPID())
	if _, ok := r.Switch(sw1.DPID()); ok {
		t.Fatal("switch survived removal")
	}
	if got := len(r.Interfaces()); got != 1 {
		t.Fatalf("Interfaces() after removal len = %d, want 1", got)
	}
}

func TestLink(t *testing.T) {
	t.Parallel()

	link := topology.NewLink("link-1")
	if link.ID() != "link-1" {
		t.Errorf("ID() = %q", link.ID())
	}
	if !link.Active() || !link.Enabled() {
		t.Error("link does not start active and enabled")
	}

	link.SetActive(false)
	link.SetEnabled(false)
	if link.Active() || link.Enabled() {
		t.Error("flag setters had no effect")
	}

	link.ExtendMetadata(map[string]any{"k": "v"})
	if v, ok := link.MetadataValue("k"); !ok || v != "v" {
		t.Errorf("MetadataValue(k) = (%v, %v)", v, ok)
	}
}
