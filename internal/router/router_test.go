package router

import (
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"

	"github.com/filopedraz/kosuke-core-sub005/internal/config"
)

func testConfig(mode config.RouterMode) *config.Config {
	return &config.Config{
		RouterMode:            mode,
		PreviewBaseDomain:     "preview.example",
		PreviewNetwork:        "net",
		PreviewResourcePrefix: "kp",
		PortRangeStart:        40000,
		PortRangeEnd:          40000,
	}
}

// fakeInspectFromPort builds a minimal ContainerJSON carrying the host port
// binding a port-mode PrepareRun result implies, simulating what the engine
// would report back after create+start.
func fakeInspectFromPort(hostPort int) *types.ContainerJSON {
	key := nat.Port("3000/tcp")
	return &types.ContainerJSON{
		NetworkSettings: &types.NetworkSettings{
			NetworkSettingsBase: types.NetworkSettingsBase{
				Ports: nat.PortMap{
					key: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: itoaForTest(hostPort)}},
				},
			},
		},
	}
}

func fakeInspectFromLabels(labels map[string]string) *types.ContainerJSON {
	return &types.ContainerJSON{
		Config: &container.Config{Labels: labels},
	}
}

func itoaForTest(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestPortAdapterRoundTrip(t *testing.T) {
	cfg := testConfig(config.RouterModePort)
	adapter, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	info, err := adapter.PrepareRun("7", "kosuke-chat-abc123", "kp-7-kosuke-chat-abc123", "kosuke/chat-kosuke-chat-abc123")
	if err != nil {
		t.Fatalf("PrepareRun: %v", err)
	}
	if info.Mode != ModePort {
		t.Fatalf("expected port mode, got %q", info.Mode)
	}
	if info.Port != 40000 {
		t.Fatalf("expected deterministic port 40000 for equal range bounds, got %d", info.Port)
	}
	if info.URL != "http://localhost:40000" {
		t.Fatalf("unexpected URL: %q", info.URL)
	}

	inspect := fakeInspectFromPort(info.Port)
	recovered, ok := adapter.URLFromContainer(inspect)
	if !ok {
		t.Fatalf("expected URL recovery to succeed")
	}
	if recovered != info.URL {
		t.Fatalf("round trip mismatch: prepare=%q recovered=%q", info.URL, recovered)
	}
}

func TestProxyAdapterRoundTrip(t *testing.T) {
	cfg := testConfig(config.RouterModeProxy)
	adapter, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	info, err := adapter.PrepareRun("42", "kosuke-chat-XYZ!!", "kp-42-kosuke-chat-xyz", "kosuke/chat-kosuke-chat-XYZ!!")
	if err != nil {
		t.Fatalf("PrepareRun: %v", err)
	}
	if info.Mode != ModeProxy {
		t.Fatalf("expected proxy mode, got %q", info.Mode)
	}
	want := "https://project-42-kosuke-chat-xyz.preview.example"
	if info.URL != want {
		t.Fatalf("URL = %q, want %q", info.URL, want)
	}

	inspect := fakeInspectFromLabels(info.Labels)
	recovered, ok := adapter.URLFromContainer(inspect)
	if !ok {
		t.Fatalf("expected URL recovery to succeed")
	}
	if recovered != info.URL {
		t.Fatalf("round trip mismatch: prepare=%q recovered=%q", info.URL, recovered)
	}
}

func TestProxyAdapterDeclaresRouteLabels(t *testing.T) {
	cfg := testConfig(config.RouterModeProxy)
	adapter, _ := New(cfg)
	info, err := adapter.PrepareRun("1", "s", "kp-1-s", "kosuke/chat-s")
	if err != nil {
		t.Fatalf("PrepareRun: %v", err)
	}
	for _, key := range []string{labelHostRule, labelTLS, labelPort, labelNetwork, labelProjectID, labelSessionID} {
		if _, ok := info.Labels[key]; !ok {
			t.Fatalf("expected label %q to be set, got %+v", key, info.Labels)
		}
	}
	if info.Labels[labelPort] != "3000" {
		t.Fatalf("expected internal port label 3000, got %q", info.Labels[labelPort])
	}
}

func TestURLFromContainerFailsWithoutPortBinding(t *testing.T) {
	cfg := testConfig(config.RouterModePort)
	adapter, _ := New(cfg)
	_, ok := adapter.URLFromContainer(&types.ContainerJSON{NetworkSettings: &types.NetworkSettings{}})
	if ok {
		t.Fatalf("expected recovery to fail when no port binding present")
	}
}

func TestURLFromContainerFailsWithoutLabels(t *testing.T) {
	cfg := testConfig(config.RouterModeProxy)
	adapter, _ := New(cfg)
	_, ok := adapter.URLFromContainer(&types.ContainerJSON{Config: &container.Config{}})
	if ok {
		t.Fatalf("expected recovery to fail when project/session labels are missing")
	}
}
