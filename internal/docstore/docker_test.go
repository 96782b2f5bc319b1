package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/jackzampolin/memoir/internal/testutil"
)

func TestNewDockerManager_Defaults(t *testing.T) {
	m, err := NewDockerManager(DockerConfig{})
	if err != nil {
		t.Fatalf("NewDockerManager() error = %v", err)
	}
	defer m.Close()

	if m.containerName != DefaultContainerName {
		t.Errorf("containerName = %q", m.containerName)
	}
	if m.imageName != DefaultImage {
		t.Errorf("imageName = %q", m.imageName)
	}
	if m.URL() != "http://localhost:"+DefaultPort {
		t.Errorf("URL() = %q", m.URL())
	}
}

func TestDockerManager_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping docker test in short mode")
	}

	_ = testutil.DockerClient(t)

	port, err := testutil.FindFreePort()
	if err != nil {
		t.Fatalf("FindFreePort() error = %v", err)
	}
	m, err := NewDockerManager(DockerConfig{
		ContainerName: testutil.UniqueContainerName(t, "defra"),
		HostPort:      port,
		DataPath:      t.TempDir(),
		Labels:        testutil.ContainerLabels(t),
	})
	if err != nil {
		t.Fatalf("NewDockerManager() error = %v", err)
	}
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	status, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status != StatusRunning {
		t.Errorf("status = %s", status)
	}
	if err := m.Start(ctx); err != nil {
		t.Errorf("second Start() error = %v", err)
	}
	if err := Initialize(ctx, NewClient(m.URL()), nil); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
}
