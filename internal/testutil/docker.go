package testutil

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/google/uuid"
)

// CleanupLabel marks containers created by tests. Its value is the test name.
const CleanupLabel = "memoir-test"

// TestingT is the subset of testing.T the Docker helpers need.
type TestingT interface {
	Name() string
	Cleanup(func())
	Logf(format string, args ...any)
	Skipf(format string, args ...any)
	Helper()
}

// DockerClient returns a Docker client, skipping the test when the daemon is
// unreachable. Containers labelled for the test are removed on cleanup.
func DockerClient(t TestingT) *client.Client {
	t.Helper()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		t.Skipf("docker client unavailable: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		t.Skipf("docker is not running: %v", err)
		return nil
	}

	t.Cleanup(func() {
		removeLabelled(t, cli)
		cli.Close()
	})
	return cli
}

// UniqueContainerName returns memoir-test-<prefix>-<test>-<suffix>.
func UniqueContainerName(t TestingT, prefix string) string {
	t.Helper()
	return fmt.Sprintf("memoir-test-%s-%s-%s", prefix, containerSafe(t.Name()), uuid.NewString()[:8])
}

// ContainerLabels returns the labels that tie a container to t for cleanup.
func ContainerLabels(t TestingT) map[string]string {
	return map[string]string{CleanupLabel: t.Name()}
}

func removeLabelled(t TestingT, cli *client.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	args := filters.NewArgs(filters.Arg("label", CleanupLabel+"="+t.Name()))
	containers, err := cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		t.Logf("list test containers: %v", err)
		return
	}

	for _, c := range containers {
		// Force removal stops a running container.
		err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true, RemoveVolumes: true})
		if err != nil {
			t.Logf("remove container %s: %v", c.ID[:12], err)
			continue
		}
		t.Logf("removed test container %s", strings.Join(c.Names, ","))
	}
}

// containerSafe keeps letters and digits, maps separators to '-', and caps
// the length so the full name stays readable.
func containerSafe(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '/', r == '_', r == '-':
			return '-'
		default:
			return -1
		}
	}, name)
	if len(safe) > 30 {
		safe = safe[:30]
	}
	return safe
}
