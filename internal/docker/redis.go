package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/dyluth/labdesk/internal/printer"
)

// ErrNotRunning is returned when a workspace has no Redis container.
var ErrNotRunning = errors.New("no labdesk Redis container for this workspace")

// ErrAlreadyRunning is returned by StartRedis when the container exists.
var ErrAlreadyRunning = errors.New("labdesk Redis container already exists for this workspace")

// Engine is the part of the Docker API used to manage the workspace Redis.
// *client.Client implements it.
type Engine interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
	ImagePull(ctx context.Context, refStr string, options types.ImagePullOptions) (io.ReadCloser, error)
}

var _ Engine = (*client.Client)(nil)

// NewClient connects to the Docker daemon from the environment and pings it.
func NewClient(ctx context.Context) (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, printer.Error(
			"Docker daemon not accessible",
			fmt.Sprintf("labdesk up/down manage Redis through Docker: %v", err),
			[]string{
				"Start Docker (Docker Desktop, or: sudo systemctl start docker)",
				"Or set store.backend: sqlite in labdesk.yml and skip Redis entirely",
			},
		)
	}

	return cli, nil
}

// RedisSpec describes the container `labdesk up` starts.
type RedisSpec struct {
	Workspace string
	Image     string
	Port      int
	RunID     string
}

// FindRedis returns the workspace's Redis container.
func FindRedis(ctx context.Context, e Engine, workspace string) (*types.Container, error) {
	containers, err := listWorkspace(ctx, e, workspace, ComponentRedis)
	if err != nil {
		return nil, err
	}
	if len(containers) == 0 {
		return nil, ErrNotRunning
	}
	return &containers[0], nil
}

// StartRedis pulls the image if needed, then creates and starts the
// workspace Redis bound to 127.0.0.1:spec.Port. Returns the container ID.
func StartRedis(ctx context.Context, e Engine, spec RedisSpec) (string, error) {
	if _, err := FindRedis(ctx, e, spec.Workspace); err == nil {
		return "", ErrAlreadyRunning
	} else if !errors.Is(err, ErrNotRunning) {
		return "", err
	}

	if err := ensureImage(ctx, e, spec.Image); err != nil {
		return "", err
	}

	labels := BuildLabels(spec.Workspace, spec.RunID, ComponentRedis)
	labels[LabelRedisPort] = strconv.Itoa(spec.Port)

	resp, err := e.ContainerCreate(ctx, &container.Config{
		Image:  spec.Image,
		Labels: labels,
		ExposedPorts: nat.PortSet{
			"6379/tcp": struct{}{},
		},
	}, &container.HostConfig{
		PortBindings: nat.PortMap{
			"6379/tcp": []nat.PortBinding{
				{
					HostIP:   "127.0.0.1",
					HostPort: strconv.Itoa(spec.Port),
				},
			},
		},
	}, nil, nil, RedisContainerName(spec.Workspace))
	if err != nil {
		return "", fmt.Errorf("failed to create Redis container: %w", err)
	}

	if err := e.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start Redis container: %w", err)
	}
	return resp.ID, nil
}

// RemoveWorkspace stops and removes every container labelled with
// workspace and returns their names.
func RemoveWorkspace(ctx context.Context, e Engine, workspace string) ([]string, error) {
	containers, err := listWorkspace(ctx, e, workspace, "")
	if err != nil {
		return nil, err
	}
	if len(containers) == 0 {
		return nil, ErrNotRunning
	}

	// 10s graceful timeout
	timeout := 10
	var removed []string
	for _, c := range containers {
		name := containerName(c)
		// a container that is already stopped fails here; removal still proceeds
		_ = e.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &timeout})
		if err := e.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", name, err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}

// RedisPort reads the published port from a container's labels.
func RedisPort(c *types.Container) (int, error) {
	raw, ok := c.Labels[LabelRedisPort]
	if !ok {
		return 0, fmt.Errorf("container %s has no %s label", containerName(*c), LabelRedisPort)
	}
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s label %q: %w", LabelRedisPort, raw, err)
	}
	return port, nil
}

// RedisURL returns the URL a CLI on this host uses to reach a published port.
// Inside a container the host is reached through host.docker.internal.
func RedisURL(port int) string {
	host := "localhost"
	if _, err := os.Stat("/.dockerenv"); err == nil {
		host = "host.docker.internal"
	}
	return fmt.Sprintf("redis://%s:%d", host, port)
}

// PortAvailable reports whether port can be bound on localhost.
func PortAvailable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

func listWorkspace(ctx context.Context, e Engine, workspace, component string) ([]types.Container, error) {
	f := filters.NewArgs()
	f.Add("label", fmt.Sprintf("%s=true", LabelProject))
	f.Add("label", fmt.Sprintf("%s=%s", LabelWorkspace, workspace))
	if component != "" {
		f.Add("label", fmt.Sprintf("%s=%s", LabelComponent, component))
	}

	containers, err := e.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return containers, nil
}

func ensureImage(ctx context.Context, e Engine, image string) error {
	if _, _, err := e.ImageInspectWithRaw(ctx, image); err == nil {
		return nil
	}
	reader, err := e.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", image, err)
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", image, err)
	}
	return nil
}

func containerName(c types.Container) string {
	if len(c.Names) > 0 {
		return c.Names[0]
	}
	return c.ID
}
