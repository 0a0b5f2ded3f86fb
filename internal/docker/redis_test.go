package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine keeps containers in memory and honours label filters.
type fakeEngine struct {
	containers []types.Container
	images     map[string]bool
	pulled     []string
	started    []string
	stopped    []string
	removeErr  error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{images: make(map[string]bool)}
}

func (f *fakeEngine) ContainerList(_ context.Context, options container.ListOptions) ([]types.Container, error) {
	var out []types.Container
	for _, c := range f.containers {
		match := true
		for _, l := range options.Filters.Get("label") {
			k, v, _ := strings.Cut(l, "=")
			if c.Labels[k] != v {
				match = false
			}
		}
		if match {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeEngine) ContainerCreate(_ context.Context, config *container.Config, hostConfig *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
	id := fmt.Sprintf("c%d", len(f.containers)+1)
	f.containers = append(f.containers, types.Container{ID: id, Names: []string{"/" + name}, Labels: config.Labels, Image: config.Image})
	return container.CreateResponse{ID: id}, nil
}

func (f *fakeEngine) ContainerStart(_ context.Context, id string, _ container.StartOptions) error {
	f.started = append(f.started, id)
	return nil
}

func (f *fakeEngine) ContainerStop(_ context.Context, id string, _ container.StopOptions) error {
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakeEngine) ContainerRemove(_ context.Context, id string, _ container.RemoveOptions) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	for i, c := range f.containers {
		if c.ID == id {
			f.containers = append(f.containers[:i], f.containers[i+1:]...)
			return nil
		}
	}
	return errors.New("no such container")
}

func (f *fakeEngine) ImageInspectWithRaw(_ context.Context, image string) (types.ImageInspect, []byte, error) {
	if f.images[image] {
		return types.ImageInspect{ID: image}, nil, nil
	}
	return types.ImageInspect{}, nil, errors.New("no such image")
}

func (f *fakeEngine) ImagePull(_ context.Context, ref string, _ types.ImagePullOptions) (io.ReadCloser, error) {
	f.pulled = append(f.pulled, ref)
	f.images[ref] = true
	return io.NopCloser(strings.NewReader(`{"status":"done"}`)), nil
}

func TestStartRedis(t *testing.T) {
	e := newFakeEngine()
	ctx := context.Background()

	id, err := StartRedis(ctx, e, RedisSpec{Workspace: "lab", Image: "redis:7-alpine", Port: 6380, RunID: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"redis:7-alpine"}, e.pulled)
	assert.Equal(t, []string{id}, e.started)

	c, err := FindRedis(ctx, e, "lab")
	require.NoError(t, err)
	assert.Equal(t, "/labdesk-redis-lab", c.Names[0])

	port, err := RedisPort(c)
	require.NoError(t, err)
	assert.Equal(t, 6380, port)

	_, err = StartRedis(ctx, e, RedisSpec{Workspace: "lab", Image: "redis:7-alpine", Port: 6380})
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	_, err = StartRedis(ctx, e, RedisSpec{Workspace: "other", Image: "redis:7-alpine", Port: 6381})
	require.NoError(t, err)
	assert.Len(t, e.pulled, 1, "image already present is not pulled again")
}

func TestRemoveWorkspace(t *testing.T) {
	e := newFakeEngine()
	ctx := context.Background()

	_, err := RemoveWorkspace(ctx, e, "lab")
	assert.ErrorIs(t, err, ErrNotRunning)

	_, err = StartRedis(ctx, e, RedisSpec{Workspace: "lab", Image: "redis:7-alpine", Port: 6380})
	require.NoError(t, err)
	_, err = StartRedis(ctx, e, RedisSpec{Workspace: "keep", Image: "redis:7-alpine", Port: 6381})
	require.NoError(t, err)

	removed, err := RemoveWorkspace(ctx, e, "lab")
	require.NoError(t, err)
	assert.Equal(t, []string{"/labdesk-redis-lab"}, removed)

	_, err = FindRedis(ctx, e, "lab")
	assert.ErrorIs(t, err, ErrNotRunning)
	_, err = FindRedis(ctx, e, "keep")
	assert.NoError(t, err)
}

func TestRemoveWorkspace_Error(t *testing.T) {
	e := newFakeEngine()
	ctx := context.Background()
	_, err := StartRedis(ctx, e, RedisSpec{Workspace: "lab", Image: "redis:7-alpine", Port: 6380})
	require.NoError(t, err)

	e.removeErr = errors.New("device busy")
	_, err = RemoveWorkspace(ctx, e, "lab")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")
}

func TestRedisPort_MissingLabel(t *testing.T) {
	_, err := RedisPort(&types.Container{ID: "x", Labels: map[string]string{}})
	assert.Error(t, err)
}

func TestRedisURL(t *testing.T) {
	url := RedisURL(6390)
	assert.True(t, strings.HasSuffix(url, ":6390"))
	assert.True(t, strings.HasPrefix(url, "redis://"))
}
