// ABOUTME: Tests for the document status poller
// ABOUTME: Ticks are driven directly or with a short interval against a fake API

package documents

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/kbchat/internal/client"
	"github.com/2389/kbchat/internal/config"
)

func progress(v float64) *float64 { return &v }

func TestPoller_TickMergesOnlyProcessing(t *testing.T) {
	api := newFakeAPI()
	api.statuses["d1"] = []client.DocumentStatus{{Status: client.StatusProcessing, Progress: progress(40)}}
	api.statuses["d3"] = []client.DocumentStatus{{Status: client.StatusProcessed, Progress: progress(100)}}

	m, _ := newTestManager(api, "tok")
	m.Board().Set([]client.Document{
		{ID: "d1", Status: client.StatusProcessing},
		{ID: "d2", Status: client.StatusUploaded},
		{ID: "d3", Status: client.StatusProcessing},
	})

	require.NoError(t, m.Poller().Tick(context.Background()))

	assert.ElementsMatch(t, []string{"status d1", "status d3"}, api.callLog())

	d1, _ := m.Board().Get("d1")
	require.NotNil(t, d1.Progress)
	assert.Equal(t, 40.0, *d1.Progress)
	assert.Equal(t, client.StatusProcessing, d1.Status)

	d3, _ := m.Board().Get("d3")
	assert.Equal(t, client.StatusProcessed, d3.Status)
	assert.Equal(t, []string{"d1"}, m.Board().Processing())
}

func TestPoller_RunUntilSettled(t *testing.T) {
	api := newFakeAPI()
	api.statuses["d1"] = []client.DocumentStatus{
		{Status: client.StatusProcessing, Progress: progress(10)},
		{Status: client.StatusProcessing, Progress: progress(70)},
		{Status: client.StatusProcessed, Progress: progress(100)},
	}
	api.statuses["d2"] = []client.DocumentStatus{{Status: client.StatusFailed}}

	nav := &recordingNav{}
	m := NewManager(api, client.StaticToken("tok"), nav, "kb-1", config.DocumentsConfig{PollInterval: 5 * time.Millisecond}, nil)
	m.Board().Set([]client.Document{
		{ID: "d1", Status: client.StatusProcessing},
		{ID: "d2", Status: client.StatusProcessing},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Poller().RunUntilSettled(ctx))

	d1, _ := m.Board().Get("d1")
	d2, _ := m.Board().Get("d2")
	assert.Equal(t, client.StatusProcessed, d1.Status)
	assert.Equal(t, client.StatusFailed, d2.Status)

	var d1Calls, d2Calls int
	for _, c := range api.callLog() {
		switch c {
		case "status d1":
			d1Calls++
		case "status d2":
			d2Calls++
		}
	}
	assert.Equal(t, 3, d1Calls)
	assert.Equal(t, 1, d2Calls)
	assert.Empty(t, nav.visited())
}

func TestPoller_MissingTokenStops(t *testing.T) {
	api := newFakeAPI()
	nav := &recordingNav{}
	m := NewManager(api, client.StaticToken(""), nav, "kb 2", config.DocumentsConfig{PollInterval: time.Millisecond}, nil)
	m.Board().Set([]client.Document{{ID: "d1", Status: client.StatusProcessing}})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := m.Poller().Run(ctx)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Empty(t, api.callLog())
	assert.Equal(t, []string{"/login?redirect=%2Fknowledge%2Fkb+2"}, nav.visited())
}

func TestPoller_StatusErrorsReported(t *testing.T) {
	api := newFakeAPI()
	api.errs["status d1"] = errors.New("Failed to fetch document status")

	m, _ := newTestManager(api, "tok")
	m.Board().Set([]client.Document{
		{ID: "d1", Status: client.StatusProcessing},
		{ID: "d2", Status: client.StatusProcessing},
	})

	var mu sync.Mutex
	var failed []string
	p := m.Poller()
	p.OnError = func(id string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, id)
	}

	require.NoError(t, p.Tick(context.Background()))
	assert.Equal(t, []string{"d1"}, failed)
	assert.ElementsMatch(t, []string{"d1", "d2"}, m.Board().Processing())
}

func TestPoller_StopsOnCancel(t *testing.T) {
	api := newFakeAPI()
	m := NewManager(api, client.StaticToken("tok"), nil, "kb-1", config.DocumentsConfig{PollInterval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Poller().Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestBoard_SubscribeSeesChanges(t *testing.T) {
	b := NewBoard(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := b.Subscribe(ctx)

	b.Add(client.Document{ID: "d1", Status: client.StatusUploaded})
	b.SetStatus("d1", client.StatusProcessing)
	b.Remove("d1")
	assert.False(t, b.Remove("missing"))

	want := []Change{
		{Document: client.Document{ID: "d1", Status: client.StatusUploaded}},
		{Document: client.Document{ID: "d1", Status: client.StatusProcessing}},
		{Document: client.Document{ID: "d1", Status: client.StatusProcessing}, Removed: true},
	}
	for _, w := range want {
		select {
		case got := <-changes:
			assert.Equal(t, w, got)
		case <-time.After(time.Second):
			t.Fatal("missing change")
		}
	}
}

func TestBoard_MergeKeepsProgressWhenAbsent(t *testing.T) {
	b := NewBoard(nil)
	b.Add(client.Document{ID: "d1", Status: client.StatusProcessing})

	b.Merge("d1", client.DocumentStatus{Status: client.StatusProcessing, Progress: progress(55)})
	b.Merge("d1", client.DocumentStatus{Status: client.StatusProcessing})

	d, ok := b.Get("d1")
	require.True(t, ok)
	require.NotNil(t, d.Progress)
	assert.Equal(t, 55.0, *d.Progress)
}
