package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/maps"
	"github.com/ternarybob/colligo/internal/storage/sqlite"
)

// fakeSession satisfies Session without a browser. The worker loops only
// hand it to the collect callbacks, which are fakes too.
type fakeSession struct {
	worker string
	mu     sync.Mutex
	closed bool
}

func (f *fakeSession) Open(ctx context.Context) error { return nil }

func (f *fakeSession) Close(quitWait time.Duration) {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeSession) Navigate(ctx context.Context, url string) error { return nil }
func (f *fakeSession) Location(ctx context.Context) (string, error)  { return "about:blank", nil }
func (f *fakeSession) Title(ctx context.Context) (string, error)     { return "", nil }
func (f *fakeSession) HTML(ctx context.Context) (string, error)      { return "<html></html>", nil }
func (f *fakeSession) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte{0x89, 'P', 'N', 'G'}, nil
}
func (f *fakeSession) Eval(ctx context.Context, expr string, out interface{}) error { return nil }
func (f *fakeSession) Type(ctx context.Context, sel, text string) error             { return nil }
func (f *fakeSession) PressEnter(ctx context.Context, sel string) error             { return nil }
func (f *fakeSession) Drag(ctx context.Context, fromX, fromY, toX, toY float64) error {
	return nil
}

// sessionRecorder counts session creations per worker
type sessionRecorder struct {
	mu      sync.Mutex
	created map[string]int
}

func newSessionRecorder() *sessionRecorder {
	return &sessionRecorder{created: make(map[string]int)}
}

func (r *sessionRecorder) factory(worker string) Session {
	r.mu.Lock()
	r.created[worker]++
	r.mu.Unlock()
	return &fakeSession{worker: worker}
}

func (r *sessionRecorder) count(worker string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created[worker]
}

func testPipelineConfig() *common.PipelineConfig {
	return &common.PipelineConfig{
		MaxAttempts:     3,
		PollInterval:    20 * time.Millisecond,
		CaptchaCooldown: 30 * time.Millisecond,
		ErrorCooldown:   20 * time.Millisecond,
		StopJoinTimeout: 3 * time.Second,
		SessionQuitWait: 10 * time.Millisecond,
		SaveDebug:       false,
	}
}

func setupStorage(t *testing.T) interfaces.StorageManager {
	manager, err := sqlite.NewManager(arbor.NewLogger(), &common.SQLiteConfig{
		Path:          filepath.Join(t.TempDir(), "test.sqlite"),
		BusyTimeoutMS: 5000,
	})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func addTask(t *testing.T, storage interfaces.StorageManager, city, query string) {
	_, err := storage.TaskStorage().AddTasks(context.Background(), []*models.Task{{
		City:       city,
		Mode:       models.TaskMode{Kind: models.TargetSearch},
		Query:      query,
		DomainPref: "auto",
	}})
	require.NoError(t, err)
}

func taskByQuery(t *testing.T, storage interfaces.StorageManager, query string) *models.Task {
	tasks, err := storage.TaskStorage().List(context.Background(), 100)
	require.NoError(t, err)
	for _, task := range tasks {
		if task.Query == query {
			return task
		}
	}
	return nil
}

func newTestPipeline(t *testing.T, storage interfaces.StorageManager,
	recorder *sessionRecorder, collectLinks LinkCollectFn, collectInfo InfoCollectFn) *Pipeline {
	logger := arbor.NewLogger()
	debug := NewDebugSink(logger, t.TempDir(), false)
	return New(logger, testPipelineConfig(), storage, recorder.factory, collectLinks, collectInfo, debug)
}

func TestPipeline_DiscoveryAndEnrichment(t *testing.T) {
	storage := setupStorage(t)
	addTask(t, storage, "Минск", "кофейня")

	collectLinks := func(ctx context.Context, page maps.Page, task *models.Task) ([]string, error) {
		return []string{"https://yandex.by/maps/org/raduga/111/"}, nil
	}
	collectInfo := func(ctx context.Context, page maps.Page, link *models.Link) (*models.Organization, error) {
		return &models.Organization{OrgID: link.OrgID, Name: "Кафе Радуга"}, nil
	}

	recorder := newSessionRecorder()
	pipe := newTestPipeline(t, storage, recorder, collectLinks, collectInfo)

	require.NoError(t, pipe.Start())
	assert.True(t, pipe.IsRunning())
	defer pipe.Stop()

	assert.Eventually(t, func() bool {
		task := taskByQuery(t, storage, "кофейня")
		if task == nil || task.Status != models.TaskStatusDone {
			return false
		}
		org, err := storage.OrgStorage().Get(context.Background(), "111")
		if err != nil || org == nil {
			return false
		}
		sources, err := storage.OrgStorage().Sources(context.Background())
		return err == nil && len(sources) == 1
	}, 5*time.Second, 25*time.Millisecond)

	task := taskByQuery(t, storage, "кофейня")
	assert.Equal(t, "inserted_links=1", task.LastError)
	assert.Equal(t, 1, task.Attempts)

	sources, err := storage.OrgStorage().Sources(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "111", sources[0].OrgID)

	pipe.Stop()
	assert.False(t, pipe.IsRunning())
}

func TestPipeline_CaptchaMovesTaskToWaitCaptcha(t *testing.T) {
	storage := setupStorage(t)
	addTask(t, storage, "Минск", "кофейня")

	collectLinks := func(ctx context.Context, page maps.Page, task *models.Task) ([]string, error) {
		return nil, &maps.CaptchaError{Msg: "captcha after the city search"}
	}
	collectInfo := func(ctx context.Context, page maps.Page, link *models.Link) (*models.Organization, error) {
		return nil, errors.New("unreachable")
	}

	recorder := newSessionRecorder()
	pipe := newTestPipeline(t, storage, recorder, collectLinks, collectInfo)

	require.NoError(t, pipe.Start())
	defer pipe.Stop()

	assert.Eventually(t, func() bool {
		task := taskByQuery(t, storage, "кофейня")
		return task != nil && task.Status == models.TaskStatusWaitCaptcha
	}, 5*time.Second, 25*time.Millisecond)

	task := taskByQuery(t, storage, "кофейня")
	assert.Contains(t, task.LastError, "link-collector: ")
	assert.Contains(t, task.LastError, "captcha")

	// A captcha keeps the browser session alive
	assert.Equal(t, 1, recorder.count("link-collector"))
}

func TestPipeline_UnclassifiedErrorRecyclesSession(t *testing.T) {
	storage := setupStorage(t)
	addTask(t, storage, "Минск", "bad")
	addTask(t, storage, "Гомель", "good")

	collectLinks := func(ctx context.Context, page maps.Page, task *models.Task) ([]string, error) {
		if task.Query == "bad" {
			return nil, errors.New("tab crashed")
		}
		return []string{"https://yandex.by/maps/org/raduga/111/"}, nil
	}
	collectInfo := func(ctx context.Context, page maps.Page, link *models.Link) (*models.Organization, error) {
		return &models.Organization{OrgID: link.OrgID}, nil
	}

	recorder := newSessionRecorder()
	pipe := newTestPipeline(t, storage, recorder, collectLinks, collectInfo)

	require.NoError(t, pipe.Start())
	defer pipe.Stop()

	assert.Eventually(t, func() bool {
		good := taskByQuery(t, storage, "good")
		return good != nil && good.Status == models.TaskStatusDone
	}, 5*time.Second, 25*time.Millisecond)

	bad := taskByQuery(t, storage, "bad")
	assert.Equal(t, models.TaskStatusError, bad.Status)

	// The first session was recycled, the second task got a fresh one
	assert.Equal(t, 2, recorder.count("link-collector"))
}

func TestPipeline_TimeoutKeepsSession(t *testing.T) {
	storage := setupStorage(t)
	addTask(t, storage, "Минск", "slow")
	addTask(t, storage, "Гомель", "good")

	collectLinks := func(ctx context.Context, page maps.Page, task *models.Task) ([]string, error) {
		if task.Query == "slow" {
			return nil, fmt.Errorf("navigate: %w", context.DeadlineExceeded)
		}
		return []string{"https://yandex.by/maps/org/raduga/111/"}, nil
	}
	collectInfo := func(ctx context.Context, page maps.Page, link *models.Link) (*models.Organization, error) {
		return &models.Organization{OrgID: link.OrgID}, nil
	}

	recorder := newSessionRecorder()
	pipe := newTestPipeline(t, storage, recorder, collectLinks, collectInfo)

	require.NoError(t, pipe.Start())
	defer pipe.Stop()

	assert.Eventually(t, func() bool {
		good := taskByQuery(t, storage, "good")
		return good != nil && good.Status == models.TaskStatusDone
	}, 5*time.Second, 25*time.Millisecond)

	slow := taskByQuery(t, storage, "slow")
	assert.Equal(t, models.TaskStatusError, slow.Status)
	assert.Equal(t, 1, recorder.count("link-collector"))
}

func TestPipeline_StartTwiceFails(t *testing.T) {
	storage := setupStorage(t)
	recorder := newSessionRecorder()
	pipe := newTestPipeline(t, storage, recorder,
		func(ctx context.Context, page maps.Page, task *models.Task) ([]string, error) {
			return nil, nil
		},
		func(ctx context.Context, page maps.Page, link *models.Link) (*models.Organization, error) {
			return nil, nil
		})

	require.NoError(t, pipe.Start())
	defer pipe.Stop()

	assert.Error(t, pipe.Start())
}

func TestPipeline_EmptyEnrichmentCoolsDown(t *testing.T) {
	storage := setupStorage(t)
	addTask(t, storage, "Минск", "кофейня")

	var calls atomic.Int32
	pipe := newTestPipeline(t, storage, newSessionRecorder(),
		func(ctx context.Context, page maps.Page, task *models.Task) ([]string, error) {
			return []string{"https://yandex.by/maps/org/cafe/111/"}, nil
		},
		func(ctx context.Context, page maps.Page, link *models.Link) (*models.Organization, error) {
			calls.Add(1)
			return &models.Organization{}, nil
		})

	require.NoError(t, pipe.Start())

	// The link stays unresolved, so the same link is claimed again
	assert.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, 5*time.Second, 10*time.Millisecond)
	pipe.Stop()

	// Every empty result is followed by the error cooldown. A hot loop
	// would rack up thousands of calls before the stop lands.
	assert.LessOrEqual(t, int(calls.Load()), 200)
}

func TestPipeline_RestartAfterAbandonedStop(t *testing.T) {
	storage := setupStorage(t)
	addTask(t, storage, "Минск", "кофейня")

	release := make(chan struct{})
	cfg := testPipelineConfig()
	cfg.StopJoinTimeout = 50 * time.Millisecond

	logger := arbor.NewLogger()
	pipe := New(logger, cfg, storage, newSessionRecorder().factory,
		func(ctx context.Context, page maps.Page, task *models.Task) ([]string, error) {
			<-release
			return nil, nil
		},
		func(ctx context.Context, page maps.Page, link *models.Link) (*models.Organization, error) {
			return nil, nil
		},
		NewDebugSink(logger, t.TempDir(), false))

	require.NoError(t, pipe.Start())
	assert.Eventually(t, func() bool {
		task := taskByQuery(t, storage, "кофейня")
		return task != nil && task.Status == models.TaskStatusRunning
	}, 5*time.Second, 10*time.Millisecond)

	// The discovery loop is stuck inside the collector, so the join
	// times out and the loop is abandoned
	pipe.Stop()
	assert.False(t, pipe.IsRunning())

	// A fresh run must not share its join state with the straggler
	require.NoError(t, pipe.Start())
	assert.True(t, pipe.IsRunning())

	close(release)
	pipe.Stop()
	assert.False(t, pipe.IsRunning())
}

func TestPipeline_StopAsync(t *testing.T) {
	storage := setupStorage(t)
	recorder := newSessionRecorder()
	pipe := newTestPipeline(t, storage, recorder,
		func(ctx context.Context, page maps.Page, task *models.Task) ([]string, error) {
			return nil, nil
		},
		func(ctx context.Context, page maps.Page, link *models.Link) (*models.Organization, error) {
			return nil, nil
		})

	require.NoError(t, pipe.Start())

	// Overlapping stop requests collapse into one
	pipe.StopAsync()
	pipe.StopAsync()

	assert.Eventually(t, func() bool {
		return !pipe.IsRunning()
	}, 5*time.Second, 25*time.Millisecond)

	// Stopping an already-stopped pipeline is a no-op
	pipe.Stop()
	assert.False(t, pipe.IsRunning())

	// The pipeline can be started again after a stop
	require.NoError(t, pipe.Start())
	pipe.Stop()
}
