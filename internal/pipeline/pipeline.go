package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/maps"
)

// Session is the browser handle a worker loop owns: a drivable page plus
// its lifecycle. browser.Session is the production implementation.
type Session interface {
	maps.Page
	Open(ctx context.Context) error
	Close(quitWait time.Duration)
}

// SessionFactory builds a session for a named worker. The factory decides
// the profile directory, the pipeline only owns the lifecycle.
type SessionFactory func(worker string) Session

// LinkCollectFn runs link discovery for one claimed task against a live page
type LinkCollectFn func(ctx context.Context, page maps.Page, task *models.Task) ([]string, error)

// InfoCollectFn runs detail enrichment for one discovered link
type InfoCollectFn func(ctx context.Context, page maps.Page, link *models.Link) (*models.Organization, error)

const (
	linkWorkerName = "link-collector"
	infoWorkerName = "info-collector"
)

// Pipeline runs the two worker loops against the job store. The loops
// share one stop signal and nothing else: each owns its browser session
// exclusively.
type Pipeline struct {
	cfg          *common.PipelineConfig
	storage      interfaces.StorageManager
	logger       arbor.ILogger
	collectLinks LinkCollectFn
	collectInfo  InfoCollectFn
	newSession   SessionFactory
	debug        *DebugSink

	mu       sync.Mutex
	running  bool
	stopping bool
	stopCh   chan struct{}
	wg       *sync.WaitGroup
}

// New creates a pipeline. The collect callbacks keep the orchestrator
// independent of the target site's page structure.
func New(logger arbor.ILogger, cfg *common.PipelineConfig, storage interfaces.StorageManager,
	newSession SessionFactory, collectLinks LinkCollectFn, collectInfo InfoCollectFn, debug *DebugSink) *Pipeline {
	return &Pipeline{
		cfg:          cfg,
		storage:      storage,
		logger:       logger,
		collectLinks: collectLinks,
		collectInfo:  collectInfo,
		newSession:   newSession,
		debug:        debug,
	}
}

// IsRunning reports whether the worker loops are active
func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start launches both worker loops. Starting an already-running pipeline
// is an error.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("pipeline is already running")
	}

	// A fresh WaitGroup per run keeps stragglers from an abandoned stop
	// from touching the next run's join
	p.stopCh = make(chan struct{})
	p.wg = &sync.WaitGroup{}
	p.wg.Add(2)
	go p.linkLoop(p.stopCh, p.wg)
	go p.infoLoop(p.stopCh, p.wg)
	p.running = true

	p.logger.Info().Msg("Pipeline started")
	return nil
}

// Stop signals both loops and waits for them, bounded by the join
// timeout. Loops close their own sessions on exit; a loop stuck in an
// uninterruptible browser call is abandoned once the timeout passes.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	stopCh := p.stopCh
	wg := p.wg
	p.mu.Unlock()

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info().Msg("Pipeline stopped")
	case <-time.After(p.cfg.StopJoinTimeout):
		p.logger.Warn().
			Dur("timeout", p.cfg.StopJoinTimeout).
			Msg("Pipeline loops did not join in time, abandoning")
	}

	p.mu.Lock()
	p.running = false
	p.stopping = false
	p.mu.Unlock()
}

// StopAsync triggers a stop without blocking the caller, collapsing
// overlapping requests into one in-flight stop. Safe to call from a
// request handler.
func (p *Pipeline) StopAsync() {
	p.mu.Lock()
	if !p.running || p.stopping {
		p.mu.Unlock()
		return
	}
	p.stopping = true
	p.mu.Unlock()

	go p.Stop()
}

// pause sleeps for d unless the stop signal fires first
func (p *Pipeline) pause(stopCh chan struct{}, d time.Duration) {
	select {
	case <-stopCh:
	case <-time.After(d):
	}
}

func stopped(stopCh chan struct{}) bool {
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}

// openSession lazily creates and opens the loop's session
func (p *Pipeline) openSession(ctx context.Context, worker string) (Session, error) {
	session := p.newSession(worker)
	if err := session.Open(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

// recycleSession tears a session down so the next iteration starts fresh.
// Used after unclassified errors, when the browser state is not trusted.
func (p *Pipeline) recycleSession(session Session) Session {
	if session != nil {
		session.Close(p.cfg.SessionQuitWait)
	}
	return nil
}

// linkLoop claims discovery tasks and persists their harvested links.
// The stop signal is checked between tasks only, an in-flight browser
// interaction is never interrupted.
func (p *Pipeline) linkLoop(stopCh chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	var session Session
	defer func() {
		if session != nil {
			session.Close(p.cfg.SessionQuitWait)
		}
	}()

	log := p.logger
	ctx := context.Background()

	for !stopped(stopCh) {
		task, err := p.storage.TaskStorage().ClaimNext(ctx, p.cfg.MaxAttempts)
		if err != nil {
			log.Error().Err(err).Msg("Task claim failed")
			p.pause(stopCh, p.cfg.PollInterval)
			continue
		}
		if task == nil {
			p.pause(stopCh, p.cfg.PollInterval)
			continue
		}

		if session == nil {
			session, err = p.openSession(ctx, linkWorkerName)
			if err != nil {
				log.Error().Err(err).Msg("Browser session open failed")
				p.failTask(ctx, task, fmt.Sprintf("browser session open failed: %v", err))
				p.pause(stopCh, p.cfg.ErrorCooldown)
				continue
			}
		}

		log.Info().
			Int64("task_id", task.ID).
			Str("city", task.City).
			Str("mode", task.Mode.String()).
			Int("attempt", task.Attempts).
			Msg("Task claimed")

		urls, err := p.collectLinks(ctx, session, task)
		if err != nil {
			session = p.handleTaskError(ctx, stopCh, session, task, err, log)
			continue
		}

		inserted, err := p.storage.LinkStorage().InsertLinks(ctx, task, urls, task.Mode.String())
		if err != nil {
			log.Error().Err(err).Int64("task_id", task.ID).Msg("Link insert failed")
			p.failTask(ctx, task, fmt.Sprintf("link insert failed: %v", err))
			p.pause(stopCh, p.cfg.ErrorCooldown)
			continue
		}

		if err := p.storage.TaskStorage().Complete(ctx, task.ID, inserted); err != nil {
			log.Error().Err(err).Int64("task_id", task.ID).Msg("Task completion failed")
		}
		log.Info().
			Int64("task_id", task.ID).
			Int("inserted", inserted).
			Msg("Task done")
	}
}

func (p *Pipeline) failTask(ctx context.Context, task *models.Task, msg string) {
	if err := p.storage.TaskStorage().Fail(ctx, task.ID, msg, linkWorkerName); err != nil {
		p.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Task status update failed")
	}
}

// handleTaskError applies the error taxonomy to one failed discovery task
// and returns the session the loop should keep (nil when recycled).
func (p *Pipeline) handleTaskError(ctx context.Context, stopCh chan struct{}, session Session, task *models.Task, err error, log arbor.ILogger) Session {
	switch {
	case maps.IsCaptchaError(err):
		log.Warn().Int64("task_id", task.ID).Err(err).Msg("Captcha detected")
		p.debug.Capture(ctx, session, fmt.Sprintf("CAPTCHA_TASK_%d_%s", task.ID, task.City), err.Error())
		if ferr := p.storage.TaskStorage().FailCaptcha(ctx, task.ID, err.Error(), linkWorkerName); ferr != nil {
			log.Error().Err(ferr).Int64("task_id", task.ID).Msg("Task status update failed")
		}
		p.pause(stopCh, p.cfg.CaptchaCooldown)
		return session

	case maps.IsTimeoutError(err):
		log.Warn().Int64("task_id", task.ID).Err(err).Msg("Timeout during discovery")
		p.debug.Capture(ctx, session, fmt.Sprintf("TIMEOUT_TASK_%d_%s", task.ID, task.City), err.Error())
		p.failTask(ctx, task, err.Error())
		p.pause(stopCh, p.cfg.ErrorCooldown)
		return session

	case maps.IsStructureError(err):
		log.Warn().Int64("task_id", task.ID).Err(err).Msg("Page structure mismatch")
		p.debug.Capture(ctx, session, fmt.Sprintf("STRUCTURE_TASK_%d_%s", task.ID, task.City), err.Error())
		p.failTask(ctx, task, err.Error())
		p.pause(stopCh, p.cfg.ErrorCooldown)
		return session

	default:
		// Unknown failure, the browser state is no longer trusted
		log.Error().Int64("task_id", task.ID).Err(err).Msg("Unclassified discovery error, recycling session")
		p.debug.Capture(ctx, session, fmt.Sprintf("ERROR_TASK_%d_%s", task.ID, task.City), err.Error())
		p.failTask(ctx, task, err.Error())
		recycled := p.recycleSession(session)
		p.pause(stopCh, p.cfg.ErrorCooldown)
		return recycled
	}
}

// infoLoop resolves discovered links into organizations. Links carry no
// per-item status, so captchas and errors here only cool down and retry.
func (p *Pipeline) infoLoop(stopCh chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	var session Session
	defer func() {
		if session != nil {
			session.Close(p.cfg.SessionQuitWait)
		}
	}()

	log := p.logger
	ctx := context.Background()

	for !stopped(stopCh) {
		link, err := p.storage.LinkStorage().ClaimNextUnresolved(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Link claim failed")
			p.pause(stopCh, p.cfg.PollInterval)
			continue
		}
		if link == nil {
			p.pause(stopCh, p.cfg.PollInterval)
			continue
		}

		if session == nil {
			session, err = p.openSession(ctx, infoWorkerName)
			if err != nil {
				log.Error().Err(err).Msg("Browser session open failed")
				p.pause(stopCh, p.cfg.ErrorCooldown)
				continue
			}
		}

		org, err := p.collectInfo(ctx, session, link)
		switch {
		case err == nil:
			if org == nil || org.OrgID == "" {
				// The link stays unresolved and will be claimed again,
				// the cooldown keeps a misbehaving collector from spinning
				log.Warn().Str("url", link.URL).Msg("Enrichment returned no organization id, skipping")
				p.pause(stopCh, p.cfg.ErrorCooldown)
				continue
			}
			if err := p.storage.OrgStorage().Upsert(ctx, org); err != nil {
				log.Error().Err(err).Str("org_id", org.OrgID).Msg("Organization upsert failed")
				p.pause(stopCh, p.cfg.ErrorCooldown)
				continue
			}
			if err := p.storage.OrgStorage().AddSource(ctx, org.OrgID, link, link.SourceMode); err != nil {
				log.Error().Err(err).Str("org_id", org.OrgID).Msg("Source append failed")
			}
			log.Info().Str("org_id", org.OrgID).Str("name", org.Name).Msg("Organization resolved")

		case maps.IsCaptchaError(err):
			log.Warn().Str("url", link.URL).Err(err).Msg("Captcha during enrichment")
			p.debug.Capture(ctx, session, fmt.Sprintf("CAPTCHA_INFO_%s", link.OrgID), err.Error())
			p.pause(stopCh, p.cfg.CaptchaCooldown)

		default:
			log.Error().Str("url", link.URL).Err(err).Msg("Enrichment error, recycling session")
			p.debug.Capture(ctx, session, fmt.Sprintf("ERROR_INFO_%s", link.OrgID), err.Error())
			session = p.recycleSession(session)
			p.pause(stopCh, p.cfg.ErrorCooldown)
		}
	}
}
