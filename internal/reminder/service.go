package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/teampulsehq/teampulse/internal/store"
)

// Service runs the periodic due-soon scan for one user session. It holds the
// single active-reminder slot: once a reminder is surfaced no further one
// fires until Dismiss clears it.
type Service struct {
	user     store.User
	tasks    func() []store.Task
	window   time.Duration
	tick     time.Duration
	OnRemind func(task store.Task)
	log      *zap.Logger

	mu     sync.Mutex
	active *store.Task
	cron   *rcron.Cron
	cancel context.CancelFunc
}

func NewService(user store.User, tasks func() []store.Task, window, tick time.Duration, log *zap.Logger) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	if tick <= 0 {
		tick = 30 * time.Second
	}
	return &Service{
		user:   user,
		tasks:  tasks,
		window: window,
		tick:   tick,
		log:    log,
	}
}

// Start schedules the recurring scan. For admin users this is a no-op:
// the scan would never match.
func (s *Service) Start(ctx context.Context) error {
	if s.user.IsAdmin() {
		s.log.Debug("admin session, reminder scan not scheduled", zap.String("user", s.user.ID))
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.cron = rcron.New()
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.tick), s.scanOnce); err != nil {
		cancel()
		return fmt.Errorf("schedule reminder scan: %w", err)
	}
	s.cron.Start()
	s.log.Info("reminder scan started",
		zap.String("user", s.user.ID),
		zap.Duration("tick", s.tick),
		zap.Duration("window", s.window))

	go func() {
		<-runCtx.Done()
		s.stopCron()
	}()

	return nil
}

func (s *Service) scanOnce() {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()

	task := Scan(time.Now(), s.tasks(), s.user, active, s.window)
	if task == nil {
		return
	}

	s.mu.Lock()
	if s.active != nil {
		// A reminder surfaced between the scan and now; do not preempt.
		s.mu.Unlock()
		return
	}
	s.active = task
	s.mu.Unlock()

	s.log.Info("task due soon",
		zap.String("user", s.user.ID),
		zap.String("task", task.ID),
		zap.String("title", task.Title))
	if s.OnRemind != nil {
		s.OnRemind(*task)
	}
}

// Active returns the currently surfaced reminder, if any.
func (s *Service) Active() *store.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	task := *s.active
	return &task
}

// Dismiss clears the active reminder so future scans can fire again.
func (s *Service) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.log.Info("reminder dismissed", zap.String("task", s.active.ID))
		s.active = nil
	}
}

func (s *Service) stopCron() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn("reminder stop timeout waiting for running scan")
	}
	s.log.Info("reminder scan stopped", zap.String("user", s.user.ID))
}

// Stop ends the recurring scan. Safe to call on a never-started or admin
// service.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
