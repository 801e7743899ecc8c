package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RunFunc is one monitoring cycle.
type RunFunc func(ctx context.Context) error

// Scheduler triggers the daily scan at a fixed hour. Jobs run
// sequentially: a tick during a running job is skipped rather than
// overlapped, since concurrent runs would race on the store files.
type Scheduler struct {
	run      RunFunc
	logger   *logrus.Logger
	scanHour int
	stopChan chan struct{}
	wg       sync.WaitGroup
	jobMutex sync.Mutex
}

func NewScheduler(run RunFunc, scanHour int, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		run:      run,
		logger:   logger,
		scanHour: scanHour,
		stopChan: make(chan struct{}),
	}
}

// Start begins the scheduling loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case t := <-ticker.C:
			if t.Hour() == s.scanHour && t.Minute() == 0 {
				s.executeJob()
			}
		}
	}
}

func (s *Scheduler) executeJob() {
	if !s.jobMutex.TryLock() {
		s.logger.Warn("Previous scan still running, skipping scheduled run")
		return
	}
	defer s.jobMutex.Unlock()

	s.logger.Info("Starting scheduled scan")
	if err := s.run(context.Background()); err != nil {
		s.logger.WithError(err).Error("Scheduled scan failed")
		return
	}
	s.logger.Info("Scheduled scan completed")
}

// RunNow triggers an immediate scan, serialized with scheduled ones.
func (s *Scheduler) RunNow() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeJob()
	}()
}

// Stop waits for any in-flight job and stops the loop.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}
