package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"TradeBraid/internal/config"
	"TradeBraid/internal/engine"
	"TradeBraid/internal/ingest"
	"TradeBraid/internal/lesson"
	"TradeBraid/internal/notifier"
	"TradeBraid/internal/store"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron tasks: ingest polling, the lesson-building
// sweep, and retention purge of deprecated lessons.
type Scheduler struct {
	Cron     *cron.Cron
	Engine   *engine.Engine
	Builder  *lesson.Builder
	Cache    *lesson.Cache
	Source   ingest.Source
	Store    store.Store
	Notifier notifier.Notifier
	Cfg      *config.Config
	Ctx      context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, cfg *config.Config, eng *engine.Engine, b *lesson.Builder, cache *lesson.Cache, src ingest.Source, st store.Store, n notifier.Notifier) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Engine:   eng,
		Builder:  b,
		Cache:    cache,
		Source:   src,
		Store:    st,
		Notifier: n,
		Cfg:      cfg,
		Ctx:      ctx,
	}
}

// RegisterAll registers the ingest, sweep, and purge tasks.
func (s *Scheduler) RegisterAll() error {
	if _, err := s.Cron.AddFunc(s.Cfg.Ingest.Cron, s.ingestTask); err != nil {
		return fmt.Errorf("register ingest task: %w", err)
	}
	if _, err := s.Cron.AddFunc(s.Cfg.Schedule.SweepCron, s.sweepTask); err != nil {
		return fmt.Errorf("register sweep task: %w", err)
	}
	if _, err := s.Cron.AddFunc(s.Cfg.Schedule.PurgeCron, s.purgeTask); err != nil {
		return fmt.Errorf("register purge task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunSweepNow executes the lesson sweep immediately (manual trigger).
func (s *Scheduler) RunSweepNow() {
	s.sweepTask()
}

// ingestTask drains the trade source and feeds each closed trade through
// the learning pipeline. One bad trade never blocks the batch.
func (s *Scheduler) ingestTask() {
	trades, err := s.Source.Poll()
	if err != nil {
		log.Printf("[ERROR] poll %s: %v", s.Source.Name(), err)
		return
	}
	for i := range trades {
		if err := s.Engine.ProcessClosedTrade(s.Ctx, &trades[i]); err != nil {
			log.Printf("[ERROR] process trade %s: %v", trades[i].TradeID, err)
		}
	}
	if len(trades) > 0 {
		log.Printf("[INFO] ingested %d closed trades", len(trades))
	}
}

// sweepTask rebuilds lessons for every module, refreshes the matcher
// cache, and reports the result.
func (s *Scheduler) sweepTask() {
	log.Println("[INFO] running lesson sweep")
	start := time.Now()

	results := make(map[string]int, len(s.Cfg.Modules))
	for _, m := range s.Cfg.Modules {
		n, err := s.Builder.Build(m)
		if err != nil {
			log.Printf("[ERROR] sweep module %s: %v", m.Name, err)
			continue
		}
		results[m.Name] = n
	}

	if err := s.Cache.Refresh(s.Store, s.moduleNames()); err != nil {
		log.Printf("[ERROR] refresh lesson cache: %v", err)
	}

	s.trySend(notifier.FormatSweepReport(results, time.Since(start)))
}

// purgeTask removes deprecated lessons past the retention window.
func (s *Scheduler) purgeTask() {
	cutoff := time.Now().AddDate(0, 0, -s.Cfg.Learning.RetentionDays)
	n, err := s.Store.PurgeDeprecated(cutoff)
	if err != nil {
		log.Printf("[ERROR] purge deprecated lessons: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[INFO] purged %d deprecated lessons", n)
	}
}

// HandleCommand processes an admin command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	cmd, arg, _ := strings.Cut(command, " ")
	switch cmd {
	case "/sweep":
		go s.RunSweepNow()
		return "Sweep started."
	case "/lessons":
		module := s.defaultModule(arg)
		lessons, err := s.Store.ListLessons(module)
		if err != nil {
			return fmt.Sprintf("Failed to list lessons: %v", err)
		}
		return notifier.FormatLessonList(module, lessons)
	case "/patterns":
		module := s.defaultModule(arg)
		patterns, err := s.Store.ListPatterns(module)
		if err != nil {
			return fmt.Sprintf("Failed to list patterns: %v", err)
		}
		return notifier.FormatPatternTop(module, patterns, 15)
	case "/status":
		counts := make(map[string][2]int, len(s.Cfg.Modules))
		for _, m := range s.Cfg.Modules {
			patterns, err := s.Store.ListPatterns(m.Name)
			if err != nil {
				return fmt.Sprintf("Failed to read status: %v", err)
			}
			lessons, err := s.Store.ListLessons(m.Name)
			if err != nil {
				return fmt.Sprintf("Failed to read status: %v", err)
			}
			counts[m.Name] = [2]int{len(patterns), len(lessons)}
		}
		return notifier.FormatStatus(counts)
	default:
		return "Commands:\n• /lessons [module]\n• /patterns [module]\n• /sweep\n• /status"
	}
}

func (s *Scheduler) defaultModule(arg string) string {
	if arg != "" {
		return arg
	}
	return s.Cfg.Modules[0].Name
}

func (s *Scheduler) moduleNames() []string {
	names := make([]string, 0, len(s.Cfg.Modules))
	for _, m := range s.Cfg.Modules {
		names = append(names, m.Name)
	}
	return names
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
