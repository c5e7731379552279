package eviction

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// DefaultDeleteConcurrency 限制单次 sweep 并发删除的 goroutine 数。
const DefaultDeleteConcurrency = 4

// Report 汇总一次 sweep 的结果，用于日志与诊断接口。
type Report struct {
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration_ns"`
	Scanned        int           `json:"scanned"`
	StatFailures   int           `json:"stat_failures"`
	Expired        int           `json:"expired"`
	Evicted        int           `json:"evicted"`
	Orphaned       int           `json:"orphaned"`
	Pending        int           `json:"pending"`
	DeleteFailures int           `json:"delete_failures"`
	RetainedBytes  int64         `json:"retained_bytes"`
	FreedBytes     int64         `json:"freed_bytes"`
	ListFailed     bool          `json:"list_failed,omitempty"`
}

// Fields 将报告转换为 logrus 字段。
func (r Report) Fields() logrus.Fields {
	return logrus.Fields{
		"action":          "sweep",
		"scanned":         r.Scanned,
		"stat_failures":   r.StatFailures,
		"expired":         r.Expired,
		"evicted":         r.Evicted,
		"orphaned":        r.Orphaned,
		"pending":         r.Pending,
		"delete_failures": r.DeleteFailures,
		"retained_bytes":  r.RetainedBytes,
		"freed_bytes":     r.FreedBytes,
		"elapsed_ms":      r.Duration.Milliseconds(),
	}
}

// Stats 暴露已完成的 sweep 次数与最近一次报告。
type Stats struct {
	Sweeps int64   `json:"sweeps"`
	Last   *Report `json:"last_sweep,omitempty"`
}

// Option 调整 Sweeper 的可选行为。
type Option func(*Sweeper)

// WithClock 替换计算年龄截止时间所用的时钟。
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDeleteConcurrency 设置删除阶段的最大并发数，<=0 时使用默认值。
func WithDeleteConcurrency(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.deleteConcurrency = n
		}
	}
}

// WithSweepHook 在每次 sweep 完成后同步回调。
func WithSweepHook(hook func(Report)) Option {
	return func(s *Sweeper) {
		s.hook = hook
	}
}

// Sweeper 周期性执行淘汰。定时器句柄属于实例本身，多个缓存实例互不影响；
// sweepMu 保证任意时刻最多只有一次 sweep 在运行。
type Sweeper struct {
	dir               Directory
	policy            Policy
	interval          time.Duration
	logger            *logrus.Logger
	now               func() time.Time
	deleteConcurrency int
	hook              func(Report)

	sweepMu sync.Mutex

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	running bool
	sweeps  int64
	last    *Report
}

// New 构建 Sweeper；logger 为空时丢弃日志。policy.TempGrace 未设置时取
// max(interval, MinTempGrace)，保证写入中的临时文件至少跨过一个周期。
func New(dir Directory, policy Policy, interval time.Duration, logger *logrus.Logger, opts ...Option) *Sweeper {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	s := &Sweeper{
		dir:               dir,
		policy:            policy,
		interval:          interval,
		logger:            logger,
		now:               time.Now,
		deleteConcurrency: DefaultDeleteConcurrency,
	}
	if s.policy.TempGrace <= 0 {
		s.policy.TempGrace = max(interval, MinTempGrace)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 布置下一次 sweep 的定时器，重复调用无副作用。
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.gen++
	s.scheduleLocked()
}

// Stop 仅取消尚未触发的定时器；正在执行的 sweep 会完成其删除。可重复调用。
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Stats 返回 sweep 计数与最近一次报告的副本。
func (s *Sweeper) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := Stats{Sweeps: s.sweeps}
	if s.last != nil {
		last := *s.last
		stats.Last = &last
	}
	return stats
}

func (s *Sweeper) scheduleLocked() {
	if s.interval <= 0 {
		return
	}
	gen := s.gen
	s.timer = time.AfterFunc(s.interval, func() { s.tick(gen) })
}

// tick 只在所属代次仍然有效时执行并续约，避免 Stop/Start 交错后出现两条定时链。
func (s *Sweeper) tick(gen uint64) {
	if !s.current(gen) {
		return
	}

	s.Sweep(context.Background())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && s.gen == gen {
		s.scheduleLocked()
	}
}

func (s *Sweeper) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.gen == gen
}

// Sweep 执行一次完整的快照 → 两阶段决策 → 删除。所有失败都只记录日志，不会返回错误。
func (s *Sweeper) Sweep(ctx context.Context) Report {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	started := s.now()
	report := Report{StartedAt: started}

	entries, statFailures, err := Snapshot(ctx, s.dir)
	if err != nil {
		report.ListFailed = true
		s.logger.WithError(err).WithField("action", "sweep").Warn("sweep_list_failed")
		return s.finish(report, started)
	}
	report.Scanned = len(entries)
	report.StatFailures = statFailures

	plan := BuildPlan(entries, started, s.policy)
	report.Expired = len(plan.Expired)
	report.Evicted = len(plan.Evicted)
	report.Orphaned = len(plan.Orphaned)
	report.Pending = len(plan.Pending)
	report.RetainedBytes = plan.RetainedBytes

	failed, freed := s.remove(plan.Removals())
	report.DeleteFailures = failed
	report.FreedBytes = freed

	return s.finish(report, started)
}

type removal struct {
	entry EntryStat
	err   error
}

// remove 通过有界 worker pool 并发删除；每个条目的错误单独收集，互不影响。
func (s *Sweeper) remove(entries []EntryStat) (int, int64) {
	if len(entries) == 0 {
		return 0, 0
	}

	p := pool.NewWithResults[removal]().WithMaxGoroutines(s.deleteConcurrency)
	for _, entry := range entries {
		p.Go(func() removal {
			return removal{entry: entry, err: s.dir.RemoveName(entry.Name)}
		})
	}

	var (
		failed int
		freed  int64
	)
	for _, result := range p.Wait() {
		if result.err != nil {
			if errors.Is(result.err, fs.ErrNotExist) {
				s.logger.WithField("name", result.entry.Name).Debug("sweep_entry_already_gone")
				continue
			}
			failed++
			s.logger.WithError(result.err).
				WithFields(logrus.Fields{"action": "sweep", "name": result.entry.Name}).
				Warn("sweep_delete_failed")
			continue
		}
		freed += result.entry.Size
	}
	return failed, freed
}

func (s *Sweeper) finish(report Report, started time.Time) Report {
	report.Duration = s.now().Sub(started)

	s.mu.Lock()
	s.sweeps++
	s.last = &report
	s.mu.Unlock()

	s.logger.WithFields(report.Fields()).Info("sweep_complete")
	if s.hook != nil {
		s.hook(report)
	}
	return report
}
