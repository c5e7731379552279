package eviction

import (
	"context"
	"os"
	"sort"
	"time"
)

// Directory 是 sweeper 所需的最小目录原语，*cache.Store 即满足该接口。
type Directory interface {
	List(ctx context.Context) ([]string, error)
	StatName(name string) (os.FileInfo, error)
	RemoveName(name string) error
}

// TempNamer 由能识别写入中临时文件的目录实现（*cache.Store）。
// 未实现该接口的目录，其全部文件都按普通条目处理。
type TempNamer interface {
	IsTemp(name string) bool
}

// MinTempGrace 是临时文件被视为崩溃遗留前的最短存活时间。
const MinTempGrace = time.Minute

// Policy 描述淘汰阈值。MaxAge 为 0 表示关闭按年龄淘汰。
// TempGrace 内的临时文件视为写入中，既不计入容量也不会被删除；<=0 时取 MinTempGrace。
type Policy struct {
	MaxBytes  int64
	MaxAge    time.Duration
	TempGrace time.Duration
}

// EntryStat 是一次 sweep 中单个文件的快照。stat 失败时 ModTime 为 Unix 纪元、Size 为 0，
// 使其排在最旧的位置并被优先回收。
type EntryStat struct {
	Name       string    `json:"name"`
	ModTime    time.Time `json:"mod_time"`
	Size       int64     `json:"size"`
	StatFailed bool      `json:"stat_failed,omitempty"`
	Temp       bool      `json:"temp,omitempty"`
}

// Plan 是一次淘汰决策的结果，各切片都保持新到旧的顺序。
// Pending 是仍在写入中的临时文件，Orphaned 是超过宽限期的遗留临时文件。
type Plan struct {
	Keep          []EntryStat
	Expired       []EntryStat
	Evicted       []EntryStat
	Pending       []EntryStat
	Orphaned      []EntryStat
	RetainedBytes int64
}

// Removals 返回 Orphaned、Expired 与 Evicted 的合并列表。
func (p Plan) Removals() []EntryStat {
	out := make([]EntryStat, 0, len(p.Orphaned)+len(p.Expired)+len(p.Evicted))
	out = append(out, p.Orphaned...)
	out = append(out, p.Expired...)
	return append(out, p.Evicted...)
}

// Snapshot 列出目录并逐个 stat，返回按 ModTime 降序（最新在前）排列的快照。
// 单个 stat 失败不会中断，只有列目录失败才返回 error。子目录被忽略。
// 临时文件 stat 失败说明写入已 rename 或放弃，直接跳过而不计为失败。
func Snapshot(ctx context.Context, dir Directory) ([]EntryStat, int, error) {
	names, err := dir.List(ctx)
	if err != nil {
		return nil, 0, err
	}
	temps, _ := dir.(TempNamer)

	entries := make([]EntryStat, 0, len(names))
	failures := 0
	for _, name := range names {
		temp := temps != nil && temps.IsTemp(name)
		info, statErr := dir.StatName(name)
		if statErr != nil {
			if temp {
				continue
			}
			failures++
			entries = append(entries, EntryStat{Name: name, ModTime: time.Unix(0, 0), StatFailed: true})
			continue
		}
		if info.IsDir() {
			continue
		}
		entries = append(entries, EntryStat{Name: name, ModTime: info.ModTime(), Size: info.Size(), Temp: temp})
	}

	SortNewestFirst(entries)
	return entries, failures, nil
}

// SortNewestFirst 按 ModTime 降序排序，ModTime 相同则按文件名升序，保证顺序确定。
func SortNewestFirst(entries []EntryStat) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.ModTime.Equal(b.ModTime) {
			return a.ModTime.After(b.ModTime)
		}
		return a.Name < b.Name
	})
}

// BuildPlan 先把临时文件分流为 Pending（宽限期内）或 Orphaned（超期），
// 二者都不参与后续计算；其余条目依次执行两阶段淘汰：
//
//  1. 年龄：ModTime 严格早于 now-MaxAge 的条目进入 Expired，并从工作列表移除；
//  2. 容量：沿新到旧累加 Size，首次超过 MaxBytes 的条目及其之后（更旧）的全部条目进入 Evicted。
//
// 第二阶段保留的是"最新前缀"，不会为了多留条目而回头挑选较小的旧条目。
func BuildPlan(entries []EntryStat, now time.Time, policy Policy) Plan {
	var plan Plan

	grace := policy.TempGrace
	if grace <= 0 {
		grace = MinTempGrace
	}
	graceCutoff := now.Add(-grace)

	working := make([]EntryStat, 0, len(entries))
	for _, entry := range entries {
		switch {
		case !entry.Temp:
			working = append(working, entry)
		case entry.ModTime.Before(graceCutoff):
			plan.Orphaned = append(plan.Orphaned, entry)
		default:
			plan.Pending = append(plan.Pending, entry)
		}
	}

	if policy.MaxAge > 0 {
		cutoff := now.Add(-policy.MaxAge)
		aged := working
		working = make([]EntryStat, 0, len(aged))
		for _, entry := range aged {
			if entry.ModTime.Before(cutoff) {
				plan.Expired = append(plan.Expired, entry)
				continue
			}
			working = append(working, entry)
		}
	}

	var sizeUpTo int64
	for i, entry := range working {
		sizeUpTo += entry.Size
		if sizeUpTo > policy.MaxBytes {
			plan.Evicted = append(plan.Evicted, working[i:]...)
			break
		}
		plan.Keep = append(plan.Keep, entry)
		plan.RetainedBytes = sizeUpTo
	}
	return plan
}
