package monitor

import (
	"sort"
	"time"

	"domainwatch/internal/models"
)

const defaultMaxRecords = 1440

// recordLog keeps the newest poll records in chronological order.
type recordLog struct {
	max   int
	items []models.PollRecord
}

func newRecordLog(max int) *recordLog {
	if max <= 0 {
		max = defaultMaxRecords
	}
	return &recordLog{max: max}
}

func (l *recordLog) add(rec models.PollRecord) {
	l.items = append(l.items, rec)
	if len(l.items) > l.max {
		l.items = l.items[len(l.items)-l.max:]
	}
}

func (l *recordLog) latest() (models.PollRecord, bool) {
	if len(l.items) == 0 {
		return models.PollRecord{}, false
	}
	return l.items[len(l.items)-1], true
}

// last returns a copy of the newest n records; n <= 0 returns all of them.
func (l *recordLog) last(n int) []models.PollRecord {
	if len(l.items) == 0 {
		return nil
	}
	start := 0
	if n > 0 && n < len(l.items) {
		start = len(l.items) - n
	}
	out := make([]models.PollRecord, len(l.items)-start)
	copy(out, l.items[start:])
	return out
}

// since returns records whose timestamp is >= cutoff.
func (l *recordLog) since(cutoff time.Time) []models.PollRecord {
	if cutoff.IsZero() {
		return l.last(0)
	}
	idx := sort.Search(len(l.items), func(i int) bool {
		return !l.items[i].CheckedAt.Before(cutoff)
	})
	if idx >= len(l.items) {
		return nil
	}
	out := make([]models.PollRecord, len(l.items)-idx)
	copy(out, l.items[idx:])
	return out
}
