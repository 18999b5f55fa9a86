package clock

import (
	"sync"
	"time"
)

// Clock 时间来源，服务与后台任务通过它取当前时间，测试时可替换。
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem 系统时钟，统一返回 UTC。
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Manual 手动时钟：只有调用 Set / Advance 才会前进，测试里用来控制租期到期。
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual 从 t 开始的手动时钟。
func NewManual(t time.Time) *Manual {
	return &Manual{now: t.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set 把时钟拨到 t。
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t.UTC()
	m.mu.Unlock()
}

// Advance 前进 d。
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
