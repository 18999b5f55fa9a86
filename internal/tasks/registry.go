package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type Handler func(ctx context.Context, job Job) error

// Registry 任务名 -> 处理函数。
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register 重复注册同名任务视为编程错误。
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[name]; ok {
		panic(fmt.Sprintf("tasks: handler %q registered twice", name))
	}
	r.handlers[name] = h
}

// Dispatch 同步执行任务。
func (r *Registry) Dispatch(ctx context.Context, job Job) error {
	r.mu.RLock()
	h, ok := r.handlers[job.Name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, job.Name)
	}
	return h(ctx, job)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
