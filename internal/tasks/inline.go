package tasks

import "context"

// Inline 在调用方 goroutine 里直接执行任务，主要给测试和单机脚本用。
type Inline struct {
	reg *Registry
}

func NewInline(reg *Registry) *Inline {
	return &Inline{reg: reg}
}

func (q *Inline) Enqueue(ctx context.Context, job Job) error {
	if job.ID == "" {
		job = withID(job)
	}
	return q.reg.Dispatch(ctx, job)
}
