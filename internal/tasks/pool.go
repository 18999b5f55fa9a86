package tasks

import (
	"context"
	"log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultPoolBuffer = 1024

// Pool 进程内工作池。
//
// Enqueue 不阻塞：缓冲区满时直接返回 ErrQueueFull，
// 处理函数内部再投递任务（notifyPromo -> sendPushBatch）也不会互相卡死。
// 被丢弃的任务由周期性的全量重扫补上。
type Pool struct {
	reg     *Registry
	jobs    chan Job
	workers int
}

func NewPool(reg *Registry, workers, buffer int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = defaultPoolBuffer
	}
	return &Pool{reg: reg, jobs: make(chan Job, buffer), workers: workers}
}

func (p *Pool) Enqueue(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job.ID == "" {
		job = withID(job)
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run 启动 worker，阻塞到 ctx 取消。
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case job := <-p.jobs:
					p.handle(ctx, job)
				}
			}
		})
	}
	return g.Wait()
}

func (p *Pool) handle(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("task %s id=%s panic: %v", job.Name, job.ID, r)
		}
	}()
	if err := p.reg.Dispatch(ctx, job); err != nil {
		log.Printf("task %s id=%s: %v", job.Name, job.ID, err)
	}
}

func withID(job Job) Job {
	job.ID = uuid.NewString()
	return job
}
