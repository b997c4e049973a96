package printer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ByLCY/labelcanvas/layout"
)

// State 为打印作业状态。
type State int

const (
	Queued State = iota
	Printing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Queued:
		return "queued"
	case Printing:
		return "printing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further events follow for the job.
func (s State) Terminal() bool { return s == Done || s == Failed }

// JobID 标识一个打印作业。
type JobID string

// StatusEvent 是打印状态流中的一条事件。
type StatusEvent struct {
	Job     JobID
	Printer string
	State   State
	Output  string // Done 时为宿主返回的输出位置
	Err     error  // Failed 时非空
	At      time.Time
}

// Request 描述一次提交。PDF 非空时导出 PDF，否则发送到 Printer（为空则用宿主默认打印机）。
type Request struct {
	Printer string
	Payload *layout.Payload
	PDF     *PDFOptions
}

// Spooler 把打印请求交给宿主，每个作业在独立的 goroutine 中运行，调用方不会被阻塞。
// 作业一旦提交即归宿主所有，不支持取消；失败只通过状态事件报告。
type Spooler struct {
	host Host
	log  *slog.Logger
	now  func() time.Time

	mu      sync.Mutex
	subs    map[uint64]func(StatusEvent)
	nextSub uint64
	seq     uint64
	closed  bool
	wg      sync.WaitGroup
}

// NewSpooler creates a spooler that submits jobs to host.
func NewSpooler(host Host, logger *slog.Logger) *Spooler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Spooler{host: host, log: logger, now: time.Now, subs: map[uint64]func(StatusEvent){}}
}

// Submit 立即返回作业标识；Queued 事件在返回前发布，其余事件由作业 goroutine 发布。
// ctx 的取消不会中断已提交的作业，但其中的值会传给宿主。
func (s *Spooler) Submit(ctx context.Context, req Request) (JobID, error) {
	if req.Payload == nil {
		return "", fmt.Errorf("printer: 打印载荷为空")
	}
	digest, err := req.Payload.Digest()
	if err != nil {
		return "", fmt.Errorf("printer: 计算载荷摘要失败: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	s.seq++
	id := JobID(fmt.Sprintf("%s-%d", digest[:12], s.seq))
	s.wg.Add(1)
	s.mu.Unlock()

	target := req.Printer
	if req.PDF != nil {
		target = PDFPrinterName
	}
	s.publish(StatusEvent{Job: id, Printer: target, State: Queued})
	s.log.Info("printer: 作业已提交", "job", string(id), "printer", target)

	jobCtx := context.WithoutCancel(ctx)
	go s.run(jobCtx, id, target, req)
	return id, nil
}

func (s *Spooler) run(ctx context.Context, id JobID, target string, req Request) {
	defer s.wg.Done()
	s.publish(StatusEvent{Job: id, Printer: target, State: Printing})

	var (
		out string
		err error
	)
	if req.PDF != nil {
		out, err = s.host.PrintToPDF(ctx, req.Payload, *req.PDF)
	} else {
		out, err = s.host.PrintLabel(ctx, req.Printer, req.Payload)
	}
	if err != nil {
		s.log.Error("printer: 作业失败", "job", string(id), "err", err)
		s.publish(StatusEvent{Job: id, Printer: target, State: Failed, Err: err})
		return
	}
	s.log.Info("printer: 作业完成", "job", string(id), "output", out)
	s.publish(StatusEvent{Job: id, Printer: target, State: Done, Output: out})
}

// OnPrintStatus 订阅状态事件。回调在作业 goroutine 中调用，应尽快返回。
func (s *Spooler) OnPrintStatus(cb func(StatusEvent)) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = cb
	return &Subscription{spooler: s, id: id}
}

func (s *Spooler) publish(ev StatusEvent) {
	ev.At = s.now()
	s.mu.Lock()
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	slices.Sort(ids)
	for _, id := range ids {
		// 回调之间可能有人退订，每次重新查找。
		s.mu.Lock()
		cb, ok := s.subs[id]
		s.mu.Unlock()
		if ok {
			cb(ev)
		}
	}
}

// Wait 等待所有已提交的作业结束。
func (s *Spooler) Wait() { s.wg.Wait() }

// Close 拒绝新的提交并等待进行中的作业结束。可重复调用。
func (s *Spooler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

// Subscription 是一次状态订阅。
type Subscription struct {
	spooler *Spooler
	id      uint64
	once    sync.Once
}

// Unsubscribe 取消订阅；重复调用是安全的空操作。
func (sub *Subscription) Unsubscribe() {
	if sub == nil {
		return
	}
	sub.once.Do(func() {
		sub.spooler.mu.Lock()
		delete(sub.spooler.subs, sub.id)
		sub.spooler.mu.Unlock()
	})
}
