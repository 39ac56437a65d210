// Package debounce 提供尾沿触发的防抖器：连续调用只在静默 delay 之后执行最后一次。
package debounce

import (
	"sync"
	"time"
)

// Timer 可取消的定时任务
type Timer interface {
	Stop() bool
}

// AfterFunc 在 d 之后于独立 goroutine 中执行 f，签名与 time.AfterFunc 对应
type AfterFunc func(d time.Duration, f func()) Timer

type options struct {
	afterFunc AfterFunc
}

// Option 防抖器选项
type Option func(*options)

// WithClock 替换定时器实现，测试中用于注入可手动推进的时钟
func WithClock(af AfterFunc) Option {
	return func(o *options) {
		o.afterFunc = af
	}
}

func systemAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer 尾沿防抖器。
// 任意时刻最多只有一个待执行的调用；新的 Call 会取消旧的并重新计时，执行时使用最后一次的参数。
// 方法可并发调用，action 在定时器 goroutine 中执行（Flush 时在调用方 goroutine 中执行）。
type Debouncer[T any] struct {
	mu        sync.Mutex
	action    func(T)
	delay     time.Duration
	afterFunc AfterFunc

	timer   Timer
	arg     T
	pending bool
	gen     uint64
}

// New 创建防抖器
func New[T any](action func(T), delay time.Duration, opts ...Option) *Debouncer[T] {
	o := options{afterFunc: systemAfterFunc}
	for _, opt := range opts {
		opt(&o)
	}
	return &Debouncer[T]{
		action:    action,
		delay:     delay,
		afterFunc: o.afterFunc,
	}
}

// Call 取消待执行的调用，并在 delay 后以 arg 执行 action
func (d *Debouncer[T]) Call(arg T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.arg = arg
	d.pending = true
	d.timer = d.afterFunc(d.delay, func() { d.fire(gen) })
}

// Flush 立即执行待执行的调用，没有待执行调用时返回 false
func (d *Debouncer[T]) Flush() bool {
	arg, ok := d.take()
	if !ok {
		return false
	}
	d.action(arg)
	return true
}

// Stop 丢弃待执行的调用
func (d *Debouncer[T]) Stop() {
	d.take()
}

// Pending 是否存在待执行的调用
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *Debouncer[T]) take() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var zero T
	if !d.pending {
		return zero, false
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	arg := d.arg
	d.arg = zero
	d.pending = false
	d.gen++
	return arg, true
}

// fire 定时器回调；代数不一致说明该次调用已被取代或取消
func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if !d.pending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	arg := d.arg
	var zero T
	d.arg = zero
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	d.action(arg)
}
