package logger

import (
	"sync"
)

// AsyncLogger 用于把日志写入异步队列，然后由后台 goroutine 调用 handle 消费。
//
// 该类型同时实现 io.Writer，可直接作为 zap 的写入目标。
type AsyncLogger struct {
	// queue 为日志缓冲队列；满时丢弃，避免阻塞业务线程。
	queue chan []byte
	// handle 为实际的写入回调（例如发送到远端、写文件等）。
	handle func(b []byte)
	// closed 关闭信号：Close 后 Write 会直接丢弃，后台协程会 drain 队列后退出。
	closed chan struct{}
	// once 确保 Close 只执行一次，避免重复 close channel panic。
	once sync.Once
}

// NewAsyncLogger 创建一个异步写入器。
//
// size 为队列长度；当队列已满时，新日志会被丢弃（不阻塞调用方）。
func NewAsyncLogger(size int, handle func(b []byte)) *AsyncLogger {
	if size <= 0 {
		size = 1
	}
	logger := &AsyncLogger{
		queue:  make(chan []byte, size),
		handle: handle,
		closed: make(chan struct{}),
	}

	// 后台消费者协程：单线程消费，保证 handle 调用串行。
	go logger.init()

	return logger
}

func (l *AsyncLogger) init() {
	for {
		select {
		case b := <-l.queue:
			if l.handle != nil {
				l.handle(b)
			}
		case <-l.closed:
			// 收到关闭信号：继续把队列里已有日志尽量消费完，再退出。
			for {
				select {
				case b := <-l.queue:
					if l.handle != nil {
						l.handle(b)
					}
				default:
					return
				}
			}
		}
	}
}

// Write 实现 io.Writer。
//
// 这里会复制入参切片，避免上层复用/修改同一底层数组导致数据竞争或内容错乱。
func (l *AsyncLogger) Write(p []byte) (n int, err error) {
	if l == nil {
		return len(p), nil
	}
	// 已关闭时直接丢弃（返回成功长度，避免影响业务逻辑）。
	select {
	case <-l.closed:
		return len(p), nil
	default:
	}
	select {
	case l.queue <- append([]byte(nil), p...):
	default:
		// 队列满：丢弃，保证不会阻塞调用方。
	}
	return len(p), nil
}

// Logger 允许将 AsyncLogger 直接作为回调函数传给 NewZapLogger。
func (l *AsyncLogger) Logger(b []byte) {
	_, _ = l.Write(b)
}

func (l *AsyncLogger) Close() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		close(l.closed)
	})
}

func (l *AsyncLogger) Sync() error {
	// Sync 的语义为“尽量落盘”：通过 Close 触发 drain 并退出。
	l.Close()
	return nil
}
