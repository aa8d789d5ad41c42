package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Validator 校验候选配置；返回 nil 表示接受，返回 error 表示整体拒绝。
// 被拒绝的候选不会合并、不会部分生效，也不会触发任何订阅回调。
type Validator func(entries map[string]string) error

// Subscriber 在一份配置通过校验并发布后被调用，入参为该配置的副本。
type Subscriber func(entries map[string]string)

// Option 定义 WatchInstance 的可选构建项。
type Option func(*WatchInstance)

// WithValidator 设置配置校验器（默认全部接受）。
func WithValidator(validate Validator) Option {
	return func(s *WatchInstance) {
		s.validate = validate
	}
}

// OnValidConfig 在构建期注册一个订阅回调。
func OnValidConfig(handle Subscriber) Option {
	return func(s *WatchInstance) {
		s.subscribers = append(s.subscribers, subscriberEntry{
			id:     uuid.NewString(),
			handle: handle,
		})
	}
}

// WithLog 设置内部日志输出。
func WithLog(log *zap.Logger) Option {
	return func(s *WatchInstance) {
		s.log = log
	}
}

type subscriberEntry struct {
	id     string
	handle Subscriber
}

// WatchInstance 配置监听引擎。
//
// 单个后台协程驱动“阻塞读 -> 解码 -> 校验 -> 发布 -> 通知”循环；
// 快照读取、订阅管理与 Shutdown 可在任意协程并发调用。
type WatchInstance struct {
	// ctx/cancel 控制引擎生命周期：
	// - watch 循环阻塞运行，收到 ctx.Done() 后退出
	// - Shutdown() 调用 cancel() 并等待 done
	ctx    context.Context
	cancel context.CancelFunc
	// done 在 watch 协程退出时关闭，Shutdown 依赖其完成 join。
	done chan struct{}

	source Source
	conf   *Conf
	props  *Properties

	validate Validator
	// limiter 约束异常路径的重试频率，避免存储不可用时空转。
	limiter *rate.Limiter

	// mu 保护 subscribers：注册/注销与通知快照互斥。
	mu          sync.Mutex
	subscribers []subscriberEntry

	log *zap.Logger

	// lastToken 为最近一次见到的版本 token，仅 watch 协程读写。
	lastToken uint64
}

// New 创建配置监听引擎并启动后台监听。
//
// 身份解析顺序：conf.Identity 显式字段优先，缺失字段由环境变量兜底；
// 服务名两者均未提供时返回错误。
func New(source Source, conf *Conf, opts ...Option) (*WatchInstance, error) {
	if source == nil {
		return nil, ErrSourceIsNil
	}
	if conf == nil {
		return nil, ErrConfIsNil
	}
	conf.Bootstrap()
	if conf.Identity.Service == "" {
		return nil, ErrServiceIsEmpty
	}

	ctx, cancel := context.WithCancel(context.Background())

	instance := &WatchInstance{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),

		source: source,
		conf:   conf,
		props:  NewProperties(),

		limiter: rate.NewLimiter(rate.Every(conf.RetryInterval), 1),
	}

	for _, opt := range opts {
		opt(instance)
	}

	go instance.watch()

	return instance, nil
}

// Properties 返回配置快照。
// 引擎生命周期内始终返回同一个对象；首次有效配置到达前内容为空。
func (s *WatchInstance) Properties() *Properties {
	return s.props
}

// ServiceIdentifier 返回解析后的身份标识。
func (s *WatchInstance) ServiceIdentifier() ServiceIdentifier {
	return s.conf.Identity
}

// Subscribe 注册一个订阅回调，返回注销函数。
func (s *WatchInstance) Subscribe(handle Subscriber) func() {
	entry := subscriberEntry{
		id:     uuid.NewString(),
		handle: handle,
	}

	s.mu.Lock()
	s.subscribers = append(s.subscribers, entry)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		for i, item := range s.subscribers {
			if item.id == entry.id {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
	}
}

// Shutdown 停止监听并等待后台协程退出；可重复调用。
//
// 不强行打断进行中的阻塞读：cancel 后 Source 应尽快返回，
// 之后不再有任何发布或通知发生。
func (s *WatchInstance) Shutdown() {
	s.cancel()
	<-s.done
}

// watch 是引擎的主循环，仅在 New 启动的协程中运行。
func (s *WatchInstance) watch() {
	defer close(s.done)

	prefix := s.conf.Prefix()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		entries, token, err := s.source.Fetch(s.ctx, prefix, s.lastToken)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if s.log != nil {
				s.log.Error("config fetch failed",
					zap.String("service", s.conf.Identity.Service),
					zap.String("prefix", prefix),
					zap.Error(err))
			}
			// 限速后重试同一 token；单次失败不向调用方传播。
			if s.limiter.Wait(s.ctx) != nil {
				return
			}
			continue
		}

		// 超时无变更（或 token 未前进，防御性处理）：立刻进入下一轮阻塞读。
		if token == s.lastToken {
			continue
		}

		decoded := decodeEntries(entries, prefix)

		if err = s.runValidate(decoded); err != nil {
			if s.log != nil {
				s.log.Warn("config rejected by validator",
					zap.String("service", s.conf.Identity.Service),
					zap.Uint64("token", token),
					zap.Error(err))
			}
			// 候选整体丢弃，但 token 前进：存储侧索引已经越过该状态，
			// 保留旧 token 会让下一次阻塞读立刻返回同一份被拒配置并空转。
			s.lastToken = token
			continue
		}

		// 发布顺序约束：先替换快照内容，再推进 token，最后同步通知订阅者；
		// 全部发生在本协程内，下一轮阻塞读开始前完成。
		s.props.replace(decoded)
		s.lastToken = token
		s.notify(decoded)

		if s.log != nil {
			s.log.Info("config published",
				zap.String("service", s.conf.Identity.Service),
				zap.Uint64("token", token),
				zap.Int("entries", len(decoded)))
		}
	}
}

// runValidate 执行校验；validator panic 等价于拒绝当前候选，不中断主循环。
func (s *WatchInstance) runValidate(entries map[string]string) (err error) {
	if s.validate == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("validator panic: %v", r)
		}
	}()
	return s.validate(entries)
}

// notify 按注册顺序同步调用订阅者；单个订阅者 panic 不影响其余订阅者。
func (s *WatchInstance) notify(entries map[string]string) {
	s.mu.Lock()
	targets := append([]subscriberEntry(nil), s.subscribers...)
	s.mu.Unlock()

	for _, item := range targets {
		// 每个订阅者拿到独立副本，避免回调间相互串改。
		payload := make(map[string]string, len(entries))
		for k, v := range entries {
			payload[k] = v
		}
		s.invoke(item, payload)
	}
}

func (s *WatchInstance) invoke(entry subscriberEntry, payload map[string]string) {
	defer func() {
		if r := recover(); r != nil && s.log != nil {
			s.log.Error("config subscriber panic",
				zap.String("subscriber", entry.id),
				zap.Any("panic", r))
		}
	}()
	entry.handle(payload)
}
