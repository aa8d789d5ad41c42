package locator

// Supplier 提供一批服务实例；每次调用应返回一个新的批次。
type Supplier func() []*ServiceInstance

// Listener 在实例即将被 Next 返回前收到该实例，
// 可用于记录整条回退链上已发出的实例（例如轮询策略的簿记）。
type Listener func(ist *ServiceInstance)

// Mapper 把一批实例映射为同一批实例的另一种顺序。
type Mapper func(batch []*ServiceInstance) []*ServiceInstance

// ServiceLocator 按顺序逐个给出服务实例，用于客户端负载均衡。
//
// 每个节点持有一个惰性实例序列：首次 Next 时通过 supplier 物化，
// 之后游标只前进不重置；本节点耗尽后落入回退节点（至多解析一次并缓存），
// 整条链耗尽后 Next 返回空。
//
// 同一节点的 Next 调用需由调用方串行化；链由构建期单向引用组成，不会成环。
type ServiceLocator struct {
	supplier Supplier
	// fallbackSupplier 延迟给出回退节点；本节点序列首次耗尽时解析一次。
	fallbackSupplier func() *ServiceLocator

	// 惰性物化状态：started 区分“未物化”与“物化为空批次”。
	instances []*ServiceInstance
	cursor    int
	started   bool

	// fallback 为解析后的回退节点；fallbackResolved 保证只解析一次。
	fallback         *ServiceLocator
	fallbackResolved bool

	listener Listener
}

// NewServiceLocator 创建一个无回退的定位器节点。
func NewServiceLocator(supplier Supplier) *ServiceLocator {
	return &ServiceLocator{
		supplier: supplier,
	}
}

// NewServiceLocatorWithFallback 创建一个带固定回退节点的定位器。
func NewServiceLocatorWithFallback(supplier Supplier, fallback *ServiceLocator) *ServiceLocator {
	return &ServiceLocator{
		supplier: supplier,
		fallbackSupplier: func() *ServiceLocator {
			return fallback
		},
	}
}

// NewServiceLocatorWithFallbackSupplier 创建一个回退节点延迟解析的定位器。
// fallbackSupplier 在本节点序列首次耗尽时被调用一次，结果缓存终生。
func NewServiceLocatorWithFallbackSupplier(supplier Supplier, fallbackSupplier func() *ServiceLocator) *ServiceLocator {
	return &ServiceLocator{
		supplier:         supplier,
		fallbackSupplier: fallbackSupplier,
	}
}

// Next 返回下一个可用实例；整条链耗尽时返回 (nil, false)。
func (l *ServiceLocator) Next() (*ServiceInstance, bool) {
	if !l.started {
		l.started = true
		if l.supplier != nil {
			l.instances = l.supplier()
		}
	}

	if l.cursor < len(l.instances) {
		ist := l.instances[l.cursor]
		l.cursor++
		if l.listener != nil {
			l.listener(ist)
		}
		return ist, true
	}

	if fb := l.resolveFallback(); fb != nil {
		return fb.Next()
	}

	return nil, false
}

// SetListener 设置发出事件回调，并传播到当前可达的所有回退节点。
// 之后才解析出的回退节点会在解析时继承该回调。
func (l *ServiceLocator) SetListener(listener Listener) *ServiceLocator {
	l.listener = listener
	if l.fallback != nil {
		l.fallback.SetListener(listener)
	}
	return l
}

// Map 生成一个新定位器：本节点的实例批次经 mapper 重排后给出，
// 回退链结构与监听语义保持不变（mapper 递归作用于每一级回退）。
// 重排在新节点首次物化时惰性执行一次。
func (l *ServiceLocator) Map(mapper Mapper) *ServiceLocator {
	next := &ServiceLocator{
		supplier: func() []*ServiceInstance {
			var batch []*ServiceInstance
			if l.supplier != nil {
				batch = l.supplier()
			}
			return mapper(batch)
		},
		listener: l.listener,
	}

	if l.fallbackSupplier != nil || l.fallback != nil {
		next.fallbackSupplier = func() *ServiceLocator {
			// 共享原节点的回退解析缓存：同一个底层节点只解析一次。
			fb := l.resolveFallback()
			if fb == nil {
				return nil
			}
			return fb.Map(mapper)
		}
	}

	return next
}

// resolveFallback 解析回退节点，至多执行一次并缓存结果（包括 nil）。
// 解析出的节点若未设置回调，则继承本节点当前的回调，
// 保证挂在链头的 Listener 能观察到整条链上发出的每个实例。
func (l *ServiceLocator) resolveFallback() *ServiceLocator {
	if !l.fallbackResolved {
		l.fallbackResolved = true
		if l.fallbackSupplier != nil {
			l.fallback = l.fallbackSupplier()
		}
		if l.fallback != nil && l.fallback.listener == nil && l.listener != nil {
			l.fallback.SetListener(l.listener)
		}
	}
	return l.fallback
}
