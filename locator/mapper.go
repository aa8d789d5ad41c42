package locator

import "sync/atomic"

// Rotate 返回一个轮转 Mapper：每次物化时把批次整体左移一个位置，
// 使链式回退场景下的首选实例在多次定位之间轮询分布。
//
// 计数器跨多次 Map 调用共享，可安全并发使用。
func Rotate() Mapper {
	var counter uint64

	return func(batch []*ServiceInstance) []*ServiceInstance {
		if len(batch) == 0 {
			return batch
		}

		offset := int((atomic.AddUint64(&counter, 1) - 1) % uint64(len(batch)))
		if offset == 0 {
			return batch
		}

		out := make([]*ServiceInstance, 0, len(batch))
		out = append(out, batch[offset:]...)
		out = append(out, batch[:offset]...)
		return out
	}
}
