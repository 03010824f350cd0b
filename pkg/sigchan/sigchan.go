package sigchan

// Chan 非阻塞的事件通知 channel，只通知事件发生，不传递数据
//
// 缓冲满时新的信号被合并，接收方每次醒来都应读取最新状态
type Chan struct {
	c chan struct{}
}

// New 创建信号 channel，bufferSize 小于 1 时按 1 处理
func New(bufferSize int) *Chan {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Chan{c: make(chan struct{}, bufferSize)}
}

// Emit 发送信号，缓冲满时直接返回
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// C 返回接收端（用于 select）
func (c *Chan) C() <-chan struct{} {
	return c.c
}

// Drain 清空已缓冲的信号，返回清掉的数量
func (c *Chan) Drain() int {
	n := 0
	for {
		select {
		case <-c.c:
			n++
		default:
			return n
		}
	}
}
