// internal/observer/countdown_bar.go
package observer

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// CountdownBar 是一个在终端上绘制单行倒计时的沙漏监听器
type CountdownBar struct {
	out      io.Writer
	total    time.Duration
	barWidth int
	mu       sync.Mutex
}

// NewCountdownBar 为给定时长的倒计时创建进度条
func NewCountdownBar(out io.Writer, total time.Duration) *CountdownBar {
	return &CountdownBar{
		out:      out,
		total:    total,
		barWidth: 40,
	}
}

// Render 按任意剩余时间绘制进度条，例如在第一次 tick 之前
func (b *CountdownBar) Render(remaining time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.print(remaining)
}

// OnTimerTick 实现 hourglass.Listener 接口
func (b *CountdownBar) OnTimerTick(remaining time.Duration) {
	b.Render(remaining)
}

// OnTimerFinish 实现 hourglass.Listener 接口
func (b *CountdownBar) OnTimerFinish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintf(b.out, "\n⌛ time is up (%s)\n", FormatRemaining(b.total))
}

// print 重绘当前行，时间流逝时进度条逐渐填满
func (b *CountdownBar) print(remaining time.Duration) {
	elapsed := 1.0
	if b.total > 0 {
		elapsed = 1 - float64(remaining)/float64(b.total)
	}
	if elapsed < 0 {
		elapsed = 0
	}
	filled := int(elapsed * float64(b.barWidth))
	if filled > b.barWidth {
		filled = b.barWidth
	}

	bar := strings.Repeat("=", filled) + strings.Repeat(" ", b.barWidth-filled)
	fmt.Fprintf(b.out, "\r[%s] %s remaining", bar, FormatRemaining(remaining))
}

// FormatRemaining 将 d 格式化为 mm:ss，一小时以上为 h:mm:ss
// 不足一秒向上取整，只有真正归零时才显示 00:00
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64((d + time.Second - 1) / time.Second)
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
