package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"
)

// terminalProgressは端末ならプログレスバーを描画し、それ以外は10%ごとに1行出力する。
// Coordinatorの集約ゴルーチンからのみ呼ばれる。
type terminalProgress struct {
	w      io.Writer
	tty    bool
	bar    progress.Model
	drawn  bool
	decile int
}

func newTerminalProgress(w io.Writer) *terminalProgress {
	return &terminalProgress{
		w:   w,
		tty: isTerminal(w),
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *terminalProgress) ReportProgress(current, maximum int) {
	if maximum <= 0 {
		return
	}
	if p.tty {
		fmt.Fprintf(p.w, "\r%s %d/%d", p.bar.ViewAs(float64(current)/float64(maximum)), current, maximum)
		p.drawn = true
		return
	}
	d := current * 10 / maximum
	if d > p.decile {
		p.decile = d
		fmt.Fprintf(p.w, "進捗: %d%% (%d/%d)\n", d*10, current, maximum)
	}
}

func (p *terminalProgress) finish() {
	if p.drawn {
		fmt.Fprintln(p.w)
	}
}
