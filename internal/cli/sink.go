package cli

import (
	"fmt"
	"io"

	"github.com/divergen371/ipscan/internal/export"
	"github.com/divergen371/ipscan/internal/network"
	"github.com/divergen371/ipscan/internal/scanner"
)

type multiSink []scanner.ResultSink

func (m multiSink) PublishResult(occupied, available []network.Address) {
	for _, s := range m {
		s.PublishResult(occupied, available)
	}
}

// textSinkは使用中IPと空きIPを1行1アドレスで出力する
type textSink struct {
	w io.Writer
}

func (s *textSink) PublishResult(occupied, available []network.Address) {
	writeSection(s.w, "使用中IP", occupied)
	fmt.Fprintln(s.w)
	writeSection(s.w, "空きIP", available)
}

func writeSection(w io.Writer, title string, addrs []network.Address) {
	fmt.Fprintf(w, "%s (%d)\n", title, len(addrs))
	for _, a := range addrs {
		fmt.Fprintln(w, a)
	}
}

// exportSinkはExcelに書き出す。失敗してもスキャン結果は有効なので、エラーは後で報告する。
type exportSink struct {
	path string
	err  error
}

func (s *exportSink) PublishResult(occupied, available []network.Address) {
	s.err = export.WriteWorkbook(s.path, network.Strings(occupied), network.Strings(available))
}
