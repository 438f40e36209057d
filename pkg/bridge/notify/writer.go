package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// WriterSink 把提示打印到终端并写日志
type WriterSink struct {
	mu     sync.Mutex
	out    io.Writer
	logger *zap.Logger
	qrCode bool
}

// NewWriterSink 创建终端输出端, qrCode 为 true 时链接同时输出二维码
func NewWriterSink(out io.Writer, logger *zap.Logger, qrCode bool) *WriterSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WriterSink{out: out, logger: logger, qrCode: qrCode}
}

// Show 实现 Sink
func (s *WriterSink) Show(t Toast, replaced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := []zap.Field{zap.String("id", t.ID), zap.String("body", t.Body)}
	if t.Link != "" {
		fields = append(fields, zap.String("link", t.Link))
	}
	if t.Level == LevelError {
		s.logger.Error(t.Header, fields...)
	} else {
		s.logger.Info(t.Header, fields...)
	}

	mark := "✔"
	if t.Level == LevelError {
		mark = "✖"
	}
	if replaced {
		fmt.Fprint(s.out, "\r")
	}
	fmt.Fprintf(s.out, "%s %s\n", mark, t.Header)
	if t.Body != "" {
		fmt.Fprintf(s.out, "  %s\n", t.Body)
	}
	if t.Link == "" {
		return
	}

	text := t.LinkText
	if text == "" {
		text = t.Link
	}
	fmt.Fprintf(s.out, "  %s: %s\n", text, t.Link)

	if s.qrCode {
		qr, err := RenderQR(t.Link)
		if err != nil {
			s.logger.Warn("render qr code failed", zap.Error(err))
			return
		}
		fmt.Fprintln(s.out, qr)
	}
}

// RenderQR 把链接渲染为终端二维码
func RenderQR(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return qr.ToSmallString(false), nil
}
