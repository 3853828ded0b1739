package dalybms

import (
	"bytes"
	"errors"
)

var (
	// ErrTooLarge 单行超过最大长度 (安全检查)
	ErrTooLarge = errors.New("dalybms: line too long")
)

// LineScanner 为 bufio.Scanner / 连接缓冲区提供按行拆分的 Split 函数
type LineScanner struct {
	maxLineSize int
}

// NewLineScanner 创建一个按 '\n' 拆帧的扫描器。
// maxLineSize 限制单行长度, 防止缺少换行符的数据无限堆积。
func NewLineScanner(maxLineSize int) *LineScanner {
	return &LineScanner{maxLineSize: maxLineSize}
}

// SplitFunc 返回去掉 "\r\n" 的一行。
// 空行返回 advance > 0 且 token == nil, 调用方应直接跳过。
func (ls *LineScanner) SplitFunc(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		if ls.maxLineSize > 0 && len(data) > ls.maxLineSize {
			return 0, nil, ErrTooLarge
		}
		if atEOF {
			// EOF 时最后一行没有换行符
			return len(data), trimLine(data), nil
		}
		return 0, nil, nil // 需要更多数据
	}

	if ls.maxLineSize > 0 && idx > ls.maxLineSize {
		return 0, nil, ErrTooLarge
	}
	return idx + 1, trimLine(data[:idx]), nil
}

func trimLine(line []byte) []byte {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return nil
	}
	return line
}
