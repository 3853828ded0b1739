package dalybms

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat 行格式错误: 缺少 '*' 分隔符, 或固定区字段不是数值
	ErrFormat = errors.New("dalybms: malformed frame")
	// ErrMissingField 固定区字段数量不足 26
	ErrMissingField = errors.New("dalybms: missing fixed field")
)

// FormatError 描述一个无法解析的字段。Index 为 -1 时表示分隔符缺失。
type FormatError struct {
	Index int
	Field string
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("dalybms: malformed frame: %s", e.Field)
	}
	msg := fmt.Sprintf("dalybms: field %d (%s) is not numeric: %q", e.Index, e.Field, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// MissingFieldError 固定区 token 数不足
type MissingFieldError struct {
	Want int
	Got  int
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("dalybms: fixed section needs %d fields, got %d", e.Want, e.Got)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// PartialDataWarning 可变长区段未读满 (非致命)
type PartialDataWarning struct {
	Section  string // data_0x95 ... data_0x98
	Expected int
	Got      int
	Skipped  int // 被跳过的空/非数值 token
}

func (w PartialDataWarning) String() string {
	if w.Skipped > 0 {
		return fmt.Sprintf("%s: %d/%d values, %d skipped", w.Section, w.Got, w.Expected, w.Skipped)
	}
	return fmt.Sprintf("%s: %d/%d values", w.Section, w.Got, w.Expected)
}
