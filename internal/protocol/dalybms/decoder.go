// Package dalybms 解析 Daly BMS 上位机导出的 CAN 日志行。
//
// 一行日志对应一帧: 固定区 (0x90-0x94) 共 26 个 '|' 分隔的 token,
// 之后依次为单体电压 (0x95)、单体温度 (0x96)、均衡状态 (0x97)、故障位 (0x98),
// 行尾为 ",附加信息...,校验码*时间戳"。
package dalybms

// Decoder 无状态, 可被多个 goroutine 并发使用
type Decoder struct {
	layout Layout
}

// NewDecoder 使用指定区段长度创建解析器, 零值字段取默认
func NewDecoder(layout Layout) *Decoder {
	return &Decoder{layout: layout.withDefaults()}
}

// Layout 返回生效的区段长度
func (d *Decoder) Layout() Layout {
	return d.layout
}

// Decode 解析一行日志。
// 固定区错误返回 *FormatError / *MissingFieldError;
// 可变长区段不足只记录在 ParsedFrame.Warnings 中, 不视为错误。
func (d *Decoder) Decode(line string) (*ParsedFrame, error) {
	raw, err := tokenize(line)
	if err != nil {
		return nil, err
	}

	frame := &ParsedFrame{}
	if err := decodeFixed(raw.tokens, frame); err != nil {
		return nil, err
	}

	decodeSections(raw.tokens, d.layout, frame)

	frame.Timestamp = raw.timestamp
	frame.OtherInfo = raw.otherInfo
	frame.Checksum = raw.checksum
	return frame, nil
}

var defaultDecoder = NewDecoder(DefaultLayout())

// Decode 使用默认区段长度解析一行日志
func Decode(line string) (*ParsedFrame, error) {
	return defaultDecoder.Decode(line)
}
