package dalybms

import (
	"strconv"
	"strings"
)

// 导出格式中各可变长区段的固定长度。
// 这些值与报文内的 num_battery_string / num_temperature_sensors 无关。
const (
	DefaultCellTemperatureCount = 15 // 0x96 (导出文件固定 15 个)
	DefaultBalanceStateCount    = 48 // 0x97 Bit0..Bit47
	DefaultFaultBitCount        = 56 // 0x98 7 bytes * 8 bits
)

const (
	SectionCellVoltages = "data_0x95"
	SectionCellTemps    = "data_0x96"
	SectionBalance      = "data_0x97"
	SectionFaultBits    = "data_0x98"
)

// Layout 可变长区段长度。零值字段使用默认值。
type Layout struct {
	CellTemperatureCount int
	BalanceStateCount    int
	FaultBitCount        int
}

// DefaultLayout 返回导出格式的默认区段长度
func DefaultLayout() Layout {
	return Layout{
		CellTemperatureCount: DefaultCellTemperatureCount,
		BalanceStateCount:    DefaultBalanceStateCount,
		FaultBitCount:        DefaultFaultBitCount,
	}
}

func (l Layout) withDefaults() Layout {
	if l.CellTemperatureCount <= 0 {
		l.CellTemperatureCount = DefaultCellTemperatureCount
	}
	if l.BalanceStateCount <= 0 {
		l.BalanceStateCount = DefaultBalanceStateCount
	}
	if l.FaultBitCount <= 0 {
		l.FaultBitCount = DefaultFaultBitCount
	}
	return l
}

// cursor 只前进不回退
type cursor struct {
	tokens []string
	pos    int
}

func (c *cursor) next() (string, bool) {
	if c.pos >= len(c.tokens) {
		return "", false
	}
	tok := c.tokens[c.pos]
	c.pos++
	return tok, true
}

func parseInt(tok string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(tok))
	return v, err == nil
}

// readInts 最多读取 n 个整数 token。
// token 耗尽时提前结束; 非数值 token 跳过但游标照常前进。
// skipped > 0 时后续值整体前移, 返回切片的下标不再等于单体/位序号。
func readInts(c *cursor, n int) (vals []int, skipped int, exhausted bool) {
	vals = make([]int, 0, n)
	for i := 0; i < n; i++ {
		tok, ok := c.next()
		if !ok {
			return vals, skipped, true
		}
		v, ok := parseInt(tok)
		if !ok {
			skipped++
			continue
		}
		vals = append(vals, v)
	}
	return vals, skipped, false
}

func toBools(vals []int) []bool {
	out := make([]bool, len(vals))
	for i, v := range vals {
		out[i] = v != 0
	}
	return out
}

func shortfall(section string, expected int, got []int, skipped int, exhausted bool) (PartialDataWarning, bool) {
	if !exhausted && skipped == 0 {
		return PartialDataWarning{}, false
	}
	return PartialDataWarning{Section: section, Expected: expected, Got: len(got), Skipped: skipped}, true
}

// decodeSections 从 FixedFieldCount 开始依次读取 0x95-0x98
func decodeSections(tokens []string, layout Layout, frame *ParsedFrame) {
	c := &cursor{tokens: tokens, pos: FixedFieldCount}
	warn := func(w PartialDataWarning, ok bool) {
		if ok {
			frame.Warnings = append(frame.Warnings, w)
		}
	}

	// 0x95: Byte0 帧序号, 之后为 num_battery_string 个单体电压
	cellCount := frame.Config.CellCount
	if cellCount < 0 {
		cellCount = 0
	}
	frame.CellVoltages.Voltages = []int{}
	if tok, ok := c.next(); ok {
		if fn, ok := parseInt(tok); ok {
			frame.CellVoltages.FrameNumber = &fn
		} else {
			warn(PartialDataWarning{Section: SectionCellVoltages, Expected: cellCount, Skipped: 1}, true)
		}
		volts, skipped, exhausted := readInts(c, cellCount)
		frame.CellVoltages.Voltages = volts
		warn(shortfall(SectionCellVoltages, cellCount, volts, skipped, exhausted))
	} else {
		warn(PartialDataWarning{Section: SectionCellVoltages, Expected: cellCount}, true)
	}

	// 0x96: 导出值已是摄氏度, 不再扣除 40 偏移
	temps, skipped, exhausted := readInts(c, layout.CellTemperatureCount)
	frame.CellTemps = temps
	warn(shortfall(SectionCellTemps, layout.CellTemperatureCount, temps, skipped, exhausted))

	// 0x97: 0 关闭, 1 开启
	balance, skipped, exhausted := readInts(c, layout.BalanceStateCount)
	frame.Balance = toBools(balance)
	warn(shortfall(SectionBalance, layout.BalanceStateCount, balance, skipped, exhausted))

	// 0x98: 0 正常, 1 故障; 位之间允许出现空值
	faults, skipped, exhausted := readInts(c, layout.FaultBitCount)
	frame.FaultBits = toBools(faults)
	warn(shortfall(SectionFaultBits, layout.FaultBitCount, faults, skipped, exhausted))
}
