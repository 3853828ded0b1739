package client

import (
	"strconv"
	"strings"
	"time"

	"bms-gateway/internal/protocol/dalybms"
)

// FrameValues 构建测试日志行所用的物理量 (已换算后的值)
type FrameValues struct {
	CumulativeVoltage float64
	GatherVoltage     float64
	Current           float64 // A
	SOC               float64 // %

	MaxCellVoltage int
	MaxVoltageCell int
	MinCellVoltage int
	MinVoltageCell int

	MaxTemp     int // ℃
	MaxTempCell int
	MinTemp     int // ℃
	MinTempCell int

	State          dalybms.OperatingState
	ChargeMOS      int
	DischargeMOS   int
	LifeCycles     int
	RemainCapacity float64

	TempSensorCount int
	ChargerStatus   int
	LoadStatus      int
	StatusByte      int
	Reserved        [3]int

	FrameNumber  int
	CellVoltages []int // 单体数 = len(CellVoltages)
	CellTemps    []int
	Balance      []bool
	Faults       []bool

	OtherInfo []string
	Checksum  string
	Time      time.Time
}

// LineBuilder 生成与上位机导出格式一致的日志行
type LineBuilder struct {
	LogType string
	Layout  dalybms.Layout
}

func NewLineBuilder() *LineBuilder {
	return &LineBuilder{LogType: "CAN", Layout: dalybms.DefaultLayout()}
}

// Build 编码一帧。0x96-0x98 不足部分按 0 补齐到 Layout 长度。
func (lb *LineBuilder) Build(v FrameValues) string {
	f := func(x float64) string { return strconv.FormatFloat(x, 'f', 3, 64) }
	i := strconv.Itoa

	tokens := []string{
		lb.LogType,
		// 0x90
		f(v.CumulativeVoltage),
		f(v.GatherVoltage),
		f(v.Current*dalybms.CurrentScale + dalybms.CurrentOffset),
		f(v.SOC * dalybms.SOCScale),
		// 0x91
		i(v.MaxCellVoltage), i(v.MaxVoltageCell),
		i(v.MinCellVoltage), i(v.MinVoltageCell),
		// 0x92
		i(v.MaxTemp + dalybms.TemperatureBias), i(v.MaxTempCell),
		i(v.MinTemp + dalybms.TemperatureBias), i(v.MinTempCell),
		// 0x93
		i(int(v.State)), i(v.ChargeMOS), i(v.DischargeMOS), i(v.LifeCycles), f(v.RemainCapacity),
		// 0x94
		i(len(v.CellVoltages)), i(v.TempSensorCount), i(v.ChargerStatus), i(v.LoadStatus),
		i(v.StatusByte), i(v.Reserved[0]), i(v.Reserved[1]), i(v.Reserved[2]),
		// 0x95
		i(v.FrameNumber),
	}
	for _, mv := range v.CellVoltages {
		tokens = append(tokens, i(mv))
	}
	tokens = appendPadded(tokens, v.CellTemps, lb.Layout.CellTemperatureCount)
	tokens = appendPadded(tokens, boolsToInts(v.Balance), lb.Layout.BalanceStateCount)
	tokens = appendPadded(tokens, boolsToInts(v.Faults), lb.Layout.FaultBitCount)

	checksum := v.Checksum
	if checksum == "" {
		checksum = "00000000"
	}
	ts := v.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(tokens, dalybms.FieldSeparator))
	for _, extra := range v.OtherInfo {
		sb.WriteString(dalybms.ExtraSeparator)
		sb.WriteString(extra)
	}
	sb.WriteString(dalybms.ExtraSeparator)
	sb.WriteString(checksum)
	sb.WriteString(dalybms.TimestampSeparator)
	// 导出工具在日期和时间之间写入 NBSP
	sb.WriteString("\t" + ts.Format("02.01.2006") + "\u00a0" + ts.Format("15:04:05"))
	return sb.String()
}

func appendPadded(tokens []string, vals []int, n int) []string {
	for k := 0; k < n; k++ {
		v := 0
		if k < len(vals) {
			v = vals[k]
		}
		tokens = append(tokens, strconv.Itoa(v))
	}
	return tokens
}

func boolsToInts(bs []bool) []int {
	out := make([]int, len(bs))
	for k, b := range bs {
		if b {
			out[k] = 1
		}
	}
	return out
}
