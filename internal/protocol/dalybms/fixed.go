package dalybms

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// FixedFieldCount 固定区 token 数 (index 0-25)
const FixedFieldCount = 26

const (
	CurrentOffset   = 30000.0 // 电流偏移 30000, 单位 0.1A
	CurrentScale    = 10.0
	SOCScale        = 10.0 // 0.1%
	TemperatureBias = 40   // 温度偏移 40℃
)

// errNotFinite NaN / Inf 无法序列化为 JSON, 按格式错误处理
var errNotFinite = errors.New("value is not finite")

// fieldReader 按 index 读取固定区数值, 只保留第一个错误
type fieldReader struct {
	tokens []string
	err    error
}

func (r *fieldReader) int(idx int, name string) int {
	if r.err != nil {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(r.tokens[idx]))
	if err != nil {
		r.err = &FormatError{Index: idx, Field: name, Value: r.tokens[idx], Err: err}
		return 0
	}
	return v
}

func (r *fieldReader) float(idx int, name string) float64 {
	if r.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(r.tokens[idx]), 64)
	if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		err = errNotFinite
	}
	if err != nil {
		r.err = &FormatError{Index: idx, Field: name, Value: r.tokens[idx], Err: err}
		return 0
	}
	return v
}

// decodeFixed 解析 0x90-0x94 五个固定数据块, 直接写入 frame
func decodeFixed(tokens []string, frame *ParsedFrame) error {
	if len(tokens) < FixedFieldCount {
		return &MissingFieldError{Want: FixedFieldCount, Got: len(tokens)}
	}
	r := &fieldReader{tokens: tokens}

	frame.LogType = tokens[0]

	// 0x90
	frame.Pack = PackSummary{
		CumulativeVoltage: r.float(1, "cumulative_total_voltage_V"),
		GatherVoltage:     r.float(2, "gather_total_voltage_V"),
		Current:           (r.float(3, "current_A") - CurrentOffset) / CurrentScale,
		SOC:               r.float(4, "soc_percent") / SOCScale,
	}

	// 0x91
	frame.Cells = CellExtremes{
		MaxCellVoltage: r.int(5, "max_cell_voltage_mV"),
		MaxVoltageCell: r.int(6, "max_voltage_cell_no"),
		MinCellVoltage: r.int(7, "min_cell_voltage_mV"),
		MinVoltageCell: r.int(8, "min_voltage_cell_no"),
	}

	// 0x92
	frame.Temps = TempExtremes{
		MaxTemp:     r.int(9, "max_temp_celsius") - TemperatureBias,
		MaxTempCell: r.int(10, "max_temp_cell_no"),
		MinTemp:     r.int(11, "min_temp_celsius") - TemperatureBias,
		MinTempCell: r.int(12, "min_temp_cell_no"),
	}

	// 0x93
	frame.Status = StatusBlock{
		State:              OperatingState(r.int(13, "state")),
		ChargeMOSState:     r.int(14, "charge_mos_state"),
		DischargeMOSStatus: r.int(15, "discharge_mos_status"),
		LifeCycles:         r.int(16, "bms_life_cycles"),
		RemainCapacity:     r.float(17, "remain_capacity_mAh"),
	}

	// 0x94
	cfg := ConfigBlock{
		CellCount:       r.int(18, "num_battery_string"),
		TempSensorCount: r.int(19, "num_temperature_sensors"),
		ChargerStatus:   r.int(20, "charger_status"),
		LoadStatus:      r.int(21, "load_status"),
		StatusByte:      r.int(22, "byte4_status_raw"),
		ReservedByte5:   r.int(23, "reserved_byte5"),
		ReservedByte6:   r.int(24, "reserved_byte6"),
		ReservedByte7:   r.int(25, "reserved_byte7"),
	}
	cfg.DigitalIO = DecodeDigitalIO(cfg.StatusByte)
	frame.Config = cfg

	return r.err
}
