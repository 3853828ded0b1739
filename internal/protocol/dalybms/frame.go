package dalybms

import (
	"fmt"
	"strings"
	"time"
)

// OperatingState 充放电状态 (0x93 Byte0)
type OperatingState int

const (
	StateStationary OperatingState = 0 // 静置
	StateCharge     OperatingState = 1 // 充电
	StateDischarge  OperatingState = 2 // 放电
)

func (s OperatingState) String() string {
	switch s {
	case StateStationary:
		return "stationary"
	case StateCharge:
		return "charge"
	case StateDischarge:
		return "discharge"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// PackSummary 总电压/电流/SOC (0x90)
type PackSummary struct {
	CumulativeVoltage float64 `json:"cumulative_total_voltage_V"`
	GatherVoltage     float64 `json:"gather_total_voltage_V"`
	Current           float64 `json:"current_A"`   // 0.1A, 偏移30000
	SOC               float64 `json:"soc_percent"` // 0.1%
}

// CellExtremes 最高/最低单体电压 (0x91)
type CellExtremes struct {
	MaxCellVoltage int `json:"max_cell_voltage_mV"`
	MaxVoltageCell int `json:"max_voltage_cell_no"`
	MinCellVoltage int `json:"min_cell_voltage_mV"`
	MinVoltageCell int `json:"min_voltage_cell_no"`
}

// TempExtremes 最高/最低温度 (0x92), 已扣除40偏移
type TempExtremes struct {
	MaxTemp     int `json:"max_temp_celsius"`
	MaxTempCell int `json:"max_temp_cell_no"`
	MinTemp     int `json:"min_temp_celsius"`
	MinTempCell int `json:"min_temp_cell_no"`
}

// StatusBlock 充放电MOS状态 (0x93)
type StatusBlock struct {
	State              OperatingState `json:"state"`
	ChargeMOSState     int            `json:"charge_mos_state"`
	DischargeMOSStatus int            `json:"discharge_mos_status"`
	LifeCycles         int            `json:"bms_life_cycles"`
	RemainCapacity     float64        `json:"remain_capacity_mAh"`
}

// DigitalIO 开关量状态, Byte4 bit0..bit7
type DigitalIO struct {
	DI1 bool `json:"DI1"`
	DI2 bool `json:"DI2"`
	DI3 bool `json:"DI3"`
	DI4 bool `json:"DI4"`
	DO1 bool `json:"DO1"`
	DO2 bool `json:"DO2"`
	DO3 bool `json:"DO3"`
	DO4 bool `json:"DO4"`
}

// DecodeDigitalIO 将状态字节按位拆分为 DI1-DI4 / DO1-DO4
func DecodeDigitalIO(b int) DigitalIO {
	bit := func(n uint) bool { return (b>>n)&1 == 1 }
	return DigitalIO{
		DI1: bit(0),
		DI2: bit(1),
		DI3: bit(2),
		DI4: bit(3),
		DO1: bit(4),
		DO2: bit(5),
		DO3: bit(6),
		DO4: bit(7),
	}
}

// ConfigBlock 状态信息 (0x94)
type ConfigBlock struct {
	CellCount       int       `json:"num_battery_string"`
	TempSensorCount int       `json:"num_temperature_sensors"`
	ChargerStatus   int       `json:"charger_status"` // 0 断开, 1 接入
	LoadStatus      int       `json:"load_status"`    // 0 断开, 1 接入
	StatusByte      int       `json:"byte4_status_raw"`
	DigitalIO       DigitalIO `json:"di_do_states"`
	ReservedByte5   int       `json:"reserved_byte5"`
	ReservedByte6   int       `json:"reserved_byte6"`
	ReservedByte7   int       `json:"reserved_byte7"`
}

// CellVoltages 单体电压 (0x95)
type CellVoltages struct {
	// FrameNumber 为 nil 表示行内已无该字段
	FrameNumber *int `json:"frame_number"`
	// Voltages 跳过非数值 token 后按顺序排列; 有跳过时下标不等于单体序号 (见 Warnings)
	Voltages []int `json:"cell_voltages_mV"`
}

// ParsedFrame 一行日志的完整解析结果。构造后不再修改。
type ParsedFrame struct {
	LogType      string       `json:"log_type"`
	Pack         PackSummary  `json:"data_0x90"`
	Cells        CellExtremes `json:"data_0x91"`
	Temps        TempExtremes `json:"data_0x92"`
	Status       StatusBlock  `json:"data_0x93"`
	Config       ConfigBlock  `json:"data_0x94"`
	CellVoltages CellVoltages `json:"data_0x95"`
	CellTemps    []int        `json:"data_0x96_cell_temperatures_celsius"`
	Balance      []bool       `json:"data_0x97_cell_balance_states"`
	FaultBits    []bool       `json:"data_0x98_battery_failure_status_bits"`
	Timestamp    string       `json:"timestamp"`
	OtherInfo    []string     `json:"other_info"`
	Checksum     *string      `json:"checksum"`

	// Warnings 记录可变长区段的截断/跳过情况, 不参与序列化
	Warnings []PartialDataWarning `json:"-"`
}

// Truncated 报告是否有任一可变长区段短于预期
func (f *ParsedFrame) Truncated() bool {
	return len(f.Warnings) > 0
}

// TimestampLayout 日志尾部时间格式, e.g. "25.02.2025 14:33:33"
const TimestampLayout = "02.01.2006 15:04:05"

// Time 解析尾部时间戳。导出工具在日期与时间之间可能写入 NBSP。
func (f *ParsedFrame) Time() (time.Time, error) {
	ts := strings.Join(strings.Fields(f.Timestamp), " ")
	return time.ParseInLocation(TimestampLayout, ts, time.Local)
}
