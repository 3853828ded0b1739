package dalybms

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLine = "CAN|44.600|0.000|0.000|99.100|3216|6|264|1|24|3|22|1|0|1|0|219|47568.000|15|3|0|0|0|1|0|0|" +
	"0|0|0|0|3194|3202|3212|3206|3208|3208|3211|3199|3075|3211|3199|3075|" +
	"3211|3199|3075|0|0|0|0|0|0|0|0|0|0|0|0|" +
	"0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|22|22|24|-32|-39|-37|-73|-40|-40|-40|-40|-40|-40|-40|-40|-40|0|0|0|0|0|0|0|0|0|0|0|" +
	"0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|1|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|" +
	"0|0|0|0|0|0|1|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0|0," +
	"-,-,1_1_0_0_0,D83D97A1*\t25.02.2025\u00a014:33:33"

const sampleTrailer = ",-,-,1_1_0_0_0,D83D97A1*\t25.02.2025\u00a014:33:33"

// sampleTokens 返回样例行的主 token 列表 (不含尾部附加信息)
func sampleTokens() []string {
	head := strings.TrimSuffix(sampleLine, sampleTrailer)
	return strings.Split(head, FieldSeparator)
}

func TestDecode_SampleLine(t *testing.T) {
	frame, err := Decode(sampleLine)
	require.NoError(t, err)

	assert.Equal(t, "CAN", frame.LogType)

	assert.Equal(t, 44.6, frame.Pack.CumulativeVoltage)
	assert.Equal(t, 0.0, frame.Pack.GatherVoltage)
	assert.Equal(t, -3000.0, frame.Pack.Current)
	assert.InDelta(t, 9.91, frame.Pack.SOC, 1e-9)

	assert.Equal(t, CellExtremes{MaxCellVoltage: 3216, MaxVoltageCell: 6, MinCellVoltage: 264, MinVoltageCell: 1}, frame.Cells)
	assert.Equal(t, TempExtremes{MaxTemp: -16, MaxTempCell: 3, MinTemp: -18, MinTempCell: 1}, frame.Temps)

	assert.Equal(t, StateStationary, frame.Status.State)
	assert.Equal(t, 1, frame.Status.ChargeMOSState)
	assert.Equal(t, 0, frame.Status.DischargeMOSStatus)
	assert.Equal(t, 219, frame.Status.LifeCycles)
	assert.Equal(t, 47568.0, frame.Status.RemainCapacity)

	assert.Equal(t, 15, frame.Config.CellCount)
	assert.Equal(t, 3, frame.Config.TempSensorCount)
	assert.Equal(t, DigitalIO{}, frame.Config.DigitalIO)
	assert.Equal(t, 1, frame.Config.ReservedByte5)

	require.NotNil(t, frame.CellVoltages.FrameNumber)
	assert.Equal(t, 0, *frame.CellVoltages.FrameNumber)
	assert.Equal(t, []int{0, 0, 0, 3194, 3202, 3212, 3206, 3208, 3208, 3211, 3199, 3075, 3211, 3199, 3075},
		frame.CellVoltages.Voltages)

	// 导出文件的 0x96 值不扣除偏移
	assert.Equal(t, []int{3211, 3199, 3075, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, frame.CellTemps)
	assert.Len(t, frame.Balance, DefaultBalanceStateCount)
	assert.Len(t, frame.FaultBits, DefaultFaultBitCount)
	assert.True(t, frame.FaultBits[40])

	require.NotNil(t, frame.Checksum)
	assert.Equal(t, "D83D97A1", *frame.Checksum)
	assert.Equal(t, []string{"-", "-", "1_1_0_0_0"}, frame.OtherInfo)
	assert.Equal(t, "25.02.2025\u00a014:33:33", frame.Timestamp)

	assert.False(t, frame.Truncated())
}

func TestDecode_JSONFieldNames(t *testing.T) {
	frame, err := Decode(sampleLine)
	require.NoError(t, err)

	body, err := json.Marshal(frame)
	require.NoError(t, err)

	var tree map[string]any
	require.NoError(t, json.Unmarshal(body, &tree))

	for _, key := range []string{
		"log_type", "data_0x90", "data_0x91", "data_0x92", "data_0x93", "data_0x94", "data_0x95",
		"data_0x96_cell_temperatures_celsius", "data_0x97_cell_balance_states",
		"data_0x98_battery_failure_status_bits", "timestamp", "other_info", "checksum",
	} {
		assert.Contains(t, tree, key)
	}
	assert.Len(t, tree, 13)

	pack := tree["data_0x90"].(map[string]any)
	assert.Equal(t, -3000.0, pack["current_A"])

	cfg := tree["data_0x94"].(map[string]any)
	dido := cfg["di_do_states"].(map[string]any)
	assert.Len(t, dido, 8)
	assert.Equal(t, false, dido["DO4"])

	cells := tree["data_0x95"].(map[string]any)
	assert.Contains(t, cells, "frame_number")
	assert.Contains(t, cells, "cell_voltages_mV")
}

func TestDecode_ScaleOffsetLaws(t *testing.T) {
	tests := []struct {
		name        string
		current     string
		soc         string
		maxTemp     string
		minTemp     string
		wantCurrent float64
		wantSOC     float64
		wantMax     int
		wantMin     int
	}{
		{"zero current", "30000", "1000", "65", "40", 0, 100, 25, 0},
		{"charging", "30150", "505", "40", "39", 15, 50.5, 0, -1},
		{"discharging", "29000.000", "0.000", "0", "0", -100, 0, -40, -40},
		{"fractional raw", "30001.5", "999", "120", "80", 0.15, 99.9, 80, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := sampleTokens()
			tokens[3] = tt.current
			tokens[4] = tt.soc
			tokens[9] = tt.maxTemp
			tokens[11] = tt.minTemp
			line := strings.Join(tokens, FieldSeparator) + sampleTrailer

			frame, err := Decode(line)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantCurrent, frame.Pack.Current, 1e-9)
			assert.InDelta(t, tt.wantSOC, frame.Pack.SOC, 1e-9)
			assert.Equal(t, tt.wantMax, frame.Temps.MaxTemp)
			assert.Equal(t, tt.wantMin, frame.Temps.MinTemp)
		})
	}
}

func TestDecode_MissingTimestampSeparator(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"sample without star", strings.Replace(sampleLine, "*", " ", 1)},
		{"empty line", ""},
		{"star in earlier field only", "CAN|1*2|3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Decode(tt.line)
			require.Error(t, err)
			assert.Nil(t, frame)
			assert.ErrorIs(t, err, ErrFormat)

			var fe *FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, -1, fe.Index)
		})
	}
}

func TestDecode_MissingFields(t *testing.T) {
	tokens := sampleTokens()
	for _, n := range []int{1, 10, 25} {
		line := strings.Join(tokens[:n], FieldSeparator) + sampleTrailer
		_, err := Decode(line)
		require.Error(t, err, "n=%d", n)
		assert.ErrorIs(t, err, ErrMissingField)

		var mf *MissingFieldError
		require.True(t, errors.As(err, &mf))
		assert.Equal(t, FixedFieldCount, mf.Want)
		assert.Equal(t, n, mf.Got)
	}
}

func TestDecode_NonNumericFixedField(t *testing.T) {
	tests := []struct {
		idx   int
		value string
		field string
	}{
		{1, "abc", "cumulative_total_voltage_V"},
		{1, "NaN", "cumulative_total_voltage_V"},
		{2, "-infinity", "gather_total_voltage_V"},
		{3, "Inf", "current_A"},
		{4, "1e400", "soc_percent"},
		{5, "3.2", "max_cell_voltage_mV"},
		{13, "", "state"},
		{17, "n/a", "remain_capacity_mAh"},
		{22, "0x10", "byte4_status_raw"},
		{25, "-", "reserved_byte7"},
	}

	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.value, func(t *testing.T) {
			tokens := sampleTokens()
			tokens[tt.idx] = tt.value
			_, err := Decode(strings.Join(tokens, FieldSeparator) + sampleTrailer)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFormat)
			assert.NotErrorIs(t, err, ErrMissingField)

			var fe *FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.idx, fe.Index)
			assert.Equal(t, tt.field, fe.Field)
			assert.Equal(t, tt.value, fe.Value)
		})
	}
}

func TestDecode_ReportsFirstBadField(t *testing.T) {
	tokens := sampleTokens()
	tokens[7] = "x"
	tokens[20] = "y"
	_, err := Decode(strings.Join(tokens, FieldSeparator) + sampleTrailer)

	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 7, fe.Index)
}

func TestDecode_TruncationTolerance(t *testing.T) {
	full, err := Decode(sampleLine)
	require.NoError(t, err)

	tokens := sampleTokens()
	prev := full
	for n := len(tokens) - 1; n >= FixedFieldCount; n-- {
		line := strings.Join(tokens[:n], FieldSeparator) + sampleTrailer
		frame, err := Decode(line)
		require.NoError(t, err, "n=%d", n)

		// 固定区不受影响
		assert.Equal(t, full.Pack, frame.Pack)
		assert.Equal(t, full.Cells, frame.Cells)
		assert.Equal(t, full.Temps, frame.Temps)
		assert.Equal(t, full.Status, frame.Status)
		assert.Equal(t, full.Config, frame.Config)

		// 可变长区段只会变短
		assert.LessOrEqual(t, len(frame.CellVoltages.Voltages), len(prev.CellVoltages.Voltages))
		assert.LessOrEqual(t, len(frame.CellTemps), len(prev.CellTemps))
		assert.LessOrEqual(t, len(frame.Balance), len(prev.Balance))
		assert.LessOrEqual(t, len(frame.FaultBits), len(prev.FaultBits))

		consumed := len(frame.CellVoltages.Voltages) + len(frame.CellTemps) + len(frame.Balance) + len(frame.FaultBits)
		if frame.CellVoltages.FrameNumber != nil {
			consumed++
		}
		assert.LessOrEqual(t, FixedFieldCount+consumed, n)

		assert.Equal(t, full.Checksum, frame.Checksum)
		assert.Equal(t, full.OtherInfo, frame.OtherInfo)
		prev = frame
	}
}

func TestDecode_ExactlyFixedFields(t *testing.T) {
	tokens := sampleTokens()
	frame, err := Decode(strings.Join(tokens[:FixedFieldCount], FieldSeparator) + sampleTrailer)
	require.NoError(t, err)

	assert.Nil(t, frame.CellVoltages.FrameNumber)
	assert.Empty(t, frame.CellVoltages.Voltages)
	assert.NotNil(t, frame.CellVoltages.Voltages)
	assert.NotNil(t, frame.CellTemps)
	assert.NotNil(t, frame.Balance)
	assert.NotNil(t, frame.FaultBits)
	assert.True(t, frame.Truncated())

	body, err := json.Marshal(frame)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"data_0x96_cell_temperatures_celsius":[]`)
	assert.Contains(t, string(body), `"frame_number":null`)
}

func TestDecode_CellCountGatesVoltagesOnly(t *testing.T) {
	tokens := sampleTokens()
	tokens[18] = "4"  // num_battery_string
	tokens[19] = "16" // num_temperature_sensors 不影响 0x96 长度
	frame, err := Decode(strings.Join(tokens, FieldSeparator) + sampleTrailer)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 0, 0, 3194}, frame.CellVoltages.Voltages)
	assert.Len(t, frame.CellTemps, DefaultCellTemperatureCount)
	assert.Equal(t, 3202, frame.CellTemps[0])
}

func TestDecode_NegativeCellCount(t *testing.T) {
	tokens := sampleTokens()
	tokens[18] = "-3"
	frame, err := Decode(strings.Join(tokens, FieldSeparator) + sampleTrailer)
	require.NoError(t, err)

	assert.Empty(t, frame.CellVoltages.Voltages)
	// 游标不回退: 0x96 从帧序号之后开始
	assert.Equal(t, []int{0, 0, 0, 3194, 3202, 3212, 3206, 3208, 3208, 3211, 3199, 3075, 3211, 3199, 3075},
		frame.CellTemps)
}

func TestDecode_FaultBitsSkipInvalid(t *testing.T) {
	tokens := sampleTokens()[:FixedFieldCount]
	tokens = append(tokens, "0")
	tokens = append(tokens, make15("3300")...)
	tokens = append(tokens, make15("25")...)
	tokens = append(tokens, strings.Split(strings.Repeat("0|", 48), "|")[:48]...)
	// 7 个故障位 token, 其中 3 个无效
	tokens = append(tokens, "1", "", "0", "x", "1", "  ", "0")

	frame, err := Decode(strings.Join(tokens, FieldSeparator) + sampleTrailer)
	require.NoError(t, err)

	assert.Equal(t, []bool{true, false, true, false}, frame.FaultBits)
	require.True(t, frame.Truncated())

	last := frame.Warnings[len(frame.Warnings)-1]
	assert.Equal(t, SectionFaultBits, last.Section)
	assert.Equal(t, 3, last.Skipped)
	assert.Equal(t, 4, last.Got)
	assert.Equal(t, DefaultFaultBitCount, last.Expected)
}

func TestDecode_SkipsInvalidTokensInAllSections(t *testing.T) {
	tokens := sampleTokens()[:FixedFieldCount]
	tokens[18] = "4"
	// 帧序号无效, 4 个单体 token 中 1 个无效
	tokens = append(tokens, "x")
	tokens = append(tokens, "3300", "bad", "3301", "3302")
	temps := make15("25")
	temps[2] = "--"
	tokens = append(tokens, temps...)
	balance := strings.Split(strings.Repeat("0|", 48), "|")[:48]
	balance[0] = "1"
	balance[5] = "z"
	tokens = append(tokens, balance...)
	tokens = append(tokens, strings.Split(strings.Repeat("0|", 56), "|")[:56]...)

	frame, err := Decode(strings.Join(tokens, FieldSeparator) + sampleTrailer)
	require.NoError(t, err)

	assert.Nil(t, frame.CellVoltages.FrameNumber)
	// 游标按 token 前进, 无效 token 之后的值前移
	assert.Equal(t, []int{3300, 3301, 3302}, frame.CellVoltages.Voltages)
	assert.Len(t, frame.CellTemps, 14)
	assert.Len(t, frame.Balance, 47)
	assert.True(t, frame.Balance[0])
	assert.Len(t, frame.FaultBits, DefaultFaultBitCount)

	assert.Equal(t, []PartialDataWarning{
		{Section: SectionCellVoltages, Expected: 4, Got: 0, Skipped: 1},
		{Section: SectionCellVoltages, Expected: 4, Got: 3, Skipped: 1},
		{Section: SectionCellTemps, Expected: DefaultCellTemperatureCount, Got: 14, Skipped: 1},
		{Section: SectionBalance, Expected: DefaultBalanceStateCount, Got: 47, Skipped: 1},
	}, frame.Warnings)
	assert.True(t, frame.Truncated())
}

func TestDecoder_ConcurrentUse(t *testing.T) {
	d := NewDecoder(Layout{FaultBitCount: 10})
	want, err := d.Decode(sampleLine)
	require.NoError(t, err)

	tokens := sampleTokens()
	short := strings.Join(tokens[:40], FieldSeparator) + sampleTrailer
	wantShort, err := d.Decode(short)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			line, expected := sampleLine, want
			if i%2 == 1 {
				line, expected = short, wantShort
			}
			for k := 0; k < 50; k++ {
				got, err := d.Decode(line)
				if err != nil || !assert.ObjectsAreEqual(expected, got) {
					errs <- fmt.Sprintf("goroutine %d iteration %d: err=%v", i, k, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}

func make15(v string) []string {
	out := make([]string, 15)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestDecode_Metadata(t *testing.T) {
	head := strings.Join(sampleTokens(), FieldSeparator)
	tests := []struct {
		name      string
		trailer   string
		checksum  *string
		otherInfo []string
		timestamp string
	}{
		{"no extras", "*  25.02.2025 14:33:33 ", nil, []string{}, "25.02.2025 14:33:33"},
		{"checksum only", ",ABCD*ts", strPtr("ABCD"), []string{}, "ts"},
		{"one annotation", ",note,ABCD*ts", strPtr("ABCD"), []string{"note"}, "ts"},
		{"empty timestamp", ",-,ABCD*", strPtr("ABCD"), []string{"-"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Decode(head + tt.trailer)
			require.NoError(t, err)
			assert.Equal(t, tt.checksum, frame.Checksum)
			assert.Equal(t, tt.otherInfo, frame.OtherInfo)
			assert.Equal(t, tt.timestamp, frame.Timestamp)
		})
	}
}

func strPtr(s string) *string { return &s }

func TestDecode_DigitalIOBits(t *testing.T) {
	tokens := sampleTokens()
	tokens[22] = "165" // 1010 0101
	frame, err := Decode(strings.Join(tokens, FieldSeparator) + sampleTrailer)
	require.NoError(t, err)

	assert.Equal(t, 165, frame.Config.StatusByte)
	assert.Equal(t, DigitalIO{DI1: true, DI3: true, DO2: true, DO4: true}, frame.Config.DigitalIO)
}

func TestDecoder_CustomLayout(t *testing.T) {
	dec := NewDecoder(Layout{CellTemperatureCount: 3, BalanceStateCount: 2})
	assert.Equal(t, Layout{CellTemperatureCount: 3, BalanceStateCount: 2, FaultBitCount: DefaultFaultBitCount}, dec.Layout())

	frame, err := dec.Decode(sampleLine)
	require.NoError(t, err)
	assert.Equal(t, []int{3211, 3199, 3075}, frame.CellTemps)
	assert.Len(t, frame.Balance, 2)
	assert.Len(t, frame.FaultBits, DefaultFaultBitCount)
}

func TestParsedFrame_Time(t *testing.T) {
	frame, err := Decode(sampleLine)
	require.NoError(t, err)

	ts, err := frame.Time()
	require.NoError(t, err)
	assert.Equal(t, 2025, ts.Year())
	assert.Equal(t, 25, ts.Day())
	assert.Equal(t, 14, ts.Hour())
	assert.Equal(t, 33, ts.Second())

	frame.Timestamp = "garbage"
	_, err = frame.Time()
	assert.Error(t, err)
}

func TestOperatingState_String(t *testing.T) {
	assert.Equal(t, "stationary", StateStationary.String())
	assert.Equal(t, "charge", StateCharge.String())
	assert.Equal(t, "discharge", StateDischarge.String())
	assert.Equal(t, "unknown(7)", OperatingState(7).String())
}
