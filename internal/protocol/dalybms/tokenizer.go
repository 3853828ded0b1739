package dalybms

import "strings"

const (
	FieldSeparator     = "|"
	TimestampSeparator = "*"
	ExtraSeparator     = ","
)

// rawFrame 分词结果: 主 token 列表 + 尾部元数据
type rawFrame struct {
	tokens    []string
	otherInfo []string
	checksum  *string
	timestamp string
}

// tokenize 拆分一行日志。
// 结构: v0|v1|...|vN,extra1,...,checksum*timestamp
// 最后一段 '*' 之前按 ',' 再拆: 第一个子字段回填为主列表的最后一个 token。
func tokenize(line string) (*rawFrame, error) {
	parts := strings.Split(line, FieldSeparator)
	last := parts[len(parts)-1]

	if !strings.Contains(last, TimestampSeparator) {
		return nil, &FormatError{Index: -1, Field: "missing '*' before timestamp"}
	}
	pieces := strings.Split(last, TimestampSeparator)
	segment := pieces[0]

	sub := strings.Split(segment, ExtraSeparator)
	parts[len(parts)-1] = sub[0]

	rf := &rawFrame{
		tokens:    parts,
		otherInfo: []string{},
		timestamp: strings.TrimSpace(pieces[len(pieces)-1]),
	}

	extra := sub[1:]
	if len(extra) > 0 {
		cs := extra[len(extra)-1]
		rf.checksum = &cs
		rf.otherInfo = append(rf.otherInfo, extra[:len(extra)-1]...)
	}
	return rf, nil
}
