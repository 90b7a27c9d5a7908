package scheduler

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// starBit robfig/cron 用于标记 "*" 或 "?" 的最高位.
const starBit = 1 << 63

// cronParser 秒级六字段解析器，同时支持 @hourly 等描述符.
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseCron 解析六字段 Cron 表达式.
//
// 支持区间、步长、列表以及月份和星期的三字母缩写，例如 "0 15 8-10 * * mon-fri".
// 匹配语义与 NewSchedule 一致：六个字段同时满足才匹配（日与星期之间不做"或"运算）.
// @every 这类固定间隔表达式和时区前缀不受支持.
func ParseCron(expr string) (*Schedule, error) {
	trimmed := strings.TrimSpace(expr)
	if strings.HasPrefix(trimmed, "TZ=") || strings.HasPrefix(trimmed, "CRON_TZ=") {
		return nil, fmt.Errorf("%w: %q: time zone prefix is not supported", ErrScheduleInvalid, expr)
	}

	parsed, err := cronParser.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrScheduleInvalid, expr, err)
	}

	spec, ok := parsed.(*cron.SpecSchedule)
	if !ok {
		return nil, fmt.Errorf("%w: %q: interval schedules are not supported", ErrScheduleInvalid, expr)
	}

	s := &Schedule{}
	masks := [fieldCount]uint64{spec.Second, spec.Minute, spec.Hour, spec.Dom, spec.Month, spec.Dow}
	for i, mask := range masks {
		s.fields[i] = fromCronBits(&fieldDefs[i], mask)
	}
	return s, nil
}

// MustParseCron 解析 Cron 表达式，失败时 panic.
func MustParseCron(expr string) *Schedule {
	s, err := ParseCron(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// fromCronBits 将 robfig/cron 的位图转换为字段.
func fromCronBits(def *fieldDef, mask uint64) field {
	if mask&starBit != 0 {
		return field{all: true}
	}
	var f field
	for n := def.min; n <= def.max; n++ {
		if mask&(1<<uint(n)) != 0 {
			f.bits |= 1 << uint(n)
		}
	}
	return f
}
