package scheduler

import (
	"reflect"
	"strconv"
	"strings"
	"time"
)

// FieldName 时间模式字段.
type FieldName int

// 字段按规范顺序排列：秒 分 时 日 月 周.
const (
	FieldSeconds FieldName = iota
	FieldMinutes
	FieldHours
	FieldDays
	FieldMonths
	FieldDows

	fieldCount
)

// String 返回字段名.
func (f FieldName) String() string {
	if f < 0 || f >= fieldCount {
		return "unknown"
	}
	return fieldDefs[f].name
}

// fieldDef 字段取值范围与可识别的名称.
type fieldDef struct {
	name     string
	min, max int
	// names[i] 对应取值 min+i，全称与缩写均为小写
	names [][2]string
}

var fieldDefs = [fieldCount]fieldDef{
	FieldSeconds: {name: "seconds", min: 0, max: 59},
	FieldMinutes: {name: "minutes", min: 0, max: 59},
	FieldHours:   {name: "hours", min: 0, max: 23},
	FieldDays:    {name: "days", min: 1, max: 31},
	FieldMonths: {name: "months", min: 1, max: 12, names: [][2]string{
		{"january", "jan"}, {"february", "feb"}, {"march", "mar"}, {"april", "apr"},
		{"may", "may"}, {"june", "jun"}, {"july", "jul"}, {"august", "aug"},
		{"september", "sep"}, {"october", "oct"}, {"november", "nov"}, {"december", "dec"},
	}},
	FieldDows: {name: "dows", min: 0, max: 6, names: [][2]string{
		{"sunday", "sun"}, {"monday", "mon"}, {"tuesday", "tue"}, {"wednesday", "wed"},
		{"thursday", "thu"}, {"friday", "fri"}, {"saturday", "sat"},
	}},
}

// lookup 将名称解析为字段取值，无法识别时返回 false.
func (d *fieldDef) lookup(name string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range d.names {
		if name == n[0] || name == n[1] {
			return d.min + i, true
		}
	}
	if v, err := strconv.Atoi(name); err == nil {
		return v, true
	}
	return 0, false
}

// wildcard 匹配任意值的哨兵类型.
type wildcard struct{}

// All 表示字段匹配任意值.
var All = wildcard{}

// Span 闭区间 [From, To].
type Span struct {
	From, To int
}

// Range 创建闭区间，From 大于 To 时为空区间.
func Range(from, to int) Span {
	return Span{From: from, To: to}
}

// At 时间模式的字段描述.
//
// 每个字段可以是整数、名称（仅月与星期，支持全称和三字母缩写，不区分大小写）、
// Span、All，或任意嵌套的切片组合. 未设置（nil）的字段默认为 All，秒字段默认为 0.
type At struct {
	Seconds any
	Minutes any
	Hours   any
	Days    any
	Months  any
	Dows    any
}

func (a At) values() [fieldCount]any {
	return [fieldCount]any{a.Seconds, a.Minutes, a.Hours, a.Days, a.Months, a.Dows}
}

// field 单个字段的规范化结果，取值以位图存储.
type field struct {
	all  bool
	bits uint64
}

func (f field) matches(v int) bool {
	if f.all {
		return true
	}
	return v >= 0 && v < 64 && f.bits&(1<<uint(v)) != 0
}

func (f field) values() []int {
	var out []int
	for v := 0; v < 64; v++ {
		if f.bits&(1<<uint(v)) != 0 {
			out = append(out, v)
		}
	}
	return out
}

func (f field) String() string {
	if f.all {
		return "*"
	}
	vals := f.values()
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// Schedule 单个六字段时间模式，创建后不可变.
type Schedule struct {
	fields [fieldCount]field
}

// NewSchedule 根据字段描述创建时间模式.
//
// 越界取值、无法识别的名称和不支持的类型都会被丢弃，不会返回错误.
// 显式设置但规范化后为空的字段不匹配任何时间.
func NewSchedule(at At) *Schedule {
	s := &Schedule{}
	for i, raw := range at.values() {
		name := FieldName(i)
		if raw == nil {
			s.fields[i] = defaultField(name)
			continue
		}
		s.fields[i] = normalize(&fieldDefs[i], raw)
	}
	return s
}

// defaultField 未设置字段的默认值：秒为 0，其余为 All.
func defaultField(name FieldName) field {
	if name == FieldSeconds {
		return field{bits: 1}
	}
	return field{all: true}
}

// normalize 展开、解析、过滤并去重字段取值.
func normalize(def *fieldDef, raw any) field {
	var f field
	collect(def, reflect.ValueOf(raw), &f)
	if f.all {
		f.bits = 0
	}
	return f
}

func collect(def *fieldDef, v reflect.Value, f *field) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		collect(def, v.Elem(), f)
		return
	}

	switch x := v.Interface().(type) {
	case wildcard:
		f.all = true
		return
	case Span:
		from, to := max(x.From, def.min), min(x.To, def.max)
		for n := from; n <= to; n++ {
			f.add(def, n)
		}
		return
	}

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f.add(def, int(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Uint() <= uint64(def.max) {
			f.add(def, int(v.Uint()))
		}
	case reflect.String:
		if n, ok := def.lookup(v.String()); ok {
			f.add(def, n)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			collect(def, v.Index(i), f)
		}
	}
}

func (f *field) add(def *fieldDef, n int) {
	if n < def.min || n > def.max {
		return
	}
	f.bits |= 1 << uint(n)
}

// Matches 判断时间是否匹配全部六个字段.
func (s *Schedule) Matches(t time.Time) bool {
	return s.fields[FieldSeconds].matches(t.Second()) &&
		s.fields[FieldMinutes].matches(t.Minute()) &&
		s.fields[FieldHours].matches(t.Hour()) &&
		s.fields[FieldDays].matches(t.Day()) &&
		s.fields[FieldMonths].matches(int(t.Month())) &&
		s.fields[FieldDows].matches(int(t.Weekday()))
}

// Field 返回规范化后的字段取值，all 为 true 时 values 为空.
func (s *Schedule) Field(name FieldName) (values []int, all bool) {
	if name < 0 || name >= fieldCount {
		return nil, false
	}
	f := s.fields[name]
	return f.values(), f.all
}

// String 返回规范的六字段表示，例如 "0 15 8,9,10 * * 1,2,3,4,5".
func (s *Schedule) String() string {
	parts := make([]string, fieldCount)
	for i, f := range s.fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, " ")
}

// Equal 判断两个时间模式规范化后是否相同.
func (s *Schedule) Equal(other *Schedule) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.fields == other.fields
}
