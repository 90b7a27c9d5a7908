package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ScheduleTestSuite struct {
	suite.Suite
}

func TestScheduleSuite(t *testing.T) {
	suite.Run(t, new(ScheduleTestSuite))
}

// mkTime 构造测试时间，2016-06-12 是星期日，wd 偏移天数得到对应星期.
func mkTime(sc, mi, hr, dy, wd int) time.Time {
	if wd >= 0 {
		return time.Date(2016, 6, 12+wd, hr, mi, sc, 0, time.UTC)
	}
	return time.Date(2016, 6, dy, hr, mi, sc, 0, time.UTC)
}

func (s *ScheduleTestSuite) TestDefault() {
	sch := NewSchedule(At{})
	s.Equal("0 * * * * *", sch.String())

	values, all := sch.Field(FieldSeconds)
	s.False(all)
	s.Equal([]int{0}, values)

	_, all = sch.Field(FieldDows)
	s.True(all)
}

func (s *ScheduleTestSuite) TestRender() {
	mixed := []any{Range(3, 5), 7, []int{9, 11}}

	tests := []struct {
		name string
		at   At
		want string
	}{
		{"seconds single", At{Seconds: 3}, "3 * * * * *"},
		{"seconds multiple", At{Seconds: []int{3, 9, 6}}, "3,6,9 * * * * *"},
		{"seconds range", At{Seconds: Range(3, 5)}, "3,4,5 * * * * *"},
		{"seconds mixed", At{Seconds: mixed}, "3,4,5,7,9,11 * * * * *"},
		{"minutes single", At{Minutes: 3}, "0 3 * * * *"},
		{"minutes multiple", At{Minutes: []int{3, 9, 6}}, "0 3,6,9 * * * *"},
		{"minutes range", At{Minutes: Range(3, 5)}, "0 3,4,5 * * * *"},
		{"minutes mixed", At{Minutes: mixed}, "0 3,4,5,7,9,11 * * * *"},
		{"hours single", At{Hours: 3}, "0 * 3 * * *"},
		{"hours multiple", At{Hours: []int{3, 9, 6}}, "0 * 3,6,9 * * *"},
		{"hours range", At{Hours: Range(3, 5)}, "0 * 3,4,5 * * *"},
		{"hours mixed", At{Hours: mixed}, "0 * 3,4,5,7,9,11 * * *"},
		{"days single", At{Days: 3}, "0 * * 3 * *"},
		{"days multiple", At{Days: []int{3, 9, 6}}, "0 * * 3,6,9 * *"},
		{"days range", At{Days: Range(3, 5)}, "0 * * 3,4,5 * *"},
		{"days mixed", At{Days: mixed}, "0 * * 3,4,5,7,9,11 * *"},
		{"months single", At{Months: 3}, "0 * * * 3 *"},
		{"months multiple", At{Months: []int{3, 9, 6}}, "0 * * * 3,6,9 *"},
		{"months range", At{Months: Range(3, 5)}, "0 * * * 3,4,5 *"},
		{
			"months names long",
			At{Months: []string{"January", "FEBRUARY", "march", "ApRiL", "may", "JuNe", "July", "august", "September", "OCTOBER", "NoVeMbEr", "dEcEmBeR"}},
			"0 * * * 1,2,3,4,5,6,7,8,9,10,11,12 *",
		},
		{
			"months names short",
			At{Months: []string{"Jan", "FEB", "march", "ApR", "may", "JuN", "Jul", "aug", "Sep", "OCT", "NoV", "dEc"}},
			"0 * * * 1,2,3,4,5,6,7,8,9,10,11,12 *",
		},
		{"months mixed", At{Months: []any{Range(1, 2), 3, []any{4, "Jul"}, "may"}}, "0 * * * 1,2,3,4,5,7 *"},
		{"dows single", At{Dows: 3}, "0 * * * * 3"},
		{"dows multiple", At{Dows: []int{1, 3, 5}}, "0 * * * * 1,3,5"},
		{"dows range", At{Dows: Range(3, 5)}, "0 * * * * 3,4,5"},
		{
			"dows names long",
			At{Dows: []string{"Sunday", "monday", "TUESDAY", "WednesDay", "thursday", "Friday", "SATURDAY"}},
			"0 * * * * 0,1,2,3,4,5,6",
		},
		{
			"dows names short",
			At{Dows: []string{"Sun", "mon", "TUE", "Wed", "thu", "Fri", "SAT"}},
			"0 * * * * 0,1,2,3,4,5,6",
		},
		{"dows mixed", At{Dows: []any{Range(0, 1), 2, []string{"wed", "thursday"}, "Fri", "SaT"}}, "0 * * * * 0,1,2,3,4,5,6"},
		{"mix 1", At{Minutes: 15, Hours: Range(8, 17), Dows: Range(1, 5)}, "0 15 8,9,10,11,12,13,14,15,16,17 * * 1,2,3,4,5"},
		{"mix 2", At{Seconds: []int{15, 45}, Hours: []int{3, 15}, Dows: []string{"sat", "sun"}}, "15,45 * 3,15 * * 0,6"},
		{"mix 3", At{Days: []int{1, 15}, Hours: []int{8, 12, 15}, Dows: Range(1, 5)}, "0 * 8,12,15 1,15 * 1,2,3,4,5"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.want, NewSchedule(tt.at).String())
		})
	}
}

func (s *ScheduleTestSuite) TestNormalizeDropsInvalid() {
	tests := []struct {
		name string
		at   At
		want string
	}{
		{"out of range", At{Seconds: []int{-1, 5, 60}}, "5 * * * * *"},
		{"range clamped", At{Days: Range(29, 40)}, "0 * * 29,30,31 * *"},
		{"inverted range", At{Minutes: Range(10, 5)}, "0  * * * *"},
		{"unknown name", At{Months: []string{"jan", "smarch"}}, "0 * * * 1 *"},
		{"name in numeric field", At{Hours: "noon"}, "0 *  * * *"},
		{"unsupported type", At{Seconds: []any{1.5, 7}}, "7 * * * * *"},
		{"duplicates", At{Seconds: []int{5, 5, 5}}, "5 * * * * *"},
		{"numeric string", At{Dows: "3"}, "0 * * * * 3"},
		{"wildcard", At{Seconds: All}, "* * * * * *"},
		{"wildcard absorbs values", At{Minutes: []any{1, All}}, "0 * * * * *"},
		{"pointer", At{Hours: ptr(4)}, "0 * 4 * * *"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.want, NewSchedule(tt.at).String())
		})
	}
}

func (s *ScheduleTestSuite) TestEmptyFieldNeverMatches() {
	sch := NewSchedule(At{Seconds: All, Minutes: []int{}})
	for mi := 0; mi < 60; mi++ {
		s.False(sch.Matches(mkTime(0, mi, 0, 1, -1)))
	}
}

func (s *ScheduleTestSuite) TestMatches() {
	tests := []struct {
		name string
		at   At
		t    time.Time
	}{
		{"all", At{}, mkTime(0, 0, 0, 1, -1)},
		{"seconds", At{Seconds: []int{15, 45}}, mkTime(45, 0, 0, 1, -1)},
		{"minutes", At{Minutes: []int{17, 23}}, mkTime(0, 17, 0, 1, -1)},
		{"hours", At{Hours: Range(20, 23)}, mkTime(0, 0, 23, 1, -1)},
		{"days", At{Days: []Span{Range(10, 20)}}, mkTime(0, 0, 0, 15, -1)},
		{"dows", At{Dows: "mon"}, mkTime(0, 0, 0, 0, 1)},
		{"mix 1", At{Minutes: 15, Hours: Range(8, 17), Dows: Range(1, 5)}, mkTime(0, 15, 10, 0, 3)},
		{"mix 2", At{Seconds: []int{15, 45}, Hours: []int{3, 15}, Dows: []string{"sat", "sun"}}, mkTime(45, 0, 15, 0, 6)},
		{"mix 3", At{Days: []int{1, 15}, Hours: []int{8, 12, 15}, Dows: Range(1, 5)}, time.Date(2016, 6, 15, 8, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.True(NewSchedule(tt.at).Matches(tt.t))
		})
	}
}

func (s *ScheduleTestSuite) TestDoesNotMatch() {
	sch := NewSchedule(At{Minutes: 15, Hours: Range(8, 17), Dows: Range(1, 5)})

	s.False(sch.Matches(mkTime(1, 15, 10, 0, 3)), "second differs")
	s.False(sch.Matches(mkTime(0, 16, 10, 0, 3)), "minute differs")
	s.False(sch.Matches(mkTime(0, 15, 18, 0, 3)), "hour differs")
	s.False(sch.Matches(mkTime(0, 15, 10, 0, 0)), "weekday differs")
}

func (s *ScheduleTestSuite) TestEqual() {
	a := NewSchedule(At{Seconds: []int{3, 1, 2}})
	b := NewSchedule(At{Seconds: Range(1, 3)})
	c := NewSchedule(At{Seconds: 1})

	s.True(a.Equal(b))
	s.False(a.Equal(c))
	s.False(a.Equal(nil))
}

func (s *ScheduleTestSuite) TestFieldName() {
	s.Equal("seconds", FieldSeconds.String())
	s.Equal("dows", FieldDows.String())
	s.Equal("unknown", FieldName(42).String())

	values, all := NewSchedule(At{}).Field(FieldName(42))
	s.Nil(values)
	s.False(all)
}

func ptr[T any](v T) *T {
	return &v
}
