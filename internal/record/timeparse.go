package record

import (
	"time"

	"github.com/dunedivision/taskhub/internal/model"
)

// naiveLayouts はタイムゾーン指定の無い入力として受け付ける書式。
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime は日時文字列を解釈する。RFC 3339（オフセット付き）を最優先し、
// オフセットの無い入力はアプリケーションのタイムゾーンlocの壁時計時刻として
// 解釈する。どの書式にも一致しない場合はVALIDATION_ERRORを返す。
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, model.NewValidationError("日時の形式が不正です: " + s)
}

// ParseOptionalTime は空文字列をnilとして扱うParseTime。
func ParseOptionalTime(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := ParseTime(s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
