package interview

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTitleOf(t *testing.T) {
	short := "什么是闭包？"
	if got := TitleOf(short); got != short {
		t.Errorf("TitleOf(short) = %q, want unchanged", got)
	}

	exact := strings.Repeat("题", 50)
	if got := TitleOf(exact); got != exact {
		t.Errorf("50-rune content should be kept whole, got %d runes", utf8.RuneCountInString(got))
	}

	long := strings.Repeat("题", 51)
	got := TitleOf(long)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("TitleOf(long) = %q, want ... suffix", got)
	}
	if n := utf8.RuneCountInString(got); n != 50 {
		t.Errorf("TitleOf(long) has %d runes, want 50", n)
	}
}

func TestTagsOf(t *testing.T) {
	tags := TagsOf(Parameters{Type: TypeTechnical, Position: "backend", Difficulty: DifficultyHard})
	want := []string{"技术面试", "后端开发", "困难"}
	if strings.Join(tags, ",") != strings.Join(want, ",") {
		t.Errorf("TagsOf = %v, want %v", tags, want)
	}

	defaults := TagsOf(Parameters{})
	if len(defaults) != 3 {
		t.Errorf("TagsOf(empty) = %v, want 3 default labels", defaults)
	}
}

func TestLabelsDefault(t *testing.T) {
	cases := []struct {
		name string
		got  string
		want string
	}{
		{"type known", TypeLabel(TypeSystemDesign), "系统设计"},
		{"type unknown", TypeLabel("panel"), "综合面试"},
		{"difficulty unknown", DifficultyLabel(""), "中等"},
		{"position devops", PositionLabel("devops"), "DevOps"},
		{"position unknown", PositionLabel("data"), "软件开发"},
		{"experience senior", ExperienceLabel("senior"), "高级 (5年以上)"},
		{"experience unknown", ExperienceLabel(""), "中级"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %q, want %q", tc.got, tc.want)
			}
		})
	}
}

func TestClampScore(t *testing.T) {
	for in, want := range map[int]int{-3: 1, 0: 1, 1: 1, 7: 7, 10: 10, 42: 10} {
		if got := ClampScore(in); got != want {
			t.Errorf("ClampScore(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestWithDefaults(t *testing.T) {
	p := Parameters{Position: "mobile"}.WithDefaults()
	if p.Type != TypeTechnical || p.Difficulty != DifficultyMedium || p.Position != "mobile" {
		t.Errorf("WithDefaults = %+v", p)
	}
}
