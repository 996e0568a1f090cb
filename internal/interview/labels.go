package interview

var typeLabels = map[string]string{
	TypeTechnical:    "技术面试",
	TypeBehavioral:   "行为面试",
	TypeSystemDesign: "系统设计",
	TypeCoding:       "编程面试",
}

var difficultyLabels = map[string]string{
	DifficultyEasy:   "简单",
	DifficultyMedium: "中等",
	DifficultyHard:   "困难",
}

var positionLabels = map[string]string{
	"frontend":  "前端开发",
	"backend":   "后端开发",
	"fullstack": "全栈开发",
	"mobile":    "移动开发",
	"devops":    "DevOps",
}

var experienceLabels = map[string]string{
	"junior":       "初级 (0-2年)",
	"intermediate": "中级 (2-5年)",
	"senior":       "高级 (5年以上)",
}

func TypeLabel(t string) string {
	return labelOr(typeLabels, t, "综合面试")
}

func DifficultyLabel(d string) string {
	return labelOr(difficultyLabels, d, "中等")
}

func PositionLabel(p string) string {
	return labelOr(positionLabels, p, "软件开发")
}

func ExperienceLabel(e string) string {
	return labelOr(experienceLabels, e, "中级")
}

func labelOr(m map[string]string, key, fallback string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}
