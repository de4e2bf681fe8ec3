package category

import "strings"

// Category is one of the fixed expense categories.
type Category string

const (
	Food           Category = "Food"
	Transportation Category = "Transportation"
	Entertainment  Category = "Entertainment"
	Shopping       Category = "Shopping"
	Bills          Category = "Bills"
	Other          Category = "Other"
)

// AllFilter matches every category when used as a filter value.
const AllFilter = "All"

var ordered = []Category{Food, Transportation, Entertainment, Shopping, Bills, Other}

var colors = map[Category]string{
	Food:           "#10B981",
	Transportation: "#3B82F6",
	Entertainment:  "#8B5CF6",
	Shopping:       "#F59E0B",
	Bills:          "#EF4444",
	Other:          "#6B7280",
}

var icons = map[Category]string{
	Food:           "🍔",
	Transportation: "🚗",
	Entertainment:  "🎬",
	Shopping:       "🛒",
	Bills:          "📄",
	Other:          "📦",
}

// All returns the categories in display order.
func All() []Category {
	out := make([]Category, len(ordered))
	copy(out, ordered)
	return out
}

// Names returns All as plain strings.
func Names() []string {
	out := make([]string, 0, len(ordered))
	for _, c := range ordered {
		out = append(out, string(c))
	}
	return out
}

func (c Category) Valid() bool {
	_, ok := colors[c]
	return ok
}

func (c Category) String() string {
	return string(c)
}

// Color is the chart color; unknown categories get the Other color.
func (c Category) Color() string {
	if col, ok := colors[c]; ok {
		return col
	}
	return colors[Other]
}

func (c Category) Icon() string {
	if icon, ok := icons[c]; ok {
		return icon
	}
	return icons[Other]
}

// Parse matches name exactly first, then case-insensitively.
func Parse(name string) (Category, bool) {
	c := Category(strings.TrimSpace(name))
	if c.Valid() {
		return c, true
	}
	for _, known := range ordered {
		if strings.EqualFold(string(known), string(c)) {
			return known, true
		}
	}
	return "", false
}

func (c Category) ToResponse() CategoryResponse {
	return CategoryResponse{
		Name:  string(c),
		Color: c.Color(),
		Icon:  c.Icon(),
	}
}
