package repositories

import "strings"

var sortableColumns = map[string]string{
	"id":          "id",
	"title":       "title",
	"description": "description",
	"status":      "status",
	"priority":    "priority",
	"duedate":     "due_date",
	"due_date":    "due_date",
	"createdat":   "created_at",
	"created_at":  "created_at",
	"updatedat":   "updated_at",
	"updated_at":  "updated_at",
}

// ResolveSortColumn maps an API sort field (camelCase or snake_case) to a
// tasks column. Only whitelisted columns ever reach ORDER BY.
func ResolveSortColumn(field string) (string, bool) {
	col, ok := sortableColumns[strings.ToLower(strings.TrimSpace(field))]
	return col, ok
}

type PageRequest struct {
	Page       int
	Size       int
	SortColumn string
	Desc       bool
}

func (p PageRequest) Offset() int {
	return p.Page * p.Size
}
