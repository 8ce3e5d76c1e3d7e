package analysis

import "strings"

// KeywordTableVersion identifies the revision of DefaultKeywords. Bump it
// whenever a list changes so stored classifications can be traced back.
const KeywordTableVersion = 3

// KeywordTable maps a role to the ordered substrings that select it when
// found in a lower-cased column label.
type KeywordTable struct {
	Version int
	Lists   map[Role][]string
}

// keywordPriority is the order in which lists are consulted. A label that
// matches both a temporal and a monetary keyword is temporal.
var keywordPriority = []Role{RoleTemporal, RoleMonetary, RoleCategorical}

// DefaultKeywords is the bilingual (Japanese/English) keyword table.
var DefaultKeywords = KeywordTable{
	Version: KeywordTableVersion,
	Lists: map[Role][]string{
		RoleTemporal: {
			"日付", "年月日", "年月", "日時", "曜日", "期間", "年度", "週", "月", "日",
			"date", "day", "month", "year", "period", "week", "time",
		},
		RoleMonetary: {
			"売上", "金額", "実績", "予算", "合計", "小計", "単価", "価格", "売価",
			"数量", "個数", "原価", "利益", "粗利", "費用", "円",
			"sales", "amount", "revenue", "total", "price", "cost", "profit",
			"budget", "actual", "quantity", "qty", "value",
		},
		RoleCategorical: {
			"商品", "品名", "品目", "製品", "カテゴリ", "分類", "店舗", "顧客",
			"取引先", "地域", "部門", "担当",
			"product", "item", "category", "store", "customer", "region",
			"brand", "sku", "name",
		},
	},
}

// Match returns the first role, in priority order, with a keyword contained
// in label. skip removes roles from consideration.
func (t KeywordTable) Match(label string, skip ...Role) (Role, bool) {
	lower := strings.ToLower(label)
	for _, role := range keywordPriority {
		if containsRole(skip, role) {
			continue
		}
		for _, kw := range t.Lists[role] {
			if strings.Contains(lower, kw) {
				return role, true
			}
		}
	}
	return RoleOther, false
}

func containsRole(roles []Role, r Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}

// canonicalFields maps learned field names to roles directly.
var canonicalFields = map[string]Role{
	"date":     RoleTemporal,
	"month":    RoleTemporal,
	"period":   RoleTemporal,
	"sales":    RoleMonetary,
	"amount":   RoleMonetary,
	"revenue":  RoleMonetary,
	"price":    RoleMonetary,
	"quantity": RoleMonetary,
	"cost":     RoleMonetary,
	"budget":   RoleMonetary,
	"product":  RoleCategorical,
	"category": RoleCategorical,
	"store":    RoleCategorical,
	"customer": RoleCategorical,
	"region":   RoleCategorical,
	"other":    RoleOther,
}

// RoleForField resolves the role of a learned canonical field name.
func RoleForField(field string) Role {
	f := strings.ToLower(strings.TrimSpace(field))
	if r, ok := canonicalFields[f]; ok {
		return r
	}
	if r, ok := Role(f).valid(); ok {
		return r
	}
	if r, ok := DefaultKeywords.Match(f); ok {
		return r
	}
	return RoleOther
}
