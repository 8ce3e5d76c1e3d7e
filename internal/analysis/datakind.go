package analysis

import (
	"strconv"
	"strings"
)

// DataKind is the business domain a dataset most likely belongs to.
type DataKind string

const (
	KindHR        DataKind = "hr"
	KindMarketing DataKind = "marketing"
	KindSales     DataKind = "sales"
	KindFinancial DataKind = "financial"
	KindInventory DataKind = "inventory"
	KindCustomer  DataKind = "customer"
)

// kindOrder breaks score ties.
var kindOrder = []DataKind{KindHR, KindMarketing, KindSales, KindFinancial, KindInventory, KindCustomer}

// DisplayName returns the Japanese label used in reports.
func (k DataKind) DisplayName() string {
	switch k {
	case KindHR:
		return "人事データ"
	case KindMarketing:
		return "マーケティングデータ"
	case KindSales:
		return "売上データ"
	case KindInventory:
		return "在庫データ"
	case KindCustomer:
		return "顧客データ"
	default:
		return "財務データ"
	}
}

type kindKeywords struct {
	strong []string
	medium []string
	// mediumWeight is the score added per medium keyword.
	mediumWeight int
}

var dataKindKeywords = map[DataKind]kindKeywords{
	KindHR: {
		strong: []string{"社員id", "employee", "氏名", "部署", "給与", "salary", "賞与", "年収", "評価",
			"performance", "残業", "overtime", "有給", "離職", "昇進", "スキル", "人事"},
		medium:       []string{"勤怠", "attendance", "研修", "training", "目標達成", "職位", "入社", "年齢"},
		mediumWeight: 2,
	},
	KindMarketing: {
		strong: []string{"キャンペーン", "campaign", "roi", "インプレッション", "impression", "クリック",
			"click", "cv数", "conversion", "顧客獲得", "cac", "roas", "広告", "媒体", "ターゲット"},
		medium: []string{"予算", "budget", "支出", "cost", "facebook", "google", "youtube",
			"instagram", "tiktok", "twitter"},
		mediumWeight: 1,
	},
	KindSales: {
		strong: []string{"売上", "sales", "revenue", "商品", "product", "顧客", "customer", "金額",
			"amount", "単価", "price", "数量", "quantity"},
		medium:       []string{"日付", "date", "店舗", "store", "地域", "region", "カテゴリ", "category"},
		mediumWeight: 1,
	},
	KindFinancial: {
		strong: []string{"売上高", "revenue", "利益", "profit", "資産", "asset", "負債", "liability",
			"キャッシュ", "cash", "損益", "貸借"},
	},
	KindInventory: {
		strong: []string{"在庫", "inventory", "stock", "保有数", "倉庫", "warehouse", "回転率",
			"turnover", "滞留", "入庫", "出庫", "調達", "procurement"},
		medium: []string{"商品コード", "sku", "ロット", "lot", "品番", "型番", "仕入", "supplier",
			"発注", "order", "納期", "delivery"},
		mediumWeight: 1,
	},
	KindCustomer: {
		strong: []string{"顧客", "customer", "会員", "member", "ユーザー", "user", "ltv", "lifetime",
			"churn", "離脱", "継続", "retention", "満足度", "satisfaction"},
		medium: []string{"セグメント", "segment", "年齢", "age", "性別", "gender", "地域", "region",
			"購入履歴", "purchase", "アクセス", "access", "クリック", "click"},
		mediumWeight: 1,
	},
}

var (
	hrDepartments = []string{"営業部", "it部", "人事部", "財務部", "マーケティング部"}
	hrPositions   = []string{"主任", "係長", "部長", "課長"}
	adMedia       = []string{"google広告", "facebook広告", "youtube広告", "instagram広告", "line広告", "tiktok広告"}
	stockUnits    = []string{"個", "本", "kg", "箱", "セット", "台"}
	stockStatuses = []string{"入荷待ち", "出荷済み", "在庫切れ", "調達中"}
	ageBands      = []string{"20代", "30代", "40代", "50代", "60代"}
	genderValues  = []string{"男性", "女性", "male", "female"}
)

// IdentifyDataKind scores labels, and the first sample row when present,
// against per-domain keyword lists. Without any signal it returns
// KindFinancial.
func IdentifyDataKind(labels []string, sample []Row) DataKind {
	if len(labels) == 0 {
		return KindFinancial
	}
	joined := strings.ToLower(strings.Join(labels, " "))
	scores := map[DataKind]int{}
	for kind, kw := range dataKindKeywords {
		for _, s := range kw.strong {
			if strings.Contains(joined, s) {
				scores[kind] += 3
			}
		}
		for _, m := range kw.medium {
			if strings.Contains(joined, m) {
				scores[kind] += kw.mediumWeight
			}
		}
	}
	if len(sample) > 0 {
		scoreValues(scores, labels, sample[0])
	}

	best, bestScore := KindFinancial, 0
	for _, k := range kindOrder {
		if scores[k] > bestScore {
			best, bestScore = k, scores[k]
		}
	}
	return best
}

func scoreValues(scores map[DataKind]int, labels []string, row Row) {
	for i, label := range labels {
		key := strings.ToLower(label)
		val := strings.ToLower(strings.TrimSpace(CellText(cellAt(row, i))))
		if val == "" {
			continue
		}
		if containsAny(val, hrDepartments) {
			scores[KindHR] += 5
		}
		if containsAny(val, hrPositions) {
			scores[KindHR] += 3
		}
		if containsAny(val, adMedia) {
			scores[KindMarketing] += 5
		}
		if strings.Contains(key, "商品") || strings.Contains(key, "product") {
			scores[KindSales] += 3
		}
		if key == "店舗" || key == "store" {
			scores[KindSales] += 4
		}
		if containsAny(val, stockUnits) {
			scores[KindInventory] += 2
		}
		if strings.Contains(key, "倉庫") || strings.Contains(key, "warehouse") {
			scores[KindInventory] += 3
		}
		if containsAny(val, stockStatuses) {
			scores[KindInventory] += 4
		}
		if containsAny(val, ageBands) || isAdultAge(val) {
			scores[KindCustomer] += 3
		}
		if containsAny(val, genderValues) {
			scores[KindCustomer] += 3
		}
		if strings.Contains(val, "@") {
			scores[KindCustomer] += 4
		}
	}
}

func isAdultAge(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= 18 && n <= 80
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
