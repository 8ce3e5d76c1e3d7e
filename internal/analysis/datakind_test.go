package analysis

import "testing"

func TestIdentifyDataKind(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		sample []Row
		want   DataKind
	}{
		{"empty", nil, nil, KindFinancial},
		{"no signal", []string{"foo", "bar"}, nil, KindFinancial},
		{"sales", []string{"日付", "商品", "売上", "数量"}, nil, KindSales},
		{"inventory", []string{"品番", "在庫数", "倉庫"}, nil, KindInventory},
		{"hr", []string{"社員ID", "氏名", "部署", "給与"}, nil, KindHR},
		{"marketing", []string{"キャンペーン", "インプレッション", "クリック", "ROAS"}, nil, KindMarketing},
		{"financial", []string{"資産", "負債", "キャッシュ"}, nil, KindFinancial},
		{
			"customer from values",
			[]string{"ID", "連絡先", "区分"},
			[]Row{{"1", "a@example.com", "女性"}},
			KindCustomer,
		},
		{
			"hr from department values",
			[]string{"ID", "所属"},
			[]Row{{"1", "営業部"}},
			KindHR,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IdentifyDataKind(tc.labels, tc.sample); got != tc.want {
				t.Fatalf("IdentifyDataKind = %s, want %s", got, tc.want)
			}
		})
	}
}
