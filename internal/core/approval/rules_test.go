package approval

import "testing"

func TestMatchRules(t *testing.T) {
	t.Parallel()

	rules := []*Rule{
		{ID: "small", MaxAmount: amount("100"), RequiredApprovers: 1},
		{ID: "large", MinAmount: amount("100.01"), RequiredApprovers: 2},
		{ID: "travel", Category: strPtr("travel"), RequiredApprovers: 3},
	}

	cases := []struct {
		name     string
		approval *Approval
		want     []string
		required int
	}{
		{name: "small office", approval: &Approval{Category: "Office", Amount: amount("20")}, want: []string{"small"}, required: 1},
		{name: "large travel", approval: &Approval{Category: "Travel", Amount: amount("1000")}, want: []string{"large", "travel"}, required: 3},
		{name: "no amount", approval: &Approval{Category: "Meals"}, want: []string{}, required: 1},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := MatchRules(rules, tc.approval)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %d rules", tc.want, len(got))
			}
			for i, r := range got {
				if r.ID != tc.want[i] {
					t.Errorf("rule %d = %s, want %s", i, r.ID, tc.want[i])
				}
			}
			if req := RequiredApprovers(rules, tc.approval); req != tc.required {
				t.Errorf("RequiredApprovers = %d, want %d", req, tc.required)
			}
		})
	}
}
