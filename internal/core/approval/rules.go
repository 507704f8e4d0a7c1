package approval

import "strings"

// MatchRules は申請に該当する承認ルールを返します。
// ワークフローはまだこの結果を参照しません。多段承認を導入する際の判定に使います。
func MatchRules(rules []*Rule, a *Approval) []*Rule {
	matched := make([]*Rule, 0)
	for _, r := range rules {
		if r == nil || a == nil {
			continue
		}
		if r.Category != nil && !strings.EqualFold(*r.Category, a.Category) {
			continue
		}
		if r.MinAmount != nil || r.MaxAmount != nil {
			if a.Amount == nil {
				continue
			}
			if r.MinAmount != nil && a.Amount.LessThan(*r.MinAmount) {
				continue
			}
			if r.MaxAmount != nil && a.Amount.GreaterThan(*r.MaxAmount) {
				continue
			}
		}
		matched = append(matched, r)
	}
	return matched
}

// RequiredApprovers は該当ルールのうち最大の必要承認者数を返します。該当がなければ 1 です。
func RequiredApprovers(rules []*Rule, a *Approval) int {
	required := 1
	for _, r := range MatchRules(rules, a) {
		if r.RequiredApprovers > required {
			required = r.RequiredApprovers
		}
	}
	return required
}
