package bonus

import (
	"strconv"
	"strings"

	"github.com/mmeshcher/luckyspin/internal/model"
)

// ReferralBonusType обозначает получение реферальных бонусов.
const ReferralBonusType = "referral_bonus"

// ReferralClaimDescription используется в описании операции получения одного реферального бонуса.
const ReferralClaimDescription = "Referral Bonus Claim"

const legacyReferralDescription = "Referral Bonus: Claimed success referral"

// IsReferralClaim сообщает, что описание операции обозначает получение реферального бонуса.
func IsReferralClaim(desc string) bool {
	return desc == ReferralClaimDescription ||
		desc == legacyReferralDescription ||
		strings.ToLower(desc) == "referral bonus claim"
}

// CampaignClaimDescription возвращает описание операции получения бонуса кампании.
func CampaignClaimDescription(name string) string {
	return "Claimed Bonus: " + name
}

// IsCampaignClaim сообщает, что описание операции обозначает получение бонуса кампании name.
func IsCampaignClaim(desc, name string) bool {
	if desc == "" {
		return false
	}
	return desc == CampaignClaimDescription(name) ||
		desc == name+" Bonus Claimed" ||
		desc == name
}

// CountReferralClaims считает полученные реферальные бонусы среди бонусных операций.
func CountReferralClaims(txs []model.Transaction) int {
	n := 0
	for _, t := range txs {
		if IsReferralClaim(t.Description) {
			n++
		}
	}
	return n
}

// CountCampaignClaims считает получения бонуса кампании среди бонусных операций.
func CountCampaignClaims(txs []model.Transaction, name string) int {
	n := 0
	for _, t := range txs {
		if IsCampaignClaim(t.Description, name) {
			n++
		}
	}
	return n
}

// FormatAmount форматирует сумму без лишних нулей: 100, 50.5.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
