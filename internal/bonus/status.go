package bonus

import "github.com/mmeshcher/luckyspin/internal/model"

// ReferralStatus описывает состояние реферальных бонусов игрока.
type ReferralStatus struct {
	FriendsReferred int     `json:"friends_referred"`
	Claimed         int     `json:"claimed"`
	Pending         int     `json:"pending"`
	UnitAmount      float64 `json:"unit_amount"`
	PendingAmount   float64 `json:"pending_amount"`
}

// ReferralStatusOf вычисляет число полученных и ожидающих реферальных бонусов.
func ReferralStatusOf(friends int, unit float64, history []model.Transaction) ReferralStatus {
	return ReferralStatusCounted(friends, unit, CountReferralClaims(history))
}

// ReferralStatusCounted строит состояние по готовому числу полученных бонусов.
func ReferralStatusCounted(friends int, unit float64, claimed int) ReferralStatus {
	pending := friends - claimed
	if pending < 0 {
		pending = 0
	}
	return ReferralStatus{
		FriendsReferred: friends,
		Claimed:         claimed,
		Pending:         pending,
		UnitAmount:      unit,
		PendingAmount:   unit * float64(pending),
	}
}

// CampaignStatus описывает доступность бонуса кампании для игрока.
type CampaignStatus struct {
	Campaign  model.BonusCampaign `json:"campaign"`
	Claimed   int                 `json:"claimed"`
	MaxClaims int                 `json:"max_claims"`
	Grants    int                 `json:"grants"`
	Claimable bool                `json:"claimable"`
}

// CampaignStatuses вычисляет доступность каждой кампании по тем же правилам, что и Claim.
func CampaignStatuses(campaigns []model.BonusCampaign, grants []model.BonusEligibility, history []model.Transaction) []CampaignStatus {
	claimed := make(map[int64]int, len(campaigns))
	for _, c := range campaigns {
		claimed[c.ID] = CountCampaignClaims(history, c.BonusName)
	}
	return CampaignStatusesCounted(campaigns, grants, claimed)
}

// CampaignStatusesCounted вычисляет доступность кампаний по числу получений, известному по идентификатору кампании.
func CampaignStatusesCounted(campaigns []model.BonusCampaign, grants []model.BonusEligibility, claimed map[int64]int) []CampaignStatus {
	res := make([]CampaignStatus, 0, len(campaigns))
	for _, c := range campaigns {
		st := CampaignStatus{
			Campaign:  c,
			Claimed:   claimed[c.ID],
			MaxClaims: c.MaxClaims(),
		}
		for _, g := range grants {
			if g.IsAvailable && g.BonusType == c.BonusType && g.Amount == c.Amount {
				st.Grants++
			}
		}
		st.Claimable = st.Grants > 0 || (c.AutoUnlock && st.Claimed < st.MaxClaims)
		res = append(res, st)
	}
	return res
}
