package model

import "strings"

// Tier описывает уровень VIP игрока.
type Tier string

const (
	TierVisitor  Tier = "Visitor"
	TierBronze   Tier = "Bronze"
	TierSilver   Tier = "Silver"
	TierGold     Tier = "Gold"
	TierPlatinum Tier = "Platinum"
	TierDiamond  Tier = "Diamond"
)

var tierRanks = map[Tier]int{
	TierBronze:   1,
	TierSilver:   2,
	TierGold:     3,
	TierPlatinum: 4,
	TierDiamond:  5,
}

// ParseTier приводит строку к уровню без учёта регистра. Неизвестные значения возвращаются как есть.
func ParseTier(s string) Tier {
	for t := range tierRanks {
		if strings.EqualFold(string(t), s) {
			return t
		}
	}
	if strings.EqualFold(string(TierVisitor), s) {
		return TierVisitor
	}
	return Tier(s)
}

// Rank возвращает порядковый номер уровня; ноль для посетителя и неизвестных уровней.
func (t Tier) Rank() int {
	return tierRanks[t]
}

// AtLeast сообщает, что уровень не ниже other.
func (t Tier) AtLeast(other Tier) bool {
	return t.Rank() >= other.Rank()
}
