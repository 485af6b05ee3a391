package model

import "time"

// Group is an age-cohort label, used both for notification targeting and
// user classification. The set is closed; anything else is rejected at the
// boundary.
type Group string

const (
	GroupFamilles Group = "Familles"
	GroupJeunesse Group = "Jeunesse"
	GroupEnfance  Group = "Enfance"
)

// AllGroups lists every valid group label.
var AllGroups = []Group{GroupFamilles, GroupJeunesse, GroupEnfance}

// Valid reports whether g belongs to the closed enumeration.
func (g Group) Valid() bool {
	switch g {
	case GroupFamilles, GroupJeunesse, GroupEnfance:
		return true
	}
	return false
}

// ParseGroup converts a raw label into a Group.
func ParseGroup(s string) (Group, bool) {
	g := Group(s)
	return g, g.Valid()
}

// GroupForAge classifies an age into a group. Children under 6 are
// unclassified and the second return is false.
func GroupForAge(age int) (Group, bool) {
	switch {
	case age >= 26:
		return GroupFamilles, true
	case age >= 12:
		return GroupJeunesse, true
	case age >= 6:
		return GroupEnfance, true
	}
	return "", false
}

// AgeAt returns the number of full years between birthdate and now,
// accounting for whether the birthday has occurred yet this year.
func AgeAt(birthdate, now time.Time) int {
	age := now.Year() - birthdate.Year()
	if now.Month() < birthdate.Month() ||
		(now.Month() == birthdate.Month() && now.Day() < birthdate.Day()) {
		age--
	}
	return age
}
