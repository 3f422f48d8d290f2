// Package types contains read models shared by the aggregation views and the API.
package types

// LineupRating is the net rating of one five-man unit.
type LineupRating struct {
	TeamID               string  `json:"team_id"`
	LineupHash           string  `json:"lineup_hash"`
	OffensivePossessions int     `json:"offensive_possessions"`
	PointsFor            int     `json:"points_for"`
	DefensivePossessions int     `json:"defensive_possessions"`
	PointsAgainst        int     `json:"points_against"`
	OffensiveRating      float64 `json:"offensive_rating"`
	DefensiveRating      float64 `json:"defensive_rating"`
	NetRating            float64 `json:"net_rating"`
}

// PlayerOnOff compares a team's per-100 margin with a player on and off court.
type PlayerOnOff struct {
	PlayerID        string  `json:"player_id"`
	TeamID          string  `json:"team_id"`
	OnPossessions   int     `json:"on_possessions"`
	OnNetRating     float64 `json:"on_net_rating"`
	OffPossessions  int     `json:"off_possessions"`
	OffNetRating    float64 `json:"off_net_rating"`
	OnOffDifference float64 `json:"on_off_difference"`
}
