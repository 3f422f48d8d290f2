package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	Games     int           // Number of games to generate
	Seed      uint64        // Seed shared by every game of the run
	Periods   int           // Periods per game
	PerPeriod int           // Possessions per period
	OutputDir string        // Directory game files are written to
	BaseURL   string        // Service to submit games to; empty skips submission
	Workers   int           // Concurrent writers or submitters
	Timeout   time.Duration // HTTP request timeout
	Verbose   bool          // Log every game
}

// Summary is what the generator knows about a game it produced.
type Summary struct {
	GameID        string         `json:"game_id"`
	HomeTeamID    string         `json:"home_team_id"`
	AwayTeamID    string         `json:"away_team_id"`
	Possessions   int            `json:"possessions"`
	Points        map[string]int `json:"points"`
	Substitutions int            `json:"substitutions"`
	Events        int            `json:"events"`
}

// Stats holds run statistics.
type Stats struct {
	GamesGenerated  int
	FilesWritten    int
	GamesSubmitted  int
	GamesAccepted   int
	GamesRejected   int
	EventsGenerated int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
