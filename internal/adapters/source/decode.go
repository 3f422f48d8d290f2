package source

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/normalize"
)

// Decode accepts the upstream payload layouts:
//   - one game object with an "events" array
//   - an array of game objects
//   - a flat array of event records, grouped into games by their game id
func Decode(data []byte) ([]model.RawGame, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	switch data[0] {
	case '{':
		var g model.RawGame
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("decode game: %w", err)
		}
		return []model.RawGame{g}, nil
	case '[':
		var recs []map[string]any
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		if len(recs) == 0 {
			return nil, ErrEmptyPayload
		}
		if _, ok := recs[0]["events"]; ok {
			var games []model.RawGame
			if err := json.Unmarshal(data, &games); err != nil {
				return nil, fmt.Errorf("decode games: %w", err)
			}
			return games, nil
		}
		return groupEvents(recs), nil
	}
	return nil, ErrUnknownLayout
}

// groupEvents splits a flat event list by game id, keeping first-seen order.
func groupEvents(recs []map[string]any) []model.RawGame {
	index := make(map[string]int)
	var games []model.RawGame
	for _, rec := range recs {
		id := normalize.GameID(rec)
		i, ok := index[id]
		if !ok {
			i = len(games)
			index[id] = i
			games = append(games, model.RawGame{GameID: id})
		}
		games[i].Events = append(games[i].Events, rec)
	}
	return games
}
