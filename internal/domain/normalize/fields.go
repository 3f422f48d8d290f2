package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/okian/courtside/internal/domain/model"
)

// Provider field aliases, in lookup order.
var (
	gameKeys        = model.GameIDKeys
	seqKeys         = []string{"sequence_number", "eventnum", "EVENTNUM", "actionNumber", "seq", "id", "play_id"}
	periodKeys      = []string{"period", "quarter", "PERIOD"}
	clockKeys       = []string{"game_clock_seconds", "clock", "PCTIMESTRING", "time_remaining"}
	typeKeys        = []string{"event_type", "type", "actionType", "event"}
	msgTypeKeys     = []string{"EVENTMSGTYPE", "event_msg_type"}
	teamKeys        = []string{"team_id", "team", "teamTricode", "teamId", "PLAYER1_TEAM_ID"}
	playerKeys      = []string{"player_id", "player", "personId", "PLAYER1_ID"}
	descKeys        = []string{"description", "HOMEDESCRIPTION", "VISITORDESCRIPTION", "NEUTRALDESCRIPTION"}
	playerInKeys    = []string{"player_in", "incoming_player_id", "PLAYER2_ID"}
	playerOutKeys   = []string{"player_out", "outgoing_player_id"}
	shotValueKeys   = []string{"shot_value", "shotValue", "points"}
	shotResultKeys  = []string{"shot_result", "shotResult", "made", "result"}
	ftNumberKeys    = []string{"ft_number", "free_throw_number"}
	ftTotalKeys     = []string{"ft_total", "free_throw_total"}
	technicalKeys   = []string{"technical"}
	shootingKeys    = []string{"shooting"}
	subTypeKeys     = []string{"sub_type", "subType", "foul_type"}
	isoClockPattern = regexp.MustCompile(`^PT(?:(\d+)M)?(\d+(?:\.\d+)?)S$`)
	ftTripPattern   = regexp.MustCompile(`(\d+)\s+of\s+(\d+)`)
)

// lookup returns the first present, non-null value among keys.
func lookup(rec map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

// str renders scalar values as strings; ids arrive as numbers from some providers.
func str(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == math.Trunc(val) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	}
	return ""
}

// parseInt parses an int from a decoded JSON value.
func parseInt(v any) (int, bool) {
	switch val := v.(type) {
	case float64:
		return int(val), true
	case int:
		return val, true
	case int64:
		return int(val), true
	case uint64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(val))
		return i, err == nil
	}
	return 0, false
}

// parseFloat parses a float from a decoded JSON value.
func parseFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	}
	return 0, false
}

// parseBool accepts booleans, 0/1 and common result words.
func parseBool(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "made", "make", "1", "yes", "y":
			return true, true
		case "false", "missed", "miss", "0", "no", "n":
			return false, true
		}
		return false, false
	}
	if i, ok := parseInt(v); ok {
		return i != 0, true
	}
	return false, false
}

// parseClock converts seconds, "MM:SS" and ISO-8601 "PT11M32.00S" to whole seconds remaining.
func parseClock(v any) (int, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if m := isoClockPattern.FindStringSubmatch(s); m != nil {
			mins := 0
			if m[1] != "" {
				mins, _ = strconv.Atoi(m[1])
			}
			secs, _ := strconv.ParseFloat(m[2], 64)
			return mins*60 + int(secs), true
		}
		if strings.Contains(s, ":") {
			parts := strings.SplitN(s, ":", 2)
			mins, err := strconv.Atoi(parts[0])
			if err != nil {
				return 0, false
			}
			secs, err := strconv.ParseFloat(parts[1], 64)
			if err != nil {
				return 0, false
			}
			return mins*60 + int(secs), true
		}
	}
	f, ok := parseFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// tripNumbers extracts "N of M" free-throw numbering from a description.
func tripNumbers(desc string) (int, int, bool) {
	m := ftTripPattern.FindStringSubmatch(desc)
	if m == nil {
		return 0, 0, false
	}
	n, _ := strconv.Atoi(m[1])
	t, _ := strconv.Atoi(m[2])
	return n, t, t > 0
}

func stringField(rec map[string]any, keys []string) string {
	v, ok := lookup(rec, keys)
	if !ok {
		return ""
	}
	return str(v)
}

func boolField(rec map[string]any, keys []string) (bool, bool) {
	v, ok := lookup(rec, keys)
	if !ok {
		return false, false
	}
	return parseBool(v)
}

func description(rec map[string]any) string {
	var parts []string
	for _, k := range descKeys {
		if s := stringField(rec, []string{k}); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " | ")
}

// GameID returns the game identifier carried by a raw record, if any.
func GameID(rec map[string]any) string {
	return stringField(rec, gameKeys)
}
