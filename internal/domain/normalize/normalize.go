// Package normalize maps provider-specific play-by-play records onto the
// canonical event type.
package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/courtside/internal/domain/model"
)

// Rules recorded on normalizer faults.
const (
	RuleUnknownEventType = "unknown_event_type"
	RuleIncompleteSub    = "incomplete_substitution"
)

// NBA stats EVENTMSGTYPE codes.
var msgTypes = map[int]model.EventType{
	1:  model.EventMadeShot,
	2:  model.EventMissedShot,
	3:  model.EventFreeThrow,
	4:  model.EventRebound,
	5:  model.EventTurnover,
	6:  model.EventFoul,
	7:  model.EventOther, // violation
	8:  model.EventSubstitutionOut,
	9:  model.EventTimeout,
	10: model.EventJumpBall,
	11: model.EventOther, // ejection
	12: model.EventPeriodStart,
	13: model.EventPeriodEnd,
	18: model.EventOther, // replay
}

// Free-form type strings, keyed by their lowercased, underscore-joined form.
var typeNames = map[string]model.EventType{
	"made_shot": model.EventMadeShot, "made": model.EventMadeShot, "shot_made": model.EventMadeShot,
	"field_goal_made": model.EventMadeShot, "fgm": model.EventMadeShot,
	"missed_shot": model.EventMissedShot, "miss": model.EventMissedShot, "missed": model.EventMissedShot,
	"shot_missed": model.EventMissedShot, "field_goal_missed": model.EventMissedShot,
	"rebound": model.EventRebound, "reb": model.EventRebound,
	"turnover": model.EventTurnover, "tov": model.EventTurnover, "to": model.EventTurnover,
	"foul": model.EventFoul, "pf": model.EventFoul,
	"free_throw": model.EventFreeThrow, "freethrow": model.EventFreeThrow, "ft": model.EventFreeThrow,
	"substitution_in": model.EventSubstitutionIn, "sub_in": model.EventSubstitutionIn, "enter": model.EventSubstitutionIn,
	"substitution_out": model.EventSubstitutionOut, "sub_out": model.EventSubstitutionOut, "exit": model.EventSubstitutionOut,
	"timeout": model.EventTimeout,
	"jump_ball": model.EventJumpBall, "jumpball": model.EventJumpBall, "held_ball": model.EventJumpBall,
	"period_start": model.EventPeriodStart, "start_period": model.EventPeriodStart, "start_of_period": model.EventPeriodStart,
	"period_end": model.EventPeriodEnd, "end_period": model.EventPeriodEnd, "end_of_period": model.EventPeriodEnd,
	"other": model.EventOther, "violation": model.EventOther, "ejection": model.EventOther,
	"instant_replay": model.EventOther, "stoppage": model.EventOther,
}

// combinedSubNames are provider names for a combined in/out substitution record.
var combinedSubNames = map[string]struct{}{"substitution": {}, "sub": {}}

// Shot action names that carry the result in a separate field.
var shotActionValues = map[string]int{"2pt": 2, "3pt": 3}

type keyed struct {
	event  model.Event
	faults []model.Fault
	key    string
	num    float64
	isNum  bool
	index  int
}

// Normalize converts one raw game into canonical, densely sequenced events.
// Events are never dropped; unparseable ones become EventOther with a fault.
func Normalize(raw model.RawGame) (model.Game, []model.Fault, error) {
	gameID, err := resolveGameID(raw)
	if err != nil {
		return model.Game{}, nil, err
	}

	rows := make([]keyed, len(raw.Events))
	withKey := 0
	for i, rec := range raw.Events {
		e, f := convert(gameID, rec)
		k := keyed{event: e, faults: f, index: i}
		if v, ok := lookup(rec, seqKeys); ok {
			k.key = str(v)
			k.num, k.isNum = parseFloat(v)
			withKey++
		}
		rows[i] = k
	}

	if err := order(gameID, rows, withKey); err != nil {
		return model.Game{}, nil, err
	}

	g := model.Game{
		ID:         gameID,
		HomeTeamID: raw.HomeTeamID,
		AwayTeamID: raw.AwayTeamID,
		Events:     make([]model.Event, len(rows)),
		Starters:   raw.Starters,
	}
	if raw.BoxScore != nil {
		b := *raw.BoxScore
		b.GameID = gameID
		g.BoxScore = &b
	}
	var faults []model.Fault
	period, clock := 1, 0
	for i, r := range rows {
		e := r.event
		e.Seq = int64(i + 1)
		e.SourceSeq = r.key
		if e.Period == 0 {
			e.Period = period
		}
		if e.ClockSeconds < 0 {
			e.ClockSeconds = clock
		}
		period, clock = e.Period, e.ClockSeconds
		g.Events[i] = e
		for _, f := range r.faults {
			f.Seq = e.Seq
			faults = append(faults, f)
		}
	}
	resolveTeams(&g)
	return g, faults, nil
}

func resolveGameID(raw model.RawGame) (string, error) {
	id := strings.TrimSpace(raw.GameID)
	for _, rec := range raw.Events {
		eid := stringField(rec, gameKeys)
		if eid == "" {
			continue
		}
		if id == "" {
			id = eid
			continue
		}
		if eid != id {
			return "", &model.MalformedGameError{GameID: id, Reason: fmt.Sprintf("mixed game ids %q and %q", id, eid)}
		}
	}
	if id == "" {
		return "", &model.MalformedGameError{Reason: "missing game_id"}
	}
	return id, nil
}

// order sorts rows by provider key when every event has one, or by
// (period, clock remaining desc, input order) when none do.
func order(gameID string, rows []keyed, withKey int) error {
	switch {
	case withKey == 0:
		sort.SliceStable(rows, func(i, j int) bool {
			a, b := rows[i].event, rows[j].event
			if a.Period != b.Period {
				return a.Period < b.Period
			}
			return a.ClockSeconds > b.ClockSeconds
		})
		return nil
	case withKey != len(rows):
		return &model.MalformedGameError{
			GameID: gameID,
			Reason: fmt.Sprintf("%d of %d events lack a sequence number", len(rows)-withKey, len(rows)),
		}
	}

	numeric := true
	for _, r := range rows {
		numeric = numeric && r.isNum
	}
	seen := make(map[string]int, len(rows))
	for _, r := range rows {
		key := r.key
		if numeric {
			key = strconv.FormatFloat(r.num, 'f', -1, 64)
		}
		if prev, dup := seen[key]; dup {
			return &model.MalformedGameError{
				GameID: gameID,
				Reason: fmt.Sprintf("duplicate sequence number %s at records %d and %d", r.key, prev, r.index),
			}
		}
		seen[key] = r.index
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if numeric {
			return rows[i].num < rows[j].num
		}
		return naturalLess(rows[i].key, rows[j].key)
	})
	return nil
}

// naturalLess orders keys with digit runs compared by value, so "e9" sorts
// before "e10".
func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		da, db := digitPrefix(a), digitPrefix(b)
		switch {
		case da != "" && db != "":
			ta, tb := strings.TrimLeft(da, "0"), strings.TrimLeft(db, "0")
			if len(ta) != len(tb) {
				return len(ta) < len(tb)
			}
			if ta != tb {
				return ta < tb
			}
			a, b = a[len(da):], b[len(db):]
		case a[0] != b[0]:
			return a[0] < b[0]
		default:
			a, b = a[1:], b[1:]
		}
	}
	return len(a) < len(b)
}

func digitPrefix(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

func convert(gameID string, rec map[string]any) (model.Event, []model.Fault) {
	e := model.Event{
		GameID:       gameID,
		TeamID:       stringField(rec, teamKeys),
		PlayerID:     stringField(rec, playerKeys),
		Description:  description(rec),
		ClockSeconds: -1,
	}
	if v, ok := lookup(rec, periodKeys); ok {
		if p, ok := parseInt(v); ok && p > 0 {
			e.Period = p
		}
	}
	if v, ok := lookup(rec, clockKeys); ok {
		if c, ok := parseClock(v); ok && c >= 0 {
			e.ClockSeconds = c
		}
	}

	if e.PlayerID == e.TeamID {
		// team rebounds and turnovers carry the team id in the player slot
		e.PlayerID = ""
	}

	var faults []model.Fault
	typ, name, known := eventType(rec)
	e.Type = typ
	if !known {
		faults = append(faults, model.Fault{
			Kind:   model.ErrUnknownEvent,
			GameID: gameID,
			Rule:   RuleUnknownEventType,
			Detail: fmt.Sprintf("type %q mapped to other", name),
		})
	}

	desc := strings.ToUpper(e.Description)
	switch e.Type {
	case model.EventMadeShot, model.EventMissedShot:
		e.Shot.Value = 2
		if v, ok := lookup(rec, shotValueKeys); ok {
			if n, ok := parseInt(v); ok && (n == 2 || n == 3) {
				e.Shot.Value = n
			}
		} else if n, ok := shotActionValues[normalizeName(stringField(rec, typeKeys))]; ok {
			e.Shot.Value = n
		} else if strings.Contains(desc, "3PT") {
			e.Shot.Value = 3
		}
	case model.EventFreeThrow:
		ft := &e.FreeThrow
		if made, ok := boolField(rec, shotResultKeys); ok {
			ft.Made = made
		} else {
			ft.Made = !strings.Contains(desc, "MISS")
		}
		if v, ok := lookup(rec, ftNumberKeys); ok {
			ft.Number, _ = parseInt(v)
		}
		if v, ok := lookup(rec, ftTotalKeys); ok {
			ft.Total, _ = parseInt(v)
		}
		if ft.Total == 0 {
			if n, t, ok := tripNumbers(e.Description); ok {
				ft.Number, ft.Total = n, t
			}
		}
		if tech, ok := boolField(rec, technicalKeys); ok {
			ft.Technical = tech
		} else {
			ft.Technical = strings.Contains(desc, "TECHNICAL") || strings.Contains(desc, "FLAGRANT")
		}
	case model.EventFoul:
		sub := strings.ToLower(stringField(rec, subTypeKeys))
		if shooting, ok := boolField(rec, shootingKeys); ok {
			e.Foul.Shooting = shooting
		} else {
			e.Foul.Shooting = strings.Contains(sub, "shooting") || strings.Contains(desc, "S.FOUL") || strings.Contains(desc, "SHOOTING")
		}
		if tech, ok := boolField(rec, technicalKeys); ok {
			e.Foul.Technical = tech
		} else {
			e.Foul.Technical = strings.Contains(sub, "technical") || strings.Contains(desc, "T.FOUL") || strings.Contains(desc, "TECHNICAL")
		}
	case model.EventSubstitutionIn, model.EventSubstitutionOut:
		in, out := stringField(rec, playerInKeys), stringField(rec, playerOutKeys)
		switch {
		case in != "" && (out != "" || e.Type == model.EventSubstitutionOut):
			if out != "" {
				e.PlayerID = out
			}
			e.Type = model.EventSubstitutionOut
			e.Sub.IncomingPlayerID = in
		case in != "":
			e.Type, e.PlayerID = model.EventSubstitutionIn, in
		case out != "":
			e.Type, e.PlayerID = model.EventSubstitutionOut, out
		}
		if e.PlayerID == "" {
			faults = append(faults, model.Fault{
				Kind:   model.ErrSubstitutionConsistency,
				GameID: gameID,
				Rule:   RuleIncompleteSub,
				Detail: "substitution without player",
			})
		}
	}
	return e, faults
}

// eventType resolves the canonical type from numeric codes or free-form names.
func eventType(rec map[string]any) (model.EventType, string, bool) {
	if v, ok := lookup(rec, msgTypeKeys); ok {
		if code, ok := parseInt(v); ok {
			if t, known := msgTypes[code]; known {
				return t, str(v), true
			}
			return model.EventOther, str(v), false
		}
	}
	v, ok := lookup(rec, typeKeys)
	if !ok {
		return model.EventOther, "", false
	}
	if code, isNum := v.(float64); isNum {
		if t, known := msgTypes[int(code)]; known {
			return t, str(v), true
		}
	}
	name := normalizeName(str(v))
	if t, known := typeNames[name]; known {
		return t, name, true
	}
	if _, combined := combinedSubNames[name]; combined {
		return model.EventSubstitutionOut, name, true
	}
	if _, shot := shotActionValues[name]; shot {
		if made, ok := boolField(rec, shotResultKeys); ok && made {
			return model.EventMadeShot, name, true
		}
		return model.EventMissedShot, name, true
	}
	return model.EventOther, name, false
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_", ".", "").Replace(s)
}

// resolveTeams fills missing home/away ids from the first two acting teams.
func resolveTeams(g *model.Game) {
	if g.HomeTeamID != "" && g.AwayTeamID != "" {
		return
	}
	for _, e := range g.Events {
		if e.TeamID == "" || e.TeamID == g.HomeTeamID || e.TeamID == g.AwayTeamID {
			continue
		}
		if g.HomeTeamID == "" {
			g.HomeTeamID = e.TeamID
		} else if g.AwayTeamID == "" {
			g.AwayTeamID = e.TeamID
			return
		}
	}
}
