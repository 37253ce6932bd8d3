package verification

import (
	"strings"
)

var validCivilizations = map[string]bool{
	"britons": true, "franks": true, "goths": true, "teutons": true, "japanese": true,
	"chinese": true, "byzantines": true, "persians": true, "saracens": true, "turks": true,
	"vikings": true, "mongols": true, "celts": true, "spanish": true, "aztecs": true,
	"mayans": true, "huns": true, "koreans": true, "italians": true, "indians": true,
	"incas": true, "magyars": true, "slavs": true, "portuguese": true, "ethiopians": true,
	"malians": true, "berbers": true, "khmer": true, "malay": true, "burmese": true,
	"vietnamese": true,
}

var validFactions = map[string]bool{
	"uef": true, "cybran": true, "aeon": true, "seraphim": true,
}

// adapter scores a submission for one game. Malformed match data is an error.
type adapter func(data MatchData, proofs []ProofFile) (Result, error)

type scoreSheet struct {
	confidence float64
	methods    []string
	details    map[string]any
}

func newScoreSheet(base float64, details map[string]any) *scoreSheet {
	return &scoreSheet{confidence: base, methods: []string{}, details: details}
}

func (s *scoreSheet) add(amount float64, method string) {
	s.confidence += amount
	if method != "" {
		s.methods = append(s.methods, method)
	}
}

func (s *scoreSheet) completeness(data MatchData, required ...string) {
	missing := data.missing(required...)
	if len(missing) == 0 {
		s.add(0.1, "")
		s.details["data_completeness"] = "complete"
		return
	}
	s.details["missing_fields"] = missing
	s.details["data_completeness"] = "partial"
}

func (s *scoreSheet) result(method string, threshold float64) Result {
	s.details["verification_methods"] = s.methods
	confidence := finalize(s.confidence)
	return Result{
		Verified:   confidence >= threshold,
		Confidence: confidence,
		Method:     method,
		Details:    s.details,
	}
}

func anyProof(proofs []ProofFile, match func(ProofFile) bool) bool {
	for _, p := range proofs {
		if match(p) {
			return true
		}
	}
	return false
}

func allKnown(values []string, known map[string]bool) bool {
	for _, v := range values {
		if !known[strings.ToLower(v)] {
			return false
		}
	}
	return true
}

func verifySC2(data MatchData, proofs []ProofFile) (Result, error) {
	sheet := newScoreSheet(0.70, map[string]any{
		"players":  data["players"],
		"duration": data["duration"],
		"winner":   data["winner"],
		"map":      data["map"],
	})

	if anyProof(proofs, func(p ProofFile) bool {
		return strings.Contains(p.lowerName(), "replay") || p.ContentType == "application/octet-stream"
	}) {
		sheet.add(0.20, "replay_analysis")
	}
	if anyProof(proofs, ProofFile.isImage) {
		sheet.add(0.10, "screenshot_validation")
	}

	sheet.completeness(data, "players", "winner", "duration", "map")

	if n := data.listLen("players"); n >= 2 && n <= 8 {
		sheet.add(0.05, "")
		sheet.details["player_count_valid"] = true
	}

	return sheet.result("sc2_verification", 0.8), nil
}

func verifyAOE2(data MatchData, proofs []ProofFile) (Result, error) {
	civs, err := data.stringList("civilizations")
	if err != nil {
		return Result{}, err
	}
	duration, err := data.number("duration")
	if err != nil {
		return Result{}, err
	}

	gameType := data["game_type"]
	if gameType == nil {
		gameType = "unknown"
	}
	sheet := newScoreSheet(0.65, map[string]any{
		"civilizations":    civs,
		"duration":         data["duration"],
		"score_difference": data["score_difference"],
		"game_type":        gameType,
	})

	if anyProof(proofs, func(p ProofFile) bool {
		name := p.lowerName()
		return strings.HasSuffix(name, ".mgx") || strings.Contains(name, "recorded")
	}) {
		sheet.add(0.25, "recorded_game_analysis")
	}
	if anyProof(proofs, ProofFile.isImage) {
		sheet.add(0.15, "screenshot_validation")
	}

	sheet.completeness(data, "civilizations", "duration", "winner")

	if len(civs) >= 2 && allKnown(civs, validCivilizations) {
		sheet.add(0.10, "")
		sheet.details["civilizations_valid"] = true
	}

	// 10 minutes to 3 hours.
	if duration >= 600 && duration <= 10800 {
		sheet.add(0.05, "")
		sheet.details["duration_valid"] = true
	}

	return sheet.result("aoe2_verification", 0.7), nil
}

func verifyFAF(data MatchData, proofs []ProofFile) (Result, error) {
	factions, err := data.stringList("factions")
	if err != nil {
		return Result{}, err
	}
	playerCount, err := data.number("player_count")
	if err != nil {
		return Result{}, err
	}
	version, err := data.text("version")
	if err != nil {
		return Result{}, err
	}

	sheet := newScoreSheet(0.75, map[string]any{
		"factions":     factions,
		"game_version": data["version"],
		"map_name":     data["map"],
		"player_count": playerCount,
	})

	if anyProof(proofs, func(p ProofFile) bool {
		name := p.lowerName()
		return strings.HasSuffix(name, ".fafreplay") || strings.Contains(name, "faf")
	}) {
		sheet.add(0.30, "faf_replay_analysis")
	}
	if anyProof(proofs, ProofFile.isImage) {
		sheet.add(0.10, "screenshot_validation")
	}

	sheet.completeness(data, "factions", "map", "player_count", "winner")

	if len(factions) >= 2 && allKnown(factions, validFactions) {
		sheet.add(0.10, "")
		sheet.details["factions_valid"] = true
	}
	if playerCount >= 2 && playerCount <= 16 {
		sheet.add(0.05, "")
		sheet.details["player_count_valid"] = true
	}
	if strings.HasPrefix(version, "1.") {
		sheet.add(0.05, "")
		sheet.details["version_valid"] = true
	}

	return sheet.result("faf_verification", 0.8), nil
}

// verifyManual is the review-queue heuristic: it trusts the number of proofs
// and how much of the basic report was filled in.
func verifyManual(data MatchData, proofs []ProofFile) (Result, error) {
	required := []string{"players", "winner", "duration"}
	present := len(required) - len(data.missing(required...))
	completeness := float64(present) / float64(len(required))

	confidence := 0.70 + 0.10*float64(len(proofs)) + 0.20*completeness
	confidence = finalize(confidence)

	return Result{
		Verified:   confidence >= 0.6,
		Confidence: confidence,
		Method:     "manual_review",
		Details: map[string]any{
			"proof_files_count": len(proofs),
			"data_completeness": completeness,
			"review_notes":      "Awaiting manual review",
		},
	}, nil
}
