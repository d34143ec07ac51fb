package hitag2gnd

import (
	"encoding/json"
	"os"

	"github.com/mahdiidarabi/hitag2-gnd/internal/bitlayout"
)

const fixturesDir = "../../fixtures/"

// loadFixtureSchedule reads the schedule stored in a JSON job fixture.
func loadFixtureSchedule(filename string) (Schedule, error) {
	var raw struct {
		Schedule struct {
			Threshold int      `json:"threshold"`
			Masks     []string `json:"masks"`
		} `json:"schedule"`
	}

	data, err := os.ReadFile(fixturesDir + filename)
	if err != nil {
		return Schedule{}, err
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Schedule{}, err
	}

	s := Schedule{Threshold: raw.Schedule.Threshold}
	for _, str := range raw.Schedule.Masks {
		m, err := bitlayout.ParseHex(str)
		if err != nil {
			return Schedule{}, err
		}
		s.Masks = append(s.Masks, m)
	}
	return s, nil
}
