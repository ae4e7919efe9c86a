package classify

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Markers holds the fixed substrings that identify each kind of narration
// line. Matching is case-sensitive.
type Markers struct {
	LoadingInsight      string `yaml:"loading_insight"`
	PublishingInsight   string `yaml:"publishing_insight"`
	GeneratingResponse  string `yaml:"generating_response"`
	CharacterObject     string `yaml:"character_object"`
	PublishingResponse  string `yaml:"publishing_response"`
	DiscussionCompleted string `yaml:"discussion_completed"`
}

// DefaultMarkers is the English narration of the discussion runner.
func DefaultMarkers() Markers {
	return Markers{
		LoadingInsight:      "loading insight",
		PublishingInsight:   "publishing insight",
		GeneratingResponse:  "generating response from",
		CharacterObject:     "Character object:",
		PublishingResponse:  "publishing response",
		DiscussionCompleted: "discussion completed successfully",
	}
}

// RussianMarkers matches the narration of the original Russian-language
// discussion script.
func RussianMarkers() Markers {
	return Markers{
		LoadingInsight:      "Загрузка инсайта",
		PublishingInsight:   "Публикация инсайта...",
		GeneratingResponse:  "Генерация ответа от",
		CharacterObject:     "Character object:",
		PublishingResponse:  "Публикация ответа...",
		DiscussionCompleted: "Обсуждение успешно завершено!",
	}
}

// Preset returns the named marker set ("default" or "ru").
func Preset(name string) (Markers, error) {
	switch name {
	case "", "default", "en":
		return DefaultMarkers(), nil
	case "ru":
		return RussianMarkers(), nil
	default:
		return Markers{}, fmt.Errorf("unknown marker preset %q", name)
	}
}

// LoadMarkers reads a yaml override file on top of base. Keys left empty in
// the file keep the base marker. A missing file returns base unchanged.
func LoadMarkers(path string, base Markers) (Markers, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return base, nil
	}
	if err != nil {
		return Markers{}, fmt.Errorf("read markers %s: %w", path, err)
	}

	var override Markers
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Markers{}, fmt.Errorf("parse markers %s: %w", path, err)
	}

	merged := base
	for _, f := range []struct {
		dst *string
		src string
	}{
		{&merged.LoadingInsight, override.LoadingInsight},
		{&merged.PublishingInsight, override.PublishingInsight},
		{&merged.GeneratingResponse, override.GeneratingResponse},
		{&merged.CharacterObject, override.CharacterObject},
		{&merged.PublishingResponse, override.PublishingResponse},
		{&merged.DiscussionCompleted, override.DiscussionCompleted},
	} {
		if f.src != "" {
			*f.dst = f.src
		}
	}
	return merged, nil
}
