package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; anything touching
// device handles or provider connections requires a restart.
type ConfigDiff struct {
	LogLevelChanged   bool
	NewLogLevel       LogLevel
	VocabularyChanged bool
	AnswerModeChanged bool
	NewAnswerMode     AnswerMode
	ChannelChanges    []ChannelDiff
}

// ChannelDiff describes what changed for a single channel between two
// configs. Channels are matched by name.
type ChannelDiff struct {
	Name             string
	ThresholdChanged bool
	NewThreshold     float64
}

// Changed reports whether the diff contains any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.VocabularyChanged || d.AnswerModeChanged || len(d.ChannelChanges) > 0
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Logging.Level != new.Logging.Level {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Logging.Level
	}

	if !slices.Equal(old.NLP.Vocabulary, new.NLP.Vocabulary) {
		d.VocabularyChanged = true
	}

	if old.Answer.Mode != new.Answer.Mode {
		d.AnswerModeChanged = true
		d.NewAnswerMode = new.Answer.Mode
	}

	oldChannels := make(map[string]*ChannelConfig, len(old.Channels))
	for i := range old.Channels {
		oldChannels[old.Channels[i].Name] = &old.Channels[i]
	}
	for i := range new.Channels {
		nc := &new.Channels[i]
		oc, ok := oldChannels[nc.Name]
		if !ok {
			continue
		}
		if oc.ScoreThreshold != nc.ScoreThreshold {
			d.ChannelChanges = append(d.ChannelChanges, ChannelDiff{
				Name:             nc.Name,
				ThresholdChanged: true,
				NewThreshold:     nc.ScoreThreshold,
			})
		}
	}

	return d
}
