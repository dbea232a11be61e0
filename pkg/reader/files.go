package reader

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FindFiles recursively lists files under dir whose base name matches pattern.
func FindFiles(dir, pattern string) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, errors.Wrapf(err, "pattern %q", pattern)
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", dir)
	}

	sort.Strings(files)
	return files, nil
}

// Pair is an audio file and the MIDI file sharing its name.
type Pair struct {
	Audio string
	MIDI  string
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// MatchPairs pairs files by path without extension. Files without a
// counterpart are logged and dropped.
func MatchPairs(audio, midi []string, log *zap.Logger) []Pair {
	byStem := make(map[string]string, len(midi))
	for _, name := range midi {
		byStem[stem(name)] = name
	}

	pairs := make([]Pair, 0, len(audio))
	for _, name := range audio {
		m, ok := byStem[stem(name)]
		if !ok {
			log.Warn("no midi match, audio file removed", zap.String("file", name))
			continue
		}
		delete(byStem, stem(name))
		pairs = append(pairs, Pair{Audio: name, MIDI: m})
	}

	for _, name := range midi {
		if _, ok := byStem[stem(name)]; ok {
			log.Warn("no audio match, midi file removed", zap.String("file", name))
		}
	}

	return pairs
}
