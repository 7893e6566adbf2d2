package config

// Names resolved against the output root when the corresponding path is not
// configured explicitly.
const (
	DefaultStateFileName   = "stratum_state.json"
	DefaultJournalFileName = "stratum_journal.db"
	DefaultLogFileName     = "stratum.log"
)

// Default returns the repository default configuration.
func Default() Config {
	return Config{
		Processing: Processing{
			Workers:            0,
			CheckpointInterval: 10,
			Extractor:          "psd-extract",
			Extension:          ".psd",
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
