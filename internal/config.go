package internal

import "fmt"

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`

	// MaxContentLength bounds message content, in runes.
	MaxContentLength int `env:"MAX_CONTENT_LENGTH,default=500"`
	// PageLimit caps the page size of message and post reads.
	PageLimit int `env:"PAGE_LIMIT,default=10"`

	ModerationCharReplacement string `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`

	InspectPort int `env:"INSPECT_PORT,default=8090"`
}

// CharacterRune checks the replacement character is exactly one rune.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
