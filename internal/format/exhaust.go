package format

import (
	"fmt"

	"github.com/quellen/fileform/internal/codec"
)

// CheckExhausted verifies the stream has no bytes left after a structural
// parse. Leftover bytes mean the structure was misparsed or the file holds
// more than the description knows about; either way the parse cannot be
// trusted.
func CheckExhausted(formatName string, s *codec.Stream) error {
	pos, err := s.Pos()
	if err != nil {
		return err
	}
	end, err := s.Len()
	if err != nil {
		return err
	}
	if pos < end {
		return &ContentError{
			Format:  formatName,
			Message: fmt.Sprintf("%d trailing bytes after expected structure", end-pos),
		}
	}
	return nil
}
