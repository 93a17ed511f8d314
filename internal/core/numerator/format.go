package numerator

import (
	"fmt"
	"strconv"
	"strings"

	"invoicer/internal/core/apperror"
)

// Format renders seq within the scope: Prefix + PeriodKey + zero-padded seq.
func (s Scope) Format(seq int64) (string, error) {
	if seq < 1 {
		return "", fmt.Errorf("numerator: sequence must be positive, got %d", seq)
	}
	if seq > MaxSequence {
		return "", apperror.NewSequenceExhausted(s.Key(), MaxSequence)
	}
	return s.Key() + fmt.Sprintf("%0*d", SequenceWidth, seq), nil
}

// ParseSequence extracts the trailing sequence of a stored number.
// The number must start with the scope key and end in exactly
// SequenceWidth decimal digits.
func (s Scope) ParseSequence(number string) (int64, error) {
	key := s.Key()
	if !strings.HasPrefix(number, key) || len(number) != len(key)+SequenceWidth {
		return 0, apperror.NewMalformedNumber(key, number)
	}

	tail := number[len(key):]
	for i := 0; i < len(tail); i++ {
		if tail[i] < '0' || tail[i] > '9' {
			return 0, apperror.NewMalformedNumber(key, number)
		}
	}

	seq, err := strconv.ParseInt(tail, 10, 64)
	if err != nil {
		return 0, apperror.NewMalformedNumber(key, number).WithCause(err)
	}
	return seq, nil
}

// Next computes the number following latest. An empty latest starts the
// scope at 1.
func (s Scope) Next(latest string) (string, int64, error) {
	if latest == "" {
		n, err := s.Format(1)
		return n, 1, err
	}
	seq, err := s.ParseSequence(latest)
	if err != nil {
		return "", 0, err
	}
	n, err := s.Format(seq + 1)
	return n, seq + 1, err
}
