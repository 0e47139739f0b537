package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var errNotInteger = errors.New("not an integer")

// flexInt accepts a JSON number or a numeric string with an integral value, the way
// form posts send ids.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)

	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
		return fmt.Errorf("%q: %w", s, errNotInteger)
	}
	*f = flexInt(n)
	return nil
}

// DiagnoseRequest is the POST /diagnose body
type DiagnoseRequest struct {
	YearOfBirth *flexInt        `json:"year_of_birth"`
	Gender      *string         `json:"gender"`
	Symptoms    json.RawMessage `json:"symptoms"`
}

// ValidateRequest is the PUT /diagnosis/validate body
type ValidateRequest struct {
	ID *flexInt `json:"id"`
}
